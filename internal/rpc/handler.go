package rpc

import (
	"context"
	"time"

	"clubmedia/internal/txscope"
)

// Handler serves one RPC method.
type Handler interface {
	HandleRPC(ctx context.Context, params map[string]any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

func (f HandlerFunc) HandleRPC(ctx context.Context, params map[string]any) (any, error) {
	return f(ctx, params)
}

// TxHandlerFunc is a handler body that runs inside a transaction.
type TxHandlerFunc[T any] func(ctx context.Context, tx T, params map[string]any) (any, error)

// Transactional runs fn in its own short-lived transaction scoped to the single
// call: committed when fn succeeds, rolled back when it fails.
func Transactional[T any](client txscope.Client[T], timeout time.Duration, fn TxHandlerFunc[T]) Handler {
	return HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
		var out any
		err := client.RunInTransaction(ctx, func(ctx context.Context, tx T) error {
			var err error
			out, err = fn(ctx, tx, params)
			return err
		}, txscope.TxOptions{Timeout: timeout})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}
