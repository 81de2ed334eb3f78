// Package txscope binds one database transaction to the lifetime of one request.
//
// The database side only offers a callback shape, RunInTransaction(work), where the
// transaction is open exactly while work runs. Requests on the other hand have separate
// start and finish hooks. A Coordinator bridges the two with two single-fire signals:
// work closes "ready" as soon as it holds the transaction and then waits for "end",
// which is fired by Scope.End when the request finishes.
package txscope

import (
	"context"
	"time"
)

// TxOptions bounds a single transaction.
type TxOptions struct {
	// Timeout aborts the transaction when it stays open longer than this. Zero means
	// the transaction is bounded only by the caller's context.
	Timeout time.Duration
}

// Client runs work inside a transaction. Returning nil from work commits, returning an
// error (or panicking) rolls back. The handle passed to work must not be used after
// work returns.
type Client[T any] interface {
	RunInTransaction(ctx context.Context, work func(ctx context.Context, tx T) error, opts TxOptions) error
}

// ClientFunc adapts a plain function to Client.
type ClientFunc[T any] func(ctx context.Context, work func(ctx context.Context, tx T) error, opts TxOptions) error

func (f ClientFunc[T]) RunInTransaction(ctx context.Context, work func(ctx context.Context, tx T) error, opts TxOptions) error {
	return f(ctx, work, opts)
}

// withTimeout derives the transaction context from opts.
func withTimeout(ctx context.Context, opts TxOptions) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return context.WithCancel(ctx)
}
