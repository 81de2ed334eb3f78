package txscope

import (
	"context"
	"errors"
	"sync"
)

// ErrHandleAlreadySet is returned when a second transaction is bound to a request.
var ErrHandleAlreadySet = errors.New("txscope: request already holds a transaction")

// RequestContext is the per-request slot for the open transaction. It is written once
// by the coordinator and read by any number of downstream handlers.
type RequestContext[T any] struct {
	mu     sync.RWMutex
	handle T
	set    bool
}

func NewRequestContext[T any]() *RequestContext[T] {
	return &RequestContext[T]{}
}

// TransactionHandle returns the bound transaction, or false before the scope is ready.
func (rc *RequestContext[T]) TransactionHandle() (T, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.handle, rc.set
}

func (rc *RequestContext[T]) setHandle(h T) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.set {
		return ErrHandleAlreadySet
	}
	rc.handle = h
	rc.set = true
	return nil
}

type requestContextKey[T any] struct{}

// WithRequestContext attaches rc to ctx.
func WithRequestContext[T any](ctx context.Context, rc *RequestContext[T]) context.Context {
	return context.WithValue(ctx, requestContextKey[T]{}, rc)
}

// FromContext returns the RequestContext attached to ctx, if any.
func FromContext[T any](ctx context.Context) *RequestContext[T] {
	rc, _ := ctx.Value(requestContextKey[T]{}).(*RequestContext[T])
	return rc
}

// HandleFromContext returns the open transaction of the current request.
func HandleFromContext[T any](ctx context.Context) (T, bool) {
	if rc := FromContext[T](ctx); rc != nil {
		return rc.TransactionHandle()
	}
	var zero T
	return zero, false
}
