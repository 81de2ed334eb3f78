package txscope

import (
	"context"
	"sync"
	"sync/atomic"
)

type fakeTx struct {
	id int64
}

// fakeClient records what happened to every transaction it opened.
type fakeClient struct {
	openErr   error
	commitErr error

	nextID    atomic.Int64
	mu        sync.Mutex
	commits   []int64
	rollbacks []int64
	lastOpts  TxOptions
}

func (f *fakeClient) RunInTransaction(ctx context.Context, work func(ctx context.Context, tx *fakeTx) error, opts TxOptions) error {
	f.mu.Lock()
	f.lastOpts = opts
	f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}

	txCtx, cancel := withTimeout(ctx, opts)
	defer cancel()

	tx := &fakeTx{id: f.nextID.Add(1)}
	err := work(txCtx, tx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.rollbacks = append(f.rollbacks, tx.id)
		return err
	}
	if f.commitErr != nil {
		f.rollbacks = append(f.rollbacks, tx.id)
		return f.commitErr
	}
	f.commits = append(f.commits, tx.id)
	return nil
}

func (f *fakeClient) counts() (commits, rollbacks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commits), len(f.rollbacks)
}
