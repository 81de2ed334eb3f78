package txscope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clubmedia/internal/observability"
)

var (
	// ErrScopeTimeout means the transaction was aborted because it outlived its timeout.
	ErrScopeTimeout = errors.New("txscope: transaction timed out")
	// ErrScopeAborted means the transaction context ended before the request finished.
	ErrScopeAborted = errors.New("txscope: transaction aborted")
	// ErrRolledBack wraps the failure a request ended with.
	ErrRolledBack = errors.New("txscope: transaction rolled back")
)

// Options configures a Coordinator.
type Options struct {
	// Name labels logs and metrics, e.g. "http" or "graphql".
	Name string
	// Timeout bounds how long a scope's transaction may stay open. Zero disables it.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Coordinator opens one transaction per request scope.
type Coordinator[T any] struct {
	client  Client[T]
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

func NewCoordinator[T any](client Client[T], opts Options) *Coordinator[T] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "request"
	}
	return &Coordinator[T]{
		client:  client,
		name:    opts.Name,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// Name returns the scope label.
func (c *Coordinator[T]) Name() string { return c.name }

// Scope is one open request transaction.
type Scope[T any] struct {
	coord   *Coordinator[T]
	rc      *RequestContext[T]
	handle  T
	started time.Time

	ready   chan struct{} // closed by work once the handle is bound
	end     chan error    // receives the request outcome, at most once
	done    chan struct{} // closed once RunInTransaction has returned
	endOnce sync.Once

	// written by the transaction goroutine before done is closed
	entered  bool
	received bool
	outcome  error
	err      error
}

// Begin opens a transaction and binds it to rc. It returns once the handle is
// readable through rc, or with an error when the transaction could not be opened.
// The returned scope must be finished with End.
func (c *Coordinator[T]) Begin(ctx context.Context, rc *RequestContext[T]) (*Scope[T], error) {
	if rc == nil {
		rc = NewRequestContext[T]()
	}
	s := &Scope[T]{
		coord:   c,
		rc:      rc,
		started: time.Now(),
		ready:   make(chan struct{}),
		end:     make(chan error, 1),
		done:    make(chan struct{}),
	}
	go s.run(ctx)

	select {
	case <-s.ready:
		return s, nil
	case <-s.done:
		// work may have become ready and then timed out before we were scheduled
		select {
		case <-s.ready:
			return s, nil
		default:
		}
		return nil, s.err
	}
}

func (s *Scope[T]) run(ctx context.Context) {
	defer close(s.done)
	c := s.coord

	err := c.client.RunInTransaction(ctx, s.work, TxOptions{Timeout: c.timeout})

	outcome := "commit"
	switch {
	case !s.entered:
		if err == nil {
			err = errors.New("client returned without opening a transaction")
		}
		s.err = fmt.Errorf("open %s transaction: %w", c.name, err)
		outcome = "open_failed"
		c.logger.Error("txscope_open_failed", "scope", c.name, "error", err)
	case s.received && s.outcome != nil:
		s.err = fmt.Errorf("%w: %w", ErrRolledBack, s.outcome)
		outcome = "rollback"
	case s.received && err != nil:
		s.err = fmt.Errorf("commit %s transaction: %w", c.name, err)
		outcome = "commit_failed"
		c.logger.Error("txscope_commit_failed", "scope", c.name, "error", err)
	case !s.received:
		s.err = err
		outcome = "aborted"
		if errors.Is(err, ErrScopeTimeout) {
			outcome = "timeout"
		}
		c.logger.Warn("txscope_"+outcome,
			"scope", c.name,
			"timeout", c.timeout,
			"open_for", time.Since(s.started),
			"error", err,
		)
	}

	observability.ScopesTotal.WithLabelValues(c.name, outcome).Inc()
	if s.entered {
		observability.ScopeDuration.WithLabelValues(c.name).Observe(time.Since(s.started).Seconds())
	}
}

// work is the callback handed to the transactional client. It stays inside the
// callback, and so keeps the transaction open, until End fires or ctx ends.
func (s *Scope[T]) work(ctx context.Context, tx T) error {
	if err := s.rc.setHandle(tx); err != nil {
		return err
	}
	s.entered = true
	s.handle = tx
	close(s.ready)

	select {
	case outcome := <-s.end:
		s.received = true
		s.outcome = outcome
		return outcome
	case <-ctx.Done():
		// an outcome that arrived together with the deadline wins
		select {
		case outcome := <-s.end:
			s.received = true
			s.outcome = outcome
			return outcome
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if s.coord.timeout > 0 {
				return fmt.Errorf("%w after %s", ErrScopeTimeout, s.coord.timeout)
			}
			return ErrScopeTimeout
		}
		return fmt.Errorf("%w: %w", ErrScopeAborted, ctx.Err())
	}
}

// Handle returns the open transaction.
func (s *Scope[T]) Handle() T { return s.handle }

// End finishes the scope. A nil outcome commits, anything else rolls back. It blocks
// until the transaction is closed and returns nil only for a successful commit.
// A rollback requested by outcome is reported as ErrRolledBack; a scope that timed out
// first reports ErrScopeTimeout whatever the outcome. Only the first call signals the
// transaction; later calls return the same result.
func (s *Scope[T]) End(outcome error) error {
	s.endOnce.Do(func() {
		s.end <- outcome
	})
	<-s.done
	return s.err
}

// Done is closed once the transaction has been committed or rolled back.
func (s *Scope[T]) Done() <-chan struct{} { return s.done }

// Err returns the scope result once Done is closed, nil before that.
func (s *Scope[T]) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the scope is finished or ctx ends.
func (s *Scope[T]) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
