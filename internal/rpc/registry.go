package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"clubmedia/internal/observability"
)

// Prefetch is the number of unacknowledged messages the consumer may hold. Handlers
// run multi-step transactions, and taking one message at a time keeps them from
// interleaving against the same tables. Raising it needs a look at isolation first.
const Prefetch = 1

const msgUncaught = "Uncaught exception"

// ErrDeliveriesClosed is returned by Start when the broker stops delivering while the
// registry is still running.
var ErrDeliveriesClosed = errors.New("rpc: delivery stream closed")

// Registry maps method names to handlers and serves them from a broker queue.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	consumer Consumer
	replies  ReplyChannel
	logger   *slog.Logger
}

// NewRegistry builds a registry that reads requests from consumer and answers on
// replies. Brokers implement both, so the usual call passes the same value twice.
func NewRegistry(consumer Consumer, replies ReplyChannel, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		consumer: consumer,
		replies:  replies,
		logger:   logger,
	}
}

// Register binds method to h, replacing any earlier handler for the same name.
// Register everything before Start.
func (r *Registry) Register(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// RegisterFunc is Register for plain functions.
func (r *Registry) RegisterFunc(method string, fn func(ctx context.Context, params map[string]any) (any, error)) {
	r.Register(method, HandlerFunc(fn))
}

// Methods lists the registered method names in order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(method string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[method]
	return h, ok
}

// Dispatch validates env, runs its handler and returns the reply to send. It never
// panics and never returns an empty result, so it can be called directly without a
// broker.
func (r *Registry) Dispatch(ctx context.Context, env Envelope) Result {
	if env.Method == "" {
		observability.RPCDispatchTotal.WithLabelValues("", "invalid").Inc()
		return Failure(`RPC missing "method" name.`)
	}
	if env.Params == nil {
		observability.RPCDispatchTotal.WithLabelValues(env.Method, "invalid").Inc()
		return Failure(`RPC missing "params" object.`)
	}

	h, ok := r.lookup(env.Method)
	if !ok {
		// unknown names are not used as a label
		observability.RPCDispatchTotal.WithLabelValues("unregistered", "unknown_method").Inc()
		return Failure(`No handler registered for method "` + env.Method + `"`)
	}

	start := time.Now()
	data, err := invoke(ctx, h, env.Params)
	observability.RPCDispatchDuration.WithLabelValues(env.Method).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.RPCDispatchTotal.WithLabelValues(env.Method, "error").Inc()
		r.logger.Error("rpc_handler_failed",
			"method", env.Method,
			"duration", time.Since(start),
			"error", err,
		)
		return Failure(msgUncaught)
	}
	observability.RPCDispatchTotal.WithLabelValues(env.Method, "ok").Inc()
	return Data(data)
}

func invoke(ctx context.Context, h Handler, params map[string]any) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h.HandleRPC(ctx, params)
}

// Start consumes the broker queue one message at a time until ctx is cancelled. It
// returns nil on cancellation and ErrDeliveriesClosed if the broker goes away first.
func (r *Registry) Start(ctx context.Context) error {
	deliveries, err := r.consumer.Consume(ctx, Prefetch)
	if err != nil {
		return fmt.Errorf("start rpc consumer: %w", err)
	}
	r.logger.Info("rpc_consumer_started", "methods", r.Methods(), "prefetch", Prefetch)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("rpc_consumer_stopped")
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			// let the message in hand finish even when shutdown starts
			r.Serve(context.WithoutCancel(ctx), msg)
		}
	}
}

// Serve takes one message through parse, dispatch, reply and ack.
func (r *Registry) Serve(ctx context.Context, msg Message) {
	env, err := ParseEnvelope(msg.Body())
	if err != nil {
		// no trustworthy method or correlation to answer with: drop it
		corr := msg.Correlation()
		r.logger.Warn("rpc_envelope_malformed",
			"reply_to", corr.ReplyTo,
			"correlation_id", corr.CorrelationID,
			"error", err,
		)
		observability.RPCDroppedTotal.WithLabelValues("malformed").Inc()
		if err := msg.Ack(); err != nil {
			r.logger.Error("rpc_ack_failed", "correlation_id", corr.CorrelationID, "error", err)
		}
		return
	}

	call := NewCall(env, msg, r.replies, r.logger)
	result := r.Dispatch(ctx, env)
	if !call.Reply(ctx, result, false) {
		r.logger.Warn("rpc_reply_not_delivered",
			"method", env.Method,
			"correlation_id", call.Correlation.CorrelationID,
		)
	}
}
