package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(ctx context.Context, params map[string]any) (any, error) {
	return params, nil
}

func TestDispatchValidation(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	reg.RegisterFunc("echo", echo)

	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{"missing method", Envelope{Params: map[string]any{}}, `RPC missing "method" name.`},
		{"missing params", Envelope{Method: "echo"}, `RPC missing "params" object.`},
		{"unknown method", Envelope{Method: "nope", Params: map[string]any{}}, `No handler registered for method "nope"`},
		{"unknown method is not escaped", Envelope{Method: `a"b`, Params: map[string]any{}}, `No handler registered for method "a"b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reg.Dispatch(context.Background(), tt.env)
			require.True(t, res.IsError())
			assert.Equal(t, tt.want, res.ErrorValue())
		})
	}
}

func TestDispatchSuccess(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	reg.RegisterFunc("echo", echo)

	res := reg.Dispatch(context.Background(), Envelope{Method: "echo", Params: map[string]any{"x": 1.0}})
	require.False(t, res.IsError())
	assert.Equal(t, map[string]any{"x": 1.0}, res.Value())
}

func TestDispatchContainsHandlerFailures(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	reg.RegisterFunc("fails", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errBoom
	})
	reg.RegisterFunc("panics", func(ctx context.Context, params map[string]any) (any, error) {
		panic("nil map")
	})

	for _, method := range []string{"fails", "panics"} {
		res := reg.Dispatch(context.Background(), Envelope{Method: method, Params: map[string]any{}})
		require.True(t, res.IsError(), method)
		assert.Equal(t, "Uncaught exception", res.ErrorValue(), method)
	}
}

func TestRegisterOverwrites(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	reg.RegisterFunc("v", func(ctx context.Context, params map[string]any) (any, error) { return 1, nil })
	reg.RegisterFunc("v", func(ctx context.Context, params map[string]any) (any, error) { return 2, nil })

	assert.Equal(t, []string{"v"}, reg.Methods())
	assert.Equal(t, 2, reg.Dispatch(context.Background(), Envelope{Method: "v", Params: map[string]any{}}).Value())
}

func TestServeRepliesAndAcksOnce(t *testing.T) {
	broker := newFakeBroker()
	reg := NewRegistry(broker, broker, nil)
	reg.RegisterFunc("echo", echo)

	msg := newFakeMessage(`{"method":"echo","params":{"a":"b"}}`, "reply.q", "corr-1")
	reg.Serve(context.Background(), msg)

	replies := broker.published()
	require.Len(t, replies, 1)
	assert.Equal(t, Correlation{ReplyTo: "reply.q", CorrelationID: "corr-1"}, replies[0].Correlation)
	assert.JSONEq(t, `{"data":{"a":"b"}}`, string(replies[0].Body))
	assert.Equal(t, int32(1), msg.acks.Load())
	assert.Zero(t, broker.closed, "the shared reply channel stays open")
}

func TestServeContainsHandlerFailures(t *testing.T) {
	broker := newFakeBroker()
	reg := NewRegistry(broker, broker, nil)
	reg.RegisterFunc("fails", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errBoom
	})
	reg.RegisterFunc("panics", func(ctx context.Context, params map[string]any) (any, error) {
		panic("nil map")
	})

	for _, method := range []string{"fails", "panics"} {
		t.Run(method, func(t *testing.T) {
			before := len(broker.published())
			msg := newFakeMessage(`{"method":"`+method+`","params":{}}`, "reply.q", method)
			reg.Serve(context.Background(), msg)

			replies := broker.published()[before:]
			require.Len(t, replies, 1)
			assert.Equal(t, method, replies[0].Correlation.CorrelationID)
			assert.JSONEq(t, `{"error":"Uncaught exception"}`, string(replies[0].Body))
			assert.Equal(t, int32(1), msg.acks.Load())
		})
	}
}

func TestStartKeepsConsumingAfterHandlerPanic(t *testing.T) {
	broker := newFakeBroker()
	reg := NewRegistry(broker, broker, nil)
	reg.RegisterFunc("panics", func(ctx context.Context, params map[string]any) (any, error) {
		panic("nil map")
	})
	reg.RegisterFunc("echo", echo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Start(ctx) }()

	bad := newFakeMessage(`{"method":"panics","params":{}}`, "r", "1")
	good := newFakeMessage(`{"method":"echo","params":{"ok":true}}`, "r", "2")
	broker.deliveries <- bad
	broker.deliveries <- good

	require.Eventually(t, func() bool { return len(broker.published()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	replies := broker.published()
	assert.JSONEq(t, `{"error":"Uncaught exception"}`, string(replies[0].Body))
	assert.JSONEq(t, `{"data":{"ok":true}}`, string(replies[1].Body))
	assert.Equal(t, int32(1), bad.acks.Load())
	assert.Equal(t, int32(1), good.acks.Load())
}

func TestServeRepliesToWronglyTypedFields(t *testing.T) {
	broker := newFakeBroker()
	reg := NewRegistry(broker, broker, nil)
	reg.RegisterFunc("echo", echo)

	tests := []struct {
		body string
		want string
	}{
		{`{"method":123,"params":{}}`, `RPC missing "method" name.`},
		{`{"method":"echo","params":[1,2]}`, `RPC missing "params" object.`},
		{`{"method":"echo","params":"x"}`, `RPC missing "params" object.`},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			before := len(broker.published())
			msg := newFakeMessage(tt.body, "reply.q", "corr-3")
			reg.Serve(context.Background(), msg)

			replies := broker.published()[before:]
			require.Len(t, replies, 1)
			assert.Equal(t, map[string]any{"error": tt.want}, decodeReply(replies[0].Body))
			assert.Equal(t, int32(1), msg.acks.Load())
		})
	}
}

func TestServeDropsMalformedMessages(t *testing.T) {
	broker := newFakeBroker()
	reg := NewRegistry(broker, broker, nil)

	for _, body := range []string{`{not json`, `[1,2]`, `"x"`} {
		msg := newFakeMessage(body, "reply.q", "corr-1")
		reg.Serve(context.Background(), msg)
		assert.Equal(t, int32(1), msg.acks.Load(), "malformed messages are acked so they are not redelivered")
	}
	assert.Empty(t, broker.published())
}

func TestServeReportsValidationErrorsToCaller(t *testing.T) {
	broker := newFakeBroker()
	reg := NewRegistry(broker, broker, nil)

	msg := newFakeMessage(`{"params":{}}`, "reply.q", "corr-2")
	reg.Serve(context.Background(), msg)

	replies := broker.published()
	require.Len(t, replies, 1)
	assert.Equal(t, map[string]any{"error": `RPC missing "method" name.`}, decodeReply(replies[0].Body))
	assert.Equal(t, int32(1), msg.acks.Load())
}

func TestStartProcessesMessagesInOrder(t *testing.T) {
	broker := newFakeBroker()
	reg := NewRegistry(broker, broker, nil)

	var order []string
	reg.RegisterFunc("record", func(ctx context.Context, params map[string]any) (any, error) {
		order = append(order, params["n"].(string))
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Start(ctx) }()

	msgs := []*fakeMessage{
		newFakeMessage(`{"method":"record","params":{"n":"1"}}`, "r", "1"),
		newFakeMessage(`{"method":"record","params":{"n":"2"}}`, "r", "2"),
		newFakeMessage(`{"method":"record","params":{"n":"3"}}`, "r", "3"),
	}
	for _, m := range msgs {
		broker.deliveries <- m
	}

	require.Eventually(t, func() bool { return len(broker.published()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"1", "2", "3"}, order)
	assert.Equal(t, Prefetch, broker.prefetch)
	for _, m := range msgs {
		assert.Equal(t, int32(1), m.acks.Load())
	}
}

func TestStartFailsWhenDeliveriesClose(t *testing.T) {
	broker := newFakeBroker()
	reg := NewRegistry(broker, broker, nil)

	close(broker.deliveries)
	assert.ErrorIs(t, reg.Start(context.Background()), ErrDeliveriesClosed)
}

func TestStartConsumeError(t *testing.T) {
	broker := newFakeBroker()
	broker.consumeErr = errBoom
	reg := NewRegistry(broker, broker, nil)

	assert.ErrorIs(t, reg.Start(context.Background()), errBoom)
}
