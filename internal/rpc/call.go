package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is one delivery taken from the broker.
type Message interface {
	Body() []byte
	Correlation() Correlation
	// Ack removes the message from the broker. The registry calls it exactly once.
	Ack() error
}

// ReplyChannel publishes reply bodies to the caller's queue.
type ReplyChannel interface {
	PublishReply(ctx context.Context, corr Correlation, body []byte) error
	Close() error
}

// Consumer streams deliveries with at most prefetch unacknowledged messages.
type Consumer interface {
	Consume(ctx context.Context, prefetch int) (<-chan Message, error)
}

// Broker is a transport binding: a consumer plus the channel replies go out on.
type Broker interface {
	Consumer
	ReplyChannel
}

// Call is one accepted request and the means to answer it.
type Call struct {
	Envelope    Envelope
	Correlation Correlation

	msg     Message
	replies ReplyChannel
	logger  *slog.Logger
	once    sync.Once
}

func NewCall(env Envelope, msg Message, replies ReplyChannel, logger *slog.Logger) *Call {
	if logger == nil {
		logger = slog.Default()
	}
	return &Call{
		Envelope:    env,
		Correlation: msg.Correlation(),
		msg:         msg,
		replies:     replies,
		logger:      logger,
	}
}

// Reply publishes result to the caller and acknowledges the request. Only the first
// Reply on a call does anything; later ones return false. close also releases the
// reply channel, for callers that own a channel per call. The registry shares its
// channel across calls and passes false.
//
// It reports whether the reply was published and the message acknowledged.
func (c *Call) Reply(ctx context.Context, result Result, close bool) bool {
	ok := false
	c.once.Do(func() {
		ok = c.publish(ctx, result)
		if err := c.msg.Ack(); err != nil {
			c.logger.Error("rpc_ack_failed",
				"method", c.Envelope.Method,
				"correlation_id", c.Correlation.CorrelationID,
				"error", err,
			)
			ok = false
		}
		if close {
			if err := c.replies.Close(); err != nil {
				c.logger.Warn("rpc_reply_channel_close_failed", "error", err)
			}
		}
	})
	return ok
}

func (c *Call) publish(ctx context.Context, result Result) bool {
	if c.Correlation.ReplyTo == "" {
		c.logger.Warn("rpc_reply_dropped",
			"method", c.Envelope.Method,
			"correlation_id", c.Correlation.CorrelationID,
			"reason", "no reply_to",
		)
		return false
	}

	body, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("rpc_reply_encode_failed", "method", c.Envelope.Method, "error", err)
		// the caller still gets an answer
		body, _ = json.Marshal(Failure(msgUncaught))
	}

	if err := c.replies.PublishReply(ctx, c.Correlation, body); err != nil {
		c.logger.Error("rpc_reply_publish_failed",
			"method", c.Envelope.Method,
			"reply_to", c.Correlation.ReplyTo,
			"correlation_id", c.Correlation.CorrelationID,
			"error", err,
		)
		return false
	}
	return true
}
