// Package amqp binds the rpc registry to a RabbitMQ queue.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"clubmedia/internal/rpc"
)

// Channel is the subset of *amqp091.Channel the broker uses.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Broker consumes the request queue and publishes replies on the default exchange.
type Broker struct {
	conn    *amqp091.Connection
	consume Channel
	publish Channel
	queue   string
	logger  *slog.Logger
}

var _ rpc.Broker = (*Broker)(nil)

// Dial connects to url and opens one channel for consuming and one for replies.
func Dial(url, queue string, logger *slog.Logger) (*Broker, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	consume, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	publish, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open reply channel: %w", err)
	}
	b := NewBroker(consume, publish, queue, logger)
	b.conn = conn
	return b, nil
}

// NewBroker builds a broker over already opened channels.
func NewBroker(consume, publish Channel, queue string, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{consume: consume, publish: publish, queue: queue, logger: logger}
}

func (b *Broker) Consume(ctx context.Context, prefetch int) (<-chan rpc.Message, error) {
	if err := b.consume.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	if _, err := b.consume.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", b.queue, err)
	}
	deliveries, err := b.consume.ConsumeWithContext(ctx, b.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue %s: %w", b.queue, err)
	}

	out := make(chan rpc.Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- delivery{d}:
				case <-ctx.Done():
					// unacked, the broker requeues it when the channel closes
					return
				}
			}
		}
	}()
	b.logger.Info("amqp_consumer_started", "queue", b.queue, "prefetch", prefetch)
	return out, nil
}

func (b *Broker) PublishReply(ctx context.Context, corr rpc.Correlation, body []byte) error {
	err := b.publish.PublishWithContext(ctx, "", corr.ReplyTo, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: corr.CorrelationID,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish reply to %s: %w", corr.ReplyTo, err)
	}
	return nil
}

func (b *Broker) Close() error {
	errs := []error{b.consume.Close(), b.publish.Close()}
	if b.conn != nil {
		errs = append(errs, b.conn.Close())
	}
	return errors.Join(errs...)
}

type delivery struct {
	d amqp091.Delivery
}

func (m delivery) Body() []byte { return m.d.Body }

func (m delivery) Correlation() rpc.Correlation {
	return rpc.Correlation{ReplyTo: m.d.ReplyTo, CorrelationID: m.d.CorrelationId}
}

func (m delivery) Ack() error { return m.d.Ack(false) }
