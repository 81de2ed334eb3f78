package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"clubmedia/internal/rpc"
)

// ErrClientClosed is returned by Call after the reply stream has stopped.
var ErrClientClosed = errors.New("amqp: rpc client closed")

// Client sends calls to a request queue and waits for their replies on a private,
// exclusive reply queue. Malformed requests are dropped without an answer, so a Call
// only ends on its reply or its context.
type Client struct {
	conn    *amqp091.Connection
	ch      Channel
	queue   string
	replyTo string

	mu      sync.Mutex
	pending map[string]chan []byte
	closed  bool
}

// DialClient connects to url and prepares a reply queue for calls to queue.
func DialClient(url, queue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	c, err := NewClient(context.Background(), ch, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

// NewClient declares the reply queue on ch and starts routing replies. ctx bounds the
// reply consumer.
func NewClient(ctx context.Context, ch Channel, queue string) (*Client, error) {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}
	replies, err := ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}
	c := &Client{
		ch:      ch,
		queue:   queue,
		replyTo: q.Name,
		pending: make(map[string]chan []byte),
	}
	go c.route(replies)
	return c, nil
}

func (c *Client) route(replies <-chan amqp091.Delivery) {
	for d := range replies {
		c.mu.Lock()
		wait, ok := c.pending[d.CorrelationId]
		delete(c.pending, d.CorrelationId)
		c.mu.Unlock()
		if ok {
			wait <- d.Body
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, wait := range c.pending {
		close(wait)
		delete(c.pending, id)
	}
}

// Call publishes {method, params} and returns the decoded reply.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (rpc.Result, error) {
	body, err := json.Marshal(rpc.Envelope{Method: method, Params: params})
	if err != nil {
		return rpc.Result{}, fmt.Errorf("encode request: %w", err)
	}

	id := uuid.NewString()
	wait := make(chan []byte, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return rpc.Result{}, ErrClientClosed
	}
	c.pending[id] = wait
	c.mu.Unlock()

	err = c.ch.PublishWithContext(ctx, "", c.queue, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: id,
		ReplyTo:       c.replyTo,
		Body:          body,
	})
	if err != nil {
		c.forget(id)
		return rpc.Result{}, fmt.Errorf("publish request: %w", err)
	}

	select {
	case reply, ok := <-wait:
		if !ok {
			return rpc.Result{}, ErrClientClosed
		}
		var res rpc.Result
		if err := json.Unmarshal(reply, &res); err != nil {
			return rpc.Result{}, fmt.Errorf("decode reply: %w", err)
		}
		return res, nil
	case <-ctx.Done():
		c.forget(id)
		return rpc.Result{}, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) Close() error {
	err := c.ch.Close()
	if c.conn != nil {
		err = errors.Join(err, c.conn.Close())
	}
	return err
}
