// Package redisq binds the rpc registry to a Redis list used as a reliable queue.
//
// Requests are moved atomically from the queue list to "<queue>:processing" and
// removed from there on ack, so a consumer that dies mid-call leaves the request
// behind for Recover.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"clubmedia/internal/rpc"
)

const (
	// pollTimeout bounds one blocking fetch so cancellation is noticed.
	pollTimeout = 2 * time.Second
	// replyTTL keeps unread reply lists from piling up.
	replyTTL = 5 * time.Minute
)

// Record is the wire form of a queued request.
type Record struct {
	ReplyTo       string          `json:"reply_to"`
	CorrelationID string          `json:"correlation_id"`
	Body          json.RawMessage `json:"body"`
}

// Queue is an rpc.Broker over a Redis list.
type Queue struct {
	client     redis.Cmdable
	queue      string
	processing string
	logger     *slog.Logger
}

var _ rpc.Broker = (*Queue)(nil)

func New(client redis.Cmdable, queue string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		client:     client,
		queue:      queue,
		processing: queue + ":processing",
		logger:     logger,
	}
}

// Connect opens a client for url and checks it answers.
func Connect(ctx context.Context, url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// Consume hands out one request at a time. prefetch above one is capped: the next
// request is fetched only after the previous one is acked.
func (q *Queue) Consume(ctx context.Context, prefetch int) (<-chan rpc.Message, error) {
	if prefetch != 1 {
		q.logger.Warn("redisq_prefetch_capped", "requested", prefetch)
	}
	out := make(chan rpc.Message)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			raw, err := q.client.BLMove(ctx, q.queue, q.processing, "RIGHT", "LEFT", pollTimeout).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				q.logger.Error("redisq_fetch_failed", "queue", q.queue, "error", err)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
				continue
			}

			m := q.newMessage(raw)
			select {
			case out <- m:
			case <-ctx.Done():
				// left in the processing list for Recover
				return
			}
			select {
			case <-m.acked:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Recover moves requests stranded in the processing list back onto the queue. Run it
// before Consume when a single consumer owns the queue.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := q.client.LMove(ctx, q.processing, q.queue, "LEFT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			if n > 0 {
				q.logger.Info("redisq_recovered", "queue", q.queue, "count", n)
			}
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover %s: %w", q.processing, err)
		}
		n++
	}
}

// Enqueue pushes one request, as a caller would.
func (q *Queue) Enqueue(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := q.client.LPush(ctx, q.queue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue on %s: %w", q.queue, err)
	}
	return nil
}

func (q *Queue) PublishReply(ctx context.Context, corr rpc.Correlation, body []byte) error {
	raw, err := json.Marshal(Record{CorrelationID: corr.CorrelationID, Body: body})
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, corr.ReplyTo, raw)
		p.Expire(ctx, corr.ReplyTo, replyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish reply to %s: %w", corr.ReplyTo, err)
	}
	return nil
}

// Close is a no-op; the redis client belongs to the caller.
func (q *Queue) Close() error { return nil }

type message struct {
	q     *Queue
	raw   string
	rec   Record
	acked chan struct{}
	once  sync.Once
}

func (q *Queue) newMessage(raw string) *message {
	m := &message{q: q, raw: raw, acked: make(chan struct{})}
	if err := json.Unmarshal([]byte(raw), &m.rec); err != nil || len(m.rec.Body) == 0 {
		// not a Record: hand the whole payload on, the registry decides what it is
		m.rec = Record{Body: json.RawMessage(raw)}
	}
	return m
}

func (m *message) Body() []byte { return m.rec.Body }

func (m *message) Correlation() rpc.Correlation {
	return rpc.Correlation{ReplyTo: m.rec.ReplyTo, CorrelationID: m.rec.CorrelationID}
}

func (m *message) Ack() error {
	var err error
	m.once.Do(func() {
		defer close(m.acked)
		// background: the ack must land even while shutting down
		if rerr := m.q.client.LRem(context.Background(), m.q.processing, 1, m.raw).Err(); rerr != nil {
			err = fmt.Errorf("ack on %s: %w", m.q.processing, rerr)
		}
	})
	return err
}
