package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
)

type fakeMessage struct {
	body   []byte
	corr   Correlation
	acks   atomic.Int32
	ackErr error
}

func newFakeMessage(body string, replyTo, id string) *fakeMessage {
	return &fakeMessage{body: []byte(body), corr: Correlation{ReplyTo: replyTo, CorrelationID: id}}
}

func (m *fakeMessage) Body() []byte             { return m.body }
func (m *fakeMessage) Correlation() Correlation { return m.corr }
func (m *fakeMessage) Ack() error {
	m.acks.Add(1)
	return m.ackErr
}

type publishedReply struct {
	Correlation Correlation
	Body        []byte
}

// fakeBroker hands out whatever is pushed on deliveries and records replies.
type fakeBroker struct {
	deliveries chan Message
	consumeErr error
	publishErr error

	mu       sync.Mutex
	prefetch int
	replies  []publishedReply
	closed   int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{deliveries: make(chan Message)}
}

func (b *fakeBroker) Consume(ctx context.Context, prefetch int) (<-chan Message, error) {
	b.mu.Lock()
	b.prefetch = prefetch
	b.mu.Unlock()
	if b.consumeErr != nil {
		return nil, b.consumeErr
	}
	return b.deliveries, nil
}

func (b *fakeBroker) PublishReply(ctx context.Context, corr Correlation, body []byte) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, publishedReply{Correlation: corr, Body: body})
	return nil
}

func (b *fakeBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *fakeBroker) published() []publishedReply {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedReply(nil), b.replies...)
}

func decodeReply(body []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		panic(err)
	}
	return m
}

var errBoom = errors.New("boom")
