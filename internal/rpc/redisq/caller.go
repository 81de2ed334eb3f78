package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clubmedia/internal/rpc"
)

// Call enqueues {method, params} and waits on a private reply list until the matching
// reply arrives or ctx ends.
func (q *Queue) Call(ctx context.Context, method string, params map[string]any) (rpc.Result, error) {
	body, err := json.Marshal(rpc.Envelope{Method: method, Params: params})
	if err != nil {
		return rpc.Result{}, fmt.Errorf("encode request: %w", err)
	}

	id := uuid.NewString()
	replyTo := q.queue + ":reply:" + id
	if err := q.Enqueue(ctx, Record{ReplyTo: replyTo, CorrelationID: id, Body: body}); err != nil {
		return rpc.Result{}, err
	}
	defer q.client.Del(context.WithoutCancel(ctx), replyTo)

	for {
		vals, err := q.client.BRPop(ctx, pollTimeout, replyTo).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return rpc.Result{}, ctx.Err()
			}
			return rpc.Result{}, fmt.Errorf("wait for reply: %w", err)
		}

		// vals is [key, value]
		var rec Record
		if err := json.Unmarshal([]byte(vals[1]), &rec); err != nil {
			return rpc.Result{}, fmt.Errorf("decode reply: %w", err)
		}
		if rec.CorrelationID != id {
			continue
		}
		var res rpc.Result
		if err := json.Unmarshal(rec.Body, &res); err != nil {
			return rpc.Result{}, fmt.Errorf("decode reply: %w", err)
		}
		return res, nil
	}
}
