package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opendataplatform/registry/common/logger"
)

// pollTimeout bounds each blocking pop so subscribers notice cancellation
const pollTimeout = 2 * time.Second

// RedisQueue keeps each topic in a Redis list, so any registry instance may
// consume work published by another. The client is owned by the caller.
type RedisQueue struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

// NewRedisQueue creates a queue whose lists are named <prefix>queue:<topic>
func NewRedisQueue(client *redis.Client, prefix string, log *logger.Logger) *RedisQueue {
	return &RedisQueue{client: client, prefix: prefix, log: log}
}

// ListKey returns the Redis list backing topic
func (q *RedisQueue) ListKey(topic string) string {
	return q.prefix + "queue:" + topic
}

// Publish appends a message to the topic list
func (q *RedisQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	payload, err := json.Marshal(Message{Topic: topic, Key: key, Value: message})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := q.client.RPush(ctx, q.ListKey(topic), payload).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", topic, err)
	}
	return nil
}

// Subscribe pops messages from the topic list in a background goroutine
// until ctx is done
func (q *RedisQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	listKey := q.ListKey(topic)
	q.log.Info("subscribing to topic", "topic", topic, "list", listKey)

	go func() {
		for {
			if ctx.Err() != nil {
				q.log.Info("subscription cancelled", "topic", topic)
				return
			}

			// BLPop returns [key, value]
			res, err := q.client.BLPop(ctx, pollTimeout, listKey).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				q.log.Error("queue pop failed", "topic", topic, "error", err)
				sleep(ctx, pollTimeout)
				continue
			}

			var msg Message
			if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
				q.log.Error("dropping malformed message", "topic", topic, "error", err)
				continue
			}
			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				q.log.Error("message handler error", "topic", topic, "key", msg.Key, "error", err)
			}
		}
	}()

	return nil
}

// Close is a no-op; the Redis client belongs to the caller
func (q *RedisQueue) Close() error {
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
