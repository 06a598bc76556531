package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendataplatform/registry/common/logger"
)

type received struct {
	key   string
	value string
}

func collect(t *testing.T, q Queue, topic string) <-chan received {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	out := make(chan received, 10)
	require.NoError(t, q.Subscribe(ctx, topic, func(ctx context.Context, key string, value []byte) error {
		out <- received{key, string(value)}
		return nil
	}))
	return out
}

func next(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return received{}
	}
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(logger.Discard())
	ctx := context.Background()

	// Messages published before the subscriber starts are kept
	require.NoError(t, q.Publish(ctx, "catalog.publish", "SAEON", nil))
	got := collect(t, q, "catalog.publish")
	require.NoError(t, q.Publish(ctx, "catalog.publish", "MIMS", []byte("x")))

	assert.Equal(t, received{"SAEON", ""}, next(t, got))
	assert.Equal(t, received{"MIMS", "x"}, next(t, got))
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(logger.Discard())
	ctx := context.Background()

	for i := 0; i < topicBuffer; i++ {
		require.NoError(t, q.Publish(ctx, "t", "k", nil))
	}
	assert.ErrorIs(t, q.Publish(ctx, "t", "k", nil), ErrQueueFull)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(logger.Discard())
	ctx := context.Background()

	_ = collect(t, q, "t")
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Publish(ctx, "t", "k", nil), ErrClosed)
	assert.ErrorIs(t, q.Subscribe(ctx, "t", nil), ErrClosed)
}

func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	q := NewRedisQueue(client, "registry-test:", logger.Discard())
	require.NoError(t, client.Del(ctx, q.ListKey("catalog.publish")).Err())

	got := collect(t, q, "catalog.publish")
	require.NoError(t, q.Publish(ctx, "catalog.publish", "DataCite", []byte("{}")))

	assert.Equal(t, received{"DataCite", "{}"}, next(t, got))
}

func TestRedisQueueListKey(t *testing.T) {
	q := NewRedisQueue(nil, "registry:", logger.Discard())
	assert.Equal(t, "registry:queue:catalog.publish", q.ListKey("catalog.publish"))
}
