package ratelimit

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendataplatform/registry/common/logger"
)

// newTestLimiter connects to REDIS_TEST_ADDR or skips
func newTestLimiter(t *testing.T) *Limiter {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	return NewLimiter(client, "test:"+t.Name()+":", logger.Discard())
}

func TestLimiterKey(t *testing.T) {
	l := NewLimiter(nil, "registry:", logger.Discard())
	assert.Equal(t, "registry:rate_limit:client:odp.web:write", l.Key("odp.web", ClassWrite))
}

func TestCheckClientLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = l.Reset(ctx, "c1", ClassWrite) })

	for i := 1; i <= 2; i++ {
		res, err := l.CheckClientLimit(ctx, "c1", ClassWrite, 2, 60)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.EqualValues(t, i, res.CurrentCount)
	}

	res, err := l.CheckClientLimit(ctx, "c1", ClassWrite, 2, 60)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.EqualValues(t, 2, res.Limit)
	assert.Positive(t, res.RetryAfterSeconds)

	// Reads have their own counter.
	res, err = l.CheckClientLimit(ctx, "c1", ClassRead, 2, 60)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	_ = l.Reset(ctx, "c1", ClassRead)

	count, err := l.CurrentCount(ctx, "c1", ClassWrite)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
