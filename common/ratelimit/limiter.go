// Package ratelimit enforces fixed-window request quotas with counters in Redis
package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript increments the window counter and reports
// {allowed, current_count, limit, retry_after}.
const rateLimitScript = `
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[2])
end
local limit = tonumber(ARGV[1])
if current > limit then
	local ttl = redis.call('TTL', KEYS[1])
	if ttl < 0 then ttl = tonumber(ARGV[2]) end
	return {0, current, limit, ttl}
end
return {1, current, limit, 0}
`

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Class separates read quotas from write quotas
type Class string

const (
	ClassRead  Class = "read"
	ClassWrite Class = "write"
)

// Result contains the result of a rate limit check
type Result struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the limit resets (0 if allowed)
}

// Limiter provides per-client rate limiting using Redis + Lua
type Limiter struct {
	redis  *redis.Client
	script *redis.Script
	prefix string
	logger Logger
}

// NewLimiter creates a limiter whose keys start with prefix
func NewLimiter(redisClient *redis.Client, prefix string, logger Logger) *Limiter {
	return &Limiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		prefix: prefix,
		logger: logger,
	}
}

// Key returns the counter key of a client's quota class
func (r *Limiter) Key(clientID string, class Class) string {
	return fmt.Sprintf("%srate_limit:client:%s:%s", r.prefix, clientID, class)
}

// CheckClientLimit counts one request against the client's quota
func (r *Limiter) CheckClientLimit(ctx context.Context, clientID string, class Class, limit int64, windowSec int) (*Result, error) {
	return r.checkLimit(ctx, r.Key(clientID, class), limit, windowSec)
}

// checkLimit executes the rate limit Lua script
func (r *Limiter) checkLimit(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	result, err := r.script.Run(ctx, r.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}
	ints := make([]int64, 4)
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result element %d: %T", i, v)
		}
		ints[i] = n
	}

	res := &Result{
		Allowed:           ints[0] == 1,
		CurrentCount:      ints[1],
		Limit:             ints[2],
		RetryAfterSeconds: ints[3],
	}

	if !res.Allowed {
		r.logger.Warn("rate limit exceeded",
			"key", key,
			"current", res.CurrentCount,
			"limit", limit,
			"retry_after", res.RetryAfterSeconds)
	} else {
		r.logger.Debug("rate limit check passed",
			"key", key,
			"current", res.CurrentCount,
			"limit", limit)
	}

	return res, nil
}

// CurrentCount returns the count in the client's window without incrementing
func (r *Limiter) CurrentCount(ctx context.Context, clientID string, class Class) (int64, error) {
	count, err := r.redis.Get(ctx, r.Key(clientID, class)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

// Reset clears a client's counter
func (r *Limiter) Reset(ctx context.Context, clientID string, class Class) error {
	return r.redis.Del(ctx, r.Key(clientID, class)).Err()
}
