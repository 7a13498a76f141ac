package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mcplab:"

// Limiter is a fixed window request counter kept in Redis.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// NewLimiter allows limit requests per window for each key.
func NewLimiter(client *redis.Client, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Limit returns the configured requests per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow counts a request for key in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	windowKey := fmt.Sprintf("%sratelimit:%s:%d", keyPrefix, key, bucket)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		// Key lives for two windows.
		pipe.Expire(ctx, windowKey, l.window*2)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	count := incr.Val()
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.limit),
		Remaining: remaining,
		ResetAt:   time.Unix(0, (bucket+1)*int64(l.window)),
	}, nil
}

// IncrementUsage increments the lifetime usage counter of key.
func (l *Limiter) IncrementUsage(ctx context.Context, key string) (int64, error) {
	return l.client.Incr(ctx, usageKey(key)).Result()
}

// GetUsage returns the lifetime usage counter of key.
func (l *Limiter) GetUsage(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Get(ctx, usageKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

func usageKey(key string) string {
	return keyPrefix + "usage:" + key
}
