package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter bounds how often a single key may perform an action.
type RateLimiter interface {
	// Allow reports whether key has budget left in the current window and
	// consumes one unit when it does.
	Allow(ctx context.Context, key string) bool
}

// RedisRateLimiter is a fixed-window limiter on top of Redis, suitable for
// multi-instance deployments. When Redis is unreachable the limiter lets the
// request through rather than dropping user traffic.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a limiter allowing limit actions per window.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

// Allow consumes one unit of key's budget for the current window.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().UnixNano()/int64(l.window))

	count, err := l.client.Incr(ctx, bucket).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		l.client.Expire(ctx, bucket, l.window)
	}
	return count <= int64(l.limit)
}

// LocalRateLimiter is an in-process fixed-window limiter for single-instance
// deployments and tests.
type LocalRateLimiter struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	bucket int64
	counts map[string]int
}

// NewLocalRateLimiter creates an in-process limiter allowing limit actions
// per window.
func NewLocalRateLimiter(limit int, window time.Duration) *LocalRateLimiter {
	return &LocalRateLimiter{
		limit:  limit,
		window: window,
		counts: make(map[string]int),
	}
}

// Allow consumes one unit of key's budget for the current window.
func (l *LocalRateLimiter) Allow(ctx context.Context, key string) bool {
	bucket := time.Now().UnixNano() / int64(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket != l.bucket {
		l.bucket = bucket
		l.counts = make(map[string]int)
	}
	l.counts[key]++
	return l.counts[key] <= l.limit
}
