package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiter_EnforcesWindowBudget(t *testing.T) {
	limiter := NewLocalRateLimiter(3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow(ctx, "203.0.113.7"))
	}
	require.False(t, limiter.Allow(ctx, "203.0.113.7"))

	// Separate keys have separate budgets.
	require.True(t, limiter.Allow(ctx, "198.51.100.2"))
}

func TestLocalRateLimiter_WindowRollover(t *testing.T) {
	limiter := NewLocalRateLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "key"))
	require.False(t, limiter.Allow(ctx, "key"))

	time.Sleep(60 * time.Millisecond)
	require.True(t, limiter.Allow(ctx, "key"))
}

// A dead Redis must never block feedback intake.
func TestRedisRateLimiter_FailsOpenWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { client.Close() })

	limiter := NewRedisRateLimiter(client, 1, time.Minute)
	require.True(t, limiter.Allow(context.Background(), "key"))
	require.True(t, limiter.Allow(context.Background(), "key"))
}
