package ingest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilnet/vigilnet/internal/logging"
)

func setupRateLimiter(t *testing.T) (*miniredis.Miniredis, *RateLimiter) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRateLimiter(client, logging.New(slog.LevelError, "text"))
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	_, rl := setupRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := rl.Allow(ctx, "tenant-a", 3, 60)
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	_, rl := setupRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := rl.Allow(ctx, "tenant-a", 3, 60)
		require.NoError(t, err)
	}

	res, err := rl.Allow(ctx, "tenant-a", 3, 60)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestRateLimiterTracksTenantsIndependently(t *testing.T) {
	_, rl := setupRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := rl.Allow(ctx, "tenant-a", 2, 60)
		require.NoError(t, err)
	}
	res, err := rl.Allow(ctx, "tenant-a", 2, 60)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = rl.Allow(ctx, "tenant-b", 2, 60)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a different tenant has its own window")
}

func TestRateLimiterWindowSlidesForward(t *testing.T) {
	mr, rl := setupRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := rl.Allow(ctx, "tenant-a", 2, 1)
		require.NoError(t, err)
	}
	res, err := rl.Allow(ctx, "tenant-a", 2, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	mr.FastForward(2 * time.Second) // past the 1-second window

	res, err = rl.Allow(ctx, "tenant-a", 2, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimiterDistinctMembersDoNotCollide(t *testing.T) {
	_, rl := setupRateLimiter(t)
	ctx := context.Background()

	// Two calls in immediate succession must both count, even though a
	// naive bare-nanosecond member could in principle collide.
	res1, err := rl.Allow(ctx, "tenant-a", 2, 60)
	require.NoError(t, err)
	res2, err := rl.Allow(ctx, "tenant-a", 2, 60)
	require.NoError(t, err)

	assert.True(t, res1.Allowed)
	assert.True(t, res2.Allowed)
	assert.Equal(t, 0, res2.Remaining)
}
