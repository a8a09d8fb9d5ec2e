package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestTryAcquireGrantsWhenFree(t *testing.T) {
	_, client := setupRedis(t)
	m := NewManager(client, "vigilnet:pipeline:tick")
	ctx := context.Background()

	ok, err := m.TryAcquire(ctx, "host-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTryAcquireDeniesWhileHeld(t *testing.T) {
	_, client := setupRedis(t)
	m := NewManager(client, "vigilnet:pipeline:tick")
	ctx := context.Background()

	ok, err := m.TryAcquire(ctx, "host-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.TryAcquire(ctx, "host-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTryAcquireGrantsAfterExpiry(t *testing.T) {
	mr, client := setupRedis(t)
	m := NewManager(client, "vigilnet:pipeline:tick")
	ctx := context.Background()

	ok, err := m.TryAcquire(ctx, "host-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = m.TryAcquire(ctx, "host-b", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReleaseOnlyClearsOwnLease(t *testing.T) {
	_, client := setupRedis(t)
	m := NewManager(client, "vigilnet:pipeline:tick")
	ctx := context.Background()

	ok, err := m.TryAcquire(ctx, "host-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Release(ctx, "host-b"))

	ok, err = m.TryAcquire(ctx, "host-c", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "release with the wrong holder id must not clear the lease")

	require.NoError(t, m.Release(ctx, "host-a"))

	ok, err = m.TryAcquire(ctx, "host-c", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "release with the correct holder id clears the lease")
}
