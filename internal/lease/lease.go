// Package lease implements the single-instance pipeline tick guarantee so
// only one backend instance runs a given tick at a time, backed by Redis
// SETNX-with-TTL.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager acquires and releases a named, TTL-bound lease.
type Manager struct {
	redis *redis.Client
	key   string
}

// NewManager builds a lease manager for the given Redis key.
func NewManager(client *redis.Client, key string) *Manager {
	return &Manager{redis: client, key: key}
}

// TryAcquire attempts to take the lease, returning true if this holder
// now owns it. holderID should be unique per process (hostname+pid, or a
// UUID) so Release only clears a lease this process actually holds.
func (m *Manager) TryAcquire(ctx context.Context, holderID string, ttl time.Duration) (bool, error) {
	ok, err := m.redis.SetNX(ctx, m.key, holderID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

// Release clears the lease if and only if holderID still owns it, via a
// Lua check-and-delete to avoid releasing a lease another process has
// since acquired after this one's TTL expired.
func (m *Manager) Release(ctx context.Context, holderID string) error {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
	if _, err := script.Run(ctx, m.redis, []string{m.key}, holderID).Result(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
