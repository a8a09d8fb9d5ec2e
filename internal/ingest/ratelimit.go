package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vigilnet/vigilnet/internal/logging"
)

// RateLimiter enforces a tenant's per-tier request budget using a Redis
// sorted-set sliding window. A Redis outage fails open rather than blocking
// ingestion, since telemetry loss is worse than a temporary limit lapse.
type RateLimiter struct {
	client *redis.Client
	log    *logging.Logger
}

func NewRateLimiter(client *redis.Client, log *logging.Logger) *RateLimiter {
	return &RateLimiter{client: client, log: log}
}

const rateLimitScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_seconds = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
local current = redis.call('ZCARD', key)

local allowed = 0
if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('EXPIRE', key, window_seconds + 1)
	current = current + 1
	allowed = 1
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldest_score = 0
if oldest[2] then
	oldest_score = tonumber(oldest[2])
end

return {allowed, current, oldest_score}
`

// Result carries the window state a rate-limit decision needs to render
// the X-RateLimit-* / Retry-After response headers.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Allow reports whether tenantID may make one more request within its
// configured window, given limit requests per windowSeconds, along with
// the window state needed for rate-limit headers.
func (l *RateLimiter) Allow(ctx context.Context, tenantID string, limit, windowSeconds int) (Result, error) {
	now := time.Now().UnixNano()
	windowStart := now - (time.Duration(windowSeconds) * time.Second).Nanoseconds()
	// A bare nanosecond timestamp can collide under concurrent requests to
	// the same tenant; a random suffix keeps every ZADD member unique.
	member := fmt.Sprintf("%d.%d", now, rand.Int63())

	key := "vigilnet:ratelimit:" + tenantID
	raw, err := l.client.Eval(ctx, rateLimitScript, []string{key}, now, windowStart, limit, windowSeconds, member).Result()
	if err != nil {
		l.log.Error("rate limit check failed, failing open", "err", err, "tenant_id", tenantID)
		return Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   time.Now().Add(time.Duration(windowSeconds) * time.Second),
		}, nil
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 3 {
		l.log.Error("rate limit script returned unexpected shape, failing open", "tenant_id", tenantID)
		return Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   time.Now().Add(time.Duration(windowSeconds) * time.Second),
		}, nil
	}

	allowed := toInt64(vals[0]) == 1
	current := toInt64(vals[1])
	oldestScoreNanos := toInt64(vals[2])

	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}

	resetAt := time.Now().Add(time.Duration(windowSeconds) * time.Second)
	if oldestScoreNanos > 0 {
		resetAt = time.Unix(0, oldestScoreNanos).Add(time.Duration(windowSeconds) * time.Second)
	}

	if !allowed {
		rateLimitHitsTotal.WithLabelValues(tenantID).Inc()
	}

	retryAfter := time.Until(resetAt)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Result{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
