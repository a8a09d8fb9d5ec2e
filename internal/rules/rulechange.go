package rules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/store"
)

// ruleDigest hashes a rule's semantics (everything that changes what it
// matches or how severe it judges a match), so a tweak to thresholds or
// severity invalidates cached AI verdicts for that detection type.
func ruleDigest(r Rule) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%v|%d|%d|%s|%s", r.EventTypes, r.Threshold, r.WindowMinutes, r.Severity, r.GroupBy)))
	return hex.EncodeToString(sum[:])
}

// InvalidateChangedRules compares each rule's current digest against the
// one recorded at the previous pipeline startup, and calls
// AICacheRepository.InvalidateByType for every rule whose semantics moved,
// since a changed rule invalidates any AI verdict cached under its
// detection type regardless of tenant.
func InvalidateChangedRules(ctx context.Context, rules []Rule, redisClient *redis.Client, cache *store.AICacheRepository, log *logging.Logger) error {
	for _, r := range rules {
		key := "vigilnet:rules:digest:" + r.Name
		digest := ruleDigest(r)

		prev, err := redisClient.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("read rule digest for %s: %w", r.Name, err)
		}

		if prev != "" && prev != digest {
			log.Info("rule semantics changed, invalidating ai cache", "rule", r.Name)
			if err := cache.InvalidateByType(ctx, "", r.Name); err != nil {
				return fmt.Errorf("invalidate ai cache for %s: %w", r.Name, err)
			}
		}

		if err := redisClient.Set(ctx, key, digest, 0).Err(); err != nil {
			return fmt.Errorf("store rule digest for %s: %w", r.Name, err)
		}
	}
	return nil
}
