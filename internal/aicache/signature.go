// Package aicache computes the pattern signature used to key the AI
// Knowledge Cache, keeping structurally similar detections on the same
// cached verdict without requiring an exact match.
package aicache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vigilnet/vigilnet/internal/models"
)

// countBucket discretizes a numeric evidence field into one of the ranges
// 1, 2-5, 6-10, 11-25, 26-50, 51-100, 100+, so incidents of similar scale
// share a cache entry instead of missing on every slightly different count.
func countBucket(n int) string {
	switch {
	case n <= 1:
		return "1"
	case n <= 5:
		return "2-5"
	case n <= 10:
		return "6-10"
	case n <= 25:
		return "11-25"
	case n <= 50:
		return "26-50"
	case n <= 100:
		return "51-100"
	default:
		return "100+"
	}
}

// Signature computes the 256-bit pattern signature for a Detection, over
// {detection_type, severity, count_buckets}, where count_buckets covers
// event_count, distinct_src_ips, and distinct_src_users.
func Signature(d *models.Detection) string {
	canonical := fmt.Sprintf("%s|%s|events=%s|ips=%s|users=%s",
		d.DetectionType,
		d.Severity,
		countBucket(d.EventCount),
		countBucket(len(d.Evidence.DistinctSrcIPs)),
		countBucket(len(d.Evidence.DistinctSrcUsers)),
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
