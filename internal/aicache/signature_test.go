package aicache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigilnet/vigilnet/internal/models"
)

func detectionWith(detType string, sev models.Severity, eventCount, ips, users int) *models.Detection {
	d := &models.Detection{
		DetectionType: detType,
		Severity:      sev,
		EventCount:    eventCount,
	}
	for i := 0; i < ips; i++ {
		d.Evidence.DistinctSrcIPs = append(d.Evidence.DistinctSrcIPs, "ip")
	}
	for i := 0; i < users; i++ {
		d.Evidence.DistinctSrcUsers = append(d.Evidence.DistinctSrcUsers, "user")
	}
	return d
}

func TestSignatureDeterministic(t *testing.T) {
	d1 := detectionWith("vpn_bruteforce", models.SeverityHigh, 7, 2, 1)
	d2 := detectionWith("vpn_bruteforce", models.SeverityHigh, 7, 2, 1)

	assert.Equal(t, Signature(d1), Signature(d2))
}

func TestSignatureSharedAcrossBucket(t *testing.T) {
	d1 := detectionWith("vpn_bruteforce", models.SeverityHigh, 7, 2, 1)
	d2 := detectionWith("vpn_bruteforce", models.SeverityHigh, 9, 3, 1)

	assert.Equal(t, Signature(d1), Signature(d2), "both fall in the 6-10 event and 2-5 ip buckets")
}

func TestSignatureDiffersAcrossBucketBoundary(t *testing.T) {
	d1 := detectionWith("vpn_bruteforce", models.SeverityHigh, 5, 1, 1)
	d2 := detectionWith("vpn_bruteforce", models.SeverityHigh, 6, 1, 1)

	assert.NotEqual(t, Signature(d1), Signature(d2))
}

func TestSignatureDiffersByDetectionType(t *testing.T) {
	d1 := detectionWith("vpn_bruteforce", models.SeverityHigh, 7, 2, 1)
	d2 := detectionWith("admin_bruteforce", models.SeverityHigh, 7, 2, 1)

	assert.NotEqual(t, Signature(d1), Signature(d2))
}

func TestCountBucketRanges(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "1"}, {1, "1"}, {2, "2-5"}, {5, "2-5"}, {6, "6-10"}, {10, "6-10"},
		{11, "11-25"}, {25, "11-25"}, {26, "26-50"}, {50, "26-50"},
		{51, "51-100"}, {100, "51-100"}, {101, "100+"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, countBucket(tt.n))
	}
}
