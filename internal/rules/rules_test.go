package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigilnet/vigilnet/internal/models"
)

func TestEscalate(t *testing.T) {
	tests := []struct {
		name       string
		base       models.Severity
		eventCount int
		threshold  int
		want       models.Severity
	}{
		{"below threshold ratio", models.SeverityHigh, 4, 3, models.SeverityHigh},
		{"at 5x escalates one level", models.SeverityHigh, 15, 3, models.SeverityCritical},
		{"at 20x escalates two levels capped at critical", models.SeverityMedium, 60, 3, models.SeverityCritical},
		{"zero threshold never escalates", models.SeverityLow, 100, 0, models.SeverityLow},
		{"just under 5x does not escalate", models.SeverityLow, 14, 3, models.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := escalate(tt.base, tt.eventCount, tt.threshold)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReferenceRules(t *testing.T) {
	byName := make(map[string]Rule)
	for _, r := range ReferenceRules {
		byName[r.Name] = r
	}

	vpn, ok := byName["vpn_bruteforce"]
	assert.True(t, ok)
	assert.Equal(t, []string{"vpn_login_fail"}, vpn.EventTypes)
	assert.Equal(t, 3, vpn.Threshold)
	assert.Equal(t, "src_ip", vpn.GroupBy)

	admin, ok := byName["admin_bruteforce"]
	assert.True(t, ok)
	assert.Equal(t, models.SeverityCritical, admin.Severity)

	burst, ok := byName["config_change_burst"]
	assert.True(t, ok)
	assert.Equal(t, "src_user", burst.GroupBy)
	assert.Equal(t, 10, burst.Threshold)
}
