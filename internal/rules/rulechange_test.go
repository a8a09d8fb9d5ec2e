package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigilnet/vigilnet/internal/models"
)

func TestRuleDigestStableForSameRule(t *testing.T) {
	r := Rule{Name: "vpn_bruteforce", EventTypes: []string{"vpn_login_fail"}, Threshold: 3, WindowMinutes: 15, Severity: models.SeverityHigh, GroupBy: "src_ip"}
	assert.Equal(t, ruleDigest(r), ruleDigest(r))
}

func TestRuleDigestChangesWithThreshold(t *testing.T) {
	base := Rule{Name: "vpn_bruteforce", EventTypes: []string{"vpn_login_fail"}, Threshold: 3, WindowMinutes: 15, Severity: models.SeverityHigh, GroupBy: "src_ip"}
	changed := base
	changed.Threshold = 5

	assert.NotEqual(t, ruleDigest(base), ruleDigest(changed))
}

func TestRuleDigestChangesWithSeverity(t *testing.T) {
	base := Rule{Name: "admin_bruteforce", EventTypes: []string{"admin_login_fail"}, Threshold: 3, WindowMinutes: 15, Severity: models.SeverityCritical, GroupBy: "src_ip"}
	changed := base
	changed.Severity = models.SeverityHigh

	assert.NotEqual(t, ruleDigest(base), ruleDigest(changed))
}
