package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigilnet/vigilnet/internal/models"
)

func TestDeriveEventType(t *testing.T) {
	tests := []struct {
		name             string
		typ, sub, action string
		want             string
	}{
		{"vpn ssl login fail", "event", "vpn", "ssl-login-fail", "vpn_login_fail"},
		{"vpn login fail alt action", "event", "vpn", "login-fail", "vpn_login_fail"},
		{"admin login fail", "event", "system", "admin-login-fail", "admin_login_fail"},
		{"config change", "event", "system", "config-change", "config_change"},
		{"traffic denied", "traffic", "forward", "deny", "traffic_denied"},
		{"utm virus any action", "utm", "virus", "anything", "malware_detected"},
		{"unmapped falls back to type_subtype", "event", "mystery", "whatever", "event_mystery"},
		{"nothing matches falls back to unknown", "", "", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveEventType(tt.typ, tt.sub, tt.action))
		})
	}
}

func TestDeriveSeverity(t *testing.T) {
	tests := []struct {
		level string
		want  models.Severity
	}{
		{"critical", models.SeverityCritical},
		{"alert", models.SeverityCritical},
		{"error", models.SeverityHigh},
		{"warning", models.SeverityMedium},
		{"notice", models.SeverityLow},
		{"information", models.SeverityInfo},
		{"", models.SeverityInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, deriveSeverity(tt.level))
	}
}
