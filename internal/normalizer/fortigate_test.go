package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFortiGateParser_VPNLoginFail(t *testing.T) {
	raw := `date=2026-08-06 time=10:23:45 devname="FW01" devid="FG100E" logid="0001000014" ` +
		`type="event" subtype="vpn" action="ssl-login-fail" level="warning" ` +
		`srcip=203.0.113.5 srcport=51514 user="jdoe" reason="invalid password"`

	p := NewFortiGateParser()
	rec, err := p.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "event", rec.Type)
	assert.Equal(t, "vpn", rec.Subtype)
	assert.Equal(t, "ssl-login-fail", rec.Action)
	assert.Equal(t, "warning", rec.Level)
	assert.Equal(t, "203.0.113.5", rec.SrcIP)
	assert.Equal(t, 51514, rec.SrcPort)
	assert.Equal(t, "jdoe", rec.SrcUser)
	assert.Equal(t, "invalid password", rec.Message)
	require.True(t, rec.HasTimestamp)
	assert.Equal(t, 2026, rec.Timestamp.Year())
}

func TestFortiGateParser_FallsBackToParenEmbeddedIP(t *testing.T) {
	raw := `type="event" subtype="system" action="admin-login-fail" level="warning" msg="login failed for admin (198.51.100.9)"`

	p := NewFortiGateParser()
	rec, err := p.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "198.51.100.9", rec.SrcIP)
}

func TestFortiGateParser_MissingTimestampFields(t *testing.T) {
	raw := `type="event" subtype="system" action="cfg-change" level="notice"`

	p := NewFortiGateParser()
	rec, err := p.Parse(raw)
	require.NoError(t, err)

	assert.False(t, rec.HasTimestamp)
}

func TestSplitKVHonorsQuotedSpaces(t *testing.T) {
	fields := splitKV(`devname="FW 01" action=deny reason="invalid password here"`)

	assert.Equal(t, "FW 01", fields["devname"])
	assert.Equal(t, "deny", fields["action"])
	assert.Equal(t, "invalid password here", fields["reason"])
}
