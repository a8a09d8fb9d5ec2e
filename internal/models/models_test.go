package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRankOrdering(t *testing.T) {
	assert.Less(t, SeverityInfo.Rank(), SeverityLow.Rank())
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())
}

func TestSeverityRankUnknownIsNegative(t *testing.T) {
	assert.Equal(t, -1, Severity("bogus").Rank())
}

func TestSeverityMax(t *testing.T) {
	assert.Equal(t, SeverityHigh, SeverityHigh.Max(SeverityMedium))
	assert.Equal(t, SeverityCritical, SeverityLow.Max(SeverityCritical))
	assert.Equal(t, SeverityMedium, SeverityMedium.Max(SeverityMedium))
}

func TestSeverityEscalateByCapsAtCritical(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityHigh.EscalateBy(1))
	assert.Equal(t, SeverityCritical, SeverityCritical.EscalateBy(1))
	assert.Equal(t, SeverityCritical, SeverityInfo.EscalateBy(10))
}

func TestSeverityEscalateByUnknownBaseStartsAtInfo(t *testing.T) {
	assert.Equal(t, SeverityLow, Severity("bogus").EscalateBy(1))
}

func TestDetectionIsOpen(t *testing.T) {
	open := Detection{ReportedDigestID: nil}
	assert.True(t, open.IsOpen())

	digestID := "some-digest-id"
	closed := Detection{ReportedDigestID: &digestID}
	assert.False(t, closed.IsOpen())
}
