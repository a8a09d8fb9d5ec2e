package batcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vigilnet/vigilnet/internal/models"
)

func TestRenderEnglishDefault(t *testing.T) {
	tenant := &models.Tenant{Name: "Acme Corp"}
	start := time.Date(2026, 8, 6, 8, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 6, 9, 0, 0, 0, time.UTC)

	detections := []*models.Detection{
		{DetectionType: "vpn_bruteforce", Severity: models.SeverityHigh, GroupKey: "203.0.113.5", EventCount: 5, LastEventAt: end},
	}

	subject, body := render("en", tenant, models.SeverityHigh, 1, 5, detections, start, end)

	assert.Contains(t, subject, "HIGH alert")
	assert.Contains(t, subject, "Acme Corp")
	assert.Contains(t, body, "Security digest for Acme Corp")
	assert.Contains(t, body, "vpn_bruteforce")
	assert.Contains(t, body, "203.0.113.5")
}

func TestRenderUnknownLocaleFallsBackToEnglish(t *testing.T) {
	tenant := &models.Tenant{Name: "Acme Corp"}
	start := time.Now()
	end := start.Add(time.Hour)

	subjectEn, bodyEn := render("en", tenant, models.SeverityMedium, 0, 0, nil, start, end)
	subjectFallback, bodyFallback := render("de", tenant, models.SeverityMedium, 0, 0, nil, start, end)

	assert.Equal(t, subjectEn, subjectFallback)
	assert.Equal(t, bodyEn, bodyFallback)
}

func TestRenderSpanishLocale(t *testing.T) {
	tenant := &models.Tenant{Name: "Acme Corp"}
	start := time.Now()
	end := start.Add(time.Hour)

	subject, body := render("es", tenant, models.SeverityCritical, 2, 10, nil, start, end)

	assert.Contains(t, subject, "Alerta CRITICAL")
	assert.Contains(t, body, "Resumen de seguridad")
}
