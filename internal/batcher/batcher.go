// Package batcher groups each tenant's unreported detections into a
// single digest per pipeline tick.
package batcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/models"
	"github.com/vigilnet/vigilnet/internal/store"
)

type Batcher struct {
	detections *store.DetectionRepository
	digests    *store.DigestRepository
	tenants    *store.TenantRepository
	log        *logging.Logger
}

func New(detections *store.DetectionRepository, digests *store.DigestRepository, tenants *store.TenantRepository, log *logging.Logger) *Batcher {
	return &Batcher{detections: detections, digests: digests, tenants: tenants, log: log}
}

// RunAll batches every tenant with open detections, returning the number
// of digests created. One tenant's failure does not block the others.
func (b *Batcher) RunAll(ctx context.Context) (int, error) {
	tenantIDs, err := b.detections.DistinctTenantsWithOpenDetections(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants with open detections: %w", err)
	}

	created := 0
	for _, tenantID := range tenantIDs {
		ok, err := b.runTenant(ctx, tenantID)
		if err != nil {
			b.log.Error("batch tenant failed", "tenant_id", tenantID, "err", err)
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (b *Batcher) runTenant(ctx context.Context, tenantID string) (bool, error) {
	open, err := b.detections.ListOpenByTenant(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("list open detections: %w", err)
	}
	if len(open) == 0 {
		return false, nil
	}

	tenant, err := b.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("get tenant: %w", err)
	}

	digest := compose(tenant, open)

	ids := make([]string, len(open))
	for i, d := range open {
		ids[i] = d.ID
	}

	if err := b.digests.CreateWithDetections(ctx, digest, ids); err != nil {
		return false, fmt.Errorf("create digest: %w", err)
	}
	return true, nil
}

// compose aggregates a tenant's open detections (already severity/last-
// event ordered by the repository) into one Digest.
func compose(tenant *models.Tenant, detections []*models.Detection) *models.Digest {
	windowStart := detections[0].FirstEventAt
	windowEnd := detections[0].LastEventAt
	severity := detections[0].Severity
	eventCount := 0

	for _, d := range detections {
		if d.FirstEventAt.Before(windowStart) {
			windowStart = d.FirstEventAt
		}
		if d.LastEventAt.After(windowEnd) {
			windowEnd = d.LastEventAt
		}
		severity = severity.Max(d.Severity)
		eventCount += d.EventCount
	}

	locale := tenant.DefaultLocale
	subject, body := render(locale, tenant, severity, len(detections), eventCount, detections, windowStart, windowEnd)

	return &models.Digest{
		ID:             uuid.New().String(),
		TenantID:       tenant.ID,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		Severity:       severity,
		DetectionCount: len(detections),
		EventCount:     eventCount,
		Subject:        subject,
		BodyText:       body,
		Locale:         locale,
		CreatedAt:      time.Now().UTC(),
	}
}
