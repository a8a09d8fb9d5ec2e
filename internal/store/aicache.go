package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vigilnet/vigilnet/internal/models"
)

// AICacheRepository implements the AI knowledge cache, keyed by tenant
// and pattern signature so equivalent detections reuse a prior verdict.
type AICacheRepository struct {
	*Pool
}

func NewAICacheRepository(p *Pool) *AICacheRepository { return &AICacheRepository{Pool: p} }

// Lookup returns the entry only if is_valid=true and expires_at > now,
// incrementing hit_count and updating last_hit_at on hit.
func (r *AICacheRepository) Lookup(ctx context.Context, tenantID, signature string) (*models.AICacheEntry, error) {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	e, err := scanCacheEntry(r.QueryRow(ctx, `
		UPDATE ai_cache_entries
		SET hit_count = hit_count + 1, last_hit_at = $3
		WHERE tenant_id = $1 AND pattern_signature = $2 AND is_valid = true AND expires_at > $3
		RETURNING id, tenant_id, pattern_signature, detection_type, severity, threat_detected,
		          threat_type, confidence_score, context_summary, recommended_actions,
		          report_subject, report_body, hit_count, last_hit_at, expires_at, is_valid
	`, tenantID, signature, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup ai cache entry: %w", err)
	}
	return e, nil
}

// Upsert inserts or overwrites the cache row for (tenant_id, signature),
// resetting expires_at = now + ttlDays and is_valid = true.
func (r *AICacheRepository) Upsert(ctx context.Context, e *models.AICacheEntry, ttlDays int) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	actionsJSON, err := json.Marshal(e.RecommendedActions)
	if err != nil {
		return fmt.Errorf("marshal recommended actions: %w", err)
	}
	expiresAt := time.Now().UTC().AddDate(0, 0, ttlDays)

	_, err = r.Exec(ctx, `
		INSERT INTO ai_cache_entries
			(id, tenant_id, pattern_signature, detection_type, severity, threat_detected,
			 threat_type, confidence_score, context_summary, recommended_actions,
			 report_subject, report_body, hit_count, expires_at, is_valid)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,0,$13,true)
		ON CONFLICT (tenant_id, pattern_signature) DO UPDATE SET
			detection_type = EXCLUDED.detection_type,
			severity = EXCLUDED.severity,
			threat_detected = EXCLUDED.threat_detected,
			threat_type = EXCLUDED.threat_type,
			confidence_score = EXCLUDED.confidence_score,
			context_summary = EXCLUDED.context_summary,
			recommended_actions = EXCLUDED.recommended_actions,
			report_subject = EXCLUDED.report_subject,
			report_body = EXCLUDED.report_body,
			expires_at = EXCLUDED.expires_at,
			is_valid = true
	`, e.ID, e.TenantID, e.PatternSignature, e.DetectionType, e.Severity, e.ThreatDetected,
		e.ThreatType, e.ConfidenceScore, e.ContextSummary, actionsJSON,
		e.ReportSubject, e.ReportBody, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert ai cache entry: %w", err)
	}
	return nil
}

// InvalidateByPattern sets is_valid=false for one (tenant, signature) pair.
func (r *AICacheRepository) InvalidateByPattern(ctx context.Context, tenantID, signature string) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `
		UPDATE ai_cache_entries SET is_valid = false WHERE tenant_id = $1 AND pattern_signature = $2
	`, tenantID, signature)
	if err != nil {
		return fmt.Errorf("invalidate ai cache by pattern: %w", err)
	}
	return nil
}

// InvalidateByType sets is_valid=false for every entry of a detection
// type, for a tenant (empty tenantID invalidates across all tenants). The
// Rules Engine calls this after rule semantics change, so stale verdicts
// are never replayed onto a rule that now means something different.
func (r *AICacheRepository) InvalidateByType(ctx context.Context, tenantID, detectionType string) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	var err error
	if tenantID == "" {
		_, err = r.Exec(ctx, `UPDATE ai_cache_entries SET is_valid = false WHERE detection_type = $1`, detectionType)
	} else {
		_, err = r.Exec(ctx, `
			UPDATE ai_cache_entries SET is_valid = false WHERE tenant_id = $1 AND detection_type = $2
		`, tenantID, detectionType)
	}
	if err != nil {
		return fmt.Errorf("invalidate ai cache by type: %w", err)
	}
	return nil
}

// Cleanup deletes rows that have expired or been invalidated. Callable on
// a daily schedule.
func (r *AICacheRepository) Cleanup(ctx context.Context) (int64, error) {
	ctx, cancel := BulkContext(ctx)
	defer cancel()

	tag, err := r.Exec(ctx, `
		DELETE FROM ai_cache_entries WHERE expires_at < now() OR is_valid = false
	`)
	if err != nil {
		return 0, fmt.Errorf("cleanup ai cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCacheEntry(row pgx.Row) (*models.AICacheEntry, error) {
	e := &models.AICacheEntry{}
	var actionsRaw []byte
	err := row.Scan(&e.ID, &e.TenantID, &e.PatternSignature, &e.DetectionType, &e.Severity, &e.ThreatDetected,
		&e.ThreatType, &e.ConfidenceScore, &e.ContextSummary, &actionsRaw,
		&e.ReportSubject, &e.ReportBody, &e.HitCount, &e.LastHitAt, &e.ExpiresAt, &e.IsValid)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(actionsRaw, &e.RecommendedActions)
	return e, nil
}
