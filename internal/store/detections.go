package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vigilnet/vigilnet/internal/models"
)

// DetectionRepository persists Detection rows. UpsertOpenDetection folds
// overlapping matches into the group's open detection inside a database
// transaction, rather than an in-process lock; a match that starts after
// the open detection's last event is inserted as a second open row.
type DetectionRepository struct {
	*Pool
}

func NewDetectionRepository(p *Pool) *DetectionRepository { return &DetectionRepository{Pool: p} }

// UpsertOpenDetection updates the open detection for
// (tenant_id, detection_type, group_key) in place if one exists and its
// last_event_at is not before the candidate's first_event_at; otherwise
// it inserts a new one. The SELECT ... FOR UPDATE inside the
// transaction prevents two concurrent pipeline ticks (which the
// single-instance lease should already rule out) from ever
// double-inserting.
func (r *DetectionRepository) UpsertOpenDetection(ctx context.Context, candidate *models.Detection) (*models.Detection, bool, error) {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin detection tx: %w", err)
	}
	defer tx.Rollback(ctx)

	existing := &models.Detection{}
	var evidenceRaw []byte
	err = tx.QueryRow(ctx, `
		SELECT id, tenant_id, site_id, source_id, detection_type, severity, group_key,
		       window_minutes, event_count, first_event_at, last_event_at, evidence,
		       related_event_ids, reported_digest_id, acknowledged, created_at
		FROM detections
		WHERE tenant_id = $1 AND detection_type = $2 AND group_key = $3
		  AND reported_digest_id IS NULL
		FOR UPDATE
	`, candidate.TenantID, candidate.DetectionType, candidate.GroupKey).Scan(
		&existing.ID, &existing.TenantID, &existing.SiteID, &existing.SourceID, &existing.DetectionType,
		&existing.Severity, &existing.GroupKey, &existing.WindowMinutes, &existing.EventCount,
		&existing.FirstEventAt, &existing.LastEventAt, &evidenceRaw, &existing.RelatedEventIDs,
		&existing.ReportedDigestID, &existing.Acknowledged, &existing.CreatedAt,
	)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		evidenceJSON, merr := json.Marshal(candidate.Evidence)
		if merr != nil {
			return nil, false, fmt.Errorf("marshal evidence: %w", merr)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO detections
				(id, tenant_id, site_id, source_id, detection_type, severity, group_key,
				 window_minutes, event_count, first_event_at, last_event_at, evidence,
				 related_event_ids, acknowledged, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,false,$14)
		`, candidate.ID, candidate.TenantID, candidate.SiteID, candidate.SourceID, candidate.DetectionType,
			candidate.Severity, candidate.GroupKey, candidate.WindowMinutes, candidate.EventCount,
			candidate.FirstEventAt, candidate.LastEventAt, evidenceJSON, candidate.RelatedEventIDs, candidate.CreatedAt)
		if err != nil {
			return nil, false, fmt.Errorf("insert detection: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit detection insert: %w", err)
		}
		return candidate, true, nil

	case err != nil:
		return nil, false, fmt.Errorf("lookup open detection: %w", err)
	}

	if existing.LastEventAt.After(candidate.FirstEventAt) || existing.LastEventAt.Equal(candidate.FirstEventAt) {
		mergedSeverity := existing.Severity.Max(candidate.Severity)
		evidenceJSON, merr := json.Marshal(candidate.Evidence)
		if merr != nil {
			return nil, false, fmt.Errorf("marshal evidence: %w", merr)
		}
		_, err = tx.Exec(ctx, `
			UPDATE detections
			SET event_count = $1, last_event_at = $2, evidence = $3,
			    related_event_ids = $4, severity = $5
			WHERE id = $6
		`, candidate.EventCount, candidate.LastEventAt, evidenceJSON, candidate.RelatedEventIDs, mergedSeverity, existing.ID)
		if err != nil {
			return nil, false, fmt.Errorf("update detection: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit detection update: %w", err)
		}
		existing.EventCount = candidate.EventCount
		existing.LastEventAt = candidate.LastEventAt
		existing.Severity = mergedSeverity
		return existing, false, nil
	}

	// Candidate's window doesn't overlap the existing open detection's
	// activity; treat as a fresh occurrence by inserting a new row. This
	// only happens when the same group key goes quiet and then re-triggers
	// after the existing detection has aged out of the lookback window but
	// has not yet been batched.
	evidenceJSON, merr := json.Marshal(candidate.Evidence)
	if merr != nil {
		return nil, false, fmt.Errorf("marshal evidence: %w", merr)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO detections
			(id, tenant_id, site_id, source_id, detection_type, severity, group_key,
			 window_minutes, event_count, first_event_at, last_event_at, evidence,
			 related_event_ids, acknowledged, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,false,$14)
	`, candidate.ID, candidate.TenantID, candidate.SiteID, candidate.SourceID, candidate.DetectionType,
		candidate.Severity, candidate.GroupKey, candidate.WindowMinutes, candidate.EventCount,
		candidate.FirstEventAt, candidate.LastEventAt, evidenceJSON, candidate.RelatedEventIDs, candidate.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert detection: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit detection insert: %w", err)
	}
	return candidate, true, nil
}

func (r *DetectionRepository) ListOpenByTenant(ctx context.Context, tenantID string) ([]*models.Detection, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rows, err := r.Query(ctx, `
		SELECT id, tenant_id, site_id, source_id, detection_type, severity, group_key,
		       window_minutes, event_count, first_event_at, last_event_at, evidence,
		       related_event_ids, reported_digest_id, acknowledged, created_at
		FROM detections
		WHERE tenant_id = $1 AND reported_digest_id IS NULL
		ORDER BY
		  CASE severity
		    WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0
		  END DESC,
		  last_event_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list open detections: %w", err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

// DistinctTenantsWithOpenDetections is used by the Batcher to know which
// tenants have digest work pending.
func (r *DetectionRepository) DistinctTenantsWithOpenDetections(ctx context.Context) ([]string, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rows, err := r.Query(ctx, `SELECT DISTINCT tenant_id FROM detections WHERE reported_digest_id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list tenants with open detections: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AssignDigest marks the given detections as reported by digestID in one
// transaction. Once reported_digest_id is set the row is frozen.
func (r *DetectionRepository) AssignDigest(ctx context.Context, digestID string, detectionIDs []string) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `
		UPDATE detections SET reported_digest_id = $1 WHERE id = ANY($2) AND reported_digest_id IS NULL
	`, digestID, detectionIDs)
	if err != nil {
		return fmt.Errorf("assign digest: %w", err)
	}
	return nil
}

// ListHighSeverityAwaitingAI returns detections of severity high/critical
// that have no AIAnalysis row, whether or not they are already in a digest.
func (r *DetectionRepository) ListHighSeverityAwaitingAI(ctx context.Context) ([]*models.Detection, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rows, err := r.Query(ctx, `
		SELECT d.id, d.tenant_id, d.site_id, d.source_id, d.detection_type, d.severity, d.group_key,
		       d.window_minutes, d.event_count, d.first_event_at, d.last_event_at, d.evidence,
		       d.related_event_ids, d.reported_digest_id, d.acknowledged, d.created_at
		FROM detections d
		LEFT JOIN ai_analyses a ON a.detection_id = d.id
		WHERE d.severity IN ('high', 'critical') AND a.id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("list detections awaiting ai: %w", err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

func (r *DetectionRepository) GetByID(ctx context.Context, id string) (*models.Detection, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	d := &models.Detection{}
	var evidenceRaw []byte
	err := r.QueryRow(ctx, `
		SELECT id, tenant_id, site_id, source_id, detection_type, severity, group_key,
		       window_minutes, event_count, first_event_at, last_event_at, evidence,
		       related_event_ids, reported_digest_id, acknowledged, created_at
		FROM detections WHERE id = $1
	`, id).Scan(&d.ID, &d.TenantID, &d.SiteID, &d.SourceID, &d.DetectionType, &d.Severity, &d.GroupKey,
		&d.WindowMinutes, &d.EventCount, &d.FirstEventAt, &d.LastEventAt, &evidenceRaw,
		&d.RelatedEventIDs, &d.ReportedDigestID, &d.Acknowledged, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get detection: %w", err)
	}
	_ = json.Unmarshal(evidenceRaw, &d.Evidence)
	return d, nil
}

func scanDetections(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*models.Detection, error) {
	var out []*models.Detection
	for rows.Next() {
		d := &models.Detection{}
		var evidenceRaw []byte
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SiteID, &d.SourceID, &d.DetectionType, &d.Severity, &d.GroupKey,
			&d.WindowMinutes, &d.EventCount, &d.FirstEventAt, &d.LastEventAt, &evidenceRaw,
			&d.RelatedEventIDs, &d.ReportedDigestID, &d.Acknowledged, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		_ = json.Unmarshal(evidenceRaw, &d.Evidence)
		out = append(out, d)
	}
	return out, rows.Err()
}
