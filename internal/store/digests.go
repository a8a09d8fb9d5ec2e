package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vigilnet/vigilnet/internal/models"
)

// DigestRepository persists Digest rows created by the Batcher and read by
// the Email Dispatcher.
type DigestRepository struct {
	*Pool
}

func NewDigestRepository(p *Pool) *DigestRepository { return &DigestRepository{Pool: p} }

// CreateWithDetections inserts the digest and assigns it to the given
// detections in a single transaction.
func (r *DigestRepository) CreateWithDetections(ctx context.Context, d *models.Digest, detectionIDs []string) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	tx, err := r.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin digest tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO digests
			(id, tenant_id, window_start, window_end, severity, detection_count,
			 event_count, subject, body_text, body_html, locale, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, d.ID, d.TenantID, d.WindowStart, d.WindowEnd, d.Severity, d.DetectionCount,
		d.EventCount, d.Subject, d.BodyText, d.BodyHTML, d.Locale, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert digest: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE detections SET reported_digest_id = $1 WHERE id = ANY($2) AND reported_digest_id IS NULL
	`, d.ID, detectionIDs)
	if err != nil {
		return fmt.Errorf("assign digest to detections: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *DigestRepository) GetByID(ctx context.Context, id string) (*models.Digest, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	d := &models.Digest{}
	err := r.QueryRow(ctx, `
		SELECT id, tenant_id, window_start, window_end, severity, detection_count,
		       event_count, subject, body_text, body_html, locale, created_at
		FROM digests WHERE id = $1
	`, id).Scan(&d.ID, &d.TenantID, &d.WindowStart, &d.WindowEnd, &d.Severity, &d.DetectionCount,
		&d.EventCount, &d.Subject, &d.BodyText, &d.BodyHTML, &d.Locale, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get digest: %w", err)
	}
	return d, nil
}

// ListByTenant returns a tenant's most recent digests, newest first.
func (r *DigestRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.Digest, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rows, err := r.Query(ctx, `
		SELECT id, tenant_id, window_start, window_end, severity, detection_count,
		       event_count, subject, body_text, body_html, locale, created_at
		FROM digests WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list digests by tenant: %w", err)
	}
	defer rows.Close()

	var out []*models.Digest
	for rows.Next() {
		d := &models.Digest{}
		if err := rows.Scan(&d.ID, &d.TenantID, &d.WindowStart, &d.WindowEnd, &d.Severity, &d.DetectionCount,
			&d.EventCount, &d.Subject, &d.BodyText, &d.BodyHTML, &d.Locale, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListUndelivered returns digests with no EmailDelivery row of
// status='sent'.
func (r *DigestRepository) ListUndelivered(ctx context.Context) ([]*models.Digest, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rows, err := r.Query(ctx, `
		SELECT d.id, d.tenant_id, d.window_start, d.window_end, d.severity, d.detection_count,
		       d.event_count, d.subject, d.body_text, d.body_html, d.locale, d.created_at
		FROM digests d
		WHERE NOT EXISTS (
			SELECT 1 FROM email_deliveries e WHERE e.digest_id = d.id AND e.status = 'sent'
		)
		ORDER BY d.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list undelivered digests: %w", err)
	}
	defer rows.Close()

	var out []*models.Digest
	for rows.Next() {
		d := &models.Digest{}
		if err := rows.Scan(&d.ID, &d.TenantID, &d.WindowStart, &d.WindowEnd, &d.Severity, &d.DetectionCount,
			&d.EventCount, &d.Subject, &d.BodyText, &d.BodyHTML, &d.Locale, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
