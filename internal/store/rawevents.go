package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vigilnet/vigilnet/internal/models"
)

// RawEventRepository persists RawEvent rows written by the Ingest Worker
// and read back by the Normalizer.
type RawEventRepository struct {
	*Pool
}

func NewRawEventRepository(p *Pool) *RawEventRepository { return &RawEventRepository{Pool: p} }

func (r *RawEventRepository) Create(ctx context.Context, e *models.RawEvent) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `
		INSERT INTO raw_events
			(id, tenant_id, site_id, source_id, received_at, source_ip, transport,
			 raw_message, collector_name, parsed, payload_sha256)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.TenantID, e.SiteID, e.SourceID, e.ReceivedAt, e.SourceIP, e.Transport,
		e.RawMessage, e.CollectorName, e.Parsed, e.PayloadSHA256)
	if err != nil {
		return fmt.Errorf("create raw event: %w", err)
	}
	return nil
}

// ExistsByDigestWithin reports whether a raw event with the given payload
// digest was already recorded for this tenant within the lookback window.
// The Ingest Worker does not call it; it stores every job it receives.
func (r *RawEventRepository) ExistsByDigestWithin(ctx context.Context, tenantID, digest string, lookbackSeconds int) (bool, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	var exists bool
	err := r.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM raw_events
			WHERE tenant_id = $1 AND payload_sha256 = $2
			  AND received_at > now() - ($3 || ' seconds')::interval
		)
	`, tenantID, digest, lookbackSeconds).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check raw event digest: %w", err)
	}
	return exists, nil
}

// SelectUnparsed returns up to n RawEvents with parsed=false, oldest first,
// the batch the Normalizer operates on.
func (r *RawEventRepository) SelectUnparsed(ctx context.Context, n int) ([]*models.RawEvent, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rows, err := r.Query(ctx, `
		SELECT id, tenant_id, site_id, source_id, received_at, source_ip, transport,
		       raw_message, collector_name, parsed, parse_error, payload_sha256
		FROM raw_events
		WHERE parsed = false
		ORDER BY received_at ASC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("select unparsed raw events: %w", err)
	}
	defer rows.Close()

	var out []*models.RawEvent
	for rows.Next() {
		e := &models.RawEvent{}
		if err := rows.Scan(&e.ID, &e.TenantID, &e.SiteID, &e.SourceID, &e.ReceivedAt, &e.SourceIP,
			&e.Transport, &e.RawMessage, &e.CollectorName, &e.Parsed, &e.ParseError, &e.PayloadSHA256); err != nil {
			return nil, fmt.Errorf("scan raw event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SampleByIDs returns up to limit RawEvents by id, used to compose the AI
// envelope's raw-event samples.
func (r *RawEventRepository) SampleByIDs(ctx context.Context, ids []string, limit int) ([]*models.RawEvent, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	if len(ids) > limit {
		ids = ids[:limit]
	}

	rows, err := r.Query(ctx, `
		SELECT id, tenant_id, site_id, source_id, received_at, source_ip, transport,
		       raw_message, collector_name, parsed, parse_error, payload_sha256
		FROM raw_events WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("sample raw events: %w", err)
	}
	defer rows.Close()

	var out []*models.RawEvent
	for rows.Next() {
		e := &models.RawEvent{}
		if err := rows.Scan(&e.ID, &e.TenantID, &e.SiteID, &e.SourceID, &e.ReceivedAt, &e.SourceIP,
			&e.Transport, &e.RawMessage, &e.CollectorName, &e.Parsed, &e.ParseError, &e.PayloadSHA256); err != nil {
			return nil, fmt.Errorf("scan raw event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkParsedWithNormalized inserts the NormalizedEvent and flips
// RawEvent.parsed=true in one transaction, so a retried normalize pass
// never double-inserts.
func (r *RawEventRepository) MarkParsedWithNormalized(ctx context.Context, rawEventID string, n *models.NormalizedEvent) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	tx, err := r.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin normalize tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO normalized_events
			(id, raw_event_id, tenant_id, site_id, source_id, ts, vendor, product,
			 event_type, subtype, action, severity, src_ip, dst_ip, src_user, dst_user,
			 src_port, dst_port, interface, vdom, policy_id, session_id, message, kv)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
	`, n.ID, n.RawEventID, n.TenantID, n.SiteID, n.SourceID, n.TS, n.Vendor, n.Product,
		n.EventType, n.Subtype, n.Action, n.Severity, n.SrcIP, n.DstIP, n.SrcUser, n.DstUser,
		n.SrcPort, n.DstPort, n.Interface, n.VDOM, n.PolicyID, n.SessionID, n.Message, n.KV)
	if err != nil {
		return fmt.Errorf("insert normalized event: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE raw_events SET parsed = true WHERE id = $1`, rawEventID)
	if err != nil {
		return fmt.Errorf("mark raw event parsed: %w", err)
	}

	return tx.Commit(ctx)
}

// MarkParseFailed flips parsed=true with parse_error set, preventing
// reprocessing of a raw event the parser could not handle.
func (r *RawEventRepository) MarkParseFailed(ctx context.Context, rawEventID, parseErr string) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `UPDATE raw_events SET parsed = true, parse_error = $1 WHERE id = $2`, parseErr, rawEventID)
	if err != nil {
		return fmt.Errorf("mark raw event parse failed: %w", err)
	}
	return nil
}

func (r *RawEventRepository) GetByID(ctx context.Context, id string) (*models.RawEvent, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	e := &models.RawEvent{}
	err := r.QueryRow(ctx, `
		SELECT id, tenant_id, site_id, source_id, received_at, source_ip, transport,
		       raw_message, collector_name, parsed, parse_error, payload_sha256
		FROM raw_events WHERE id = $1
	`, id).Scan(&e.ID, &e.TenantID, &e.SiteID, &e.SourceID, &e.ReceivedAt, &e.SourceIP,
		&e.Transport, &e.RawMessage, &e.CollectorName, &e.Parsed, &e.ParseError, &e.PayloadSHA256)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get raw event: %w", err)
	}
	return e, nil
}

// PruneOlderThan deletes RawEvents past the default retention window.
func (r *RawEventRepository) PruneOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx, cancel := BulkContext(ctx)
	defer cancel()

	tag, err := r.Exec(ctx, `
		DELETE FROM raw_events WHERE received_at < now() - ($1 || ' days')::interval
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("prune raw events: %w", err)
	}
	return tag.RowsAffected(), nil
}
