package store

import (
	"context"
	"fmt"

	"github.com/vigilnet/vigilnet/internal/models"
)

// EmailDeliveryRepository persists EmailDelivery rows.
type EmailDeliveryRepository struct {
	*Pool
}

func NewEmailDeliveryRepository(p *Pool) *EmailDeliveryRepository {
	return &EmailDeliveryRepository{Pool: p}
}

func (r *EmailDeliveryRepository) Create(ctx context.Context, e *models.EmailDelivery) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `
		INSERT INTO email_deliveries
			(id, digest_id, tenant_id, recipient, provider_message_id, status, error, sent_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.DigestID, e.TenantID, e.Recipient, e.ProviderMsgID, e.Status, e.Error, e.SentAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create email delivery: %w", err)
	}
	return nil
}

func (r *EmailDeliveryRepository) ListByDigest(ctx context.Context, digestID string) ([]*models.EmailDelivery, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rows, err := r.Query(ctx, `
		SELECT id, digest_id, tenant_id, recipient, provider_message_id, status, error, sent_at, created_at
		FROM email_deliveries WHERE digest_id = $1 ORDER BY created_at
	`, digestID)
	if err != nil {
		return nil, fmt.Errorf("list email deliveries: %w", err)
	}
	defer rows.Close()

	var out []*models.EmailDelivery
	for rows.Next() {
		e := &models.EmailDelivery{}
		if err := rows.Scan(&e.ID, &e.DigestID, &e.TenantID, &e.Recipient, &e.ProviderMsgID,
			&e.Status, &e.Error, &e.SentAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email delivery: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
