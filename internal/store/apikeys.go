package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vigilnet/vigilnet/internal/models"
)

// APIKeyRepository persists APIKey rows and the auth-gate lookup it serves.
type APIKeyRepository struct {
	*Pool
}

func NewAPIKeyRepository(p *Pool) *APIKeyRepository { return &APIKeyRepository{Pool: p} }

// GetActiveByHash looks up an active key by its SHA-256 digest. Returns
// ErrNotFound on miss or inactive key — the auth gate treats both the same.
func (r *APIKeyRepository) GetActiveByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	k := &models.APIKey{}
	err := r.QueryRow(ctx, `
		SELECT id, tenant_id, key_hash, prefix, name, is_active, last_used_at, created_at
		FROM api_keys WHERE key_hash = $1 AND is_active = true
	`, keyHash).Scan(&k.ID, &k.TenantID, &k.KeyHash, &k.Prefix, &k.Name, &k.IsActive, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

// TouchLastUsed updates last_used_at asynchronously after a successful auth.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) Create(ctx context.Context, k *models.APIKey) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `
		INSERT INTO api_keys (id, tenant_id, key_hash, prefix, name, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, k.ID, k.TenantID, k.KeyHash, k.Prefix, k.Name, k.IsActive, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.APIKey, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rows, err := r.Query(ctx, `
		SELECT id, tenant_id, key_hash, prefix, name, is_active, last_used_at, created_at
		FROM api_keys WHERE tenant_id = $1 ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []*models.APIKey
	for rows.Next() {
		k := &models.APIKey{}
		if err := rows.Scan(&k.ID, &k.TenantID, &k.KeyHash, &k.Prefix, &k.Name, &k.IsActive, &k.LastUsedAt, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *APIKeyRepository) Revoke(ctx context.Context, id string) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	result, err := r.Exec(ctx, `UPDATE api_keys SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
