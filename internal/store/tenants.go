package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vigilnet/vigilnet/internal/models"
)

// TenantRepository persists Tenant rows.
type TenantRepository struct {
	*Pool
}

func NewTenantRepository(p *Pool) *TenantRepository { return &TenantRepository{Pool: p} }

func (r *TenantRepository) Create(ctx context.Context, t *models.Tenant) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `
		INSERT INTO tenants (id, name, status, plan_tier, default_locale, timezone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.Name, t.Status, t.PlanTier, t.DefaultLocale, t.Timezone, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	t := &models.Tenant{}
	err := r.QueryRow(ctx, `
		SELECT id, name, status, plan_tier, default_locale, timezone, created_at
		FROM tenants WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Status, &t.PlanTier, &t.DefaultLocale, &t.Timezone, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (r *TenantRepository) List(ctx context.Context) ([]*models.Tenant, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rows, err := r.Query(ctx, `
		SELECT id, name, status, plan_tier, default_locale, timezone, created_at
		FROM tenants ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		t := &models.Tenant{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Status, &t.PlanTier, &t.DefaultLocale, &t.Timezone, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
