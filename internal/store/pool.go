// Package store holds the pgx-backed repositories for every domain entity,
// one file per entity family: a thin struct wrapping *pgxpool.Pool with
// explicit SQL per operation.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors for not-found / conflict paths. Repositories return
// ErrNotFound; no repository currently returns ErrOpenDetectionConflict.
var (
	ErrNotFound              = errors.New("store: not found")
	ErrOpenDetectionConflict = errors.New("store: open detection already exists")
)

// Pool wraps a pgxpool.Pool and is embedded by every repository so they
// share one bounded connection pool.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a connection pool against connString and verifies
// connectivity with a single ping.
func NewPool(ctx context.Context, connString string, maxConns, minConns int32) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// QueryContext bounds a read query to a default timeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 5*time.Second)
}

// WriteContext bounds a write/transaction to a default timeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 10*time.Second)
}

// BulkContext bounds a bulk operation (batch insert, migration) to a
// longer default timeout.
func BulkContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 30*time.Second)
}
