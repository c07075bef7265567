// Package repository provides PostgreSQL access for users, groups and memberships.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairshare/fairshare/migrations"
)

// Repository provides database access methods.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new Repository with a connection pool.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

// NewWithPool wraps an existing pool. Used by tests that manage their own pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate applies every embedded up migration in version order.
// The scripts are idempotent, so running it on an up-to-date schema is a no-op.
func (r *Repository) Migrate(ctx context.Context) error {
	all, err := migrations.All()
	if err != nil {
		return err
	}

	for _, m := range all {
		if _, err := r.pool.Exec(ctx, m.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer adding methods to Repository.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}
