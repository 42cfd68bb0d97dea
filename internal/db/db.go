// Package db is the postgres persistence layer for shops, people, orders
// and discounts.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict reports that a conditional update matched no row because the
	// record changed since it was read.
	ErrConflict = errors.New("record was modified concurrently")
)

//go:embed schema.sql
var schemaSQL string

// migrationLock serializes schema application across replicas starting at once.
const migrationLock int64 = 0x73686f706d617465

type Options struct {
	URL string
	// MaxConns caps the pool; zero keeps the pgx default.
	MaxConns int32
	// SlowQuery is the duration above which queries log at warn.
	SlowQuery time.Duration
	Logger    *slog.Logger
}

func Connect(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	poolConfig.ConnConfig.Tracer = newQueryTracer(opts.Logger, opts.SlowQuery)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema inside one transaction holding an
// advisory lock. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLock); err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}
	if _, err := tx.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
