// Package database manages the Postgres connection pool and schema.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openlocal/bizdir-ingest/internal/config"
)

// Connect builds a pgx pool from config and verifies the connection.
// A failure here is a setup error: callers must exit before any work begins.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingTimeout := time.Duration(cfg.PingTimeoutS) * time.Second
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// migrations are idempotent DDL statements applied at startup.
// Order matters: reviews references businesses.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS work_items (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		locality TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		last_attempt_at TIMESTAMPTZ,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (locality, category)
	)`,
	`CREATE INDEX IF NOT EXISTS work_items_status_idx ON work_items (status)`,
	`CREATE TABLE IF NOT EXISTS businesses (
		source_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		category TEXT NOT NULL,
		suburb TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		rating_avg DOUBLE PRECISION NOT NULL DEFAULT 0,
		rating_count INTEGER NOT NULL DEFAULT 0,
		reported_review_count INTEGER NOT NULL DEFAULT 0,
		trust_score INTEGER NOT NULL DEFAULT 0,
		claim_status TEXT NOT NULL DEFAULT 'unclaimed',
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS businesses_slug_idx ON businesses (slug)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		external_id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL REFERENCES businesses (source_id),
		reviewer TEXT NOT NULL DEFAULT '',
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		text TEXT NOT NULL,
		highlights TEXT NOT NULL DEFAULT '',
		owner_reply TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS reviews_business_idx ON reviews (business_id)`,
}

// Migrate applies the schema. Safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
