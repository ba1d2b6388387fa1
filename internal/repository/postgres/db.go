package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations creates the ledger schema if it does not exist yet.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS members (
			phone           TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			balance         NUMERIC NOT NULL DEFAULT 0,
			opening_balance NUMERIC NOT NULL DEFAULT 0,
			last_payment    TIMESTAMPTZ,
			join_date       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			status          TEXT NOT NULL DEFAULT 'active'
		);
		CREATE INDEX IF NOT EXISTS idx_members_name ON members(name);

		CREATE TABLE IF NOT EXISTS subscriptions (
			phone      TEXT PRIMARY KEY,
			plan       TEXT NOT NULL,
			start_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			end_date   TIMESTAMPTZ,
			status     TEXT NOT NULL DEFAULT 'active'
		);

		CREATE TABLE IF NOT EXISTS payments (
			id            BIGSERIAL PRIMARY KEY,
			phone         TEXT NOT NULL,
			amount        NUMERIC NOT NULL,
			payment_date  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			payment_type  TEXT NOT NULL DEFAULT 'contribution',
			description   TEXT NOT NULL DEFAULT '',
			balance_delta NUMERIC NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_payments_phone ON payments(phone);
		CREATE INDEX IF NOT EXISTS idx_payments_date ON payments(payment_date DESC);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
