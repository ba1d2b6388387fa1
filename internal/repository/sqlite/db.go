// Package sqlite implements the ledger store on a single SQLite file, the
// default deployment for a single chama.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultPath is used when no SQLITE_PATH is configured.
const DefaultPath = "chama.db"

// Open opens (creating if needed) the SQLite database at path.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// - journal_mode=WAL: readers do not block the writer
	// - foreign_keys=ON
	// - busy_timeout=5000: wait on a lock instead of failing immediately
	// - _txlock=immediate: transactions take the write lock up front so a
	//   read-then-write balance update cannot deadlock across processes
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS members (
		phone           TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		balance         TEXT NOT NULL DEFAULT '0',
		opening_balance TEXT NOT NULL DEFAULT '0',
		last_payment    TEXT,
		join_date       TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'active'
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		phone      TEXT PRIMARY KEY,
		plan       TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date   TEXT,
		status     TEXT NOT NULL DEFAULT 'active'
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		phone         TEXT NOT NULL,
		amount        TEXT NOT NULL,
		payment_date  TEXT NOT NULL,
		payment_type  TEXT NOT NULL DEFAULT 'contribution',
		description   TEXT NOT NULL DEFAULT '',
		balance_delta TEXT NOT NULL DEFAULT '0'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_phone ON payments(phone)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_date ON payments(payment_date)`,
}

// RunMigrations creates the ledger schema if it does not exist yet.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}
