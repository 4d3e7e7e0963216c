package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are idempotent; running them on every boot is safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		txn_id       TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		timestamp_ms BIGINT NOT NULL,
		payload      JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_timestamp ON transactions (user_id, timestamp_ms DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions (timestamp_ms DESC)`,
	`CREATE TABLE IF NOT EXISTS fraud_flags (
		txn_id     TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		card_id    TEXT,
		merchant   TEXT,
		amount     DOUBLE PRECISION,
		reasons    TEXT[] NOT NULL DEFAULT '{}',
		status     TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'resolved')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS fraud_alerts (
		txn_id     TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		card_id    TEXT,
		merchant   TEXT,
		amount     DOUBLE PRECISION,
		reasons    TEXT[] NOT NULL DEFAULT '{}',
		type       TEXT NOT NULL DEFAULT 'suspicious_transaction',
		status     TEXT NOT NULL DEFAULT 'unread' CHECK (status IN ('unread', 'read')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fraud_alerts_user ON fraud_alerts (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS user_device_tokens (
		user_id    TEXT NOT NULL,
		token      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, token)
	)`,
}

// EnsureSchema creates the tables the service needs if they do not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
