package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema holds the DDL for the journal tables, applied in order
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id           BIGSERIAL PRIMARY KEY,
		scan_start   TIMESTAMPTZ NOT NULL,
		kind         TEXT NOT NULL,
		key          TEXT NOT NULL,
		participants TEXT[] NOT NULL DEFAULT '{}',
		target       TEXT NOT NULL DEFAULT '',
		instant      TIMESTAMPTZ NOT NULL,
		value        DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (scan_start, key)
	)`,
	`CREATE INDEX IF NOT EXISTS events_instant_idx ON events (instant)`,
	`CREATE INDEX IF NOT EXISTS events_kind_instant_idx ON events (kind, instant)`,
	`CREATE TABLE IF NOT EXISTS dasha_anchors (
		instant        TIMESTAMPTZ PRIMARY KEY,
		moon_longitude DOUBLE PRECISION NOT NULL,
		nakshatra      TEXT NOT NULL,
		lord           TEXT NOT NULL,
		nak_start_jd   DOUBLE PRECISION NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies Schema inside a single transaction
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range Schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
