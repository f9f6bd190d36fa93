package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/vedicwatch/internal/persistence"
)

// anchorsRepo implements DashaAnchorRepo for PostgreSQL
type anchorsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewDashaAnchorRepo creates a new PostgreSQL dasha anchor repository
func NewDashaAnchorRepo(db *sqlx.DB, timeout time.Duration) persistence.DashaAnchorRepo {
	return &anchorsRepo{
		db:      db,
		timeout: timeout,
	}
}

// Upsert inserts or replaces the anchor stored for record.Instant
func (r *anchorsRepo) Upsert(ctx context.Context, record persistence.DashaAnchorRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if record.Lord == "" || record.Nakshatra == "" {
		return fmt.Errorf("invalid dasha anchor: lord and nakshatra are required")
	}

	query := `
		INSERT INTO dasha_anchors (instant, moon_longitude, nakshatra, lord, nak_start_jd)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instant) DO UPDATE SET
			moon_longitude = EXCLUDED.moon_longitude,
			nakshatra = EXCLUDED.nakshatra,
			lord = EXCLUDED.lord,
			nak_start_jd = EXCLUDED.nak_start_jd
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		record.Instant, record.MoonLongitude, record.Nakshatra,
		record.Lord, record.NakStartJD).
		Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert dasha anchor: %w", err)
	}
	return nil
}

// GetByInstant retrieves the anchor for ts
func (r *anchorsRepo) GetByInstant(ctx context.Context, ts time.Time) (*persistence.DashaAnchorRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT instant, moon_longitude, nakshatra, lord, nak_start_jd, created_at
		FROM dasha_anchors
		WHERE instant = $1`

	return r.get(r.db.QueryRowxContext(ctx, query, ts), "by instant")
}

// Latest returns the anchor with the greatest instant
func (r *anchorsRepo) Latest(ctx context.Context) (*persistence.DashaAnchorRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT instant, moon_longitude, nakshatra, lord, nak_start_jd, created_at
		FROM dasha_anchors
		ORDER BY instant DESC
		LIMIT 1`

	return r.get(r.db.QueryRowxContext(ctx, query), "latest")
}

func (r *anchorsRepo) get(row *sqlx.Row, what string) (*persistence.DashaAnchorRecord, error) {
	var rec persistence.DashaAnchorRecord
	if err := row.StructScan(&rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get dasha anchor %s: %w", what, err)
	}
	return &rec, nil
}
