package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/vedicwatch/internal/persistence"
)

// defaultListLimit caps ListRange when the caller passes no limit
const defaultListLimit = 1000

// eventsRepo implements EventsRepo for PostgreSQL
type eventsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// eventRow mirrors the events table; participants is a text[] column
type eventRow struct {
	ID           int64          `db:"id"`
	ScanStart    time.Time      `db:"scan_start"`
	Kind         string         `db:"kind"`
	Key          string         `db:"key"`
	Participants pq.StringArray `db:"participants"`
	Target       string         `db:"target"`
	Instant      time.Time      `db:"instant"`
	Value        float64        `db:"value"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r eventRow) record() persistence.EventRecord {
	return persistence.EventRecord{
		ID:           r.ID,
		ScanStart:    r.ScanStart,
		Kind:         r.Kind,
		Key:          r.Key,
		Participants: []string(r.Participants),
		Target:       r.Target,
		Instant:      r.Instant,
		Value:        r.Value,
		CreatedAt:    r.CreatedAt,
	}
}

// NewEventsRepo creates a new PostgreSQL event journal
func NewEventsRepo(db *sqlx.DB, timeout time.Duration) persistence.EventsRepo {
	return &eventsRepo{
		db:      db,
		timeout: timeout,
	}
}

// InsertBatch writes records in one transaction; duplicates of an already
// journaled (scan_start, key) are skipped
func (r *eventsRepo) InsertBatch(ctx context.Context, records []persistence.EventRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for _, rec := range records {
		if rec.Kind == "" || rec.Key == "" {
			return 0, fmt.Errorf("invalid event record: kind and key are required")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(records)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (scan_start, kind, key, participants, target, instant, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scan_start, key) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var written int64
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.ScanStart, rec.Kind, rec.Key, pq.Array(rec.Participants),
			rec.Target, rec.Instant, rec.Value)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event %s: %w", rec.Key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events: %w", err)
	}
	return written, nil
}

// ListRange returns journaled events inside tr ordered by instant
func (r *eventsRepo) ListRange(ctx context.Context, tr persistence.TimeRange, kind string, limit int) ([]persistence.EventRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, scan_start, kind, key, participants, target, instant, value, created_at
		FROM events
		WHERE instant >= $1 AND instant <= $2 AND ($3::text = '' OR kind = $3)
		ORDER BY instant ASC, id ASC
		LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []persistence.EventRecord
	for rows.Next() {
		var row eventRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		records = append(records, row.record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return records, nil
}

// CountByKind returns event counts grouped by kind
func (r *eventsRepo) CountByKind(ctx context.Context, tr persistence.TimeRange) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT kind, COUNT(*)
		FROM events
		WHERE instant >= $1 AND instant <= $2
		GROUP BY kind
		ORDER BY kind`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event counts: %w", err)
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}
