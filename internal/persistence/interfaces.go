package persistence

import (
	"context"
	"time"
)

// TimeRange is a closed window of instants for journal queries
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports From <= t <= To
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.From) && !t.After(tr.To)
}

// EventRecord is one scanned event as stored in the journal. Rows are
// unique per (scan_start, key) so replaying a scan is idempotent.
type EventRecord struct {
	ID           int64     `json:"id" db:"id"`
	ScanStart    time.Time `json:"scan_start" db:"scan_start"`
	Kind         string    `json:"kind" db:"kind"`
	Key          string    `json:"key" db:"key"`
	Participants []string  `json:"participants" db:"participants"`
	Target       string    `json:"target" db:"target"`
	Instant      time.Time `json:"instant" db:"instant"`
	Value        float64   `json:"value" db:"value"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DashaAnchorRecord stores the anchor a dasha tree was built from
type DashaAnchorRecord struct {
	Instant       time.Time `json:"instant" db:"instant"`
	MoonLongitude float64   `json:"moon_longitude" db:"moon_longitude"`
	Nakshatra     string    `json:"nakshatra" db:"nakshatra"`
	Lord          string    `json:"lord" db:"lord"`
	NakStartJD    float64   `json:"nak_start_jd" db:"nak_start_jd"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// EventsRepo persists scanned events
type EventsRepo interface {
	// InsertBatch writes records atomically, skipping ones already journaled
	// for the same scan. Returns the number of rows written.
	InsertBatch(ctx context.Context, records []EventRecord) (int64, error)

	// ListRange returns events with instants inside tr, oldest first. An
	// empty kind matches every kind.
	ListRange(ctx context.Context, tr TimeRange, kind string, limit int) ([]EventRecord, error)

	// CountByKind returns event counts grouped by kind
	CountByKind(ctx context.Context, tr TimeRange) (map[string]int64, error)
}

// DashaAnchorRepo persists dasha anchors
type DashaAnchorRepo interface {
	// Upsert inserts or replaces the anchor for its instant
	Upsert(ctx context.Context, record DashaAnchorRecord) error

	// GetByInstant returns nil, nil when no anchor exists for ts
	GetByInstant(ctx context.Context, ts time.Time) (*DashaAnchorRecord, error)

	// Latest returns the most recently anchored instant
	Latest(ctx context.Context) (*DashaAnchorRecord, error)
}

// Repository aggregates all persistence interfaces
type Repository struct {
	Events  EventsRepo
	Anchors DashaAnchorRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	// Health returns current repository health status
	Health(ctx context.Context) HealthCheck

	// Stats returns connection pool and query statistics
	Stats(ctx context.Context) map[string]interface{}
}
