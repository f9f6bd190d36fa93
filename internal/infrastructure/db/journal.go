package db

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/dasha"
	"github.com/sawpanic/vedicwatch/internal/events"
	"github.com/sawpanic/vedicwatch/internal/persistence"
)

// ErrJournalDisabled is returned by reads when no database is configured
var ErrJournalDisabled = errors.New("database journal disabled")

// Journal records scans and dasha anchors when the database is enabled and
// silently does nothing otherwise
type Journal struct {
	manager *Manager
}

// NewJournal wraps a manager; a nil manager yields a disabled journal
func NewJournal(manager *Manager) *Journal {
	return &Journal{manager: manager}
}

// Enabled reports whether writes reach the database
func (j *Journal) Enabled() bool {
	return j != nil && j.manager != nil && j.manager.IsEnabled()
}

// EventRecord converts a scanned event into its journal row
func EventRecord(scanStart time.Time, e events.Event) persistence.EventRecord {
	participants := make([]string, len(e.Participants))
	for i, p := range e.Participants {
		participants[i] = p.String()
	}
	return persistence.EventRecord{
		ScanStart:    scanStart.UTC(),
		Kind:         string(e.Kind),
		Key:          e.Key(),
		Participants: participants,
		Target:       e.Target,
		Instant:      e.Instant.UTC(),
		Value:        e.Value,
	}
}

// RecordScan journals the events of one scan starting at scanStart
func (j *Journal) RecordScan(ctx context.Context, scanStart time.Time, evs []events.Event) (int64, error) {
	if !j.Enabled() || len(evs) == 0 {
		return 0, nil
	}

	records := make([]persistence.EventRecord, len(evs))
	for i, e := range evs {
		records[i] = EventRecord(scanStart, e)
	}

	n, err := j.manager.Repository().Events.InsertBatch(ctx, records)
	if err != nil {
		return 0, err
	}

	log.Info().
		Time("scan_start", scanStart).
		Int("events", len(evs)).
		Int64("written", n).
		Msg("Journaled scan events")
	return n, nil
}

// RecordAnchor journals the anchor a dasha tree was built from
func (j *Journal) RecordAnchor(ctx context.Context, a dasha.Anchor) error {
	if !j.Enabled() {
		return nil
	}
	return j.manager.Repository().Anchors.Upsert(ctx, persistence.DashaAnchorRecord{
		Instant:       a.Instant.UTC(),
		MoonLongitude: a.MoonLongitude,
		Nakshatra:     a.Nakshatra.String(),
		Lord:          a.Lord.String(),
		NakStartJD:    a.NakStart,
	})
}

// History lists journaled events with instants inside tr, oldest first
func (j *Journal) History(ctx context.Context, tr persistence.TimeRange, kind string, limit int) ([]persistence.EventRecord, error) {
	if !j.Enabled() {
		return nil, ErrJournalDisabled
	}
	records, err := j.manager.Repository().Events.ListRange(ctx, tr, kind, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []persistence.EventRecord{}
	}
	return records, nil
}

// Anchor returns the anchor journaled for at, or the most recent one when
// at is zero. A nil record means nothing was journaled.
func (j *Journal) Anchor(ctx context.Context, at time.Time) (*persistence.DashaAnchorRecord, error) {
	if !j.Enabled() {
		return nil, ErrJournalDisabled
	}
	if at.IsZero() {
		return j.manager.Repository().Anchors.Latest(ctx)
	}
	return j.manager.Repository().Anchors.GetByInstant(ctx, at.UTC())
}

// Health returns the database health status
func (j *Journal) Health(ctx context.Context) persistence.HealthCheck {
	if j == nil || j.manager == nil {
		return persistence.HealthCheck{
			Healthy:        true,
			Errors:         []string{"Database journal disabled"},
			ConnectionPool: map[string]int{"status": 0},
			LastCheck:      time.Now(),
		}
	}
	return j.manager.Health().Health(ctx)
}

// Statistics returns pool stats plus event counts for the last 24 hours
func (j *Journal) Statistics(ctx context.Context) map[string]interface{} {
	if !j.Enabled() {
		return map[string]interface{}{
			"enabled": false,
			"status":  "disabled",
		}
	}

	stats := j.manager.Health().Stats(ctx)
	now := time.Now().UTC()
	counts, err := j.manager.Repository().Events.CountByKind(ctx, persistence.TimeRange{
		From: now.Add(-24 * time.Hour),
		To:   now,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count journaled events")
		return stats
	}
	stats["events_24h"] = counts
	return stats
}

// Close releases the database connection
func (j *Journal) Close() error {
	if j == nil || j.manager == nil {
		return nil
	}
	log.Info().Msg("Closing database journal")
	return j.manager.Close()
}
