package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBudgetExhausted is returned once the daily request quota is used up
var ErrBudgetExhausted = errors.New("daily budget exhausted")

// ExhaustedError reports usage and the next reset
type ExhaustedError struct {
	Host  string
	Used  int64
	Limit int64
	Reset time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted for %s: %d/%d requests used, resets at %s",
		e.Host, e.Used, e.Limit, e.Reset.Format("2006-01-02 15:04 UTC"))
}

// Unwrap lets errors.Is match ErrBudgetExhausted
func (e *ExhaustedError) Unwrap() error { return ErrBudgetExhausted }

// Stats is a point-in-time view of a tracker
type Stats struct {
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	NextReset time.Time `json:"next_reset"`
}

// Tracker counts requests against a daily limit that resets at a fixed
// UTC hour. A limit of zero or less disables the check.
type Tracker struct {
	host      string
	limit     int64
	resetHour int
	now       func() time.Time

	mu        sync.Mutex
	used      int64
	lastReset time.Time
}

// NewTracker creates a tracker. A nil clock uses time.Now.
func NewTracker(host string, limit int64, resetHour int, now func() time.Time) *Tracker {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		host:      host,
		limit:     limit,
		resetHour: resetHour,
		now:       now,
		lastReset: lastResetTime(now().UTC(), resetHour),
	}
}

// lastResetTime is the most recent reset boundary at or before now
func lastResetTime(now time.Time, resetHour int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, time.UTC)
	if now.Hour() >= resetHour {
		return today
	}
	return today.AddDate(0, 0, -1)
}

// rollLocked clears usage when a reset boundary has passed
func (t *Tracker) rollLocked() {
	now := t.now().UTC()
	if !now.Before(t.lastReset.Add(24 * time.Hour)) {
		t.used = 0
		t.lastReset = lastResetTime(now, t.resetHour)
	}
}

// Consume records one request or returns an *ExhaustedError
func (t *Tracker) Consume() error {
	if t.limit <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollLocked()
	if t.used >= t.limit {
		return &ExhaustedError{
			Host:  t.host,
			Used:  t.used,
			Limit: t.limit,
			Reset: t.lastReset.Add(24 * time.Hour),
		}
	}
	t.used++
	return nil
}

// Stats returns current usage
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollLocked()
	remaining := t.limit - t.used
	if remaining < 0 || t.limit <= 0 {
		remaining = 0
	}
	return Stats{
		Used:      t.used,
		Limit:     t.limit,
		Remaining: remaining,
		NextReset: t.lastReset.Add(24 * time.Hour),
	}
}
