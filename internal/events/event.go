// Package events scans a time window for threshold crossings in sidereal
// position streams: lunar phase boundaries, conjunctions, oppositions and
// sign or nakshatra ingress.
package events

import (
	"strings"
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
)

// Kind classifies a detected event
type Kind string

const (
	KindLunarPhase       Kind = "lunar_phase"
	KindConjunction      Kind = "conjunction"
	KindOpposition       Kind = "opposition"
	KindSignIngress      Kind = "sign_ingress"
	KindNakshatraIngress Kind = "nakshatra_ingress"
)

// Kinds lists every event kind in display order
func Kinds() []Kind {
	return []Kind{KindLunarPhase, KindConjunction, KindOpposition, KindSignIngress, KindNakshatraIngress}
}

// Lunar phase boundaries carried in Event.Target
const (
	AmavasyaStart = "amavasya_start"
	AmavasyaEnd   = "amavasya_end"
	PurnimaStart  = "purnima_start"
	PurnimaEnd    = "purnima_end"
)

// UpcomingHorizon is how far after the reference instant an event still
// counts as upcoming
const UpcomingHorizon = 24 * time.Hour

// Event is one detected crossing. Events are created once and never updated.
type Event struct {
	Kind         Kind           `json:"kind"`
	Participants []catalog.Body `json:"participants"`
	Target       string         `json:"target,omitempty"`
	From         string         `json:"from,omitempty"`
	To           string         `json:"to,omitempty"`
	Instant      time.Time      `json:"instant"`
	Value        float64        `json:"value"` // signal at the crossing step
	Upcoming     bool           `json:"upcoming"`
}

// Key identifies the event for de-duplication within one scan
func (e Event) Key() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	for _, p := range e.Participants {
		b.WriteByte('|')
		b.WriteString(p.String())
	}
	if e.Target != "" {
		b.WriteByte('|')
		b.WriteString(e.Target)
	}
	return b.String()
}

// Countdown returns the time left until the event relative to now
func (e Event) Countdown(now time.Time) time.Duration {
	return e.Instant.Sub(now)
}
