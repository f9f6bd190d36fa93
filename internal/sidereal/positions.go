package sidereal

import (
	"encoding/json"
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// Position is the sidereal state of one body at an instant
type Position struct {
	Body       catalog.Body `json:"body"`
	Longitude  float64      `json:"longitude"` // sidereal degrees [0,360)
	Speed      float64      `json:"speed"`     // degrees per day
	Retrograde bool         `json:"retrograde"`
}

// Placement decomposes the position into sign, nakshatra and pada
func (p Position) Placement() zodiac.Placement {
	return zodiac.Decompose(p.Longitude)
}

// PositionSet holds the sidereal positions of every queried body at one
// instant. It is a value: nothing mutates it after construction, and Ketu is
// projected from Rahu on read rather than stored.
type PositionSet struct {
	instant  time.Time
	ayanamsa float64
	queried  [catalog.BodyCount - 1]Position
}

// NewPositionSet builds a set from already-sidereal positions. Entries for
// Ketu are ignored; missing bodies stay at longitude 0.
func NewPositionSet(instant time.Time, ayanamsa float64, positions []Position) PositionSet {
	ps := PositionSet{instant: instant, ayanamsa: ayanamsa}
	for i := range ps.queried {
		ps.queried[i].Body = catalog.Body(i)
	}
	for _, p := range positions {
		if !p.Body.Valid() || p.Body.Derived() {
			continue
		}
		p.Longitude = zodiac.Normalize(p.Longitude)
		p.Retrograde = p.Speed < 0
		ps.queried[p.Body] = p
	}
	return ps
}

// Instant returns the instant the set was computed for
func (ps PositionSet) Instant() time.Time {
	return ps.instant
}

// Ayanamsa returns the correction that was subtracted
func (ps PositionSet) Ayanamsa() float64 {
	return ps.ayanamsa
}

// Get returns the position of b, projecting Ketu from Rahu
func (ps PositionSet) Get(b catalog.Body) (Position, bool) {
	if !b.Valid() {
		return Position{}, false
	}
	if shadow, ok := catalog.ShadowOf(b); ok {
		src := ps.queried[shadow]
		return Position{
			Body:       b,
			Longitude:  zodiac.Normalize(src.Longitude + 180),
			Speed:      src.Speed,
			Retrograde: src.Retrograde,
		}, true
	}
	return ps.queried[b], true
}

// Longitude returns the sidereal longitude of b
func (ps PositionSet) Longitude(b catalog.Body) float64 {
	p, _ := ps.Get(b)
	return p.Longitude
}

// Retrograde reports whether b moves backwards at the instant
func (ps PositionSet) Retrograde(b catalog.Body) bool {
	p, _ := ps.Get(b)
	return p.Retrograde
}

// All returns every body's position in catalog order, Ketu included
func (ps PositionSet) All() []Position {
	out := make([]Position, 0, catalog.BodyCount)
	for _, b := range catalog.Bodies() {
		p, _ := ps.Get(b)
		out = append(out, p)
	}
	return out
}

// Groups lists the bodies occupying each sign, in catalog order
func (ps PositionSet) Groups() [catalog.SignCount][]catalog.Body {
	var groups [catalog.SignCount][]catalog.Body
	for _, p := range ps.All() {
		s := zodiac.SignOf(p.Longitude)
		groups[s] = append(groups[s], p.Body)
	}
	return groups
}

// MarshalJSON implements json.Marshaler
func (ps PositionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Instant   time.Time  `json:"instant"`
		Ayanamsa  float64    `json:"ayanamsa"`
		Positions []Position `json:"positions"`
	}{ps.instant, ps.ayanamsa, ps.All()})
}
