// Package dasha computes the Vimshottari period tree anchored to the Moon's
// entry into its current nakshatra.
package dasha

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// Anchor fixes the start of the cycle. NakStart is back-extrapolated from
// the Moon's true longitude assuming constant speed since the nakshatra
// boundary; it is an approximation, not a root.
type Anchor struct {
	Instant       time.Time         `json:"instant"`
	MoonLongitude float64           `json:"moon_longitude"`
	Nakshatra     catalog.Nakshatra `json:"nakshatra"`
	Lord          catalog.Body      `json:"lord"`
	TrueLongitude float64           `json:"true_longitude"`
	Speed         float64           `json:"speed"`
	NakStart      float64           `json:"nak_start_jd"`
}

// NakStartTime returns the nakshatra entry as a UTC instant
func (a Anchor) NakStartTime() time.Time {
	return ephemeris.TimeFromJulian(a.NakStart)
}

// Tree is the full period tree for an anchor
type Tree struct {
	Anchor     Anchor   `json:"anchor"`
	Depth      int      `json:"depth"`
	Mahadashas []Period `json:"mahadashas"`
}

// Start returns the Julian day the cycle begins
func (t Tree) Start() float64 {
	return t.Mahadashas[0].Start
}

// End returns the Julian day the 120 year cycle closes
func (t Tree) End() float64 {
	return t.Mahadashas[len(t.Mahadashas)-1].End
}

// Lookup returns the active period at every level for jd
func (t Tree) Lookup(jd float64) ([]Period, error) {
	return Chain(t.Mahadashas, jd)
}

// Observer receives tree build timings
type Observer interface {
	ObserveDashaBuild(depth int, elapsed time.Duration)
}

// Engine resolves anchors and builds trees
type Engine struct {
	resolver *sidereal.Resolver
	adapter  ephemeris.Adapter
	observer Observer
}

// NewEngine creates an engine over the resolver's adapter
func NewEngine(resolver *sidereal.Resolver, observer Observer) *Engine {
	return &Engine{
		resolver: resolver,
		adapter:  resolver.Adapter(),
		observer: observer,
	}
}

// Anchor computes the lord and nakshatra entry for the Moon at t
func (e *Engine) Anchor(ctx context.Context, t time.Time) (Anchor, error) {
	ps, err := e.resolver.Positions(ctx, t)
	if err != nil {
		return Anchor{}, err
	}
	moon := ps.Longitude(catalog.Moon)
	nak, lord, _ := zodiac.NakshatraOf(moon)

	raw, err := e.adapter.TruePosition(ctx, t, catalog.Moon)
	if err != nil {
		return Anchor{}, fmt.Errorf("failed to get true moon position: %w", err)
	}
	trueLon := zodiac.Normalize(raw.Longitude - ps.Ayanamsa())
	speed := math.Abs(raw.Speed)
	if speed < 1e-6 {
		return Anchor{}, fmt.Errorf("%w: moon speed %.8f too small to anchor", ephemeris.ErrEphemerisUnavailable, raw.Speed)
	}

	delta := math.Mod(trueLon-nak.Start(), catalog.NakshatraWidth)
	if delta < 0 {
		delta += catalog.NakshatraWidth
	}
	jd := ephemeris.JulianDay(t)

	a := Anchor{
		Instant:       t,
		MoonLongitude: moon,
		Nakshatra:     nak,
		Lord:          lord,
		TrueLongitude: trueLon,
		Speed:         speed,
		NakStart:      jd - delta/speed,
	}

	log.Debug().
		Str("nakshatra", nak.String()).
		Str("lord", lord.String()).
		Float64("delta_deg", delta).
		Time("nak_start", a.NakStartTime()).
		Msg("Anchored dasha cycle")

	return a, nil
}

// Tree anchors at t and builds the period tree down to depth
func (e *Engine) Tree(ctx context.Context, t time.Time, depth int) (Tree, error) {
	a, err := e.Anchor(ctx, t)
	if err != nil {
		return Tree{}, err
	}
	began := time.Now()
	tree, err := Build(a, depth)
	if err != nil {
		return Tree{}, err
	}
	if e.observer != nil {
		e.observer.ObserveDashaBuild(depth, time.Since(began))
	}
	return tree, nil
}

// Build lays out the nine Mahadashas from the anchor lord and recursively
// subdivides each one down to depth (1 = Mahadasha only).
func Build(a Anchor, depth int) (Tree, error) {
	if depth < 1 || depth > catalog.MaxDashaDepth {
		return Tree{}, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidDepth, depth, catalog.MaxDashaDepth)
	}

	tops := make([]Period, 0, catalog.BodyCount)
	start := a.NakStart
	for _, lord := range catalog.DashaSequenceFrom(a.Lord) {
		end := start + catalog.DashaYears(lord)*catalog.SiderealYearDays
		p := Period{Lord: lord, Level: 1, Start: start, End: end}
		p.Children = subdivide(p, depth)
		tops = append(tops, p)
		start = end
	}
	return Tree{Anchor: a, Depth: depth, Mahadashas: tops}, nil
}

// subdivide splits parent into nine children starting from the parent's own
// lord, each lasting parent_years * lord_years / 120. The last child ends at
// the parent's end so siblings tile the parent without drift.
func subdivide(parent Period, depth int) []Period {
	if parent.Level >= depth {
		return nil
	}
	lords := catalog.DashaSequenceFrom(parent.Lord)
	parentDays := parent.Days()

	children := make([]Period, len(lords))
	start := parent.Start
	for i, lord := range lords {
		end := start + parentDays*catalog.DashaYears(lord)/catalog.CycleYears
		if i == len(lords)-1 {
			end = parent.End
		}
		child := Period{Lord: lord, Level: parent.Level + 1, Start: start, End: end}
		child.Children = subdivide(child, depth)
		children[i] = child
		start = end
	}
	return children
}

// CurrentChain returns the active period at every built level for t
func CurrentChain(tree Tree, t time.Time) ([]Period, error) {
	return tree.Lookup(ephemeris.JulianDay(t))
}

// Balance describes progress through the active Mahadasha
type Balance struct {
	Lord           catalog.Body `json:"lord"`
	ElapsedYears   float64      `json:"elapsed_years"`
	RemainingYears float64      `json:"remaining_years"`
	Fraction       float64      `json:"fraction"`
}

// BalanceAt reports the elapsed and remaining share of the Mahadasha active at t
func BalanceAt(tree Tree, t time.Time) (Balance, error) {
	jd := ephemeris.JulianDay(t)
	p, err := Current(tree.Mahadashas, jd)
	if err != nil {
		return Balance{}, err
	}
	elapsed := math.Max(jd-p.Start, 0)
	return Balance{
		Lord:           p.Lord,
		ElapsedYears:   elapsed / catalog.SiderealYearDays,
		RemainingYears: (p.End - math.Max(jd, p.Start)) / catalog.SiderealYearDays,
		Fraction:       elapsed / p.Days(),
	}, nil
}
