package events

import (
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// Detector compares consecutive samples of one ordered stream. A detector
// instance belongs to a single scan at a time; Reset is called before the
// first sample of every scan.
type Detector interface {
	Name() string
	Reset()
	Observe(prev, curr sidereal.PositionSet, emit func(Event))
}

// Completer is implemented by detectors that can finish before the window
// ends. The scanner stops sampling once every detector is done.
type Completer interface {
	Done() bool
}

// Crossing thresholds in degrees of separation
const (
	AmavasyaStartSeparation = 12.0
	AmavasyaEndSeparation   = 0.5
	PurnimaStartSeparation  = 168.0
	PurnimaEndSeparation    = 179.5
	ConjunctionOrb          = 1.0
	OppositionOrb           = 179.0
)

// fallsThrough reports a falling crossing of threshold between two samples
func fallsThrough(prev, curr, threshold float64) bool {
	return prev > threshold && curr <= threshold
}

// risesThrough reports a rising crossing of threshold between two samples
func risesThrough(prev, curr, threshold float64) bool {
	return prev < threshold && curr >= threshold
}

// LunarPhaseDetector tracks the Amavasya and Purnima windows from the
// Moon-Sun separation. Each window is a start latch followed by an end latch.
type LunarPhaseDetector struct {
	amavasyaStart, amavasyaEnd bool
	purnimaStart, purnimaEnd   bool
}

// NewLunarPhaseDetector creates a lunar phase detector
func NewLunarPhaseDetector() *LunarPhaseDetector {
	return &LunarPhaseDetector{}
}

func (d *LunarPhaseDetector) Name() string { return "lunar_phase" }

func (d *LunarPhaseDetector) Reset() {
	*d = LunarPhaseDetector{}
}

// Done reports whether both windows are complete
func (d *LunarPhaseDetector) Done() bool {
	return d.amavasyaEnd && d.purnimaEnd
}

func (d *LunarPhaseDetector) Observe(prev, curr sidereal.PositionSet, emit func(Event)) {
	p := zodiac.Separation(prev.Longitude(catalog.Moon), prev.Longitude(catalog.Sun))
	c := zodiac.Separation(curr.Longitude(catalog.Moon), curr.Longitude(catalog.Sun))

	phase := func(target string) {
		emit(Event{
			Kind:         KindLunarPhase,
			Participants: []catalog.Body{catalog.Moon, catalog.Sun},
			Target:       target,
			Instant:      curr.Instant(),
			Value:        c,
		})
	}

	if !d.amavasyaStart && fallsThrough(p, c, AmavasyaStartSeparation) {
		d.amavasyaStart = true
		phase(AmavasyaStart)
	}
	if d.amavasyaStart && !d.amavasyaEnd && fallsThrough(p, c, AmavasyaEndSeparation) {
		d.amavasyaEnd = true
		phase(AmavasyaEnd)
	}
	if !d.purnimaStart && risesThrough(p, c, PurnimaStartSeparation) {
		d.purnimaStart = true
		phase(PurnimaStart)
	}
	if d.purnimaStart && !d.purnimaEnd && risesThrough(p, c, PurnimaEndSeparation) {
		d.purnimaEnd = true
		phase(PurnimaEnd)
	}
}

// AspectDetector emits conjunctions and oppositions for every unordered pair
// of its bodies.
type AspectDetector struct {
	bodies []catalog.Body
}

// NewAspectDetector creates an aspect detector over bodies, all nine when empty
func NewAspectDetector(bodies ...catalog.Body) *AspectDetector {
	if len(bodies) == 0 {
		bodies = catalog.Bodies()
	}
	return &AspectDetector{bodies: bodies}
}

func (d *AspectDetector) Name() string { return "aspects" }

func (d *AspectDetector) Reset() {}

func (d *AspectDetector) Observe(prev, curr sidereal.PositionSet, emit func(Event)) {
	for i := 0; i < len(d.bodies); i++ {
		for j := i + 1; j < len(d.bodies); j++ {
			a, b := d.bodies[i], d.bodies[j]
			p := zodiac.Separation(prev.Longitude(a), prev.Longitude(b))
			c := zodiac.Separation(curr.Longitude(a), curr.Longitude(b))

			var kind Kind
			switch {
			case fallsThrough(p, c, ConjunctionOrb):
				kind = KindConjunction
			case risesThrough(p, c, OppositionOrb):
				kind = KindOpposition
			default:
				continue
			}
			emit(Event{
				Kind:         kind,
				Participants: []catalog.Body{a, b},
				Instant:      curr.Instant(),
				Value:        c,
			})
		}
	}
}

// IngressDetector emits sign and nakshatra changes for its bodies
type IngressDetector struct {
	bodies     []catalog.Body
	signs      bool
	nakshatras bool
	after      time.Time
}

// IngressOption configures an IngressDetector
type IngressOption func(*IngressDetector)

// SignsOnly restricts the detector to sign ingress
func SignsOnly() IngressOption {
	return func(d *IngressDetector) { d.nakshatras = false }
}

// NakshatrasOnly restricts the detector to nakshatra ingress
func NakshatrasOnly() IngressOption {
	return func(d *IngressDetector) { d.signs = false }
}

// After drops changes at or before t
func After(t time.Time) IngressOption {
	return func(d *IngressDetector) { d.after = t }
}

// ForBodies overrides the tracked bodies (the fast bodies by default)
func ForBodies(bodies ...catalog.Body) IngressOption {
	return func(d *IngressDetector) { d.bodies = bodies }
}

// NewIngressDetector creates an ingress detector
func NewIngressDetector(opts ...IngressOption) *IngressDetector {
	d := &IngressDetector{
		bodies:     catalog.FastBodies(),
		signs:      true,
		nakshatras: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *IngressDetector) Name() string { return "ingress" }

func (d *IngressDetector) Reset() {}

func (d *IngressDetector) Observe(prev, curr sidereal.PositionSet, emit func(Event)) {
	if !d.after.IsZero() && !curr.Instant().After(d.after) {
		return
	}
	for _, b := range d.bodies {
		p, c := prev.Longitude(b), curr.Longitude(b)

		if d.signs {
			if from, to := zodiac.SignOf(p), zodiac.SignOf(c); from != to {
				emit(Event{
					Kind:         KindSignIngress,
					Participants: []catalog.Body{b},
					Target:       to.String(),
					From:         from.String(),
					To:           to.String(),
					Instant:      curr.Instant(),
					Value:        c,
				})
			}
		}
		if d.nakshatras {
			from, _, _ := zodiac.NakshatraOf(p)
			to, _, _ := zodiac.NakshatraOf(c)
			if from != to {
				emit(Event{
					Kind:         KindNakshatraIngress,
					Participants: []catalog.Body{b},
					Target:       to.String(),
					From:         from.String(),
					To:           to.String(),
					Instant:      curr.Instant(),
					Value:        c,
				})
			}
		}
	}
}
