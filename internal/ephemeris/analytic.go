package ephemeris

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
)

// NodeMode selects how Rahu is computed
type NodeMode int

const (
	MeanNode NodeMode = iota
	TrueNode
)

func (m NodeMode) String() string {
	if m == TrueNode {
		return "true"
	}
	return "mean"
}

// ParseNodeMode accepts "mean" or "true"
func ParseNodeMode(s string) (NodeMode, error) {
	switch s {
	case "", "mean":
		return MeanNode, nil
	case "true":
		return TrueNode, nil
	default:
		return MeanNode, fmt.Errorf("unknown node mode %q", s)
	}
}

const (
	// lahiriAtJ2000 is the Lahiri ayanamsa at the J2000 epoch in degrees
	lahiriAtJ2000 = 23.85709
	// aberration is the constant of annual aberration in degrees
	aberration = 20.4955 / 3600
	// speedStep is the half-width in days of the central difference used for speeds
	speedStep = 1.0 / 24
)

var (
	defaultValidFrom = time.Date(1800, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultValidTo   = time.Date(2050, 12, 31, 23, 59, 59, 0, time.UTC)
)

// Analytic is an in-process ephemeris built from mean orbital elements and the
// principal terms of the lunar theory. Accuracy is at the arc-minute level
// inside its validity window, which is what whole-sign and nakshatra work needs.
type Analytic struct {
	node      NodeMode
	validFrom time.Time
	validTo   time.Time
}

// AnalyticOption configures an Analytic provider
type AnalyticOption func(*Analytic)

// WithNodeMode selects mean or true node for Rahu
func WithNodeMode(mode NodeMode) AnalyticOption {
	return func(a *Analytic) { a.node = mode }
}

// WithValidity narrows the window of instants the provider will resolve
func WithValidity(from, to time.Time) AnalyticOption {
	return func(a *Analytic) {
		a.validFrom = from
		a.validTo = to
	}
}

// NewAnalytic creates an analytic provider using the Lahiri ayanamsa
func NewAnalytic(opts ...AnalyticOption) *Analytic {
	a := &Analytic{
		node:      MeanNode,
		validFrom: defaultValidFrom,
		validTo:   defaultValidTo,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NodeMode reports the configured node mode
func (a *Analytic) NodeMode() NodeMode {
	return a.node
}

// RawPosition implements Adapter
func (a *Analytic) RawPosition(ctx context.Context, t time.Time, body catalog.Body) (Raw, error) {
	return a.position(ctx, t, body, true)
}

// TruePosition implements Adapter
func (a *Analytic) TruePosition(ctx context.Context, t time.Time, body catalog.Body) (Raw, error) {
	return a.position(ctx, t, body, false)
}

// Ayanamsa implements Adapter
func (a *Analytic) Ayanamsa(ctx context.Context, t time.Time) (float64, error) {
	if err := a.check(ctx, t); err != nil {
		return 0, err
	}
	return lahiri(centuries(JulianDay(t))), nil
}

// Ascendant implements Adapter
func (a *Analytic) Ascendant(ctx context.Context, t time.Time, lat, lon float64) (float64, error) {
	if err := a.check(ctx, t); err != nil {
		return 0, err
	}
	if math.IsNaN(lat) || lat <= -90 || lat >= 90 {
		return 0, fmt.Errorf("%w: latitude %.4f out of range", ErrEphemerisUnavailable, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return 0, fmt.Errorf("%w: longitude %.4f out of range", ErrEphemerisUnavailable, lon)
	}

	jd := JulianDay(t)
	T := centuries(jd)
	eps := obliquity(T)
	ramc := Normalize(siderealTime(jd) + lon + nutationLongitude(T)*cosD(eps))

	return ascendantFromRAMC(ramc, eps, lat), nil
}

// ascendantFromRAMC returns the ecliptic degree rising for a local sidereal
// angle ramc, obliquity eps and geographic latitude lat.
func ascendantFromRAMC(ramc, eps, lat float64) float64 {
	asc := atan2D(cosD(ramc), -(sinD(ramc)*cosD(eps) + math.Tan(lat*rad)*sinD(eps)))
	return Normalize(asc)
}

func (a *Analytic) position(ctx context.Context, t time.Time, body catalog.Body, apparent bool) (Raw, error) {
	if err := a.check(ctx, t); err != nil {
		return Raw{}, err
	}
	if !body.Valid() || body.Derived() {
		return Raw{}, fmt.Errorf("%w: body %s cannot be queried", ErrEphemerisUnavailable, body)
	}

	jd := JulianDay(t)
	lon := a.longitude(jd, body, apparent)
	before := a.longitude(jd-speedStep, body, apparent)
	after := a.longitude(jd+speedStep, body, apparent)

	return Raw{
		Longitude: lon,
		Speed:     wrap180(after-before) / (2 * speedStep),
	}, nil
}

func (a *Analytic) longitude(jd float64, body catalog.Body, apparent bool) float64 {
	T := centuries(jd)

	var lon float64
	switch body {
	case catalog.Moon:
		lon = moonLongitude(T)
	case catalog.Rahu:
		if a.node == TrueNode {
			lon = trueNode(T)
		} else {
			lon = meanNode(T)
		}
	default:
		j2000, _ := geocentricJ2000(body, T)
		lon = j2000 + precession(T)
		if apparent {
			lon -= aberration
		}
	}

	if apparent {
		lon += nutationLongitude(T)
	}
	return Normalize(lon)
}

func (a *Analytic) check(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.Before(a.validFrom) || t.After(a.validTo) {
		return fmt.Errorf("%w: %s outside %s..%s", ErrEphemerisUnavailable,
			t.UTC().Format(time.RFC3339), a.validFrom.Format("2006-01-02"), a.validTo.Format("2006-01-02"))
	}
	return nil
}

func lahiri(T float64) float64 {
	return lahiriAtJ2000 + precession(T)
}

func obliquity(T float64) float64 {
	return 23.4392911 - 0.0130042*T - 1.64e-7*T*T + 5.04e-7*T*T*T
}

// siderealTime returns Greenwich mean sidereal time in degrees
func siderealTime(jd float64) float64 {
	T := centuries(jd)
	return Normalize(280.46061837 + 360.98564736629*(jd-J2000) + 0.000387933*T*T - T*T*T/38710000)
}
