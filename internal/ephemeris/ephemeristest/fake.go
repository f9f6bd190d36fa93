// Package ephemeristest provides scripted ephemeris adapters for tests.
package ephemeristest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
)

// MotionFunc returns a tropical longitude and speed for body at t
type MotionFunc func(t time.Time, body catalog.Body) ephemeris.Raw

// Adapter is a scripted ephemeris.Adapter
type Adapter struct {
	// Motion drives RawPosition and, when TrueMotion is nil, TruePosition
	Motion     MotionFunc
	TrueMotion MotionFunc
	// AyanamsaDeg is returned by Ayanamsa
	AyanamsaDeg float64
	// AscendantDeg is returned by Ascendant
	AscendantDeg float64
	// ValidFrom and ValidTo bound the instants served; zero means unbounded
	ValidFrom, ValidTo time.Time

	calls atomic.Int64
}

// Static returns an adapter where every body sits at a fixed longitude
func Static(longitudes map[catalog.Body]float64, speeds map[catalog.Body]float64) *Adapter {
	return &Adapter{
		Motion: func(_ time.Time, b catalog.Body) ephemeris.Raw {
			speed, ok := speeds[b]
			if !ok {
				speed = 1
			}
			return ephemeris.Raw{Longitude: longitudes[b], Speed: speed}
		},
	}
}

// Calls returns the number of adapter calls served
func (a *Adapter) Calls() int64 {
	return a.calls.Load()
}

func (a *Adapter) check(ctx context.Context, t time.Time, body catalog.Body) error {
	a.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !a.ValidFrom.IsZero() && t.Before(a.ValidFrom) {
		return fmt.Errorf("%w: before %s", ephemeris.ErrEphemerisUnavailable, a.ValidFrom)
	}
	if !a.ValidTo.IsZero() && t.After(a.ValidTo) {
		return fmt.Errorf("%w: after %s", ephemeris.ErrEphemerisUnavailable, a.ValidTo)
	}
	if body.Derived() {
		return fmt.Errorf("%w: body %s cannot be queried", ephemeris.ErrEphemerisUnavailable, body)
	}
	return nil
}

// RawPosition implements ephemeris.Adapter
func (a *Adapter) RawPosition(ctx context.Context, t time.Time, body catalog.Body) (ephemeris.Raw, error) {
	if err := a.check(ctx, t, body); err != nil {
		return ephemeris.Raw{}, err
	}
	raw := a.Motion(t, body)
	raw.Longitude = ephemeris.Normalize(raw.Longitude)
	return raw, nil
}

// TruePosition implements ephemeris.Adapter
func (a *Adapter) TruePosition(ctx context.Context, t time.Time, body catalog.Body) (ephemeris.Raw, error) {
	if a.TrueMotion == nil {
		return a.RawPosition(ctx, t, body)
	}
	if err := a.check(ctx, t, body); err != nil {
		return ephemeris.Raw{}, err
	}
	raw := a.TrueMotion(t, body)
	raw.Longitude = ephemeris.Normalize(raw.Longitude)
	return raw, nil
}

// Ayanamsa implements ephemeris.Adapter
func (a *Adapter) Ayanamsa(ctx context.Context, t time.Time) (float64, error) {
	if err := a.check(ctx, t, catalog.Sun); err != nil {
		return 0, err
	}
	return a.AyanamsaDeg, nil
}

// Ascendant implements ephemeris.Adapter
func (a *Adapter) Ascendant(ctx context.Context, t time.Time, lat, lon float64) (float64, error) {
	if err := a.check(ctx, t, catalog.Sun); err != nil {
		return 0, err
	}
	return ephemeris.Normalize(a.AscendantDeg), nil
}
