package ephemeris

import (
	"context"
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
)

// CallObserver receives the outcome of adapter calls
type CallObserver interface {
	ObserveEphemerisCall(method, body string, elapsed time.Duration, err error)
}

type metered struct {
	next Adapter
	obs  CallObserver
}

// Metered wraps an adapter so every call is reported to obs
func Metered(next Adapter, obs CallObserver) Adapter {
	if obs == nil {
		return next
	}
	return &metered{next: next, obs: obs}
}

func (m *metered) RawPosition(ctx context.Context, t time.Time, body catalog.Body) (Raw, error) {
	start := time.Now()
	raw, err := m.next.RawPosition(ctx, t, body)
	m.obs.ObserveEphemerisCall("raw_position", body.String(), time.Since(start), err)
	return raw, err
}

func (m *metered) TruePosition(ctx context.Context, t time.Time, body catalog.Body) (Raw, error) {
	start := time.Now()
	raw, err := m.next.TruePosition(ctx, t, body)
	m.obs.ObserveEphemerisCall("true_position", body.String(), time.Since(start), err)
	return raw, err
}

func (m *metered) Ayanamsa(ctx context.Context, t time.Time) (float64, error) {
	start := time.Now()
	v, err := m.next.Ayanamsa(ctx, t)
	m.obs.ObserveEphemerisCall("ayanamsa", "", time.Since(start), err)
	return v, err
}

func (m *metered) Ascendant(ctx context.Context, t time.Time, lat, lon float64) (float64, error) {
	start := time.Now()
	v, err := m.next.Ascendant(ctx, t, lat, lon)
	m.obs.ObserveEphemerisCall("ascendant", "", time.Since(start), err)
	return v, err
}

// Unwrap returns the decorated adapter
func (m *metered) Unwrap() Adapter { return m.next }

// AsRemote finds a Remote provider beneath any decorators
func AsRemote(a Adapter) (*Remote, bool) {
	for {
		switch v := a.(type) {
		case *Remote:
			return v, true
		case interface{ Unwrap() Adapter }:
			a = v.Unwrap()
		default:
			return nil, false
		}
	}
}
