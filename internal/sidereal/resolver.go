// Package sidereal turns raw ephemeris output into sidereal position sets.
package sidereal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// Resolver computes PositionSets from an ephemeris adapter
type Resolver struct {
	adapter ephemeris.Adapter
}

// NewResolver creates a resolver over adapter
func NewResolver(adapter ephemeris.Adapter) *Resolver {
	return &Resolver{adapter: adapter}
}

// Adapter returns the underlying ephemeris adapter
func (r *Resolver) Adapter() ephemeris.Adapter {
	return r.adapter
}

// Positions resolves every cataloged body at t. Adapter failures are
// returned as-is and are never retried.
func (r *Resolver) Positions(ctx context.Context, t time.Time) (PositionSet, error) {
	ayanamsa, err := r.adapter.Ayanamsa(ctx, t)
	if err != nil {
		return PositionSet{}, fmt.Errorf("failed to get ayanamsa: %w", err)
	}

	queried := catalog.Queried()
	positions := make([]Position, 0, len(queried))
	for _, b := range queried {
		raw, err := r.adapter.RawPosition(ctx, t, b)
		if err != nil {
			return PositionSet{}, fmt.Errorf("failed to get %s position: %w", b, err)
		}
		positions = append(positions, Position{
			Body:      b,
			Longitude: zodiac.Normalize(raw.Longitude - ayanamsa),
			Speed:     raw.Speed,
		})
	}

	log.Debug().
		Time("instant", t).
		Float64("ayanamsa", ayanamsa).
		Msg("Resolved sidereal positions")

	return NewPositionSet(t, ayanamsa, positions), nil
}

// Lagna returns the sidereal ascendant for an observer at lat/lon
func (r *Resolver) Lagna(ctx context.Context, t time.Time, lat, lon float64) (float64, error) {
	ayanamsa, err := r.adapter.Ayanamsa(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("failed to get ayanamsa: %w", err)
	}
	asc, err := r.adapter.Ascendant(ctx, t, lat, lon)
	if err != nil {
		return 0, fmt.Errorf("failed to get ascendant: %w", err)
	}
	return zodiac.Normalize(asc - ayanamsa), nil
}
