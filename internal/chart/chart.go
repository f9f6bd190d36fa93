package chart

import (
	"fmt"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// Placement is one body inside a chart
type Placement struct {
	Body       catalog.Body `json:"body"`
	Longitude  float64      `json:"longitude"` // transformed longitude
	Sign       catalog.Sign `json:"sign"`
	House      int          `json:"house"`
	Retrograde bool         `json:"retrograde"`
}

// Chart is a whole-sign chart for one varga
type Chart struct {
	Varga      zodiac.Varga `json:"-"`
	VargaName  string       `json:"varga"`
	Lagna      float64      `json:"lagna"`
	LagnaSign  catalog.Sign `json:"lagna_sign"`
	Placements []Placement  `json:"placements"`
}

// New builds the chart of ps in the given varga. The lagna and every body
// longitude go through the same transform before houses are assigned.
func New(ps sidereal.PositionSet, lagna float64, varga zodiac.Varga) Chart {
	vl := varga.Transform(lagna)
	c := Chart{
		Varga:      varga,
		VargaName:  varga.String(),
		Lagna:      vl,
		LagnaSign:  zodiac.SignOf(vl),
		Placements: make([]Placement, 0, catalog.BodyCount),
	}
	for _, p := range ps.All() {
		lon := varga.Transform(p.Longitude)
		c.Placements = append(c.Placements, Placement{
			Body:       p.Body,
			Longitude:  lon,
			Sign:       zodiac.SignOf(lon),
			House:      House(lon, vl),
			Retrograde: p.Retrograde,
		})
	}
	return c
}

// House returns the house of b, 0 when b is absent
func (c Chart) House(b catalog.Body) int {
	for _, p := range c.Placements {
		if p.Body == b {
			return p.House
		}
	}
	return 0
}

// Houses returns the body to house mapping
func (c Chart) Houses() map[catalog.Body]int {
	out := make(map[catalog.Body]int, len(c.Placements))
	for _, p := range c.Placements {
		out[p.Body] = p.House
	}
	return out
}

// HouseGroups returns the bodies stacked in each house; index 0 is house 1
func (c Chart) HouseGroups() [HouseCount][]catalog.Body {
	var groups [HouseCount][]catalog.Body
	for _, p := range c.Placements {
		groups[p.House-1] = append(groups[p.House-1], p.Body)
	}
	return groups
}

// SignInHouse returns the sign of house h (1..12)
func (c Chart) SignInHouse(h int) catalog.Sign {
	return SignInHouse(c.LagnaSign, h)
}

// Label renders a body for chart cells, marking retrograde motion
func (p Placement) Label() string {
	if p.Retrograde {
		return fmt.Sprintf("%s(R)", p.Body.Symbol())
	}
	return p.Body.Symbol()
}
