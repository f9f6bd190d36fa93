// Package zodiac decomposes sidereal longitudes into signs, nakshatras and
// padas, and remaps them into divisional charts.
package zodiac

import (
	"errors"
	"fmt"
	"math"

	"github.com/sawpanic/vedicwatch/internal/catalog"
)

// ErrInvalidLongitude marks a longitude that is not a finite number
var ErrInvalidLongitude = errors.New("invalid longitude")

// Placement is the full decomposition of one longitude
type Placement struct {
	Longitude float64           `json:"longitude"`
	Sign      catalog.Sign      `json:"sign"`
	Degree    float64           `json:"degree"` // degrees inside the sign
	Nakshatra catalog.Nakshatra `json:"nakshatra"`
	Lord      catalog.Body      `json:"lord"`
	Pada      int               `json:"pada"`
}

// Validate reports whether lon is usable as a longitude. Boundary code calls
// it before handing user input to the pure functions below.
func Validate(lon float64) error {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidLongitude, lon)
	}
	return nil
}

// Normalize wraps lon into [0,360). It panics on NaN or Inf.
func Normalize(lon float64) float64 {
	if err := Validate(lon); err != nil {
		panic(err)
	}
	d := math.Mod(lon, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// SignOf returns floor(lon/30) mod 12
func SignOf(lon float64) catalog.Sign {
	return catalog.Sign(int(math.Floor(Normalize(lon)/catalog.SignWidth)) % catalog.SignCount)
}

// NakshatraOf returns the nakshatra containing lon, its lord and pada (1..4)
func NakshatraOf(lon float64) (catalog.Nakshatra, catalog.Body, int) {
	l := Normalize(lon)
	idx := int(math.Floor(l/catalog.NakshatraWidth)) % catalog.NakshatraCount
	nak := catalog.Nakshatra(idx)

	pada := int(math.Floor(math.Mod(l, catalog.NakshatraWidth)/catalog.PadaWidth)) + 1
	if pada > 4 {
		pada = 4
	}
	return nak, nak.Lord(), pada
}

// Decompose returns sign, nakshatra and pada in one value
func Decompose(lon float64) Placement {
	l := Normalize(lon)
	nak, lord, pada := NakshatraOf(l)
	sign := SignOf(l)
	return Placement{
		Longitude: l,
		Sign:      sign,
		Degree:    l - float64(sign)*catalog.SignWidth,
		Nakshatra: nak,
		Lord:      lord,
		Pada:      pada,
	}
}

// Separation is the shortest angular distance between a and b, in [0,180]
func Separation(a, b float64) float64 {
	d := math.Abs(Normalize(a) - Normalize(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// FormatDMS renders a longitude inside its sign as 12°34'56"
func FormatDMS(lon float64) string {
	deg := math.Mod(Normalize(lon), catalog.SignWidth)
	total := int(math.Round(deg * 3600))
	if total >= int(catalog.SignWidth)*3600 {
		total = int(catalog.SignWidth)*3600 - 1
	}
	return fmt.Sprintf("%d°%02d'%02d\"", total/3600, (total/60)%60, total%60)
}
