package zodiac

import (
	"fmt"
	"math"
	"strings"

	"github.com/sawpanic/vedicwatch/internal/catalog"
)

// Varga identifies a divisional chart
type Varga int

const (
	D1  Varga = 1
	D9  Varga = 9
	D10 Varga = 10
)

func (v Varga) String() string {
	return fmt.Sprintf("d%d", int(v))
}

// Name returns the traditional name of the chart
func (v Varga) Name() string {
	switch v {
	case D1:
		return "Rashi"
	case D9:
		return "Navamsha"
	case D10:
		return "Dashamsha"
	default:
		return ""
	}
}

// ParseVarga accepts d1, d9, d10 (case-insensitive)
func ParseVarga(s string) (Varga, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "d1", "rashi":
		return D1, nil
	case "d9", "navamsha":
		return D9, nil
	case "d10", "dashamsha":
		return D10, nil
	default:
		return 0, fmt.Errorf("unknown varga %q", s)
	}
}

// Transform maps a longitude into the chart. D1 is the identity; the
// harmonic charts return sign*30.
func (v Varga) Transform(lon float64) float64 {
	switch v {
	case D9:
		return Varga9(lon)
	case D10:
		return Varga10(lon)
	default:
		return Normalize(lon)
	}
}

// Varga9 returns the Navamsha placement as a multiple of 30. Movable signs
// count from themselves, fixed signs from their ninth and dual signs from
// their fifth.
func Varga9(lon float64) float64 {
	l := Normalize(lon)
	rashi := int(math.Floor(l / catalog.SignWidth))
	part := int(math.Floor(math.Mod(l, catalog.SignWidth) / (catalog.SignWidth / 9)))
	if part > 8 {
		part = 8
	}

	var sign int
	switch catalog.Sign(rashi).Modality() {
	case catalog.Movable:
		sign = rashi + part
	case catalog.Fixed:
		sign = rashi + 8 + part
	default:
		sign = rashi + 4 + part
	}
	return float64(sign%catalog.SignCount) * catalog.SignWidth
}

// Varga10 returns the Dashamsha placement as a multiple of 30. Even ordinals
// count forward from the sign, odd ordinals from the ninth.
func Varga10(lon float64) float64 {
	l := Normalize(lon)
	rashi := int(math.Floor(l / catalog.SignWidth))
	part := int(math.Floor(math.Mod(l, catalog.SignWidth) / 3))
	if part > 9 {
		part = 9
	}

	var sign int
	if rashi%2 == 0 {
		sign = rashi + part
	} else {
		sign = rashi + 9 - part
	}
	return float64(sign%catalog.SignCount) * catalog.SignWidth
}
