package ephemeris

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
)

// ErrEphemerisUnavailable is returned when an instant or body cannot be resolved
var ErrEphemerisUnavailable = errors.New("ephemeris unavailable")

// J2000 is the Julian day of 2000-01-01T12:00:00 TT
const J2000 = 2451545.0

// Raw is an unadjusted ecliptic longitude with its angular speed
type Raw struct {
	Longitude float64 `json:"longitude"` // tropical degrees [0,360)
	Speed     float64 `json:"speed"`     // degrees per day, negative when retrograde
}

// Adapter is the external ephemeris collaborator. Implementations must use a
// single sidereal correction mode (Lahiri) fixed at construction.
type Adapter interface {
	// RawPosition returns the apparent tropical position of body at t
	RawPosition(ctx context.Context, t time.Time, body catalog.Body) (Raw, error)

	// TruePosition returns the geometric position without aberration or nutation
	TruePosition(ctx context.Context, t time.Time, body catalog.Body) (Raw, error)

	// Ayanamsa returns the sidereal correction in degrees at t
	Ayanamsa(ctx context.Context, t time.Time) (float64, error)

	// Ascendant returns the tropical ascendant for an observer at lat/lon
	Ascendant(ctx context.Context, t time.Time, lat, lon float64) (float64, error)
}

// JulianDay converts an instant to a Julian day number (UT)
func JulianDay(t time.Time) float64 {
	return float64(t.UnixNano())/float64(24*time.Hour) + 2440587.5
}

// TimeFromJulian converts a Julian day number back to a UTC instant
func TimeFromJulian(jd float64) time.Time {
	days := jd - 2440587.5
	sec, frac := math.Modf(days * 86400)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// Normalize wraps an angle into [0,360)
func Normalize(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// wrap180 maps an angular difference into (-180,180]
func wrap180(deg float64) float64 {
	d := Normalize(deg)
	if d > 180 {
		d -= 360
	}
	return d
}

func centuries(jd float64) float64 {
	return (jd - J2000) / 36525.0
}

const rad = math.Pi / 180

func sinD(deg float64) float64 { return math.Sin(deg * rad) }
func cosD(deg float64) float64 { return math.Cos(deg * rad) }
func atan2D(y, x float64) float64 {
	return math.Atan2(y, x) / rad
}
