package dasha

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
)

var (
	// ErrNoActivePeriod is returned when an instant lies outside the anchored cycle
	ErrNoActivePeriod = errors.New("no active dasha period")
	// ErrInvalidDepth is returned for depths outside 1..5
	ErrInvalidDepth = errors.New("invalid dasha depth")
)

// snapDays absorbs the rounding of a time.Time round trip through Julian days
const snapDays = 1e-8

// Period is one node of the dasha tree. Start and End are Julian days; the
// children, when present, tile [Start, End) in lordship order beginning with
// Lord.
type Period struct {
	Lord     catalog.Body
	Level    int
	Start    float64
	End      float64
	Children []Period
}

// Days returns the period length in days
func (p Period) Days() float64 {
	return p.End - p.Start
}

// Years returns the period length in sidereal years
func (p Period) Years() float64 {
	return p.Days() / catalog.SiderealYearDays
}

// StartTime returns the period start as a UTC instant
func (p Period) StartTime() time.Time {
	return ephemeris.TimeFromJulian(p.Start)
}

// EndTime returns the period end as a UTC instant
func (p Period) EndTime() time.Time {
	return ephemeris.TimeFromJulian(p.End)
}

// Contains reports start <= jd < end
func (p Period) Contains(jd float64) bool {
	return jd >= p.Start && jd < p.End
}

// LevelName names the nesting level
func (p Period) LevelName() string {
	return catalog.DashaLevelName(p.Level)
}

func (p Period) String() string {
	return fmt.Sprintf("%s %s %s..%s", p.LevelName(), p.Lord,
		p.StartTime().Format("2006-01-02"), p.EndTime().Format("2006-01-02"))
}

// MarshalJSON implements json.Marshaler
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lord     catalog.Body `json:"lord"`
		Level    int          `json:"level"`
		Name     string       `json:"name"`
		Start    time.Time    `json:"start"`
		End      time.Time    `json:"end"`
		StartJD  float64      `json:"start_jd"`
		EndJD    float64      `json:"end_jd"`
		Years    float64      `json:"years"`
		Children []Period     `json:"children,omitempty"`
	}{p.Lord, p.Level, p.LevelName(), p.StartTime(), p.EndTime(), p.Start, p.End, p.Years(), p.Children})
}

// Current returns the period among siblings containing jd
func Current(periods []Period, jd float64) (Period, error) {
	if len(periods) == 0 {
		return Period{}, ErrNoActivePeriod
	}
	if first := periods[0].Start; jd < first && first-jd <= snapDays {
		jd = first
	}
	for _, p := range periods {
		if p.Contains(jd) {
			return p, nil
		}
	}
	return Period{}, fmt.Errorf("%w: jd %.6f outside %.6f..%.6f", ErrNoActivePeriod,
		jd, periods[0].Start, periods[len(periods)-1].End)
}

// Chain descends from periods to the deepest level, returning the active
// period at each level
func Chain(periods []Period, jd float64) ([]Period, error) {
	var chain []Period
	level := periods
	for len(level) > 0 {
		p, err := Current(level, jd)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
		level = p.Children
	}
	if len(chain) == 0 {
		return nil, ErrNoActivePeriod
	}
	return chain, nil
}
