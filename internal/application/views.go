package application

import (
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/chart"
	"github.com/sawpanic/vedicwatch/internal/dasha"
	"github.com/sawpanic/vedicwatch/internal/events"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// PositionView is a body position with its zodiacal decomposition
type PositionView struct {
	sidereal.Position
	DMS       string           `json:"dms"`
	Placement zodiac.Placement `json:"placement"`
}

// StrengthView is the Sarvashtakavarga of a chart
type StrengthView struct {
	LagnaSign catalog.Sign                   `json:"lagna_sign"`
	Bins      [chart.HouseCount]int          `json:"bins"`
	Total     int                            `json:"total"`
	Signs     [chart.HouseCount]catalog.Sign `json:"signs"` // sign of each house
}

// PeriodView is one dasha period without its children
type PeriodView struct {
	Lord  catalog.Body `json:"lord"`
	Level int          `json:"level"`
	Name  string       `json:"name"`
	Start time.Time    `json:"start"`
	End   time.Time    `json:"end"`
	Years float64      `json:"years"`
}

// DashaSummary is the active dasha chain at an instant
type DashaSummary struct {
	Nakshatra catalog.Nakshatra `json:"nakshatra"`
	Lord      catalog.Body      `json:"lord"`
	Chain     []PeriodView      `json:"chain"`
	Balance   dasha.Balance     `json:"balance"`
}

// Snapshot is everything the surfaces show for one instant and site
type Snapshot struct {
	Instant   time.Time                         `json:"instant"`
	Site      Site                              `json:"site"`
	Node      string                            `json:"node"`
	Ayanamsa  float64                           `json:"ayanamsa"`
	Lagna     zodiac.Placement                  `json:"lagna"`
	Moon      zodiac.Placement                  `json:"moon"`
	Positions []PositionView                    `json:"positions"`
	Groups    [catalog.SignCount][]catalog.Body `json:"groups"`
	Charts    []chart.Chart                     `json:"charts"`
	Strength  StrengthView                      `json:"strength"`
	Aspects   []events.SignAspect               `json:"aspects"`
	Dasha     *DashaSummary                     `json:"dasha,omitempty"`
}

// Chart returns the chart for v, if the snapshot carries it
func (s *Snapshot) Chart(v zodiac.Varga) (chart.Chart, bool) {
	for _, c := range s.Charts {
		if c.Varga == v {
			return c, true
		}
	}
	return chart.Chart{}, false
}

// restore fills the fields JSON does not carry
func (s *Snapshot) restore() {
	for i := range s.Charts {
		if v, err := zodiac.ParseVarga(s.Charts[i].VargaName); err == nil {
			s.Charts[i].Varga = v
		}
	}
}

// ViewPositions decomposes every body of ps in catalog order
func ViewPositions(ps sidereal.PositionSet) []PositionView {
	all := ps.All()
	out := make([]PositionView, len(all))
	for i, p := range all {
		out[i] = PositionView{
			Position:  p,
			DMS:       zodiac.FormatDMS(p.Longitude),
			Placement: p.Placement(),
		}
	}
	return out
}

func viewStrength(ps sidereal.PositionSet, lagna float64) StrengthView {
	bins := chart.Strength(ps, lagna)
	v := StrengthView{
		LagnaSign: zodiac.SignOf(lagna),
		Bins:      bins,
		Total:     chart.Total(bins),
	}
	for h := 1; h <= chart.HouseCount; h++ {
		v.Signs[h-1] = chart.SignInHouse(v.LagnaSign, h)
	}
	return v
}

func viewPeriod(p dasha.Period) PeriodView {
	return PeriodView{
		Lord:  p.Lord,
		Level: p.Level,
		Name:  p.LevelName(),
		Start: p.StartTime(),
		End:   p.EndTime(),
		Years: p.Years(),
	}
}

func viewPeriods(ps []dasha.Period) []PeriodView {
	out := make([]PeriodView, len(ps))
	for i, p := range ps {
		out[i] = viewPeriod(p)
	}
	return out
}
