package http

import (
	"time"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/chart"
	"github.com/sawpanic/vedicwatch/internal/persistence"
)

// PositionsResponse is the body of GET /v1/positions
type PositionsResponse struct {
	Instant   time.Time                         `json:"instant"`
	Ayanamsa  float64                           `json:"ayanamsa"`
	Positions []application.PositionView        `json:"positions"`
	Groups    [catalog.SignCount][]catalog.Body `json:"groups"`
}

// HouseView is one house of a rendered chart
type HouseView struct {
	House  int            `json:"house"`
	Sign   catalog.Sign   `json:"sign"`
	Number int            `json:"sign_number"`
	Bodies []catalog.Body `json:"bodies"`
	Labels []string       `json:"labels"`
}

// ChartResponse is the body of GET /v1/chart/{varga}
type ChartResponse struct {
	Instant time.Time        `json:"instant"`
	Site    application.Site `json:"site"`
	Chart   chart.Chart      `json:"chart"`
	Houses  []HouseView      `json:"houses"`
}

// StrengthResponse is the body of GET /v1/strength
type StrengthResponse struct {
	Instant  time.Time                `json:"instant"`
	Site     application.Site         `json:"site"`
	Strength application.StrengthView `json:"strength"`
}

// JournalResponse is the body of GET /v1/events/journal
type JournalResponse struct {
	From   time.Time                 `json:"from"`
	To     time.Time                 `json:"to"`
	Kind   string                    `json:"kind,omitempty"`
	Events []persistence.EventRecord `json:"events"`
}

// houses renders the house stacks of c, with retrograde markers
func houses(c chart.Chart) []HouseView {
	out := make([]HouseView, chart.HouseCount)
	for h := 1; h <= chart.HouseCount; h++ {
		sign := c.SignInHouse(h)
		out[h-1] = HouseView{House: h, Sign: sign, Number: sign.Number(), Bodies: []catalog.Body{}, Labels: []string{}}
	}
	for _, p := range c.Placements {
		hv := &out[p.House-1]
		hv.Bodies = append(hv.Bodies, p.Body)
		hv.Labels = append(hv.Labels, p.Label())
	}
	return out
}
