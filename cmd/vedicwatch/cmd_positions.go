package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/events"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// positionsOutput is the --json form of the positions command
type positionsOutput struct {
	Instant   time.Time                  `json:"instant"`
	Site      application.Site           `json:"site"`
	Node      string                     `json:"node"`
	Ayanamsa  float64                    `json:"ayanamsa"`
	Lagna     zodiac.Placement           `json:"lagna"`
	Moon      zodiac.Placement           `json:"moon"`
	Positions []application.PositionView `json:"positions"`
	Aspects   []events.SignAspect        `json:"aspects"`
}

func (a *app) positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Print sidereal positions, lagna and moon",
		Long:  "Resolve every body at --at for the observer and print sign, degree, nakshatra, pada and motion",
		Args:  cobra.NoArgs,
		RunE:  a.runPositions,
	}
}

func (a *app) runPositions(cmd *cobra.Command, args []string) error {
	t, err := a.instant()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	snap, err := a.svc.Snapshot(ctx, t, a.svc.Settings().Site)
	if err != nil {
		return fmt.Errorf("failed to resolve positions: %w", err)
	}

	if a.flags.json {
		return printJSON(a.out, positionsOutput{
			Instant:   snap.Instant,
			Site:      snap.Site,
			Node:      snap.Node,
			Ayanamsa:  snap.Ayanamsa,
			Lagna:     snap.Lagna,
			Moon:      snap.Moon,
			Positions: snap.Positions,
			Aspects:   snap.Aspects,
		})
	}

	rows := make([][]string, 0, len(snap.Positions))
	for _, p := range snap.Positions {
		rows = append(rows, []string{
			p.Body.String(),
			p.Body.Hindi(),
			fmt.Sprintf("%.4f", p.Longitude),
			p.Placement.Sign.String(),
			p.DMS,
			p.Placement.Nakshatra.String(),
			fmt.Sprintf("%d", p.Placement.Pada),
			p.Placement.Lord.String(),
			fmt.Sprintf("%+.4f", p.Speed),
			yesNo(p.Retrograde),
		})
	}
	title := fmt.Sprintf("Sidereal positions at %s for %s (Lahiri %.4f°, %s node)",
		snap.Instant.Format(timeLayout), siteText(snap.Site), snap.Ayanamsa, snap.Node)
	printTable(a.out, title,
		[]string{"Body", "", "Longitude", "Sign", "Degree", "Nakshatra", "Pada", "Lord", "Speed", "Retro"}, rows)

	fmt.Fprintf(a.out, "Lagna: %s\n", placementText(snap.Lagna))
	fmt.Fprintf(a.out, "Moon:  %s (lord %s)\n", placementText(snap.Moon), snap.Moon.Lord)

	if len(snap.Aspects) > 0 {
		aspects := make([][]string, 0, len(snap.Aspects))
		for _, asp := range snap.Aspects {
			aspects = append(aspects, []string{string(asp.Kind), asp.A.String(), asp.B.String(), asp.Sign.String()})
		}
		printTable(a.out, "Sign aspects", []string{"Kind", "A", "B", "Sign of A"}, aspects)
	}
	return nil
}
