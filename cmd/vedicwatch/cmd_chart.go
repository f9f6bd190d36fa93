package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/chart"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// chartOutput is the --json form of the chart command
type chartOutput struct {
	Instant  time.Time                `json:"instant"`
	Site     application.Site         `json:"site"`
	Chart    chart.Chart              `json:"chart"`
	Strength application.StrengthView `json:"strength"`
}

func (a *app) chartCmd() *cobra.Command {
	var vargaName string
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Print a whole-sign house chart with Sarvashtakavarga",
		Long:  "Place every body into houses counted from the lagna sign for the rashi (d1), navamsha (d9) or dashamsha (d10) chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			varga, err := zodiac.ParseVarga(vargaName)
			if err != nil {
				return fmt.Errorf("%w: %v", application.ErrInvalidRequest, err)
			}
			return a.runChart(cmd.Context(), varga)
		},
	}
	cmd.Flags().StringVar(&vargaName, "varga", "d1", "Divisional chart (d1|d9|d10)")
	return cmd
}

func (a *app) runChart(ctx context.Context, varga zodiac.Varga) error {
	t, err := a.instant()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	snap, err := a.svc.Snapshot(ctx, t, a.svc.Settings().Site)
	if err != nil {
		return fmt.Errorf("failed to build chart: %w", err)
	}
	c, ok := snap.Chart(varga)
	if !ok {
		return fmt.Errorf("%w: chart %s not available", application.ErrInvalidRequest, varga)
	}

	if a.flags.json {
		return printJSON(a.out, chartOutput{Instant: snap.Instant, Site: snap.Site, Chart: c, Strength: snap.Strength})
	}

	labels := make([][]string, chart.HouseCount)
	for _, p := range c.Placements {
		labels[p.House-1] = append(labels[p.House-1], p.Label())
	}

	rows := make([][]string, 0, chart.HouseCount)
	for h := 1; h <= chart.HouseCount; h++ {
		sign := c.SignInHouse(h)
		rows = append(rows, []string{
			fmt.Sprintf("%d", h),
			sign.String(),
			fmt.Sprintf("%d", sign.Number()),
			strings.Join(labels[h-1], " "),
		})
	}
	title := fmt.Sprintf("%s chart (%s) at %s for %s, lagna %s",
		varga.Name(), varga, snap.Instant.Format(timeLayout), siteText(snap.Site), c.LagnaSign)
	printTable(a.out, title, []string{"House", "Sign", "#", "Bodies"}, rows)

	strength := make([][]string, 0, chart.HouseCount)
	for i, bindus := range snap.Strength.Bins {
		strength = append(strength, []string{
			fmt.Sprintf("%d", i+1),
			snap.Strength.Signs[i].String(),
			fmt.Sprintf("%d", bindus),
		})
	}
	printTable(a.out, fmt.Sprintf("Sarvashtakavarga (total %d)", snap.Strength.Total),
		[]string{"House", "Sign", "Bindus"}, strength)
	return nil
}
