package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/events"
)

func (a *app) eventsCmd() *cobra.Command {
	var req application.EventsRequest
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Scan ahead for lunar phases, aspects and ingresses",
		Long: fmt.Sprintf(`Scan a window starting at --at for threshold crossings.

Kinds: %s or %s. Days and step default per kind from config
(phases 30 days at 15 minutes, aspects and ingress 10 days at 30 minutes).`,
			strings.Join(application.ScanKinds(), ", "), application.ScanAll),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEvents(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&req.Kind, "kind", application.ScanAll, "Event kind (phases|aspects|ingress|all)")
	cmd.Flags().Float64Var(&req.Days, "days", 0, "Days to scan (0 uses the per-kind default)")
	cmd.Flags().IntVar(&req.StepMinutes, "step", 0, "Sampling step in minutes (0 uses the per-kind default)")
	cmd.Flags().BoolVar(&req.Record, "record", false, "Write the events to the database journal")
	return cmd
}

func (a *app) runEvents(ctx context.Context, req application.EventsRequest) error {
	start, err := a.instant()
	if err != nil {
		return err
	}
	req.Start = start

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	res, err := a.svc.Events(ctx, req)
	if err != nil {
		return err
	}
	if a.flags.json {
		return printJSON(a.out, res)
	}

	if res.Phases != nil {
		printTable(a.out, "Lunar phases", []string{"Phase", "Start", "End"}, [][]string{
			spanRow("Amavasya", res.Phases.Amavasya, res.Start),
			spanRow("Purnima", res.Phases.Purnima, res.Start),
		})
	}

	rows := make([][]string, 0, len(res.Events))
	for _, e := range res.Events {
		rows = append(rows, []string{
			e.Instant.Format(timeLayout),
			relative(e.Instant, res.Start),
			string(e.Kind),
			participants(e),
			transition(e),
			marker(e.Upcoming),
		})
	}
	title := fmt.Sprintf("%d %s events from %s", len(res.Events), res.Kind, res.Start.Format(timeLayout))
	printTable(a.out, title, []string{"Instant", "When", "Kind", "Bodies", "Detail", "Soon"}, rows)

	if req.Record {
		fmt.Fprintf(a.out, "Recorded %d new events\n", res.Recorded)
	}
	return nil
}

func spanRow(name string, s events.Span, ref time.Time) []string {
	row := []string{name, "-", "-"}
	if !s.Start.IsZero() {
		row[1] = fmt.Sprintf("%s (%s)", s.Start.Format(timeLayout), relative(s.Start, ref))
	}
	if !s.End.IsZero() {
		row[2] = s.End.Format(timeLayout)
	}
	return row
}

func participants(e events.Event) string {
	names := make([]string, len(e.Participants))
	for i, b := range e.Participants {
		names[i] = b.String()
	}
	return strings.Join(names, " ")
}

func transition(e events.Event) string {
	switch {
	case e.From != "" || e.To != "":
		return fmt.Sprintf("%s -> %s", e.From, e.To)
	default:
		return e.Target
	}
}

func marker(upcoming bool) string {
	if upcoming {
		return "*"
	}
	return ""
}
