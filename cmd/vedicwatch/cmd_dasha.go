package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/dasha"
)

const dateLayout = "2006-01-02"

func (a *app) dashaCmd() *cobra.Command {
	var depth int
	var tree bool
	cmd := &cobra.Command{
		Use:   "dasha",
		Short: "Print the Vimshottari dasha periods",
		Long:  "Anchor the 120-year cycle on the Moon's nakshatra at --at and print the Mahadashas and the active chain down to --depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDasha(cmd.Context(), depth, tree)
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "Levels to build, 1 (Mahadasha) to 5 (Prana); 0 uses config")
	cmd.Flags().BoolVar(&tree, "tree", false, "Print the full nested tree")
	return cmd
}

func (a *app) runDasha(ctx context.Context, depth int, tree bool) error {
	t, err := a.instant()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	res, err := a.svc.Dasha(ctx, t, depth, tree)
	if err != nil {
		return err
	}
	if a.flags.json {
		return printJSON(a.out, res)
	}

	fmt.Fprintf(a.out, "Moon in %s (lord %s) at %s, nakshatra entered %s\n",
		res.Anchor.Nakshatra, res.Anchor.Lord, res.Instant.Format(timeLayout),
		res.Anchor.NakStartTime().Format(timeLayout))

	var current application.PeriodView
	if len(res.Chain) > 0 {
		current = res.Chain[0]
	}
	rows := make([][]string, 0, len(res.Mahadashas))
	for _, p := range res.Mahadashas {
		rows = append(rows, []string{
			p.Lord.String(),
			p.Start.Format(dateLayout),
			p.End.Format(dateLayout),
			fmt.Sprintf("%.2f", p.Years),
			marker(p.Lord == current.Lord && p.Start.Equal(current.Start)),
		})
	}
	printTable(a.out, "Mahadashas", []string{"Lord", "Start", "End", "Years", "Active"}, rows)

	chain := make([][]string, 0, len(res.Chain))
	for _, p := range res.Chain {
		chain = append(chain, []string{
			p.Name,
			p.Lord.String(),
			p.Start.Format(timeLayout),
			p.End.Format(timeLayout),
			relative(p.End, res.Instant),
		})
	}
	printTable(a.out, "Active periods", []string{"Level", "Lord", "Start", "End", "Ends"}, chain)

	b := res.Balance
	fmt.Fprintf(a.out, "%s Mahadasha: %.2f years elapsed, %.2f remaining (%.1f%%)\n",
		b.Lord, b.ElapsedYears, b.RemainingYears, b.Fraction*100)

	if tree {
		fmt.Fprintln(a.out)
		writeTree(a.out, res.Tree, 0)
	}
	return nil
}

// writeTree prints nested periods indented by level
func writeTree(w io.Writer, periods []dasha.Period, indent int) {
	pad := strings.Repeat("  ", indent)
	for _, p := range periods {
		fmt.Fprintf(w, "%s%s %s  %s .. %s\n", pad, p.LevelName(), p.Lord,
			p.StartTime().Format(dateLayout), p.EndTime().Format(dateLayout))
		writeTree(w, p.Children, indent+1)
	}
}
