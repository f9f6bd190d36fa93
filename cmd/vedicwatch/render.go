package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

const timeLayout = "2006-01-02 15:04 MST"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// printTable renders rows under headers with an optional bold title
func printTable(w io.Writer, title string, headers []string, rows [][]string) {
	if title != "" {
		fmt.Fprintln(w, titleStyle.Render(title))
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

// placementText renders a placement as Sign 12°34'56" Nakshatra-pada
func placementText(p zodiac.Placement) string {
	return fmt.Sprintf("%s %s %s-%d", p.Sign, zodiac.FormatDMS(p.Longitude), p.Nakshatra, p.Pada)
}

func siteText(s application.Site) string {
	return fmt.Sprintf("%s (%.4f, %.4f)", s.Name, s.Lat, s.Lon)
}

// relative renders t against ref as "3 hours from now" or "2 days ago"
func relative(t, ref time.Time) string {
	return humanize.RelTime(t, ref, "ago", "from now")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
