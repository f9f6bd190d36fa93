package events

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// SignAspect is a whole-sign relation between two bodies at one instant
type SignAspect struct {
	Kind Kind         `json:"kind"`
	A    catalog.Body `json:"a"`
	B    catalog.Body `json:"b"`
	Sign catalog.Sign `json:"sign"` // sign of A
}

// SignAspects lists pairs sharing a sign (conjunction) or in opposite signs
// (opposition) in ps. Pairs follow catalog order.
func SignAspects(ps sidereal.PositionSet) []SignAspect {
	all := ps.All()
	var out []SignAspect
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			sa := zodiac.SignOf(all[i].Longitude)
			sb := zodiac.SignOf(all[j].Longitude)

			switch {
			case sa == sb:
				out = append(out, SignAspect{Kind: KindConjunction, A: all[i].Body, B: all[j].Body, Sign: sa})
			case sa.Opposite() == sb:
				out = append(out, SignAspect{Kind: KindOpposition, A: all[i].Body, B: all[j].Body, Sign: sa})
			}
		}
	}
	return out
}

// Span is a start/end pair; a zero field was not found in the window
type Span struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Complete reports whether both ends were found
func (s Span) Complete() bool {
	return !s.Start.IsZero() && !s.End.IsZero()
}

// PhaseWindows holds the next Amavasya and Purnima windows
type PhaseWindows struct {
	Amavasya Span `json:"amavasya"`
	Purnima  Span `json:"purnima"`
}

// Defaults matching the usual lookahead for each scan
const (
	PhaseScanDays   = 30
	PhaseScanStep   = 15
	AspectScanDays  = 10
	AspectScanStep  = 30
	IngressScanDays = 10
	IngressScanStep = 30
)

// LunarPhaseWindows scans forward from start for the next Amavasya and
// Purnima windows, stopping as soon as both are complete.
func LunarPhaseWindows(ctx context.Context, s *Scanner, start time.Time, days float64, stepMinutes int) (PhaseWindows, error) {
	found, err := s.Scan(ctx, start, days, stepMinutes, NewLunarPhaseDetector())
	if err != nil {
		return PhaseWindows{}, fmt.Errorf("failed to scan lunar phases: %w", err)
	}

	return PhaseWindowsFrom(found), nil
}

// PhaseWindowsFrom folds lunar phase events into their windows. A later
// boundary of the same kind overwrites an earlier one.
func PhaseWindowsFrom(found []Event) PhaseWindows {
	var pw PhaseWindows
	for _, e := range found {
		if e.Kind != KindLunarPhase {
			continue
		}
		switch e.Target {
		case AmavasyaStart:
			pw.Amavasya.Start = e.Instant
		case AmavasyaEnd:
			pw.Amavasya.End = e.Instant
		case PurnimaStart:
			pw.Purnima.Start = e.Instant
		case PurnimaEnd:
			pw.Purnima.End = e.Instant
		}
	}
	return pw
}
