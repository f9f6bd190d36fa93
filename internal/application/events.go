package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/events"
	vlog "github.com/sawpanic/vedicwatch/internal/log"
)

// Scan kinds accepted by Events
const (
	ScanAspects = "aspects"
	ScanPhases  = "phases"
	ScanIngress = "ingress"
	ScanAll     = "all"
)

// ScanKinds lists the accepted scan kinds in the order "all" runs them
func ScanKinds() []string {
	return []string{ScanPhases, ScanAspects, ScanIngress}
}

// EventsRequest describes one scan. Zero Days or StepMinutes take the
// configured default for the kind; a zero Start means now.
type EventsRequest struct {
	Kind        string
	Start       time.Time
	Days        float64
	StepMinutes int
	Record      bool
}

// EventsResult holds the merged events of every scan that ran
type EventsResult struct {
	Kind     string               `json:"kind"`
	Start    time.Time            `json:"start"`
	Events   []events.Event       `json:"events"`
	Phases   *events.PhaseWindows `json:"phases,omitempty"`
	Recorded int64                `json:"recorded"`
}

// Upcoming returns the events flagged as falling within a day of Start
func (r *EventsResult) Upcoming() []events.Event {
	var out []events.Event
	for _, e := range r.Events {
		if e.Upcoming {
			out = append(out, e)
		}
	}
	return out
}

// Events scans forward for the requested kind. "all" runs the phase, aspect
// and ingress scans in turn, each over its own default window unless the
// request overrides it.
func (s *Service) Events(ctx context.Context, req EventsRequest) (*EventsResult, error) {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = ScanAll
	}

	var kinds []string
	switch kind {
	case ScanAll:
		kinds = ScanKinds()
	case ScanAspects, ScanPhases, ScanIngress:
		kinds = []string{kind}
	default:
		return nil, fmt.Errorf("%w: unknown event kind %q (want %s or %s)", ErrInvalidRequest, req.Kind, strings.Join(ScanKinds(), ", "), ScanAll)
	}

	// the start doubles as the reference for upcoming flags
	start := req.Start
	if start.IsZero() {
		start = s.Now()
	}
	start = start.UTC()
	res := &EventsResult{Kind: kind, Start: start, Events: []events.Event{}}

	var steps *vlog.StepLogger
	if len(kinds) > 1 {
		steps = vlog.NewStepLogger(kinds)
	}
	settings := s.Settings()

	for _, k := range kinds {
		if steps != nil {
			steps.StartStep(k)
		}
		w := s.window(settings, k, start, req)
		found, err := s.scanner.ScanWindow(ctx, w, detectorsFor(k, start)...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", k, err)
		}
		if k == ScanPhases {
			pw := events.PhaseWindowsFrom(found)
			res.Phases = &pw
		}
		res.Events = append(res.Events, found...)
	}
	if steps != nil {
		steps.Finish()
	}
	sort.SliceStable(res.Events, func(i, j int) bool {
		return res.Events[i].Instant.Before(res.Events[j].Instant)
	})

	if req.Record {
		n, err := s.record(ctx, res.Start, res.Events)
		if err != nil {
			return nil, err
		}
		res.Recorded = n
	}

	log.Info().
		Str("kind", kind).
		Time("start", res.Start).
		Int("events", len(res.Events)).
		Int("upcoming", len(res.Upcoming())).
		Msg("Event scan completed")
	return res, nil
}

func (s *Service) window(settings Settings, kind string, start time.Time, req EventsRequest) events.Window {
	var d ScanDefault
	switch kind {
	case ScanPhases:
		d = settings.Phase
	case ScanAspects:
		d = settings.Aspect
	case ScanIngress:
		d = settings.Ingress
	}
	if req.Days > 0 {
		d.Days = req.Days
	}
	if req.StepMinutes > 0 {
		d.StepMinutes = req.StepMinutes
	}
	return events.Window{Start: start, Days: d.Days, StepMinutes: d.StepMinutes, Now: start}
}

// detectorsFor returns fresh detectors for one scan kind. Ingress only
// reports changes strictly after the scan start.
func detectorsFor(kind string, start time.Time) []events.Detector {
	switch kind {
	case ScanPhases:
		return []events.Detector{events.NewLunarPhaseDetector()}
	case ScanAspects:
		return []events.Detector{events.NewAspectDetector()}
	case ScanIngress:
		return []events.Detector{events.NewIngressDetector(events.ForBodies(catalog.FastBodies()...), events.After(start))}
	default:
		return nil
	}
}

func (s *Service) record(ctx context.Context, start time.Time, found []events.Event) (int64, error) {
	if !s.journal.Enabled() {
		log.Warn().Int("events", len(found)).Msg("Database journal disabled, events not recorded")
		return 0, nil
	}
	n, err := s.journal.RecordScan(ctx, start, found)
	if err != nil {
		return 0, fmt.Errorf("failed to record events: %w", err)
	}
	return n, nil
}
