package events

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/vedicwatch/internal/sidereal"
)

// ErrInvalidWindow is returned for non-positive or oversized scan windows
var ErrInvalidWindow = errors.New("invalid scan window")

// MaxSteps bounds the number of samples one scan may take
const MaxSteps = 200_000

// Sampler resolves the position set at an instant
type Sampler interface {
	Positions(ctx context.Context, t time.Time) (sidereal.PositionSet, error)
}

// Progress receives the number of samples fed to detectors so far
type Progress interface {
	Update(current int)
	Finish()
}

// ProgressFactory starts a progress reporter for a scan of total samples
type ProgressFactory func(name string, total int) Progress

// Observer receives scan outcomes for metrics
type Observer interface {
	ObserveScan(elapsed time.Duration, steps int, err error)
	ObserveEvent(kind Kind)
}

// Window describes one scan request
type Window struct {
	Start       time.Time
	Days        float64
	StepMinutes int
	// Now is the reference for the Upcoming flag; Start when zero
	Now time.Time
}

// Steps returns the index of the last sample, floor(days*1440/step)
func (w Window) Steps() int {
	if w.StepMinutes <= 0 || w.Days <= 0 {
		return 0
	}
	return int(math.Floor(w.Days * 1440 / float64(w.StepMinutes)))
}

// At returns the instant of sample k
func (w Window) At(k int) time.Time {
	return w.Start.Add(time.Duration(k) * time.Duration(w.StepMinutes) * time.Minute)
}

func (w Window) validate() error {
	if w.Days <= 0 || math.IsNaN(w.Days) || math.IsInf(w.Days, 0) {
		return fmt.Errorf("%w: days must be positive, got %v", ErrInvalidWindow, w.Days)
	}
	if w.StepMinutes <= 0 {
		return fmt.Errorf("%w: step must be positive, got %d minutes", ErrInvalidWindow, w.StepMinutes)
	}
	if w.Steps() > MaxSteps {
		return fmt.Errorf("%w: %d steps exceeds limit %d", ErrInvalidWindow, w.Steps(), MaxSteps)
	}
	return nil
}

// Scanner steps a window at fixed granularity and feeds consecutive samples
// to detectors. Samples are resolved concurrently in chunks; each detector
// consumes its strictly ordered stream in its own goroutine.
type Scanner struct {
	sampler  Sampler
	workers  int
	chunk    int
	progress ProgressFactory
	observer Observer
}

// ScannerOption configures a Scanner
type ScannerOption func(*Scanner)

// WithWorkers bounds concurrent sample resolution
func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithChunkSize sets how many samples are resolved before detectors run
func WithChunkSize(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// WithProgress attaches a progress reporter
func WithProgress(f ProgressFactory) ScannerOption {
	return func(s *Scanner) { s.progress = f }
}

// WithObserver attaches a metrics observer
func WithObserver(o Observer) ScannerOption {
	return func(s *Scanner) { s.observer = o }
}

// NewScanner creates a scanner over sampler
func NewScanner(sampler Sampler, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		sampler: sampler,
		workers: runtime.GOMAXPROCS(0),
		chunk:   96,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan samples start + k*step for k = 0..floor(days*1440/step) and returns
// the detected events ordered by instant. Each call starts from fresh
// detector state and an empty seen-key set.
func (s *Scanner) Scan(ctx context.Context, start time.Time, windowDays float64, stepMinutes int, detectors ...Detector) ([]Event, error) {
	return s.ScanWindow(ctx, Window{Start: start, Days: windowDays, StepMinutes: stepMinutes}, detectors...)
}

// ScanWindow is Scan with an explicit Upcoming reference
func (s *Scanner) ScanWindow(ctx context.Context, w Window, detectors ...Detector) ([]Event, error) {
	began := time.Now()
	events, steps, err := s.scan(ctx, w, detectors)
	if s.observer != nil {
		s.observer.ObserveScan(time.Since(began), steps, err)
		for _, e := range events {
			s.observer.ObserveEvent(e.Kind)
		}
	}
	return events, err
}

type stream struct {
	detector Detector
	seen     map[string]struct{}
	events   []Event
}

func (st *stream) emit(e Event) {
	key := e.Key()
	if _, dup := st.seen[key]; dup {
		return
	}
	st.seen[key] = struct{}{}
	st.events = append(st.events, e)
}

func (st *stream) done() bool {
	c, ok := st.detector.(Completer)
	return ok && c.Done()
}

func (s *Scanner) scan(ctx context.Context, w Window, detectors []Detector) ([]Event, int, error) {
	if err := w.validate(); err != nil {
		return nil, 0, err
	}
	if len(detectors) == 0 {
		return nil, 0, nil
	}

	streams := make([]*stream, len(detectors))
	names := make([]string, len(detectors))
	for i, d := range detectors {
		d.Reset()
		streams[i] = &stream{detector: d, seen: make(map[string]struct{})}
		names[i] = d.Name()
	}

	last := w.Steps()
	total := last + 1

	var progress Progress
	if s.progress != nil {
		progress = s.progress("scan", total)
	}

	log.Debug().
		Time("start", w.Start).
		Float64("days", w.Days).
		Int("step_minutes", w.StepMinutes).
		Int("samples", total).
		Strs("detectors", names).
		Msg("Starting event scan")

	var (
		prev    sidereal.PositionSet
		hasPrev bool
		sampled int
	)

	for from := 0; from <= last; from += s.chunk {
		to := from + s.chunk - 1
		if to > last {
			to = last
		}

		samples, err := s.sample(ctx, w, from, to)
		if err != nil {
			return nil, sampled, err
		}
		sampled += len(samples)

		series := samples
		if hasPrev {
			series = append([]sidereal.PositionSet{prev}, samples...)
		}
		if err := s.observe(ctx, streams, series); err != nil {
			return nil, sampled, err
		}
		prev, hasPrev = samples[len(samples)-1], true

		if progress != nil {
			progress.Update(sampled)
		}
		if allDone(streams) {
			log.Debug().Int("samples", sampled).Msg("All detectors complete, stopping scan early")
			break
		}
	}
	if progress != nil {
		progress.Finish()
	}

	return merge(streams, w), sampled, nil
}

// sample resolves samples from..to inclusive
func (s *Scanner) sample(ctx context.Context, w Window, from, to int) ([]sidereal.PositionSet, error) {
	out := make([]sidereal.PositionSet, to-from+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for k := from; k <= to; k++ {
		k := k
		g.Go(func() error {
			ps, err := s.sampler.Positions(gctx, w.At(k))
			if err != nil {
				return fmt.Errorf("failed to sample step %d: %w", k, err)
			}
			out[k-from] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// observe feeds consecutive pairs of series to every unfinished detector
func (s *Scanner) observe(ctx context.Context, streams []*stream, series []sidereal.PositionSet) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range streams {
		st := st
		if st.done() {
			continue
		}
		g.Go(func() error {
			for i := 1; i < len(series); i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				st.detector.Observe(series[i-1], series[i], st.emit)
				if st.done() {
					return nil
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func allDone(streams []*stream) bool {
	for _, st := range streams {
		if !st.done() {
			return false
		}
	}
	return true
}

// merge orders events by instant and keeps the first of any repeated key
func merge(streams []*stream, w Window) []Event {
	var all []Event
	for _, st := range streams {
		all = append(all, st.events...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Instant.Before(all[j].Instant)
	})

	now := w.Now
	if now.IsZero() {
		now = w.Start
	}

	out := make([]Event, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, e := range all {
		key := e.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		d := e.Instant.Sub(now)
		e.Upcoming = d > 0 && d <= UpcomingHorizon
		out = append(out, e)
	}
	return out
}
