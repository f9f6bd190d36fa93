package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/cache"
	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/chart"
	"github.com/sawpanic/vedicwatch/internal/dasha"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
	"github.com/sawpanic/vedicwatch/internal/events"
	"github.com/sawpanic/vedicwatch/internal/infrastructure/db"
	"github.com/sawpanic/vedicwatch/internal/persistence"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// snapshotVargas are the charts carried by every snapshot
var snapshotVargas = []zodiac.Varga{zodiac.D1, zodiac.D9, zodiac.D10}

// Service is the single entry point of the outer surfaces into the core
type Service struct {
	resolver *sidereal.Resolver
	scanner  *events.Scanner
	dashas   *dasha.Engine
	cache    cache.Cache
	journal  *db.Journal
	settings atomic.Pointer[Settings]
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithCache stores snapshots in c
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithJournal records scans and dasha anchors through j
func WithJournal(j *db.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithClock replaces time.Now as the "now" reference
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service over an existing resolver, scanner and engine
func NewService(resolver *sidereal.Resolver, scanner *events.Scanner, dashas *dasha.Engine, settings Settings, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		scanner:  scanner,
		dashas:   dashas,
		cache:    cache.Noop{},
		now:      time.Now,
	}
	s.settings.Store(&settings)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the active settings
func (s *Service) Settings() Settings {
	return *s.settings.Load()
}

// UpdateSettings swaps the active settings. Requests in flight keep the
// settings they started with.
func (s *Service) UpdateSettings(next Settings) {
	prev := s.settings.Swap(&next)
	log.Info().
		Str("site", next.Site.Name).
		Str("previous_site", prev.Site.Name).
		Int("dasha_depth", next.DashaDepth).
		Dur("cache_ttl", next.CacheTTL).
		Msg("Settings reloaded")
}

// Now returns the current instant in UTC
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Adapter exposes the ephemeris adapter for the passthrough endpoints
func (s *Service) Adapter() ephemeris.Adapter {
	return s.resolver.Adapter()
}

// CacheBackend names the active snapshot cache
func (s *Service) CacheBackend() string {
	return s.cache.Backend()
}

// JournalHealth reports the journal database state
func (s *Service) JournalHealth(ctx context.Context) persistence.HealthCheck {
	return s.journal.Health(ctx)
}

// JournalStatistics reports pool usage and the events journaled in the
// last 24 hours
func (s *Service) JournalStatistics(ctx context.Context) map[string]interface{} {
	return s.journal.Statistics(ctx)
}

// JournalHistory lists journaled events inside tr. An empty kind matches
// every event kind.
func (s *Service) JournalHistory(ctx context.Context, tr persistence.TimeRange, kind string, limit int) ([]persistence.EventRecord, error) {
	if tr.From.IsZero() || tr.To.IsZero() || tr.To.Before(tr.From) {
		return nil, fmt.Errorf("%w: history range must satisfy from <= to", ErrInvalidRequest)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidRequest, limit)
	}
	if limit == 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	tr = persistence.TimeRange{From: tr.From.UTC(), To: tr.To.UTC()}
	return s.journal.History(ctx, tr, strings.ToLower(strings.TrimSpace(kind)), limit)
}

// LastAnchor returns the dasha anchor journaled for at, or the most recent
// one when at is zero
func (s *Service) LastAnchor(ctx context.Context, at time.Time) (*persistence.DashaAnchorRecord, error) {
	rec, err := s.journal.Anchor(ctx, at)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoAnchor
	}
	return rec, nil
}

// Close releases the cache and journal connections
func (s *Service) Close() error {
	return errors.Join(cache.Close(s.cache), s.journal.Close())
}

// Positions resolves the sidereal position set at t
func (s *Service) Positions(ctx context.Context, t time.Time) (sidereal.PositionSet, error) {
	return s.resolver.Positions(ctx, t)
}

// Lagna resolves the sidereal ascendant for site at t
func (s *Service) Lagna(ctx context.Context, t time.Time, site Site) (float64, error) {
	if err := site.Validate(); err != nil {
		return 0, err
	}
	return s.resolver.Lagna(ctx, t, site.Lat, site.Lon)
}

func (s *Service) resolve(ctx context.Context, t time.Time, site Site) (sidereal.PositionSet, float64, error) {
	if err := site.Validate(); err != nil {
		return sidereal.PositionSet{}, 0, err
	}
	ps, err := s.resolver.Positions(ctx, t)
	if err != nil {
		return sidereal.PositionSet{}, 0, err
	}
	lagna, err := s.resolver.Lagna(ctx, t, site.Lat, site.Lon)
	if err != nil {
		return sidereal.PositionSet{}, 0, err
	}
	return ps, lagna, nil
}

// Chart builds the whole-sign chart of varga for site at t
func (s *Service) Chart(ctx context.Context, t time.Time, site Site, varga zodiac.Varga) (chart.Chart, error) {
	ps, lagna, err := s.resolve(ctx, t, site)
	if err != nil {
		return chart.Chart{}, err
	}
	return chart.New(ps, lagna, varga), nil
}

// Strength computes the Sarvashtakavarga for site at t
func (s *Service) Strength(ctx context.Context, t time.Time, site Site) (StrengthView, error) {
	ps, lagna, err := s.resolve(ctx, t, site)
	if err != nil {
		return StrengthView{}, err
	}
	return viewStrength(ps, lagna), nil
}

// Snapshot assembles positions, charts, strength, sign aspects and the
// active dasha chain for site at t. Results are cached per exact instant.
func (s *Service) Snapshot(ctx context.Context, t time.Time, site Site) (*Snapshot, error) {
	settings := s.Settings()
	key := cache.SnapshotKey(t, site.Lat, site.Lon, settings.Node)

	if snap, ok := s.cachedSnapshot(ctx, key); ok {
		return snap, nil
	}

	ps, lagna, err := s.resolve(ctx, t, site)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Instant:   t.UTC(),
		Site:      site,
		Node:      settings.Node,
		Ayanamsa:  ps.Ayanamsa(),
		Lagna:     zodiac.Decompose(lagna),
		Moon:      zodiac.Decompose(ps.Longitude(catalog.Moon)),
		Positions: ViewPositions(ps),
		Groups:    ps.Groups(),
		Strength:  viewStrength(ps, lagna),
		Aspects:   events.SignAspects(ps),
	}
	for _, v := range snapshotVargas {
		snap.Charts = append(snap.Charts, chart.New(ps, lagna, v))
	}

	summary, err := s.dashaSummary(ctx, t, settings.DashaDepth)
	if err != nil {
		log.Warn().Err(err).Time("at", t).Msg("Snapshot without dasha chain")
	} else {
		snap.Dasha = summary
	}

	s.storeSnapshot(ctx, key, snap, settings.CacheTTL)
	return snap, nil
}

func (s *Service) cachedSnapshot(ctx context.Context, key string) (*Snapshot, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Snapshot cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cached snapshot")
		return nil, false
	}
	snap.restore()
	return &snap, true
}

func (s *Service) storeSnapshot(ctx context.Context, key string, snap *Snapshot, ttl time.Duration) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode snapshot for cache")
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Snapshot cache write failed")
	}
}

func (s *Service) dashaSummary(ctx context.Context, t time.Time, depth int) (*DashaSummary, error) {
	tree, err := s.dashas.Tree(ctx, t, depth)
	if err != nil {
		return nil, err
	}
	chain, err := dasha.CurrentChain(tree, t)
	if err != nil {
		return nil, err
	}
	balance, err := dasha.BalanceAt(tree, t)
	if err != nil {
		return nil, err
	}
	return &DashaSummary{
		Nakshatra: tree.Anchor.Nakshatra,
		Lord:      tree.Anchor.Lord,
		Chain:     viewPeriods(chain),
		Balance:   balance,
	}, nil
}

// DashaResult is a dasha tree with the periods active at its instant
type DashaResult struct {
	Instant    time.Time      `json:"instant"`
	Anchor     dasha.Anchor   `json:"anchor"`
	Depth      int            `json:"depth"`
	Mahadashas []PeriodView   `json:"mahadashas"`
	Chain      []PeriodView   `json:"chain"`
	Balance    dasha.Balance  `json:"balance"`
	Tree       []dasha.Period `json:"tree,omitempty"`
}

// Dasha builds the period tree anchored at t down to depth (0 uses the
// configured depth). With full set the nested tree is returned as well.
func (s *Service) Dasha(ctx context.Context, t time.Time, depth int, full bool) (*DashaResult, error) {
	depth, err := s.Settings().depthOrDefault(depth)
	if err != nil {
		return nil, err
	}

	tree, err := s.dashas.Tree(ctx, t, depth)
	if err != nil {
		return nil, fmt.Errorf("failed to build dasha tree: %w", err)
	}
	chain, err := dasha.CurrentChain(tree, t)
	if err != nil {
		return nil, err
	}
	balance, err := dasha.BalanceAt(tree, t)
	if err != nil {
		return nil, err
	}

	if s.journal.Enabled() {
		if err := s.journal.RecordAnchor(ctx, tree.Anchor); err != nil {
			log.Warn().Err(err).Time("at", t).Msg("Failed to record dasha anchor")
		}
	}

	res := &DashaResult{
		Instant:    t.UTC(),
		Anchor:     tree.Anchor,
		Depth:      depth,
		Mahadashas: viewPeriods(tree.Mahadashas),
		Chain:      viewPeriods(chain),
		Balance:    balance,
	}
	if full {
		res.Tree = tree.Mahadashas
	}

	log.Info().
		Str("lord", tree.Anchor.Lord.String()).
		Str("nakshatra", tree.Anchor.Nakshatra.String()).
		Int("depth", depth).
		Msg("Dasha tree built")
	return res, nil
}
