package application

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/vedicwatch/internal/cache"
	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/chart"
	"github.com/sawpanic/vedicwatch/internal/config"
	"github.com/sawpanic/vedicwatch/internal/dasha"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
	"github.com/sawpanic/vedicwatch/internal/ephemeris/ephemeristest"
	"github.com/sawpanic/vedicwatch/internal/events"
	"github.com/sawpanic/vedicwatch/internal/infrastructure/db"
	"github.com/sawpanic/vedicwatch/internal/metrics"
	"github.com/sawpanic/vedicwatch/internal/persistence"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

var (
	testAt   = time.Date(2024, 4, 8, 18, 0, 0, 0, time.UTC)
	testSite = Site{Name: "Delhi", Lat: 28.6139, Lon: 77.2090}
)

// linearSky has a sidereal Moon at 130 gaining 13 degrees a day on a Sun at
// 10 gaining 1, every other body parked at 30 times its ordinal, and a
// sidereal lagna of 100 (Cancer)
func linearSky() *ephemeristest.Adapter {
	jd0 := ephemeris.JulianDay(testAt)
	return &ephemeristest.Adapter{
		AyanamsaDeg:  24,
		AscendantDeg: 124,
		Motion: func(t time.Time, b catalog.Body) ephemeris.Raw {
			d := ephemeris.JulianDay(t) - jd0
			switch b {
			case catalog.Moon:
				return ephemeris.Raw{Longitude: 154 + 13*d, Speed: 13}
			case catalog.Sun:
				return ephemeris.Raw{Longitude: 34 + d, Speed: 1}
			default:
				return ephemeris.Raw{Longitude: 24 + 30*float64(b), Speed: 0.1}
			}
		},
	}
}

func testSettings() Settings {
	return Settings{
		Site:          testSite,
		Node:          "mean",
		DashaDepth:    3,
		MaxDashaDepth: 4,
		CacheTTL:      time.Minute,
		Phase:         ScanDefault{Days: events.PhaseScanDays, StepMinutes: events.PhaseScanStep},
		Aspect:        ScanDefault{Days: events.AspectScanDays, StepMinutes: events.AspectScanStep},
		Ingress:       ScanDefault{Days: events.IngressScanDays, StepMinutes: events.IngressScanStep},
	}
}

func newTestService(a ephemeris.Adapter, opts ...Option) *Service {
	resolver := sidereal.NewResolver(a)
	opts = append([]Option{WithClock(func() time.Time { return testAt })}, opts...)
	return NewService(resolver, events.NewScanner(resolver, events.WithWorkers(2)), dasha.NewEngine(resolver, nil), testSettings(), opts...)
}

func TestSite_Validate(t *testing.T) {
	assert.NoError(t, testSite.Validate())
	assert.ErrorIs(t, Site{Lat: 91}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, Site{Lon: -180.5}.Validate(), ErrInvalidRequest)
}

func TestService_Snapshot_Composes(t *testing.T) {
	svc := newTestService(linearSky())

	snap, err := svc.Snapshot(context.Background(), testAt, testSite)
	require.NoError(t, err)

	assert.Equal(t, testAt, snap.Instant)
	assert.Equal(t, "mean", snap.Node)
	assert.InDelta(t, 24.0, snap.Ayanamsa, 1e-9)
	assert.Equal(t, catalog.Sign(3), snap.Lagna.Sign)
	assert.Equal(t, catalog.Sign(4), snap.Moon.Sign)
	assert.Equal(t, catalog.Nakshatra(9), snap.Moon.Nakshatra)
	require.Len(t, snap.Positions, catalog.BodyCount)
	assert.Equal(t, catalog.Ketu, snap.Positions[catalog.Ketu].Body)

	require.Len(t, snap.Charts, 3)
	d9, ok := snap.Chart(zodiac.D9)
	require.True(t, ok)
	assert.Equal(t, "d9", d9.VargaName)

	assert.Equal(t, chart.Total(snap.Strength.Bins), snap.Strength.Total)
	assert.Equal(t, catalog.Sign(3), snap.Strength.Signs[0])
	assert.Equal(t, catalog.Sign(2), snap.Strength.Signs[11])

	require.NotNil(t, snap.Dasha)
	assert.Equal(t, catalog.Ketu, snap.Dasha.Lord)
	require.Len(t, snap.Dasha.Chain, 3)
	assert.Equal(t, "Mahadasha", snap.Dasha.Chain[0].Name)
	assert.Equal(t, catalog.Ketu, snap.Dasha.Chain[0].Lord)
	assert.NotEmpty(t, snap.Aspects)
}

func TestService_Snapshot_CachesPerInstant(t *testing.T) {
	fake := linearSky()
	mem := cache.NewMemory()
	svc := newTestService(fake, WithCache(mem))

	first, err := svc.Snapshot(context.Background(), testAt, testSite)
	require.NoError(t, err)
	calls := fake.Calls()
	assert.Equal(t, 1, mem.Len())

	again, err := svc.Snapshot(context.Background(), testAt, testSite)
	require.NoError(t, err)
	assert.Equal(t, calls, fake.Calls(), "cached snapshot must not touch the adapter")
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("cached snapshot differs (-computed +cached):\n%s", diff)
	}
	_, ok := again.Chart(zodiac.D10)
	assert.True(t, ok, "varga restored after decode")

	_, err = svc.Snapshot(context.Background(), testAt.Add(time.Second), testSite)
	require.NoError(t, err)
	assert.Greater(t, fake.Calls(), calls)
	assert.Equal(t, 2, mem.Len())
}

func TestService_Snapshot_DiscardsCorruptCacheEntry(t *testing.T) {
	mem := cache.NewMemory()
	key := cache.SnapshotKey(testAt, testSite.Lat, testSite.Lon, "mean")
	require.NoError(t, mem.Set(context.Background(), key, []byte("{not json"), time.Minute))

	snap, err := newTestService(linearSky(), WithCache(mem)).Snapshot(context.Background(), testAt, testSite)
	require.NoError(t, err)
	assert.Equal(t, catalog.Sign(4), snap.Moon.Sign)

	data, ok, err := mem.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, json.Valid(data))
}

func TestService_Snapshot_InvalidSite(t *testing.T) {
	_, err := newTestService(linearSky()).Snapshot(context.Background(), testAt, Site{Lat: 120})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_Snapshot_Unavailable(t *testing.T) {
	fake := linearSky()
	fake.ValidTo = testAt.Add(-time.Hour)

	_, err := newTestService(fake).Snapshot(context.Background(), testAt, testSite)
	assert.ErrorIs(t, err, ephemeris.ErrEphemerisUnavailable)
}

func TestService_ChartAndStrength(t *testing.T) {
	fake := linearSky()
	svc := newTestService(fake)

	c, err := svc.Chart(context.Background(), testAt, testSite, zodiac.D10)
	require.NoError(t, err)

	ps, err := sidereal.NewResolver(fake).Positions(context.Background(), testAt)
	require.NoError(t, err)
	assert.Equal(t, chart.New(ps, 100, zodiac.D10).Houses(), c.Houses())

	st, err := svc.Strength(context.Background(), testAt, testSite)
	require.NoError(t, err)
	assert.Equal(t, chart.Strength(ps, 100), st.Bins)
	assert.Equal(t, catalog.Sign(3), st.LagnaSign)
}

func TestService_Events_Phases(t *testing.T) {
	res, err := newTestService(linearSky()).Events(context.Background(), EventsRequest{Kind: "phases"})
	require.NoError(t, err)

	assert.Equal(t, ScanPhases, res.Kind)
	assert.Equal(t, testAt, res.Start)
	require.NotNil(t, res.Phases)
	require.True(t, res.Phases.Purnima.Complete())
	require.True(t, res.Phases.Amavasya.Complete())

	// elongation grows 12 degrees a day from 120
	assert.WithinDuration(t, testAt.Add(4*24*time.Hour), res.Phases.Purnima.Start, 20*time.Minute)
	assert.WithinDuration(t, testAt.Add(19*24*time.Hour), res.Phases.Amavasya.Start, 20*time.Minute)
	assert.True(t, res.Phases.Amavasya.Start.Before(res.Phases.Amavasya.End))
	assert.Len(t, res.Events, 4)
	assert.Empty(t, res.Upcoming())
}

func TestService_Events_AspectsOverrideWindow(t *testing.T) {
	res, err := newTestService(linearSky()).Events(context.Background(), EventsRequest{
		Kind:        "Aspects",
		Days:        6,
		StepMinutes: 60,
	})
	require.NoError(t, err)

	var keys []string
	for _, e := range res.Events {
		keys = append(keys, e.Key())
		assert.False(t, e.Instant.Before(testAt))
	}
	assert.Contains(t, keys, "opposition|sun|moon")
	assert.Contains(t, keys, "conjunction|moon|venus")
	assert.Contains(t, keys, "conjunction|moon|saturn")
	assert.Nil(t, res.Phases)
}

func TestService_Events_IngressFlagsUpcoming(t *testing.T) {
	res, err := newTestService(linearSky()).Events(context.Background(), EventsRequest{Kind: ScanIngress, Days: 2})
	require.NoError(t, err)

	var moonSign, moonNak *events.Event
	for i, e := range res.Events {
		switch {
		case e.Kind == events.KindSignIngress && e.Participants[0] == catalog.Moon:
			moonSign = &res.Events[i]
		case e.Kind == events.KindNakshatraIngress && e.Participants[0] == catalog.Moon && moonNak == nil:
			moonNak = &res.Events[i]
		}
	}
	require.NotNil(t, moonSign)
	require.NotNil(t, moonNak)
	assert.Equal(t, "Virgo", moonSign.To)
	assert.False(t, moonSign.Upcoming)
	assert.Equal(t, "Purva Phalguni", moonNak.To)
	assert.True(t, moonNak.Upcoming)
}

func TestService_Events_AllRunsEveryScan(t *testing.T) {
	res, err := newTestService(linearSky()).Events(context.Background(), EventsRequest{Days: 5, StepMinutes: 60})
	require.NoError(t, err)

	assert.Equal(t, ScanAll, res.Kind)
	require.NotNil(t, res.Phases)
	assert.True(t, res.Phases.Purnima.Complete())

	kinds := map[events.Kind]bool{}
	for _, e := range res.Events {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[events.KindLunarPhase])
	assert.True(t, kinds[events.KindConjunction])
	assert.True(t, kinds[events.KindSignIngress])

	sorted := sort.SliceIsSorted(res.Events, func(i, j int) bool {
		return res.Events[i].Instant.Before(res.Events[j].Instant)
	})
	assert.True(t, sorted, "merged scans are ordered by instant")
}

func TestService_Events_Errors(t *testing.T) {
	svc := newTestService(linearSky())

	_, err := svc.Events(context.Background(), EventsRequest{Kind: "eclipses"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Events(context.Background(), EventsRequest{Kind: ScanAspects, Days: 10000, StepMinutes: 1})
	assert.ErrorIs(t, err, events.ErrInvalidWindow)
}

func TestService_Events_RecordWithoutJournal(t *testing.T) {
	res, err := newTestService(linearSky()).Events(context.Background(), EventsRequest{Kind: ScanPhases, Record: true})
	require.NoError(t, err)
	assert.Zero(t, res.Recorded)
}

func TestService_Dasha(t *testing.T) {
	svc := newTestService(linearSky())

	res, err := svc.Dasha(context.Background(), testAt, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Depth)
	assert.Equal(t, catalog.Ketu, res.Anchor.Lord)
	require.Len(t, res.Mahadashas, catalog.BodyCount)
	assert.Equal(t, catalog.Ketu, res.Mahadashas[0].Lord)
	require.Len(t, res.Chain, 3)
	assert.Equal(t, catalog.Ketu, res.Balance.Lord)
	assert.Nil(t, res.Tree)

	full, err := svc.Dasha(context.Background(), testAt, 2, true)
	require.NoError(t, err)
	require.Len(t, full.Tree, catalog.BodyCount)
	assert.Len(t, full.Tree[0].Children, catalog.BodyCount)

	_, err = svc.Dasha(context.Background(), testAt, 7, false)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_UpdateSettings(t *testing.T) {
	mem := cache.NewMemory()
	svc := newTestService(linearSky(), WithCache(mem))

	next := testSettings()
	next.Node = "true"
	next.DashaDepth = 1
	svc.UpdateSettings(next)
	assert.Equal(t, next, svc.Settings())

	snap, err := svc.Snapshot(context.Background(), testAt, testSite)
	require.NoError(t, err)
	assert.Equal(t, "true", snap.Node)
	assert.Len(t, snap.Dasha.Chain, 1)

	_, ok, err := mem.Get(context.Background(), cache.SnapshotKey(testAt, testSite.Lat, testSite.Lon, "true"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Observer.Location = "ujjain"
	cfg.Dasha.Depth = 2

	s, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Ujjain", s.Site.Name)
	assert.InDelta(t, 23.1765, s.Site.Lat, 1e-9)
	assert.Equal(t, "mean", s.Node)
	assert.Equal(t, 2, s.DashaDepth)
	assert.Equal(t, ScanDefault{Days: events.PhaseScanDays, StepMinutes: events.PhaseScanStep}, s.Phase)

	cfg.Observer.Location = "atlantis"
	_, err = SettingsFromConfig(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewAdapter(t *testing.T) {
	a, err := NewAdapter(config.EphemerisConfig{Provider: "analytic", Node: "true"})
	require.NoError(t, err)
	analytic, ok := a.(*ephemeris.Analytic)
	require.True(t, ok)
	assert.Equal(t, ephemeris.TrueNode, analytic.NodeMode())

	_, err = NewAdapter(config.EphemerisConfig{Provider: "remote", Node: "mean"})
	assert.Error(t, err)

	_, err = NewAdapter(config.EphemerisConfig{Provider: "jpl", Node: "mean"})
	assert.Error(t, err)
}

func TestBuild_WiresMetricsAndCache(t *testing.T) {
	cfg := config.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg, reg)

	svc, err := Build(cfg, Deps{Metrics: m})
	require.NoError(t, err)
	defer svc.Close()

	assert.Equal(t, "memory", svc.CacheBackend())
	assert.True(t, svc.JournalHealth(context.Background()).Healthy)

	_, err = svc.Snapshot(context.Background(), testAt, testSite)
	require.NoError(t, err)
	_, err = svc.Snapshot(context.Background(), testAt, testSite)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DashaBuilds.WithLabelValues("3")))
	assert.Greater(t, testutil.ToFloat64(m.EphemerisCalls.WithLabelValues("raw_position", "moon", "ok")), 0.0)
}

func TestService_JournalHistory_Validates(t *testing.T) {
	svc := newTestService(linearSky())
	ctx := context.Background()
	day := persistence.TimeRange{From: testAt.Add(-24 * time.Hour), To: testAt}

	_, err := svc.JournalHistory(ctx, persistence.TimeRange{From: testAt}, "", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.JournalHistory(ctx, persistence.TimeRange{From: testAt, To: testAt.Add(-time.Second)}, "", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.JournalHistory(ctx, day, "", -1)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.JournalHistory(ctx, day, "", 0)
	assert.ErrorIs(t, err, db.ErrJournalDisabled)
	_, err = svc.LastAnchor(ctx, time.Time{})
	assert.ErrorIs(t, err, db.ErrJournalDisabled)
	assert.Equal(t, false, svc.JournalStatistics(ctx)["enabled"])
}

func TestService_JournalHistory_CapsLimit(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	journal := db.NewJournal(db.NewManagerWithDB(sqlx.NewDb(mockDB, "postgres"), db.DefaultConfig()))
	svc := newTestService(linearSky(), WithJournal(journal))

	from := testAt.Add(-24 * time.Hour)
	mock.ExpectQuery("SELECT id, scan_start, kind").
		WithArgs(from, testAt, "opposition", MaxHistoryLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "scan_start", "kind", "key", "participants", "target", "instant", "value", "created_at"}))

	got, err := svc.JournalHistory(context.Background(), persistence.TimeRange{From: from, To: testAt}, " Opposition ", 5000)
	require.NoError(t, err)
	assert.Empty(t, got)

	mock.ExpectQuery("ORDER BY instant DESC").
		WillReturnRows(sqlmock.NewRows([]string{"instant", "moon_longitude", "nakshatra", "lord", "nak_start_jd", "created_at"}))
	_, err = svc.LastAnchor(context.Background(), time.Time{})
	assert.ErrorIs(t, err, ErrNoAnchor)
	assert.NoError(t, mock.ExpectationsWereMet())
}
