package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/dasha"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
	"github.com/sawpanic/vedicwatch/internal/ephemeris/ephemeristest"
	"github.com/sawpanic/vedicwatch/internal/events"
	"github.com/sawpanic/vedicwatch/internal/infrastructure/db"
	"github.com/sawpanic/vedicwatch/internal/metrics"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
)

var testNow = time.Date(2024, 4, 8, 18, 0, 0, 0, time.UTC)

// sky has a sidereal Moon at 130 (Leo, Magha) moving 13 degrees a day, the
// Sun at 10 moving 1, other bodies parked, and a sidereal lagna of 100
func sky() *ephemeristest.Adapter {
	jd0 := ephemeris.JulianDay(testNow)
	return &ephemeristest.Adapter{
		AyanamsaDeg:  24,
		AscendantDeg: 124,
		ValidTo:      testNow.Add(365 * 24 * time.Hour),
		Motion: func(t time.Time, b catalog.Body) ephemeris.Raw {
			d := ephemeris.JulianDay(t) - jd0
			switch b {
			case catalog.Moon:
				return ephemeris.Raw{Longitude: 154 + 13*d, Speed: 13}
			case catalog.Sun:
				return ephemeris.Raw{Longitude: 34 + d, Speed: 1}
			case catalog.Saturn:
				return ephemeris.Raw{Longitude: 24 + 30*float64(b), Speed: -0.05}
			default:
				return ephemeris.Raw{Longitude: 24 + 30*float64(b), Speed: 0.1}
			}
		},
		TrueMotion: func(_ time.Time, b catalog.Body) ephemeris.Raw {
			return ephemeris.Raw{Longitude: 200, Speed: 0.5}
		},
	}
}

type fixture struct {
	server  *Server
	adapter *ephemeristest.Adapter
	metrics *metrics.Registry
}

func newFixture(t *testing.T, opts ...application.Option) *fixture {
	t.Helper()
	adapter := sky()
	resolver := sidereal.NewResolver(adapter)
	settings := application.Settings{
		Site:          application.Site{Name: "Delhi", Lat: 28.6139, Lon: 77.2090},
		Node:          "mean",
		DashaDepth:    3,
		MaxDashaDepth: 4,
		CacheTTL:      time.Minute,
		Phase:         application.ScanDefault{Days: events.PhaseScanDays, StepMinutes: events.PhaseScanStep},
		Aspect:        application.ScanDefault{Days: events.AspectScanDays, StepMinutes: events.AspectScanStep},
		Ingress:       application.ScanDefault{Days: events.IngressScanDays, StepMinutes: events.IngressScanStep},
	}
	svc := application.NewService(resolver, events.NewScanner(resolver, events.WithWorkers(2)), dasha.NewEngine(resolver, nil), settings,
		append([]application.Option{application.WithClock(func() time.Time { return testNow })}, opts...)...)

	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg, reg)
	cfg := DefaultServerConfig()
	cfg.Version = "test"
	return &fixture{server: NewServer(cfg, svc, m), adapter: adapter, metrics: m}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rr.Code, rr.Body.String())
	var body ephemeris.ErrorResponse
	decode(t, rr, &body)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, rr.Header().Get("X-Request-ID"), body.RequestID)
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var health HealthResponse
	decode(t, rr, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, "Delhi", health.Site)
	assert.Equal(t, "pass", health.Checks["ephemeris"].Status)
	assert.Contains(t, health.Checks["cache"].Message, "noop")
	assert.Equal(t, "pass", health.Checks["database"].Status)
	assert.NotEmpty(t, health.System.GoVersion)
}

// journaled builds a fixture whose journal talks to a mocked postgres
func journaled(t *testing.T) (*fixture, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	cfg := db.DefaultConfig()
	cfg.QueryTimeout = 5 * time.Second
	journal := db.NewJournal(db.NewManagerWithDB(sqlx.NewDb(mockDB, "postgres"), cfg))
	return newFixture(t, application.WithJournal(journal)), mock
}

var recordColumns = []string{"id", "scan_start", "kind", "key", "participants", "target", "instant", "value", "created_at"}

func TestServer_Health_JournalStatistics(t *testing.T) {
	f, mock := journaled(t)
	mock.ExpectQuery("SELECT kind, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"kind", "count"}).AddRow("lunar_phase", int64(3)))

	rr := f.get(t, "/health")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var health HealthResponse
	decode(t, rr, &health)
	check := health.Checks["database"]
	assert.Equal(t, "pass", check.Status)
	assert.Equal(t, true, check.Details["enabled"])
	assert.Equal(t, map[string]interface{}{"lunar_phase": 3.0}, check.Details["events_24h"])
	assert.Contains(t, check.Details, "pool")
}

func TestServer_Health_JournalDisabledDetails(t *testing.T) {
	f := newFixture(t)

	var health HealthResponse
	decode(t, f.get(t, "/health"), &health)
	assert.Equal(t, "disabled", health.Checks["database"].Details["status"])
}

func TestServer_EventsJournal(t *testing.T) {
	f, mock := journaled(t)
	from := testNow.Add(-24 * time.Hour)
	mock.ExpectQuery("SELECT id, scan_start, kind").
		WithArgs(from, testNow, "lunar_phase", 10).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(int64(1), from, "lunar_phase", "lunar_phase|amavasya_start", "{}", "amavasya_start", from.Add(2*time.Hour), 0.0, from))

	rr := f.get(t, "/v1/events/journal?from=2024-04-07T18:00:00Z&to=2024-04-08T18:00:00Z&kind=lunar_phase&limit=10")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp JournalResponse
	decode(t, rr, &resp)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "amavasya_start", resp.Events[0].Target)
	assert.Equal(t, from.Add(2*time.Hour), resp.Events[0].Instant)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServer_EventsJournal_Errors(t *testing.T) {
	f := newFixture(t)

	assertError(t, f.get(t, "/v1/events/journal?from=2024-04-07T18:00:00Z&to=2024-04-08T18:00:00Z"), http.StatusServiceUnavailable, ephemeris.CodeNoJournal)
	assertError(t, f.get(t, "/v1/events/journal?to=2024-04-08T18:00:00Z"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/events/journal?from=2024-04-09T00:00:00Z&to=2024-04-08T18:00:00Z"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/events/journal?from=2024-04-07T18:00:00Z&to=2024-04-08T18:00:00Z&limit=-1"), http.StatusBadRequest, ephemeris.CodeBadRequest)
}

func TestServer_DashaAnchor(t *testing.T) {
	f, mock := journaled(t)
	cols := []string{"instant", "moon_longitude", "nakshatra", "lord", "nak_start_jd", "created_at"}
	mock.ExpectQuery("ORDER BY instant DESC").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(testNow, 130.0, "Magha", "ketu", 2460408.5, testNow))

	rr := f.get(t, "/v1/dasha/anchor")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rec struct {
		Lord      string `json:"lord"`
		Nakshatra string `json:"nakshatra"`
	}
	decode(t, rr, &rec)
	assert.Equal(t, "ketu", rec.Lord)
	assert.Equal(t, "Magha", rec.Nakshatra)

	mock.ExpectQuery("WHERE instant = ").
		WithArgs(testNow.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows(cols))
	assertError(t, f.get(t, "/v1/dasha/anchor?at=2024-04-08T19:00:00Z"), http.StatusNotFound, ephemeris.CodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())

	assertError(t, newFixture(t).get(t, "/v1/dasha/anchor"), http.StatusServiceUnavailable, ephemeris.CodeNoJournal)
}

func TestServer_Health_UnhealthyWithoutEphemeris(t *testing.T) {
	f := newFixture(t)
	f.adapter.ValidTo = testNow.Add(-time.Hour)

	rr := f.get(t, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var health HealthResponse
	decode(t, rr, &health)
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "fail", health.Checks["ephemeris"].Status)
}

func TestServer_RequestID(t *testing.T) {
	f := newFixture(t)

	first := f.get(t, "/health").Header().Get("X-Request-ID")
	second := f.get(t, "/health").Header().Get("X-Request-ID")
	assert.Len(t, first, 8)
	assert.NotEqual(t, first, second)
}

func TestServer_Snapshot(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/v1/snapshot?at=2024-04-08T18:00:00Z")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var snap application.Snapshot
	decode(t, rr, &snap)
	assert.Equal(t, testNow, snap.Instant)
	assert.Equal(t, "Delhi", snap.Site.Name)
	assert.Equal(t, catalog.Sign(3), snap.Lagna.Sign)
	assert.Equal(t, catalog.Sign(4), snap.Moon.Sign)
	assert.Len(t, snap.Charts, 3)
	require.NotNil(t, snap.Dasha)
	assert.Equal(t, catalog.Ketu, snap.Dasha.Lord)
}

func TestServer_Snapshot_Location(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/v1/snapshot?location=Ujjain")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var snap application.Snapshot
	decode(t, rr, &snap)
	assert.Equal(t, "Ujjain", snap.Site.Name)

	assertError(t, f.get(t, "/v1/snapshot?location=atlantis"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/snapshot?lat=28.6"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/snapshot?lat=95&lon=10"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/snapshot?at=yesterday"), http.StatusBadRequest, ephemeris.CodeBadRequest)
}

func TestServer_Snapshot_Unavailable(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/v1/snapshot?at=2100-01-01T00:00:00Z")
	assertError(t, rr, http.StatusUnprocessableEntity, ephemeris.CodeUnavailable)
}

func TestServer_Positions(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/v1/positions")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Ayanamsa  float64 `json:"ayanamsa"`
		Positions []struct {
			Body       catalog.Body `json:"body"`
			Longitude  float64      `json:"longitude"`
			Retrograde bool         `json:"retrograde"`
			DMS        string       `json:"dms"`
		} `json:"positions"`
		Groups [catalog.SignCount][]catalog.Body `json:"groups"`
	}
	decode(t, rr, &resp)
	assert.InDelta(t, 24.0, resp.Ayanamsa, 1e-9)
	require.Len(t, resp.Positions, catalog.BodyCount)
	assert.Equal(t, catalog.Moon, resp.Positions[catalog.Moon].Body)
	assert.InDelta(t, 130.0, resp.Positions[catalog.Moon].Longitude, 1e-6)
	assert.True(t, resp.Positions[catalog.Saturn].Retrograde)
	assert.Contains(t, resp.Groups[4], catalog.Moon)
}

func TestServer_Chart(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/v1/chart/d9")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Chart struct {
			Varga     string       `json:"varga"`
			LagnaSign catalog.Sign `json:"lagna_sign"`
		} `json:"chart"`
		Houses []HouseView `json:"houses"`
	}
	decode(t, rr, &resp)
	require.Len(t, resp.Houses, 12)

	placed := 0
	for i, h := range resp.Houses {
		assert.Equal(t, i+1, h.House)
		assert.Len(t, h.Labels, len(h.Bodies))
		placed += len(h.Bodies)
	}
	assert.Equal(t, catalog.BodyCount, placed)
	assert.Equal(t, resp.Chart.LagnaSign, resp.Houses[0].Sign)

	assertError(t, f.get(t, "/v1/chart/d7"), http.StatusBadRequest, ephemeris.CodeBadRequest)
}

func TestServer_Strength(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/v1/strength")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp StrengthResponse
	decode(t, rr, &resp)
	sum := 0
	for _, v := range resp.Strength.Bins {
		sum += v
	}
	assert.Equal(t, sum, resp.Strength.Total)
	assert.Equal(t, catalog.Sign(3), resp.Strength.LagnaSign)
}

func TestServer_Events(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/v1/events?kind=phases")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res application.EventsResult
	decode(t, rr, &res)
	assert.Equal(t, application.ScanPhases, res.Kind)
	require.NotNil(t, res.Phases)
	assert.True(t, res.Phases.Purnima.Complete())
	assert.Len(t, res.Events, 4)
	for _, e := range res.Events {
		assert.Equal(t, events.KindLunarPhase, e.Kind)
	}
}

func TestServer_Events_Errors(t *testing.T) {
	f := newFixture(t)

	assertError(t, f.get(t, "/v1/events?kind=eclipses"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/events?days=365"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/events?days=-1"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/events?step=x"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/events?start=soon"), http.StatusBadRequest, ephemeris.CodeBadRequest)
}

func TestServer_Dasha(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/v1/dasha?depth=2&tree=true")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res struct {
		Depth  int `json:"depth"`
		Anchor struct {
			Lord catalog.Body `json:"lord"`
		} `json:"anchor"`
		Chain []application.PeriodView `json:"chain"`
		Tree  []json.RawMessage        `json:"tree"`
	}
	decode(t, rr, &res)
	assert.Equal(t, 2, res.Depth)
	assert.Equal(t, catalog.Ketu, res.Anchor.Lord)
	require.Len(t, res.Chain, 2)
	assert.Equal(t, catalog.Ketu, res.Chain[0].Lord)
	assert.Len(t, res.Tree, catalog.BodyCount)

	assertError(t, f.get(t, "/v1/dasha?depth=5"), http.StatusBadRequest, ephemeris.CodeBadRequest)
}

func TestServer_EphemerisPassthrough(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/v1/ephemeris/position?body=moon")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var pos ephemeris.PositionResponse
	decode(t, rr, &pos)
	assert.Equal(t, "moon", pos.Body)
	assert.Equal(t, ephemeris.ModeApparent, pos.Mode)
	assert.InDelta(t, 154.0, pos.Longitude, 1e-6)

	rr = f.get(t, "/v1/ephemeris/position?body=rahu&mode=true")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decode(t, rr, &pos)
	assert.Equal(t, ephemeris.ModeTrue, pos.Mode)
	assert.InDelta(t, 200.0, pos.Longitude, 1e-6)

	rr = f.get(t, "/v1/ephemeris/ayanamsa")
	require.Equal(t, http.StatusOK, rr.Code)
	var ay ephemeris.AyanamsaResponse
	decode(t, rr, &ay)
	assert.InDelta(t, 24.0, ay.Ayanamsa, 1e-9)

	rr = f.get(t, "/v1/ephemeris/ascendant?lat=23.18&lon=75.78")
	require.Equal(t, http.StatusOK, rr.Code)
	var asc ephemeris.AscendantResponse
	decode(t, rr, &asc)
	assert.InDelta(t, 124.0, asc.Ascendant, 1e-9)
	assert.InDelta(t, 23.18, asc.Latitude, 1e-9)

	assertError(t, f.get(t, "/v1/ephemeris/position?body=ketu"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/ephemeris/position?body=pluto"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/ephemeris/position?body=sun&mode=topocentric"), http.StatusBadRequest, ephemeris.CodeBadRequest)
}

func TestServer_NotFound(t *testing.T) {
	f := newFixture(t)
	assertError(t, f.get(t, "/v1/horoscope"), http.StatusNotFound, ephemeris.CodeNotFound)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.get(t, "/v1/positions").Code)
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.HTTPDuration))

	rr := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "vedicwatch_http_request_duration_seconds")
	assert.Contains(t, body, `route="/v1/positions"`)
}

func TestServer_Stream_RejectsShortInterval(t *testing.T) {
	f := newFixture(t)
	assertError(t, f.get(t, "/v1/stream?interval=10s"), http.StatusBadRequest, ephemeris.CodeBadRequest)
	assertError(t, f.get(t, "/v1/stream?interval=often"), http.StatusBadRequest, ephemeris.CodeBadRequest)
}

func TestServer_Stream_PushesSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream?location=ujjain"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type     string               `json:"type"`
		Sequence int                  `json:"sequence"`
		Data     application.Snapshot `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg.Type)
	assert.Equal(t, 1, msg.Sequence)
	assert.Equal(t, "Ujjain", msg.Data.Site.Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveStreams))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = f.server.Shutdown(ctx)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.ActiveStreams) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
