package ephemeris

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/net/budget"
)

func newRemoteForTest(t *testing.T, handler http.HandlerFunc) *Remote {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultRemoteConfig()
	cfg.BaseURL = srv.URL
	cfg.RPS = 0
	cfg.ConsecutiveFailures = 2
	cfg.OpenTimeout = time.Minute

	r, err := NewRemote(cfg, srv.Client())
	require.NoError(t, err)
	return r
}

func TestRemote_RawPosition(t *testing.T) {
	r := newRemoteForTest(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/ephemeris/position", req.URL.Path)
		assert.Equal(t, "moon", req.URL.Query().Get("body"))
		assert.Equal(t, ModeApparent, req.URL.Query().Get("mode"))
		_ = json.NewEncoder(w).Encode(PositionResponse{Body: "moon", Longitude: 370.5, Speed: 13.2})
	})

	raw, err := r.RawPosition(context.Background(), time.Now(), catalog.Moon)
	require.NoError(t, err)
	assert.InDelta(t, 10.5, raw.Longitude, 1e-9)
	assert.InDelta(t, 13.2, raw.Speed, 1e-9)
}

func TestRemote_TruePositionMode(t *testing.T) {
	r := newRemoteForTest(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, ModeTrue, req.URL.Query().Get("mode"))
		_ = json.NewEncoder(w).Encode(PositionResponse{Longitude: 1, Speed: 1})
	})

	_, err := r.TruePosition(context.Background(), time.Now(), catalog.Moon)
	require.NoError(t, err)
}

func TestRemote_AyanamsaAndAscendant(t *testing.T) {
	r := newRemoteForTest(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/v1/ephemeris/ayanamsa":
			_ = json.NewEncoder(w).Encode(AyanamsaResponse{Ayanamsa: 24.1})
		case "/v1/ephemeris/ascendant":
			assert.Equal(t, "19.07598", req.URL.Query().Get("lat"))
			_ = json.NewEncoder(w).Encode(AscendantResponse{Ascendant: 123.4})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ay, err := r.Ayanamsa(context.Background(), time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 24.1, ay, 1e-9)

	asc, err := r.Ascendant(context.Background(), time.Now(), 19.07598, 72.87766)
	require.NoError(t, err)
	assert.InDelta(t, 123.4, asc, 1e-9)
}

func TestRemote_UnprocessableIsUnavailableButKeepsBreakerClosed(t *testing.T) {
	var calls int32
	r := newRemoteForTest(t, func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "outside range", Code: CodeUnavailable})
	})

	for i := 0; i < 4; i++ {
		_, err := r.RawPosition(context.Background(), time.Now(), catalog.Sun)
		assert.ErrorIs(t, err, ErrEphemerisUnavailable)
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, "closed", r.BreakerState())
}

func TestRemote_ServerErrorsTripBreaker(t *testing.T) {
	var calls int32
	r := newRemoteForTest(t, func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 4; i++ {
		_, err := r.RawPosition(context.Background(), time.Now(), catalog.Sun)
		assert.ErrorIs(t, err, ErrEphemerisUnavailable)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "breaker should stop calls after two failures")
	assert.Equal(t, "open", r.BreakerState())
}

func TestRemote_DerivedBodyRejectedLocally(t *testing.T) {
	r := newRemoteForTest(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := r.RawPosition(context.Background(), time.Now(), catalog.Ketu)
	assert.ErrorIs(t, err, ErrEphemerisUnavailable)
}

func TestNewRemote_RequiresBaseURL(t *testing.T) {
	_, err := NewRemote(RemoteConfig{}, nil)
	assert.Error(t, err)
}

func TestRemote_DailyBudgetStopsCalls(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(AyanamsaResponse{Ayanamsa: 24.1})
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultRemoteConfig()
	cfg.BaseURL = srv.URL
	cfg.RPS = 0
	cfg.DailyBudget = 2
	r, err := NewRemote(cfg, srv.Client())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := r.Ayanamsa(context.Background(), time.Now())
		require.NoError(t, err)
	}
	_, err = r.Ayanamsa(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrEphemerisUnavailable)
	assert.ErrorIs(t, err, budget.ErrBudgetExhausted)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, int64(0), r.BudgetStats().Remaining)
	assert.Equal(t, "closed", r.BreakerState())
}

func TestRemote_CallerCancellationKeepsBreakerClosed(t *testing.T) {
	var calls int32
	r := newRemoteForTest(t, func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-req.Context().Done()
	})

	for i := 0; i < 4; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := r.Ayanamsa(ctx, time.Now())
		cancel()
		assert.ErrorIs(t, err, ErrEphemerisUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, "closed", r.BreakerState())

	sent := atomic.LoadInt32(&calls)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Ayanamsa(ctx, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, sent, atomic.LoadInt32(&calls), "a cancelled caller sends nothing")
	assert.Equal(t, "closed", r.BreakerState())
}
