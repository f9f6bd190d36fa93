package ephemeris

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/net/budget"
	"github.com/sawpanic/vedicwatch/internal/net/ratelimit"
)

// RemoteConfig configures the HTTP ephemeris client
type RemoteConfig struct {
	BaseURL             string        `yaml:"base_url"`
	Timeout             time.Duration `yaml:"timeout"`
	RPS                 float64       `yaml:"rps"`
	Burst               int           `yaml:"burst"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
	DailyBudget         int64         `yaml:"daily_budget"`
	BudgetResetHour     int           `yaml:"budget_reset_hour"`
}

// DefaultRemoteConfig returns conservative client settings
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Timeout:             5 * time.Second,
		RPS:                 50,
		Burst:               20,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// Remote is an Adapter backed by an ephemeris service speaking the
// /v1/ephemeris JSON protocol. Calls go through a per-host rate limiter, an
// optional daily budget and a circuit breaker; nothing is retried.
type Remote struct {
	base    *url.URL
	client  *http.Client
	limiter *ratelimit.Limiter
	budget  *budget.Tracker
	breaker *gobreaker.CircuitBreaker
}

// statusError carries a non-2xx response
type statusError struct {
	status int
	body   ErrorResponse
}

func (e *statusError) Error() string {
	if e.body.Error != "" {
		return fmt.Sprintf("status %d: %s", e.status, e.body.Error)
	}
	return fmt.Sprintf("status %d", e.status)
}

// NewRemote creates a remote adapter. A nil client gets one with cfg.Timeout.
func NewRemote(cfg RemoteConfig, client *http.Client) (*Remote, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote ephemeris base_url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base_url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        "ephemeris:" + base.Host,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// a 4xx is a definitive answer about the request, not a sick upstream
			if se, ok := err.(*statusError); ok {
				return se.status < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Ephemeris circuit breaker state changed")
		},
	}

	return &Remote{
		base:    base,
		client:  client,
		limiter: ratelimit.NewLimiter(cfg.RPS, cfg.Burst),
		budget:  budget.NewTracker(base.Host, cfg.DailyBudget, cfg.BudgetResetHour, nil),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}, nil
}

// RawPosition implements Adapter
func (r *Remote) RawPosition(ctx context.Context, t time.Time, body catalog.Body) (Raw, error) {
	return r.position(ctx, t, body, ModeApparent)
}

// TruePosition implements Adapter
func (r *Remote) TruePosition(ctx context.Context, t time.Time, body catalog.Body) (Raw, error) {
	return r.position(ctx, t, body, ModeTrue)
}

// Ayanamsa implements Adapter
func (r *Remote) Ayanamsa(ctx context.Context, t time.Time) (float64, error) {
	q := url.Values{}
	q.Set("at", t.UTC().Format(time.RFC3339Nano))

	var resp AyanamsaResponse
	if err := r.get(ctx, "/v1/ephemeris/ayanamsa", q, &resp); err != nil {
		return 0, err
	}
	return resp.Ayanamsa, nil
}

// Ascendant implements Adapter
func (r *Remote) Ascendant(ctx context.Context, t time.Time, lat, lon float64) (float64, error) {
	q := url.Values{}
	q.Set("at", t.UTC().Format(time.RFC3339Nano))
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var resp AscendantResponse
	if err := r.get(ctx, "/v1/ephemeris/ascendant", q, &resp); err != nil {
		return 0, err
	}
	return Normalize(resp.Ascendant), nil
}

// BreakerState reports the breaker state for health output
func (r *Remote) BreakerState() string {
	return r.breaker.State().String()
}

// BudgetStats reports daily request usage
func (r *Remote) BudgetStats() budget.Stats {
	return r.budget.Stats()
}

func (r *Remote) position(ctx context.Context, t time.Time, body catalog.Body, mode string) (Raw, error) {
	if !body.Valid() || body.Derived() {
		return Raw{}, fmt.Errorf("%w: body %s cannot be queried", ErrEphemerisUnavailable, body)
	}

	q := url.Values{}
	q.Set("at", t.UTC().Format(time.RFC3339Nano))
	q.Set("body", body.String())
	q.Set("mode", mode)

	var resp PositionResponse
	if err := r.get(ctx, "/v1/ephemeris/position", q, &resp); err != nil {
		return Raw{}, err
	}
	return Raw{Longitude: Normalize(resp.Longitude), Speed: resp.Speed}, nil
}

func (r *Remote) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if err := r.limiter.Wait(ctx, r.base.Host); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", ErrEphemerisUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEphemerisUnavailable, path, err)
	}
	if err := r.budget.Consume(); err != nil {
		return fmt.Errorf("%w: %w", ErrEphemerisUnavailable, err)
	}

	endpoint := r.base.ResolveReference(&url.URL{Path: path, RawQuery: q.Encode()})

	// a call abandoned by its caller says nothing about the upstream, so it
	// reaches the breaker as a success and the error is returned from here
	var abandoned error
	_, err := r.breaker.Execute(func() (interface{}, error) {
		err := r.do(ctx, endpoint.String(), path, out)
		if err != nil && ctx.Err() != nil {
			abandoned = err
			return nil, nil
		}
		return nil, err
	})
	if err == nil {
		err = abandoned
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEphemerisUnavailable, path, err)
	}
	return nil
}

func (r *Remote) do(ctx context.Context, endpoint, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		se := &statusError{status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(data, &se.body)
		return se
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
