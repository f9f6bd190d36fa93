// Package metrics exposes Prometheus instrumentation for the ephemeris,
// scanner, dasha engine, cache and HTTP layers.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/events"
)

const namespace = "vedicwatch"

// Registry holds every vedicwatch metric. It satisfies the observer
// interfaces of the ephemeris, events, dasha and cache packages.
type Registry struct {
	gatherer prometheus.Gatherer

	EphemerisCalls   *prometheus.CounterVec
	EphemerisLatency *prometheus.HistogramVec

	ScanDuration  *prometheus.HistogramVec
	ScanSteps     prometheus.Counter
	EventsEmitted *prometheus.CounterVec

	DashaBuilds        *prometheus.CounterVec
	DashaBuildDuration prometheus.Histogram

	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	CacheHitRatio prometheus.Gauge

	HTTPDuration  *prometheus.HistogramVec
	ActiveStreams prometheus.Gauge

	mu       sync.Mutex
	backends map[string]struct{}
}

// New creates a registry backed by a fresh prometheus.Registry carrying the
// Go runtime and process collectors
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewRegistry(reg, reg)
}

// NewRegistry creates all metrics and registers them with reg; gatherer
// serves them at /metrics
func NewRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Registry {
	r := &Registry{
		gatherer: gatherer,
		backends: make(map[string]struct{}),

		EphemerisCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ephemeris_calls_total",
				Help:      "Ephemeris adapter calls by method, body and result",
			},
			[]string{"method", "body", "result"},
		),

		EphemerisLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ephemeris_call_duration_seconds",
				Help:      "Ephemeris adapter call latency in seconds",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"method"},
		),

		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Event scan duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"result"},
		),

		ScanSteps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_steps_total",
				Help:      "Sample instants evaluated by event scans",
			},
		),

		EventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_emitted_total",
				Help:      "Events emitted by kind",
			},
			[]string{"kind"},
		),

		DashaBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dasha_tree_builds_total",
				Help:      "Dasha trees built by depth",
			},
			[]string{"depth"},
		),

		DashaBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dasha_tree_build_duration_seconds",
				Help:      "Dasha tree build duration in seconds",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Snapshot cache hits by backend",
			},
			[]string{"backend"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Snapshot cache misses by backend",
			},
			[]string{"backend"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_hit_ratio",
				Help:      "Snapshot cache hit ratio across backends (0.0 to 1.0)",
			},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration by route, method and status",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),

		ActiveStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_streams",
				Help:      "Open websocket snapshot streams",
			},
		),
	}

	reg.MustRegister(
		r.EphemerisCalls, r.EphemerisLatency,
		r.ScanDuration, r.ScanSteps, r.EventsEmitted,
		r.DashaBuilds, r.DashaBuildDuration,
		r.CacheHits, r.CacheMisses, r.CacheHitRatio,
		r.HTTPDuration, r.ActiveStreams,
	)
	return r
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveEphemerisCall implements ephemeris.CallObserver
func (r *Registry) ObserveEphemerisCall(method, body string, elapsed time.Duration, err error) {
	r.EphemerisCalls.WithLabelValues(method, body, result(err)).Inc()
	r.EphemerisLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveScan implements events.Observer
func (r *Registry) ObserveScan(elapsed time.Duration, steps int, err error) {
	r.ScanDuration.WithLabelValues(result(err)).Observe(elapsed.Seconds())
	r.ScanSteps.Add(float64(steps))
	if err != nil {
		log.Debug().Err(err).Int("steps", steps).Msg("Scan failed")
	}
}

// ObserveEvent implements events.Observer
func (r *Registry) ObserveEvent(kind events.Kind) {
	r.EventsEmitted.WithLabelValues(string(kind)).Inc()
}

// ObserveDashaBuild implements dasha.Observer
func (r *Registry) ObserveDashaBuild(depth int, elapsed time.Duration) {
	r.DashaBuilds.WithLabelValues(strconv.Itoa(depth)).Inc()
	r.DashaBuildDuration.Observe(elapsed.Seconds())
}

// ObserveCache implements cache.Observer
func (r *Registry) ObserveCache(backend string, hit bool) {
	r.mu.Lock()
	r.backends[backend] = struct{}{}
	r.mu.Unlock()

	if hit {
		r.CacheHits.WithLabelValues(backend).Inc()
	} else {
		r.CacheMisses.WithLabelValues(backend).Inc()
	}
	r.updateCacheHitRatio()
}

// ObserveHTTP records one served request
func (r *Registry) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	r.HTTPDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// StreamOpened and StreamClosed track websocket subscribers
func (r *Registry) StreamOpened() { r.ActiveStreams.Inc() }
func (r *Registry) StreamClosed() { r.ActiveStreams.Dec() }

// updateCacheHitRatio sums hits and misses over every backend seen so far
func (r *Registry) updateCacheHitRatio() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var hits, misses float64
	for backend := range r.backends {
		hits += counterValue(r.CacheHits, backend)
		misses += counterValue(r.CacheMisses, backend)
	}
	if total := hits + misses; total > 0 {
		r.CacheHitRatio.Set(hits / total)
	}
}

func counterValue(vec *prometheus.CounterVec, labels ...string) float64 {
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
