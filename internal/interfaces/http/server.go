package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/config"
	"github.com/sawpanic/vedicwatch/internal/metrics"
)

// Server is the read-only HTTP API over the application service
type Server struct {
	router   *mux.Router
	server   *http.Server
	svc      *application.Service
	metrics  *metrics.Registry
	config   ServerConfig
	upgrader websocket.Upgrader
	started  time.Time

	done     chan struct{}
	doneOnce sync.Once
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	StreamInterval time.Duration
	EventsMaxDays  float64
	MaxDashaDepth  int
	Locations      map[string]config.Location
	Version        string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "127.0.0.1",
		Port:           8080,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    2 * time.Minute,
		RequestTimeout: 55 * time.Second,
		StreamInterval: config.MinStreamInterval,
		EventsMaxDays:  90,
		MaxDashaDepth:  4,
		Locations:      config.DefaultLocations(),
		Version:        "dev",
	}
}

// ServerConfigFrom derives the server settings from the loaded configuration
func ServerConfigFrom(cfg *config.Config) ServerConfig {
	sc := DefaultServerConfig()
	sc.Port = cfg.HTTP.Port
	sc.ReadTimeout = cfg.HTTP.ReadTimeout
	sc.WriteTimeout = cfg.HTTP.WriteTimeout
	sc.IdleTimeout = cfg.HTTP.IdleTimeout
	if cfg.HTTP.WriteTimeout > 5*time.Second {
		sc.RequestTimeout = cfg.HTTP.WriteTimeout - 5*time.Second
	}
	sc.StreamInterval = cfg.HTTP.StreamInterval
	sc.EventsMaxDays = cfg.HTTP.EventsMaxDays
	sc.MaxDashaDepth = cfg.Dasha.MaxHTTPDepth
	sc.Locations = cfg.Locations
	return sc
}

// NewServer creates a new HTTP server instance. reg may be nil.
func NewServer(cfg ServerConfig, svc *application.Service, reg *metrics.Registry) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		svc:     svc,
		metrics: reg,
		config:  cfg,
		started: time.Now(),
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 << 10,
		},
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.HandleFunc("/v1/stream", s.handleStream).Methods(http.MethodGet)

	api := s.router.NewRoute().Subrouter()
	api.Use(s.timeoutMiddleware)
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/v1/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/v1/positions", s.handlePositions).Methods(http.MethodGet)
	api.HandleFunc("/v1/chart/{varga}", s.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/v1/strength", s.handleStrength).Methods(http.MethodGet)
	api.HandleFunc("/v1/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/v1/events/journal", s.handleEventsJournal).Methods(http.MethodGet)
	api.HandleFunc("/v1/dasha", s.handleDasha).Methods(http.MethodGet)
	api.HandleFunc("/v1/dasha/anchor", s.handleDashaAnchor).Methods(http.MethodGet)
	api.HandleFunc("/v1/ephemeris/position", s.handleEphemerisPosition).Methods(http.MethodGet)
	api.HandleFunc("/v1/ephemeris/ayanamsa", s.handleEphemerisAyanamsa).Methods(http.MethodGet)
	api.HandleFunc("/v1/ephemeris/ascendant", s.handleEphemerisAscendant).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the id assigned to the request carried by ctx
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// requestIDMiddleware adds unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLoggingMiddleware logs every request and records its duration
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, wrapper.statusCode, duration)
		}

		log.Info().
			Str("request_id", RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("Request served")
	})
}

// timeoutMiddleware enforces request timeouts
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timeout := s.config.RequestTimeout
		if timeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jsonContentTypeMiddleware sets JSON content type for API responses
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Address())
	if err != nil {
		return fmt.Errorf("port %d is busy or unavailable: %w", s.config.Port, err)
	}

	log.Info().
		Str("addr", s.Address()).
		Dur("stream_interval", s.config.StreamInterval).
		Msg("Starting HTTP server")

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops open streams and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	s.doneOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}

// Address returns the listen address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// responseWrapper captures HTTP status codes for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}
