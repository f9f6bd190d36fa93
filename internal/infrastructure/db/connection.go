package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/persistence"
	"github.com/sawpanic/vedicwatch/internal/persistence/postgres"
)

// Manager manages database connections and repository instances
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
	health *healthChecker
}

// NewManager creates a new database manager with the given configuration
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{
			config: config,
			health: &healthChecker{enabled: false},
		}, nil
	}

	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m := NewManagerWithDB(db, config)
	if config.Migrate {
		if err := m.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	log.Info().
		Int("max_open_conns", config.MaxOpenConns).
		Dur("query_timeout", config.QueryTimeout).
		Msg("Database journal connected")

	return m, nil
}

// NewManagerWithDB wires the journal repositories over an already open
// connection
func NewManagerWithDB(db *sqlx.DB, config Config) *Manager {
	config.Enabled = true
	return &Manager{
		db:     db,
		config: config,
		repos: &persistence.Repository{
			Events:  postgres.NewEventsRepo(db, config.QueryTimeout),
			Anchors: postgres.NewDashaAnchorRepo(db, config.QueryTimeout),
		},
		health: &healthChecker{
			enabled: true,
			db:      db,
			timeout: config.QueryTimeout,
		},
	}
}

// Migrate creates the journal tables if they do not exist
func (m *Manager) Migrate(ctx context.Context) error {
	if !m.IsEnabled() {
		return fmt.Errorf("database is not enabled - cannot run migrations")
	}
	if err := postgres.Migrate(ctx, m.db); err != nil {
		return err
	}
	log.Info().Int("statements", len(postgres.Schema)).Msg("Database schema applied")
	return nil
}

// Repository returns the repository collection, or nil if database is disabled
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// Health returns the health checker interface
func (m *Manager) Health() persistence.RepositoryHealth {
	return m.health
}

// IsEnabled returns whether database persistence is enabled
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled && m.db != nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// healthChecker implements persistence.RepositoryHealth
type healthChecker struct {
	enabled bool
	db      *sqlx.DB
	timeout time.Duration
}

// Health pings the database and reports the pool
func (h *healthChecker) Health(ctx context.Context) persistence.HealthCheck {
	if !h.enabled {
		return persistence.HealthCheck{
			Healthy:        true,
			Errors:         []string{"Database persistence disabled"},
			ConnectionPool: map[string]int{"status": 0},
			LastCheck:      time.Now(),
		}
	}

	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	check := persistence.HealthCheck{Healthy: true, ConnectionPool: h.pool()}
	if err := h.db.PingContext(pingCtx); err != nil {
		check.Healthy = false
		check.Errors = append(check.Errors, fmt.Sprintf("ping failed: %v", err))
	}
	check.LastCheck = time.Now()
	check.ResponseTimeMS = time.Since(start).Milliseconds()
	return check
}

// Stats returns the connection pool counters
func (h *healthChecker) Stats(_ context.Context) map[string]interface{} {
	if !h.enabled {
		return map[string]interface{}{
			"enabled": false,
			"status":  "disabled",
		}
	}
	return map[string]interface{}{
		"enabled": true,
		"pool":    h.pool(),
	}
}

func (h *healthChecker) pool() map[string]int {
	stats := h.db.Stats()
	return map[string]int{
		"max_open":         stats.MaxOpenConnections,
		"open":             stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       int(stats.WaitCount),
		"wait_duration_ms": int(stats.WaitDuration.Milliseconds()),
	}
}
