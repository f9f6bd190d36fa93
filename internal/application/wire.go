package application

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/cache"
	"github.com/sawpanic/vedicwatch/internal/config"
	"github.com/sawpanic/vedicwatch/internal/dasha"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
	"github.com/sawpanic/vedicwatch/internal/events"
	"github.com/sawpanic/vedicwatch/internal/infrastructure/db"
	"github.com/sawpanic/vedicwatch/internal/metrics"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
)

// Deps are optional collaborators owned by the caller
type Deps struct {
	Metrics  *metrics.Registry
	Progress events.ProgressFactory
}

// NewAdapter builds the configured ephemeris provider
func NewAdapter(cfg config.EphemerisConfig) (ephemeris.Adapter, error) {
	mode, err := ephemeris.ParseNodeMode(cfg.Node)
	if err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case "", "analytic":
		return ephemeris.NewAnalytic(ephemeris.WithNodeMode(mode)), nil
	case "remote":
		remote, err := ephemeris.NewRemote(cfg.Remote, nil)
		if err != nil {
			return nil, err
		}
		return remote, nil
	default:
		return nil, fmt.Errorf("unknown ephemeris provider %q", cfg.Provider)
	}
}

// Build wires a Service from configuration: provider, scanner, dasha engine,
// snapshot cache and event journal
func Build(cfg *config.Config, deps Deps) (*Service, error) {
	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	adapter, err := NewAdapter(cfg.Ephemeris)
	if err != nil {
		return nil, fmt.Errorf("failed to create ephemeris adapter: %w", err)
	}

	scanOpts := []events.ScannerOption{
		events.WithWorkers(cfg.Scan.Workers),
		events.WithChunkSize(cfg.Scan.ChunkSize),
	}
	if deps.Progress != nil {
		scanOpts = append(scanOpts, events.WithProgress(deps.Progress))
	}

	var dashaObs dasha.Observer
	var cacheObs cache.Observer
	if deps.Metrics != nil {
		adapter = ephemeris.Metered(adapter, deps.Metrics)
		scanOpts = append(scanOpts, events.WithObserver(deps.Metrics))
		dashaObs = deps.Metrics
		cacheObs = deps.Metrics
	}

	resolver := sidereal.NewResolver(adapter)
	scanner := events.NewScanner(resolver, scanOpts...)
	engine := dasha.NewEngine(resolver, dashaObs)

	opts := []Option{}
	if cfg.Cache.Enabled {
		c, err := cache.New(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("failed to create snapshot cache: %w", err)
		}
		opts = append(opts, WithCache(cache.Observed(c, cacheObs)))
	}

	manager, err := db.NewManager(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	opts = append(opts, WithJournal(db.NewJournal(manager)))

	svc := NewService(resolver, scanner, engine, settings, opts...)

	log.Info().
		Str("provider", cfg.Ephemeris.Provider).
		Str("node", settings.Node).
		Str("site", settings.Site.Name).
		Str("cache", svc.CacheBackend()).
		Bool("journal", manager.IsEnabled()).
		Msg("Service ready")
	return svc, nil
}
