package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/config"
	"github.com/sawpanic/vedicwatch/internal/events"
	vlog "github.com/sawpanic/vedicwatch/internal/log"
	"github.com/sawpanic/vedicwatch/internal/metrics"
)

const (
	appName = "vedicwatch"
	version = "v0.4.0"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	at         string
	location   string
	lat        float64
	lon        float64
	json       bool
}

// app carries what PersistentPreRunE builds for the subcommands
type app struct {
	flags   globalFlags
	out     io.Writer
	errOut  io.Writer
	cfg     *config.Config
	svc     *application.Service
	metrics *metrics.Registry
}

func main() {
	a := &app{out: os.Stdout, errOut: os.Stderr}
	err := a.rootCmd().Execute()
	a.close()
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Sidereal positions, divisional charts, transit events and dashas",
		Version: version,
		Long: `vedicwatch computes Lahiri sidereal positions, whole-sign house charts
(D1, D9, D10), Sarvashtakavarga strength, upcoming transit events and the
Vimshottari dasha tree for an observer, from the CLI or as a JSON API.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "config/vedicwatch.yaml", "Configuration file (missing file uses defaults)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug|info|warn|error), overrides config")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "Log format (auto|console|json), overrides config")
	pf.StringVar(&a.flags.at, "at", "now", "Instant as RFC3339 or now")
	pf.StringVar(&a.flags.location, "location", "", "Named observer location from config")
	pf.Float64Var(&a.flags.lat, "lat", 0, "Observer latitude, north positive (requires --lon)")
	pf.Float64Var(&a.flags.lon, "lon", 0, "Observer longitude, east positive (requires --lat)")
	pf.BoolVar(&a.flags.json, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(a.positionsCmd())
	rootCmd.AddCommand(a.chartCmd())
	rootCmd.AddCommand(a.eventsCmd())
	rootCmd.AddCommand(a.dashaCmd())
	rootCmd.AddCommand(a.serveCmd())
	return rootCmd
}

// setup loads configuration, configures logging and builds the service
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	opts := vlog.DefaultOptions()
	opts.Out = a.errOut
	opts.Level = firstNonEmpty(a.flags.logLevel, cfg.Log.Level, opts.Level)
	opts.Format = firstNonEmpty(a.flags.logFormat, cfg.Log.Format, opts.Format)
	if err := vlog.Setup(opts); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewRegistry(reg, reg)

	svc, err := application.Build(cfg, application.Deps{
		Metrics:  a.metrics,
		Progress: a.progressFactory(),
	})
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	a.svc = svc
	return nil
}

// loadConfig reads the config file and applies the observer flags over it
func (a *app) loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyObserverFlags(cfg, fs, a.flags); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyObserverFlags lets --location or --lat/--lon replace the configured
// observer. The result is validated by resolving it.
func applyObserverFlags(cfg *config.Config, fs *pflag.FlagSet, f globalFlags) error {
	latSet, lonSet := fs.Changed("lat"), fs.Changed("lon")
	if latSet != lonSet {
		return fmt.Errorf("%w: --lat and --lon must be given together", config.ErrInvalidConfig)
	}
	if fs.Changed("location") {
		cfg.Observer.Location = f.location
		cfg.Observer.Latitude, cfg.Observer.Longitude = nil, nil
	}
	if latSet {
		lat, lon := f.lat, f.lon
		cfg.Observer.Latitude, cfg.Observer.Longitude = &lat, &lon
		if !fs.Changed("location") {
			cfg.Observer.Location = "custom"
		}
	}
	if _, err := cfg.DefaultObserver(); err != nil {
		return err
	}
	return nil
}

// progressFactory renders scan progress on a terminal; elsewhere only the
// completion line is logged
func (a *app) progressFactory() events.ProgressFactory {
	pc := vlog.QuietProgressConfig()
	if !a.flags.json && vlog.IsTerminal(a.errOut) {
		pc = vlog.DefaultProgressConfig()
	}
	return func(name string, total int) events.Progress {
		return vlog.NewProgressIndicator(a.errOut, name, total, pc)
	}
}

// instant resolves --at
func (a *app) instant() (time.Time, error) {
	return parseInstant(a.flags.at, a.svc.Now)
}

func parseInstant(raw string, now func() time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "now") {
		return now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: --at must be RFC3339 or now, got %q", application.ErrInvalidRequest, raw)
}

func (a *app) close() {
	if a.svc == nil {
		return
	}
	if err := a.svc.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close service")
	}
	a.svc = nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
