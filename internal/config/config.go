// Package config loads the vedicwatch YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/vedicwatch/internal/cache"
	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/ephemeris"
	"github.com/sawpanic/vedicwatch/internal/events"
	"github.com/sawpanic/vedicwatch/internal/infrastructure/db"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// MinStreamInterval is the fastest websocket push the server allows
const MinStreamInterval = time.Minute

// Config is the complete application configuration
type Config struct {
	Ephemeris EphemerisConfig     `yaml:"ephemeris"`
	Observer  ObserverConfig      `yaml:"observer"`
	Locations map[string]Location `yaml:"locations"`
	Scan      ScanConfig          `yaml:"scan"`
	Dasha     DashaConfig         `yaml:"dasha"`
	HTTP      HTTPConfig          `yaml:"http"`
	Log       LogConfig           `yaml:"log"`
	Cache     cache.Config        `yaml:"cache"`
	Database  db.Config           `yaml:"database"`
}

// EphemerisConfig selects the position provider
type EphemerisConfig struct {
	Provider string                 `yaml:"provider"` // analytic or remote
	Node     string                 `yaml:"node"`     // mean or true
	Remote   ephemeris.RemoteConfig `yaml:"remote"`
}

// ObserverConfig names the default observer. Latitude and Longitude, when
// set, override the named location.
type ObserverConfig struct {
	Location  string   `yaml:"location"`
	Latitude  *float64 `yaml:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty"`
}

// Location is a named observer site in degrees, east and north positive
type Location struct {
	Name      string  `yaml:"name" json:"name"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// ScanConfig sets scanner concurrency and per-kind window defaults
type ScanConfig struct {
	Workers            int     `yaml:"workers"`
	ChunkSize          int     `yaml:"chunk_size"`
	PhaseDays          float64 `yaml:"phase_days"`
	PhaseStepMinutes   int     `yaml:"phase_step_minutes"`
	AspectDays         float64 `yaml:"aspect_days"`
	AspectStepMinutes  int     `yaml:"aspect_step_minutes"`
	IngressDays        float64 `yaml:"ingress_days"`
	IngressStepMinutes int     `yaml:"ingress_step_minutes"`
}

// DashaConfig sets tree depths
type DashaConfig struct {
	Depth        int `yaml:"depth"`
	MaxHTTPDepth int `yaml:"max_http_depth"`
}

// HTTPConfig configures the serve command
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	StreamInterval time.Duration `yaml:"stream_interval"`
	EventsMaxDays  float64       `yaml:"events_max_days"`
}

// LogConfig configures zerolog
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultLocations are the observer sites available without configuration
func DefaultLocations() map[string]Location {
	return map[string]Location{
		"ujjain": {Name: "Ujjain", Latitude: 23.1765, Longitude: 75.7885},
		"delhi":  {Name: "Delhi", Latitude: 28.6139, Longitude: 77.2090},
		"mumbai": {Name: "Mumbai", Latitude: 19.07598, Longitude: 72.87766},
	}
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Ephemeris: EphemerisConfig{
			Provider: "analytic",
			Node:     "mean",
			Remote:   ephemeris.DefaultRemoteConfig(),
		},
		Observer:  ObserverConfig{Location: "delhi"},
		Locations: DefaultLocations(),
		Scan: ScanConfig{
			Workers:            4,
			ChunkSize:          96,
			PhaseDays:          events.PhaseScanDays,
			PhaseStepMinutes:   events.PhaseScanStep,
			AspectDays:         events.AspectScanDays,
			AspectStepMinutes:  events.AspectScanStep,
			IngressDays:        events.IngressScanDays,
			IngressStepMinutes: events.IngressScanStep,
		},
		Dasha: DashaConfig{Depth: 3, MaxHTTPDepth: 4},
		HTTP: HTTPConfig{
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    2 * time.Minute,
			StreamInterval: time.Minute,
			EventsMaxDays:  90,
		},
		Log:      LogConfig{Level: "info", Format: "auto"},
		Cache:    cache.DefaultConfig(),
		Database: db.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.fillDefaults()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults restores defaults for zeroed fields and merges the built-in
// locations under any configured ones
func (c *Config) fillDefaults() {
	d := Default()
	locations := make(map[string]Location, len(c.Locations)+len(d.Locations))
	for name, loc := range d.Locations {
		locations[name] = loc
	}
	for name, loc := range c.Locations {
		locations[strings.ToLower(name)] = loc
	}
	c.Locations = locations

	if c.Ephemeris.Remote.Timeout == 0 {
		c.Ephemeris.Remote.Timeout = d.Ephemeris.Remote.Timeout
	}
	if c.Scan.Workers == 0 {
		c.Scan.Workers = d.Scan.Workers
	}
	if c.Scan.ChunkSize == 0 {
		c.Scan.ChunkSize = d.Scan.ChunkSize
	}
	if c.HTTP.StreamInterval == 0 {
		c.HTTP.StreamInterval = d.HTTP.StreamInterval
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	c.Database.FillDefaults()
}

// applyEnvOverrides applies environment variable overrides for addresses
// and secrets
func applyEnvOverrides(c *Config) {
	if addr := os.Getenv("VEDICWATCH_REDIS_ADDR"); addr != "" {
		c.Cache.Redis.Addr = addr
		c.Cache.Backend = "redis"
		c.Cache.Enabled = true
	}

	if pw := os.Getenv("VEDICWATCH_REDIS_PASSWORD"); pw != "" {
		c.Cache.Redis.Password = pw
	}

	if dsn := os.Getenv("VEDICWATCH_PG_DSN"); dsn != "" {
		c.Database.Enabled = true
	}
	c.Database.ApplyEnvOverrides()

	if port := os.Getenv("HTTP_PORT"); port != "" {
		if val, err := strconv.Atoi(port); err == nil {
			c.HTTP.Port = val
		}
	}

	if url := os.Getenv("VEDICWATCH_EPHEMERIS_URL"); url != "" {
		c.Ephemeris.Remote.BaseURL = url
		c.Ephemeris.Provider = "remote"
	}
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	switch c.Ephemeris.Provider {
	case "analytic":
	case "remote":
		if c.Ephemeris.Remote.BaseURL == "" {
			return fmt.Errorf("%w: ephemeris.remote.base_url is required for the remote provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown ephemeris provider %q", ErrInvalidConfig, c.Ephemeris.Provider)
	}
	if _, err := ephemeris.ParseNodeMode(c.Ephemeris.Node); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if r := c.Ephemeris.Remote; r.DailyBudget < 0 || r.BudgetResetHour < 0 || r.BudgetResetHour > 23 {
		return fmt.Errorf("%w: ephemeris.remote budget needs a non-negative limit and a reset hour in 0..23", ErrInvalidConfig)
	}

	if _, err := c.DefaultObserver(); err != nil {
		return err
	}
	for name, loc := range c.Locations {
		if err := validateCoordinates(loc.Latitude, loc.Longitude); err != nil {
			return fmt.Errorf("%w: location %s: %w", ErrInvalidConfig, name, err)
		}
	}

	if c.Scan.Workers < 1 {
		return fmt.Errorf("%w: scan.workers must be positive, got %d", ErrInvalidConfig, c.Scan.Workers)
	}
	for name, w := range map[string]events.Window{
		"phase":   {Days: c.Scan.PhaseDays, StepMinutes: c.Scan.PhaseStepMinutes},
		"aspect":  {Days: c.Scan.AspectDays, StepMinutes: c.Scan.AspectStepMinutes},
		"ingress": {Days: c.Scan.IngressDays, StepMinutes: c.Scan.IngressStepMinutes},
	} {
		if w.Days <= 0 || w.StepMinutes <= 0 {
			return fmt.Errorf("%w: scan.%s window needs positive days and step", ErrInvalidConfig, name)
		}
		if w.Steps() > events.MaxSteps {
			return fmt.Errorf("%w: scan.%s window exceeds %d steps", ErrInvalidConfig, name, events.MaxSteps)
		}
	}

	if c.Dasha.Depth < 1 || c.Dasha.Depth > catalog.MaxDashaDepth {
		return fmt.Errorf("%w: dasha.depth must be 1..%d, got %d", ErrInvalidConfig, catalog.MaxDashaDepth, c.Dasha.Depth)
	}
	if c.Dasha.MaxHTTPDepth < 1 || c.Dasha.MaxHTTPDepth > catalog.MaxDashaDepth {
		return fmt.Errorf("%w: dasha.max_http_depth must be 1..%d, got %d", ErrInvalidConfig, catalog.MaxDashaDepth, c.Dasha.MaxHTTPDepth)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port out of range: %d", ErrInvalidConfig, c.HTTP.Port)
	}
	if c.HTTP.StreamInterval < MinStreamInterval {
		return fmt.Errorf("%w: http.stream_interval must be at least %v", ErrInvalidConfig, MinStreamInterval)
	}

	switch c.Log.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}

	if c.Cache.Enabled && c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("%w: cache.redis.addr is required for the redis backend", ErrInvalidConfig)
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("%w: database: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NodeMode returns the parsed node mode
func (c *Config) NodeMode() ephemeris.NodeMode {
	mode, _ := ephemeris.ParseNodeMode(c.Ephemeris.Node)
	return mode
}

// LookupLocation finds a named location, case-insensitively
func (c *Config) LookupLocation(name string) (Location, error) {
	loc, ok := c.Locations[strings.ToLower(name)]
	if !ok {
		return Location{}, fmt.Errorf("%w: unknown location %q (known: %s)", ErrInvalidConfig, name, strings.Join(c.LocationNames(), ", "))
	}
	if loc.Name == "" {
		loc.Name = name
	}
	return loc, nil
}

// LocationNames lists configured location keys in sorted order
func (c *Config) LocationNames() []string {
	names := make([]string, 0, len(c.Locations))
	for name := range c.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultObserver resolves the observer section into coordinates
func (c *Config) DefaultObserver() (Location, error) {
	o := c.Observer
	if o.Latitude != nil && o.Longitude != nil {
		if err := validateCoordinates(*o.Latitude, *o.Longitude); err != nil {
			return Location{}, fmt.Errorf("%w: observer: %w", ErrInvalidConfig, err)
		}
		name := o.Location
		if name == "" {
			name = "custom"
		}
		return Location{Name: name, Latitude: *o.Latitude, Longitude: *o.Longitude}, nil
	}
	if o.Latitude != nil || o.Longitude != nil {
		return Location{}, fmt.Errorf("%w: observer latitude and longitude must be set together", ErrInvalidConfig)
	}
	return c.LookupLocation(o.Location)
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	return nil
}
