// Package application composes the sidereal core into the snapshot, chart,
// event and dasha operations the CLI and HTTP surfaces serve.
package application

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/config"
)

// ErrInvalidRequest marks caller input the service refuses
var ErrInvalidRequest = errors.New("invalid request")

// ErrNoAnchor is returned when the journal holds no matching dasha anchor
var ErrNoAnchor = errors.New("no journaled dasha anchor")

// MaxHistoryLimit caps the rows returned by one journal history read
const MaxHistoryLimit = 1000

// Site is an observer location in degrees, north and east positive
type Site struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"latitude"`
	Lon  float64 `json:"longitude"`
}

// Validate checks the coordinates are finite and in range
func (s Site) Validate() error {
	if math.IsNaN(s.Lat) || s.Lat < -90 || s.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidRequest, s.Lat)
	}
	if math.IsNaN(s.Lon) || s.Lon < -180 || s.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidRequest, s.Lon)
	}
	return nil
}

// ScanDefault is the lookahead used when a request leaves days or step unset
type ScanDefault struct {
	Days        float64
	StepMinutes int
}

// Settings are the reloadable parts of the configuration
type Settings struct {
	Site          Site
	Node          string
	DashaDepth    int
	MaxDashaDepth int
	CacheTTL      time.Duration
	Phase         ScanDefault
	Aspect        ScanDefault
	Ingress       ScanDefault
}

// SettingsFromConfig extracts the service settings from a loaded config
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	loc, err := cfg.DefaultObserver()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Site:          Site{Name: loc.Name, Lat: loc.Latitude, Lon: loc.Longitude},
		Node:          cfg.NodeMode().String(),
		DashaDepth:    cfg.Dasha.Depth,
		MaxDashaDepth: cfg.Dasha.MaxHTTPDepth,
		CacheTTL:      cfg.Cache.TTL,
		Phase:         ScanDefault{Days: cfg.Scan.PhaseDays, StepMinutes: cfg.Scan.PhaseStepMinutes},
		Aspect:        ScanDefault{Days: cfg.Scan.AspectDays, StepMinutes: cfg.Scan.AspectStepMinutes},
		Ingress:       ScanDefault{Days: cfg.Scan.IngressDays, StepMinutes: cfg.Scan.IngressStepMinutes},
	}, nil
}

// depthOrDefault resolves a requested dasha depth; 0 means the configured one
func (s Settings) depthOrDefault(depth int) (int, error) {
	if depth == 0 {
		depth = s.DashaDepth
	}
	if depth < 1 || depth > catalog.MaxDashaDepth {
		return 0, fmt.Errorf("%w: dasha depth %d not in 1..%d", ErrInvalidRequest, depth, catalog.MaxDashaDepth)
	}
	return depth, nil
}
