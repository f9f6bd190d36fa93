// Package cache stores rendered snapshots keyed by exact instant and
// observer location.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache is a byte store with per-entry TTL
type Cache interface {
	// Get returns false on a miss; err is reserved for backend failures
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Backend names the implementation for logs and metrics
	Backend() string
}

// Observer receives hit and miss counts
type Observer interface {
	ObserveCache(backend string, hit bool)
}

// Config selects and tunes the cache backend
type Config struct {
	Enabled bool          `yaml:"enabled"`
	Backend string        `yaml:"backend"` // memory or redis
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// DefaultConfig keeps snapshots in memory for ten minutes
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Backend: "memory",
		TTL:     10 * time.Minute,
		Redis:   DefaultRedisConfig(),
	}
}

// New builds the configured backend. An unreachable Redis falls back to
// memory so a cache outage never takes the service down.
func New(cfg Config) (Cache, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		r, err := NewRedis(cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, using in-memory cache")
			return NewMemory(), nil
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// SnapshotKey identifies a snapshot by exact instant, observer and node
// mode. Distinct instants never share a key.
func SnapshotKey(t time.Time, lat, lon float64, node string) string {
	return "snapshot:" + strconv.FormatInt(t.UnixNano(), 10) + ":" +
		strconv.FormatFloat(lat, 'f', 4, 64) + ":" +
		strconv.FormatFloat(lon, 'f', 4, 64) + ":" + node
}

// Memory is a process-local cache
type Memory struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory creates an empty in-memory cache
func NewMemory() *Memory {
	return &Memory{m: make(map[string]entry), now: time.Now}
}

// Get implements Cache
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.b...), true, nil
}

// Set implements Cache; ttl <= 0 keeps the entry until deleted
func (c *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.m[key] = e
	return nil
}

// Delete implements Cache
func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Backend implements Cache
func (c *Memory) Backend() string { return "memory" }

// Noop never stores anything
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error                     { return nil }
func (Noop) Backend() string                                          { return "noop" }

type observed struct {
	Cache
	obs Observer
}

// Observed reports every Get outcome to obs
func Observed(c Cache, obs Observer) Cache {
	if obs == nil {
		return c
	}
	return &observed{Cache: c, obs: obs}
}

func (o *observed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := o.Cache.Get(ctx, key)
	if err == nil {
		o.obs.ObserveCache(o.Backend(), ok)
	}
	return val, ok, err
}

// Close releases c when its backend holds connections
func Close(c Cache) error {
	if o, ok := c.(*observed); ok {
		c = o.Cache
	}
	if closer, ok := c.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
