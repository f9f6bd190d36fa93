package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter applies a token bucket per ephemeris host so one slow upstream does
// not starve calls to another.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewLimiter creates a limiter with the given requests per second and burst.
// A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	limit := rate.Limit(l.rps)
	if l.rps <= 0 {
		limit = rate.Inf
	}
	limiter = rate.NewLimiter(limit, l.burst)
	l.limiters[host] = limiter
	return limiter
}

// Allow reports whether a call to host may proceed now
func (l *Limiter) Allow(host string) bool {
	return l.bucket(host).Allow()
}

// Wait blocks until a call to host is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.bucket(host).Wait(ctx)
}

// Stats returns a snapshot of every host bucket
func (l *Limiter) Stats() map[string]Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Stats, len(l.limiters))
	for host, limiter := range l.limiters {
		out[host] = Stats{
			Host:            host,
			RPS:             float64(limiter.Limit()),
			Burst:           limiter.Burst(),
			TokensAvailable: limiter.TokensAt(time.Now()),
		}
	}
	return out
}

// Stats describes one host bucket
type Stats struct {
	Host            string  `json:"host"`
	RPS             float64 `json:"rps"`
	Burst           int     `json:"burst"`
	TokensAvailable float64 `json:"tokens_available"`
}

// Throttled reports whether the bucket is empty
func (s Stats) Throttled() bool {
	return s.TokensAvailable < 1
}
