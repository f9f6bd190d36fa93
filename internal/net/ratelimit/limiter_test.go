package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow_Burst(t *testing.T) {
	limiter := NewLimiter(2.0, 2)

	assert.True(t, limiter.Allow("ephem.local"))
	assert.True(t, limiter.Allow("ephem.local"))
	assert.False(t, limiter.Allow("ephem.local"), "third call should be throttled")
}

func TestLimiter_Allow_IndependentHosts(t *testing.T) {
	limiter := NewLimiter(1.0, 1)

	assert.True(t, limiter.Allow("a.local"))
	assert.True(t, limiter.Allow("b.local"))
	assert.False(t, limiter.Allow("a.local"))
	assert.False(t, limiter.Allow("b.local"))
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow("ephem.local"))
	}
}

func TestLimiter_Wait_ContextCancelled(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	require.True(t, limiter.Allow("slow.local"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx, "slow.local")
	assert.Error(t, err)
}

func TestLimiter_Stats(t *testing.T) {
	limiter := NewLimiter(5, 3)
	limiter.Allow("ephem.local")

	stats := limiter.Stats()
	require.Contains(t, stats, "ephem.local")
	s := stats["ephem.local"]
	assert.Equal(t, 3, s.Burst)
	assert.InDelta(t, 5.0, s.RPS, 1e-9)
	assert.False(t, s.Throttled())
}
