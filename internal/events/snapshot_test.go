package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
)

func TestSignAspects_SameAndOppositeSigns(t *testing.T) {
	ps := sidereal.NewPositionSet(time.Now(), 0, []sidereal.Position{
		{Body: catalog.Sun, Longitude: 5},
		{Body: catalog.Moon, Longitude: 25},
		{Body: catalog.Mars, Longitude: 190},
		{Body: catalog.Mercury, Longitude: 65},
		{Body: catalog.Jupiter, Longitude: 95},
		{Body: catalog.Venus, Longitude: 125},
		{Body: catalog.Saturn, Longitude: 155},
		{Body: catalog.Rahu, Longitude: 305},
	})

	got := SignAspects(ps)

	assert.Contains(t, got, SignAspect{Kind: KindConjunction, A: catalog.Sun, B: catalog.Moon, Sign: catalog.Sign(0)})
	assert.Contains(t, got, SignAspect{Kind: KindOpposition, A: catalog.Sun, B: catalog.Mars, Sign: catalog.Sign(0)})
	assert.Contains(t, got, SignAspect{Kind: KindOpposition, A: catalog.Moon, B: catalog.Mars, Sign: catalog.Sign(0)})
	assert.Contains(t, got, SignAspect{Kind: KindOpposition, A: catalog.Venus, B: catalog.Rahu, Sign: catalog.Sign(4)})
	assert.Contains(t, got, SignAspect{Kind: KindOpposition, A: catalog.Rahu, B: catalog.Ketu, Sign: catalog.Sign(10)})
	assert.Contains(t, got, SignAspect{Kind: KindConjunction, A: catalog.Venus, B: catalog.Ketu, Sign: catalog.Sign(4)})
	assert.Len(t, got, 6)
}

func TestEvent_KeyAndCountdown(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Event{
		Kind:         KindSignIngress,
		Participants: []catalog.Body{catalog.Moon},
		Target:       "Leo",
		Instant:      now.Add(90 * time.Minute),
	}
	assert.Equal(t, "sign_ingress|moon|Leo", e.Key())
	assert.Equal(t, 90*time.Minute, e.Countdown(now))
}

func TestSpan_Complete(t *testing.T) {
	assert.False(t, Span{}.Complete())
	assert.False(t, Span{Start: time.Now()}.Complete())
	assert.True(t, Span{Start: time.Now(), End: time.Now()}.Complete())
}

func TestPhaseWindowsFrom_IgnoresOtherKinds(t *testing.T) {
	t0 := time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)
	pw := PhaseWindowsFrom([]Event{
		{Kind: KindLunarPhase, Target: AmavasyaStart, Instant: t0},
		{Kind: KindConjunction, Target: AmavasyaEnd, Instant: t0.Add(time.Hour)},
		{Kind: KindLunarPhase, Target: AmavasyaEnd, Instant: t0.Add(20 * time.Hour)},
		{Kind: KindLunarPhase, Target: PurnimaStart, Instant: t0.Add(14 * 24 * time.Hour)},
	})
	assert.True(t, pw.Amavasya.Complete())
	assert.Equal(t, t0.Add(20*time.Hour), pw.Amavasya.End)
	assert.False(t, pw.Purnima.Complete())
}
