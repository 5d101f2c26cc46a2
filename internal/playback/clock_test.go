package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-webinar/backend/internal/models"
)

func liveSession(start time.Time) *models.WebinarSession {
	return &models.WebinarSession{Mode: models.ModeLive, StartReference: start}
}

func TestResolveLiveIgnoresClientPosition(t *testing.T) {
	r := NewResolver(10)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := liveSession(start)

	// Client claims to be way ahead; server wins.
	p := r.Resolve(s, 1800, 900, start.Add(120*time.Second))
	assert.Equal(t, 120, p.Seconds)
	assert.Equal(t, models.ModeLive, p.Mode)
	assert.True(t, p.Corrected)

	// Small drift inside tolerance is silently absorbed.
	p = r.Resolve(s, 1800, 117, start.Add(120*time.Second))
	assert.Equal(t, 120, p.Seconds)
	assert.False(t, p.Corrected)
}

func TestResolveLiveMonotonic(t *testing.T) {
	r := NewResolver(10)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := liveSession(start)

	prev := -1
	for i := 0; i < 300; i += 5 {
		p := r.Resolve(s, 1800, 0, start.Add(time.Duration(i)*time.Second))
		require.GreaterOrEqual(t, p.Seconds, prev)
		prev = p.Seconds
	}
}

func TestResolveScheduledFlipsToLive(t *testing.T) {
	r := NewResolver(10)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &models.WebinarSession{Mode: models.ModeScheduled, StartReference: start}

	p := r.Resolve(s, 1800, 0, start.Add(-90*time.Second))
	assert.Equal(t, models.ModeScheduled, p.Mode)
	assert.Equal(t, 90, p.SecondsUntilStart)
	assert.Equal(t, 0, p.Seconds)

	p = r.Resolve(s, 1800, 0, start.Add(30*time.Second))
	assert.Equal(t, models.ModeLive, p.Mode)
	assert.Equal(t, 30, p.Seconds)
}

func TestResolveEndsAtDuration(t *testing.T) {
	r := NewResolver(10)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := liveSession(start)

	p := r.Resolve(s, 1800, 0, start.Add(1800*time.Second))
	assert.Equal(t, models.ModeEnded, p.Mode)
	assert.Equal(t, 1800, p.Seconds)

	// ENDED is terminal regardless of the clock.
	s.Mode = models.ModeEnded
	p = r.Resolve(s, 1800, 5, start)
	assert.Equal(t, models.ModeEnded, p.Mode)
}

func TestResolveReplayClientControlled(t *testing.T) {
	r := NewResolver(10)
	s := &models.WebinarSession{Mode: models.ModeReplay}
	now := time.Now()

	p := r.Resolve(s, 1800, 444, now)
	assert.Equal(t, 444, p.Seconds)
	assert.Equal(t, models.ModeReplay, p.Mode)

	p = r.Resolve(s, 1800, -20, now)
	assert.Equal(t, 0, p.Seconds)

	p = r.Resolve(s, 1800, 5000, now)
	assert.Equal(t, models.ModeEnded, p.Mode)
	assert.Equal(t, 1800, p.Seconds)
}

func TestCompletionPercent(t *testing.T) {
	assert.InDelta(t, 50, CompletionPercent(900, 1800), 0.001)
	assert.Equal(t, float64(100), CompletionPercent(2000, 1800))
	assert.Equal(t, float64(0), CompletionPercent(10, 0))
}
