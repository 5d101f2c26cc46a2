package attendees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStaysWithinBounds(t *testing.T) {
	sim := New(7)
	cfg := Config{Min: 40, Max: 250}

	count := sim.Next(0, cfg, 0)
	for i := 1; i <= 360; i++ {
		progress := float64(i) / 360
		count = sim.Next(count, cfg, progress)
		require.GreaterOrEqual(t, count, cfg.Min)
		require.LessOrEqual(t, count, cfg.Max)
	}
}

func TestNextStepIsBounded(t *testing.T) {
	sim := New(1)
	cfg := Config{Min: 0, Max: 1000}

	// Far below target: one tick may move at most 5% of range plus jitter.
	next := sim.Next(10, cfg, 0.3)
	assert.LessOrEqual(t, next-10, 52)
	assert.Greater(t, next, 10)

	// Far above target near the end: must fall, bounded.
	next = sim.Next(990, cfg, 0.99)
	assert.GreaterOrEqual(t, 990-next, 1)
	assert.LessOrEqual(t, 990-next, 52)
}

func TestDeterministicUnderSeed(t *testing.T) {
	cfg := Config{Min: 20, Max: 120}
	run := func() []int {
		sim := New(42)
		out := make([]int, 0, 50)
		count := sim.Next(0, cfg, 0)
		for i := 1; i <= 50; i++ {
			count = sim.Next(count, cfg, float64(i)/50)
			out = append(out, count)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestTargetCurveShape(t *testing.T) {
	cfg := Config{Min: 50, Max: 500}

	start := Target(cfg, 0)
	peak := Target(cfg, DefaultPeakProgress)
	end := Target(cfg, 1)

	assert.Equal(t, cfg.Min, start)
	assert.Equal(t, cfg.Max, peak)
	assert.Greater(t, end, cfg.Min) // tail never drains to the floor
	assert.Less(t, end, peak)

	// Progress outside [0,1] is clamped, not extrapolated.
	assert.Equal(t, Target(cfg, 0), Target(cfg, -3))
	assert.Equal(t, Target(cfg, 1), Target(cfg, 9))
}

func TestFreshSessionSnapsToTarget(t *testing.T) {
	sim := New(3)
	cfg := Config{Min: 10, Max: 90}
	assert.Equal(t, Target(cfg, 0.3), sim.Next(0, cfg, 0.3))
}
