// Package attendees produces a believable fake viewer count: a smooth target
// curve over playback progress, approached in bounded steps with small jitter
// so the number never jumps in a way a real audience would not.
package attendees

import (
	"math"
	"math/rand"
	"sync"
)

// Config bounds the simulation. Min <= Max is validated at authoring time.
type Config struct {
	Min int
	Max int
	// PeakProgress is where in playback (0..1) the audience peaks. Zero
	// value falls back to DefaultPeakProgress.
	PeakProgress float64
}

// DefaultPeakProgress puts the audience peak a third of the way in, after
// the late joiners have arrived.
const DefaultPeakProgress = 0.3

// Simulator steps a count toward the target curve. All randomness comes from
// the injected source so runs are reproducible under a fixed seed.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a simulator seeded for reproducibility.
func New(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// Target is the deterministic audience curve: ease-in-out climb from Min to
// Max until the peak, then exponential decay toward Min + 20% of the range.
func Target(cfg Config, progress float64) int {
	peak := cfg.PeakProgress
	if peak <= 0 || peak >= 1 {
		peak = DefaultPeakProgress
	}
	progress = math.Max(0, math.Min(1, progress))
	span := float64(cfg.Max - cfg.Min)

	var base float64
	if progress < peak {
		t := progress / peak
		var ease float64
		if t < 0.5 {
			ease = 2 * t * t
		} else {
			ease = 1 - math.Pow(-2*t+2, 2)/2
		}
		base = float64(cfg.Min) + span*ease
	} else {
		t := (progress - peak) / (1 - peak)
		decay := math.Exp(-1.5 * t)
		floor := float64(cfg.Min) + span*0.2
		base = floor + (float64(cfg.Max)-floor)*decay
	}
	return clamp(int(math.Round(base)), cfg.Min, cfg.Max)
}

// Next steps previous toward the target by at most 5% of the range per tick
// and adds +/-2 jitter, clamped to [Min, Max]. A zero previous count (fresh
// session) snaps straight to the target.
func (s *Simulator) Next(previous int, cfg Config, progress float64) int {
	target := Target(cfg, progress)
	if previous <= 0 {
		return target
	}

	maxStep := (cfg.Max - cfg.Min) / 20
	if maxStep < 1 {
		maxStep = 1
	}
	next := target
	if delta := target - previous; delta > maxStep {
		next = previous + maxStep
	} else if delta < -maxStep {
		next = previous - maxStep
	}

	s.mu.Lock()
	jitter := s.rng.Intn(5) - 2
	s.mu.Unlock()

	return clamp(next+jitter, cfg.Min, cfg.Max)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
