// Package abtest runs offer experiments: online arm selection across
// variants and the significance analysis that decides a winner.
package abtest

import (
	"errors"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/evergreen-webinar/backend/internal/models"
)

// DefaultEpsilon is the exploration rate for epsilon-greedy.
const DefaultEpsilon = 0.1

// ErrNoVariants is returned when a test has no arms to choose from.
var ErrNoVariants = errors.New("test has no variants")

// Selector picks the variant a new session will see. Randomness comes from
// an injected source so selection is reproducible in tests. Safe for
// concurrent use.
type Selector struct {
	mu      sync.Mutex
	rng     *rand.Rand
	epsilon float64
}

// NewSelector creates a selector. epsilon <= 0 falls back to the default.
func NewSelector(seed int64, epsilon float64) *Selector {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Selector{rng: rand.New(rand.NewSource(seed)), epsilon: epsilon}
}

// Select returns the variant ID for a new session. A completed test with a
// declared winner always returns the winner (the bandit has collapsed to a
// single arm).
func (s *Selector) Select(test *models.ABTest, variants []models.Variant) (uuid.UUID, error) {
	if test.WinnerVariantID != nil {
		return *test.WinnerVariantID, nil
	}
	if len(variants) == 0 {
		return uuid.Nil, ErrNoVariants
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch test.Algorithm {
	case models.AlgorithmEpsilonGreedy:
		return s.epsilonGreedy(variants), nil
	case models.AlgorithmUCB1:
		return s.ucb1(variants), nil
	case models.AlgorithmThompsonSampling:
		return s.thompson(variants), nil
	default:
		return s.weightedRandom(variants), nil
	}
}

// weightedRandom draws proportionally to variant weights. Non-positive
// weights count as zero; if every weight is zero the draw is uniform.
func (s *Selector) weightedRandom(variants []models.Variant) uuid.UUID {
	total := 0.0
	for _, v := range variants {
		if v.Weight > 0 {
			total += v.Weight
		}
	}
	if total <= 0 {
		return variants[s.rng.Intn(len(variants))].ID
	}
	r := s.rng.Float64() * total
	for _, v := range variants {
		if v.Weight <= 0 {
			continue
		}
		r -= v.Weight
		if r <= 0 {
			return v.ID
		}
	}
	return variants[0].ID
}

// epsilonGreedy explores uniformly with probability epsilon, otherwise
// exploits the best observed conversion rate. Ties break to the lowest
// variant ID for determinism.
func (s *Selector) epsilonGreedy(variants []models.Variant) uuid.UUID {
	if s.rng.Float64() < s.epsilon {
		return variants[s.rng.Intn(len(variants))].ID
	}
	best := variants[0]
	for _, v := range variants[1:] {
		vr, br := v.ConversionRate(), best.ConversionRate()
		if vr > br || (vr == br && v.ID.String() < best.ID.String()) {
			best = v
		}
	}
	return best.ID
}

// ucb1 maximizes mean reward plus the exploration bonus. Every arm with zero
// impressions is tried before any arm with data.
func (s *Selector) ucb1(variants []models.Variant) uuid.UUID {
	var total int64
	for _, v := range variants {
		total += v.Impressions
	}
	if total == 0 {
		return variants[s.rng.Intn(len(variants))].ID
	}

	bestScore := math.Inf(-1)
	bestID := variants[0].ID
	for _, v := range variants {
		var score float64
		if v.Impressions == 0 {
			score = math.Inf(1)
		} else {
			score = v.ConversionRate() + math.Sqrt(2*math.Log(float64(total))/float64(v.Impressions))
		}
		if score > bestScore || (score == bestScore && v.ID.String() < bestID.String()) {
			bestScore = score
			bestID = v.ID
		}
	}
	return bestID
}

// thompson samples each arm's Beta(conversions+1, impressions-conversions+1)
// posterior and picks the argmax.
func (s *Selector) thompson(variants []models.Variant) uuid.UUID {
	bestSample := math.Inf(-1)
	bestID := variants[0].ID
	for _, v := range variants {
		alpha := float64(v.Conversions) + 1
		beta := float64(v.Impressions-v.Conversions) + 1
		sample := s.betaSample(alpha, beta)
		if sample > bestSample {
			bestSample = sample
			bestID = v.ID
		}
	}
	return bestID
}

// betaSample draws Beta(a, b) via two gamma draws.
func (s *Selector) betaSample(a, b float64) float64 {
	ga := s.gammaSample(a)
	gb := s.gammaSample(b)
	if ga+gb == 0 {
		return 0.5
	}
	return ga / (ga + gb)
}

// gammaSample draws Gamma(shape, 1) using Marsaglia-Tsang.
func (s *Selector) gammaSample(shape float64) float64 {
	if shape < 1 {
		return s.gammaSample(shape+1) * math.Pow(s.rng.Float64(), 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = s.rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := s.rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
