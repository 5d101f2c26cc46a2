package models

import (
	"time"

	"github.com/google/uuid"
)

// ABTestStatus is the experiment lifecycle state.
type ABTestStatus string

const (
	ABTestDraft     ABTestStatus = "DRAFT"
	ABTestRunning   ABTestStatus = "RUNNING"
	ABTestPaused    ABTestStatus = "PAUSED"
	ABTestCompleted ABTestStatus = "COMPLETED"
)

// ABTestAlgorithm selects the bandit arm-selection strategy.
type ABTestAlgorithm string

const (
	AlgorithmRandom           ABTestAlgorithm = "RANDOM"
	AlgorithmEpsilonGreedy    ABTestAlgorithm = "EPSILON_GREEDY"
	AlgorithmUCB1             ABTestAlgorithm = "UCB1"
	AlgorithmThompsonSampling ABTestAlgorithm = "THOMPSON_SAMPLING"
)

// ABTest is an offer experiment reallocating traffic between variants.
type ABTest struct {
	ID              uuid.UUID       `json:"id"`
	OfferID         uuid.UUID       `json:"offer_id"`
	Name            string          `json:"name"`
	Status          ABTestStatus    `json:"status"`
	Algorithm       ABTestAlgorithm `json:"algorithm"`
	ConfidenceLevel float64         `json:"confidence_level"` // e.g. 0.95
	MinSampleSize   int             `json:"min_sample_size"`
	AutoOptimize    bool            `json:"auto_optimize"`
	WinnerVariantID *uuid.UUID      `json:"winner_variant_id,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Variant is one arm of an offer experiment. Counter columns are only ever
// mutated through atomic increments; conversions <= clicks <= impressions.
type Variant struct {
	ID        uuid.UUID `json:"id"`
	TestID    uuid.UUID `json:"test_id"`
	Name      string    `json:"name"`
	IsControl bool      `json:"is_control"`
	Weight    float64   `json:"weight"`

	// Content overrides applied to the base offer when this arm is assigned.
	Title            *string `json:"title,omitempty"`
	Description      *string `json:"description,omitempty"`
	ButtonText       *string `json:"button_text,omitempty"`
	ButtonURL        *string `json:"button_url,omitempty"`
	CountdownSeconds *int    `json:"countdown_seconds,omitempty"`
	LimitedSeats     *int    `json:"limited_seats,omitempty"`

	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Conversions int64     `json:"conversions"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversionRate returns conversions / impressions, 0 when unseen.
func (v *Variant) ConversionRate() float64 {
	if v.Impressions == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.Impressions)
}

// ABAssignment pins a session to one variant for its whole lifetime.
// The impressed/clicked/converted flags make event recording idempotent,
// which is what keeps the counter invariant intact under repeated heartbeats.
type ABAssignment struct {
	ID          uuid.UUID  `json:"id"`
	TestID      uuid.UUID  `json:"test_id"`
	VariantID   uuid.UUID  `json:"variant_id"`
	SessionID   uuid.UUID  `json:"session_id"`
	Impressed   bool       `json:"impressed"`
	Clicked     bool       `json:"clicked"`
	Converted   bool       `json:"converted"`
	ImpressedAt *time.Time `json:"impressed_at,omitempty"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
