package abtest

import (
	"math"

	"github.com/google/uuid"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Analysis is the significance verdict for a test at a point in time.
// A thin sample is a normal "not yet significant" state, never an error.
type Analysis struct {
	IsSignificant   bool       `json:"is_significant"`
	PValue          *float64   `json:"p_value,omitempty"`
	WinnerVariantID *uuid.UUID `json:"winner_variant_id,omitempty"`
	ImprovementPct  *float64   `json:"improvement_pct,omitempty"`
	ControlRate     float64    `json:"control_rate"`
	BestVariantRate float64    `json:"best_variant_rate"`
	SampleSizeMet   bool       `json:"sample_size_met"`
}

// Analyze runs a two-proportion z-test of the best non-control variant
// against the control at the test's confidence level. Both compared arms
// must have at least MinSampleSize impressions before a verdict is allowed.
func Analyze(test *models.ABTest, variants []models.Variant) Analysis {
	var control *models.Variant
	var treatments []models.Variant
	for i := range variants {
		if variants[i].IsControl {
			control = &variants[i]
		} else {
			treatments = append(treatments, variants[i])
		}
	}
	if control == nil || len(treatments) == 0 {
		return Analysis{}
	}

	best := treatments[0]
	for _, tr := range treatments[1:] {
		if tr.ConversionRate() > best.ConversionRate() {
			best = tr
		}
	}

	out := Analysis{
		ControlRate:     control.ConversionRate(),
		BestVariantRate: best.ConversionRate(),
	}
	out.SampleSizeMet = control.Impressions >= int64(test.MinSampleSize) &&
		best.Impressions >= int64(test.MinSampleSize)

	p := twoProportionPValue(control.Conversions, control.Impressions, best.Conversions, best.Impressions)
	out.PValue = &p

	if !out.SampleSizeMet {
		return out
	}

	alpha := 1 - test.ConfidenceLevel
	if p >= alpha {
		return out
	}

	out.IsSignificant = true
	if out.BestVariantRate > out.ControlRate {
		winner := best.ID
		out.WinnerVariantID = &winner
		if out.ControlRate > 0 {
			imp := (out.BestVariantRate - out.ControlRate) / out.ControlRate * 100
			out.ImprovementPct = &imp
		}
	} else {
		// Control is significantly better; it is the winner with no lift.
		winner := control.ID
		out.WinnerVariantID = &winner
		zero := 0.0
		out.ImprovementPct = &zero
	}
	return out
}

// twoProportionPValue is the two-tailed p-value of a pooled z-test.
func twoProportionPValue(successes1, trials1, successes2, trials2 int64) float64 {
	if trials1 == 0 || trials2 == 0 {
		return 1
	}
	p1 := float64(successes1) / float64(trials1)
	p2 := float64(successes2) / float64(trials2)
	pooled := float64(successes1+successes2) / float64(trials1+trials2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(trials1) + 1/float64(trials2)))
	if se == 0 {
		return 1
	}
	z := math.Abs(p2-p1) / se
	// 2*(1 - Phi(z)) collapses to erfc(z/sqrt(2)).
	return math.Erfc(z / math.Sqrt2)
}
