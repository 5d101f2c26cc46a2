package abtest

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-webinar/backend/internal/models"
)

func testConfig(minSample int) *models.ABTest {
	return &models.ABTest{ConfidenceLevel: 0.95, MinSampleSize: minSample}
}

func TestAnalyzeSignificantWinner(t *testing.T) {
	control := models.Variant{ID: uuid.New(), IsControl: true, Impressions: 50, Clicks: 20, Conversions: 5}
	b := models.Variant{ID: uuid.New(), Impressions: 50, Clicks: 30, Conversions: 15}

	out := Analyze(testConfig(50), []models.Variant{control, b})
	require.True(t, out.SampleSizeMet)
	require.True(t, out.IsSignificant)
	require.NotNil(t, out.WinnerVariantID)
	assert.Equal(t, b.ID, *out.WinnerVariantID)
	require.NotNil(t, out.ImprovementPct)
	assert.InDelta(t, 200, *out.ImprovementPct, 0.001)
	require.NotNil(t, out.PValue)
	assert.Less(t, *out.PValue, 0.05)
}

func TestAnalyzeThinSampleNeverSignificant(t *testing.T) {
	control := models.Variant{ID: uuid.New(), IsControl: true, Impressions: 10, Conversions: 0}
	b := models.Variant{ID: uuid.New(), Impressions: 10, Conversions: 9}

	out := Analyze(testConfig(100), []models.Variant{control, b})
	assert.False(t, out.SampleSizeMet)
	assert.False(t, out.IsSignificant)
	assert.Nil(t, out.WinnerVariantID)
}

func TestAnalyzeIdenticalRatesNotSignificant(t *testing.T) {
	control := models.Variant{ID: uuid.New(), IsControl: true, Impressions: 5000, Conversions: 500}
	b := models.Variant{ID: uuid.New(), Impressions: 5000, Conversions: 500}

	out := Analyze(testConfig(100), []models.Variant{control, b})
	assert.False(t, out.IsSignificant)
	require.NotNil(t, out.PValue)
	assert.InDelta(t, 1.0, *out.PValue, 0.001)
}

func TestAnalyzeNullHypothesisFalsePositiveRate(t *testing.T) {
	// Monte Carlo sanity: equal true rates should only rarely read as
	// significant at 95% confidence.
	rng := rand.New(rand.NewSource(99))
	trials, falsePositives := 300, 0
	for i := 0; i < trials; i++ {
		control := models.Variant{ID: uuid.New(), IsControl: true, Impressions: 2000, Conversions: binomial(rng, 2000, 0.1)}
		b := models.Variant{ID: uuid.New(), Impressions: 2000, Conversions: binomial(rng, 2000, 0.1)}
		if Analyze(testConfig(100), []models.Variant{control, b}).IsSignificant {
			falsePositives++
		}
	}
	// Expected ~5%; allow generous headroom before calling it broken.
	assert.Less(t, falsePositives, trials/6)
}

func TestAnalyzeControlCanWin(t *testing.T) {
	control := models.Variant{ID: uuid.New(), IsControl: true, Impressions: 500, Conversions: 150}
	b := models.Variant{ID: uuid.New(), Impressions: 500, Conversions: 50}

	out := Analyze(testConfig(100), []models.Variant{control, b})
	require.True(t, out.IsSignificant)
	require.NotNil(t, out.WinnerVariantID)
	assert.Equal(t, control.ID, *out.WinnerVariantID)
	require.NotNil(t, out.ImprovementPct)
	assert.Equal(t, 0.0, *out.ImprovementPct)
}

func TestAnalyzeNoControl(t *testing.T) {
	b := models.Variant{ID: uuid.New(), Impressions: 500, Conversions: 250}
	out := Analyze(testConfig(100), []models.Variant{b})
	assert.False(t, out.IsSignificant)
	assert.Nil(t, out.PValue)
}

func TestAnalyzePicksBestTreatment(t *testing.T) {
	control := models.Variant{ID: uuid.New(), IsControl: true, Impressions: 1000, Conversions: 100}
	mid := models.Variant{ID: uuid.New(), Impressions: 1000, Conversions: 150}
	best := models.Variant{ID: uuid.New(), Impressions: 1000, Conversions: 300}

	out := Analyze(testConfig(100), []models.Variant{control, mid, best})
	require.True(t, out.IsSignificant)
	assert.Equal(t, best.ID, *out.WinnerVariantID)
}

func binomial(rng *rand.Rand, n int64, p float64) int64 {
	var k int64
	for i := int64(0); i < n; i++ {
		if rng.Float64() < p {
			k++
		}
	}
	return k
}
