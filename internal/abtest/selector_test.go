package abtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-webinar/backend/internal/models"
)

func variant(weight float64, impressions, conversions int64) models.Variant {
	return models.Variant{ID: uuid.New(), Weight: weight, Impressions: impressions, Conversions: conversions}
}

func TestWeightedRandomRespectsWeights(t *testing.T) {
	s := NewSelector(1, 0)
	a := variant(90, 0, 0)
	b := variant(10, 0, 0)
	test := &models.ABTest{Algorithm: models.AlgorithmRandom}

	counts := map[uuid.UUID]int{}
	for i := 0; i < 5000; i++ {
		id, err := s.Select(test, []models.Variant{a, b})
		require.NoError(t, err)
		counts[id]++
	}
	assert.Greater(t, counts[a.ID], 4200)
	assert.Greater(t, counts[b.ID], 200)
}

func TestEpsilonGreedyExploitsBestArm(t *testing.T) {
	s := NewSelector(2, 0.1)
	good := variant(1, 1000, 300)
	bad := variant(1, 1000, 50)
	test := &models.ABTest{Algorithm: models.AlgorithmEpsilonGreedy}

	picks := map[uuid.UUID]int{}
	for i := 0; i < 2000; i++ {
		id, err := s.Select(test, []models.Variant{bad, good})
		require.NoError(t, err)
		picks[id]++
	}
	// ~90% exploitation of the better arm plus half of the exploration draws.
	assert.Greater(t, picks[good.ID], 1700)
	assert.Greater(t, picks[bad.ID], 20)
}

func TestEpsilonGreedyTieBreaksToLowestID(t *testing.T) {
	s := NewSelector(3, 0.0000001) // effectively pure exploitation
	a := variant(1, 100, 10)
	b := variant(1, 100, 10)
	lowest := a.ID
	if b.ID.String() < a.ID.String() {
		lowest = b.ID
	}
	test := &models.ABTest{Algorithm: models.AlgorithmEpsilonGreedy}
	for i := 0; i < 20; i++ {
		id, err := s.Select(test, []models.Variant{a, b})
		require.NoError(t, err)
		assert.Equal(t, lowest, id)
	}
}

func TestUCB1ColdStartCoversEveryArm(t *testing.T) {
	s := NewSelector(4, 0)
	seen := variant(1, 500, 250) // strong arm with data
	fresh1 := variant(1, 0, 0)
	fresh2 := variant(1, 0, 0)
	test := &models.ABTest{Algorithm: models.AlgorithmUCB1}

	// While any arm has zero impressions it must win over the seen arm.
	id, err := s.Select(test, []models.Variant{seen, fresh1, fresh2})
	require.NoError(t, err)
	assert.NotEqual(t, seen.ID, id)

	vars := []models.Variant{seen, fresh1, fresh2}
	picked := map[uuid.UUID]bool{}
	for i := 0; i < 2; i++ {
		id, err := s.Select(test, vars)
		require.NoError(t, err)
		picked[id] = true
		for j := range vars {
			if vars[j].ID == id {
				vars[j].Impressions++
			}
		}
	}
	assert.True(t, picked[fresh1.ID])
	assert.True(t, picked[fresh2.ID])
}

func TestUCB1PrefersBetterArmAtScale(t *testing.T) {
	s := NewSelector(5, 0)
	good := variant(1, 5000, 1500)
	bad := variant(1, 5000, 250)
	test := &models.ABTest{Algorithm: models.AlgorithmUCB1}

	id, err := s.Select(test, []models.Variant{bad, good})
	require.NoError(t, err)
	assert.Equal(t, good.ID, id)
}

func TestThompsonColdStartReachesEveryArm(t *testing.T) {
	s := NewSelector(6, 0)
	fresh1 := variant(1, 0, 0)
	fresh2 := variant(1, 0, 0)
	fresh3 := variant(1, 0, 0)
	test := &models.ABTest{Algorithm: models.AlgorithmThompsonSampling}

	picked := map[uuid.UUID]bool{}
	for i := 0; i < 200; i++ {
		id, err := s.Select(test, []models.Variant{fresh1, fresh2, fresh3})
		require.NoError(t, err)
		picked[id] = true
	}
	assert.Len(t, picked, 3)
}

func TestThompsonFavorsBetterPosterior(t *testing.T) {
	s := NewSelector(7, 0)
	good := variant(1, 2000, 600)
	bad := variant(1, 2000, 100)
	test := &models.ABTest{Algorithm: models.AlgorithmThompsonSampling}

	picks := map[uuid.UUID]int{}
	for i := 0; i < 500; i++ {
		id, err := s.Select(test, []models.Variant{bad, good})
		require.NoError(t, err)
		picks[id]++
	}
	assert.Greater(t, picks[good.ID], 480)
}

func TestCompletedTestAlwaysReturnsWinner(t *testing.T) {
	s := NewSelector(8, 0)
	a := variant(1, 10, 1)
	b := variant(1, 10, 9)
	winner := b.ID
	test := &models.ABTest{Algorithm: models.AlgorithmThompsonSampling, Status: models.ABTestCompleted, WinnerVariantID: &winner}

	for i := 0; i < 10; i++ {
		id, err := s.Select(test, []models.Variant{a, b})
		require.NoError(t, err)
		assert.Equal(t, winner, id)
	}
}

func TestSelectNoVariants(t *testing.T) {
	s := NewSelector(9, 0)
	_, err := s.Select(&models.ABTest{Algorithm: models.AlgorithmRandom}, nil)
	assert.ErrorIs(t, err, ErrNoVariants)
}
