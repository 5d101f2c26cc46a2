package abtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-webinar/backend/internal/models"
)

// fakeStore is an in-memory Store with the same once-only event semantics as
// the SQL layer.
type fakeStore struct {
	test        *models.ABTest
	variants    []models.Variant
	assignments map[string]*models.ABAssignment // test_id|session_id
	completed   *uuid.UUID
}

func newFakeStore(test *models.ABTest, variants []models.Variant) *fakeStore {
	return &fakeStore{test: test, variants: variants, assignments: map[string]*models.ABAssignment{}}
}

func (f *fakeStore) key(testID, sessionID uuid.UUID) string {
	return testID.String() + "|" + sessionID.String()
}

func (f *fakeStore) GetRunningTestByOffer(ctx context.Context, offerID uuid.UUID) (*models.ABTest, error) {
	if f.test != nil && f.test.OfferID == offerID {
		return f.test, nil
	}
	return nil, nil
}

func (f *fakeStore) GetTest(ctx context.Context, id uuid.UUID) (*models.ABTest, error) {
	return f.test, nil
}

func (f *fakeStore) ListVariants(ctx context.Context, testID uuid.UUID) ([]models.Variant, error) {
	return append([]models.Variant(nil), f.variants...), nil
}

func (f *fakeStore) GetAssignment(ctx context.Context, testID, sessionID uuid.UUID) (*models.ABAssignment, error) {
	return f.assignments[f.key(testID, sessionID)], nil
}

func (f *fakeStore) CreateAssignment(ctx context.Context, testID, variantID, sessionID uuid.UUID) (*models.ABAssignment, error) {
	if a := f.assignments[f.key(testID, sessionID)]; a != nil {
		return a, nil
	}
	a := &models.ABAssignment{ID: uuid.New(), TestID: testID, VariantID: variantID, SessionID: sessionID, CreatedAt: time.Now()}
	f.assignments[f.key(testID, sessionID)] = a
	return a, nil
}

func (f *fakeStore) mark(assignmentID uuid.UUID, flag func(a *models.ABAssignment) *bool, counter func(v *models.Variant) *int64) (bool, error) {
	for _, a := range f.assignments {
		if a.ID != assignmentID {
			continue
		}
		fl := flag(a)
		if *fl {
			return false, nil
		}
		*fl = true
		for i := range f.variants {
			if f.variants[i].ID == a.VariantID {
				*counter(&f.variants[i])++
			}
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) MarkImpressed(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.mark(id, func(a *models.ABAssignment) *bool { return &a.Impressed }, func(v *models.Variant) *int64 { return &v.Impressions })
}

func (f *fakeStore) MarkClicked(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.mark(id, func(a *models.ABAssignment) *bool { return &a.Clicked }, func(v *models.Variant) *int64 { return &v.Clicks })
}

func (f *fakeStore) MarkConverted(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.mark(id, func(a *models.ABAssignment) *bool { return &a.Converted }, func(v *models.Variant) *int64 { return &v.Conversions })
}

func (f *fakeStore) Complete(ctx context.Context, id, winnerID uuid.UUID) error {
	f.completed = &winnerID
	f.test.Status = models.ABTestCompleted
	f.test.WinnerVariantID = &winnerID
	return nil
}

func strPtr(s string) *string { return &s }

func runningTest(offerID uuid.UUID) *models.ABTest {
	return &models.ABTest{
		ID: uuid.New(), OfferID: offerID, Status: models.ABTestRunning,
		Algorithm: models.AlgorithmRandom, ConfidenceLevel: 0.95, MinSampleSize: 50,
	}
}

func TestResolveOfferAppliesVariantAndPinsSession(t *testing.T) {
	offer := models.TimedOffer{ID: uuid.New(), Title: "Base", ButtonText: "Buy", ButtonURL: "https://x"}
	test := runningTest(offer.ID)
	control := models.Variant{ID: uuid.New(), TestID: test.ID, IsControl: true, Weight: 1}
	b := models.Variant{ID: uuid.New(), TestID: test.ID, Weight: 1, Title: strPtr("Special"), ButtonText: strPtr("Grab it")}
	store := newFakeStore(test, []models.Variant{control, b})
	svc := NewService(store, NewSelector(11, 0), nil)

	sessionID := uuid.New()
	first, err := svc.ResolveOffer(context.Background(), offer, sessionID)
	require.NoError(t, err)

	// Same session keeps the same variant on every later sync.
	for i := 0; i < 5; i++ {
		again, err := svc.ResolveOffer(context.Background(), offer, sessionID)
		require.NoError(t, err)
		assert.Equal(t, first.Title, again.Title)
	}

	// Exactly one impression despite six syncs.
	total := store.variants[0].Impressions + store.variants[1].Impressions
	assert.Equal(t, int64(1), total)
}

func TestResolveOfferWithoutTestPassesThrough(t *testing.T) {
	offer := models.TimedOffer{ID: uuid.New(), Title: "Base", ButtonText: "Buy", ButtonURL: "https://x"}
	store := newFakeStore(nil, nil)
	svc := NewService(store, NewSelector(12, 0), nil)

	out, err := svc.ResolveOffer(context.Background(), offer, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, offer, out)
}

func TestClickAndConversionRecordedOnce(t *testing.T) {
	offer := models.TimedOffer{ID: uuid.New(), Title: "Base", ButtonText: "Buy", ButtonURL: "https://x"}
	test := runningTest(offer.ID)
	control := models.Variant{ID: uuid.New(), TestID: test.ID, IsControl: true, Weight: 1}
	store := newFakeStore(test, []models.Variant{control})
	svc := NewService(store, NewSelector(13, 0), nil)

	sessionID := uuid.New()
	_, err := svc.ResolveOffer(context.Background(), offer, sessionID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordClick(context.Background(), offer.ID, sessionID))
		require.NoError(t, svc.RecordConversion(context.Background(), offer.ID, sessionID))
	}

	v := store.variants[0]
	assert.Equal(t, int64(1), v.Impressions)
	assert.Equal(t, int64(1), v.Clicks)
	assert.Equal(t, int64(1), v.Conversions)
	assert.LessOrEqual(t, v.Conversions, v.Clicks)
	assert.LessOrEqual(t, v.Clicks, v.Impressions)
}

func TestConversionWithoutClickBackfillsClick(t *testing.T) {
	offer := models.TimedOffer{ID: uuid.New(), Title: "Base", ButtonText: "Buy", ButtonURL: "https://x"}
	test := runningTest(offer.ID)
	control := models.Variant{ID: uuid.New(), TestID: test.ID, IsControl: true, Weight: 1}
	store := newFakeStore(test, []models.Variant{control})
	svc := NewService(store, NewSelector(16, 0), nil)

	// The session converts without ever reporting a click.
	sessionID := uuid.New()
	_, err := svc.ResolveOffer(context.Background(), offer, sessionID)
	require.NoError(t, err)
	require.NoError(t, svc.RecordConversion(context.Background(), offer.ID, sessionID))

	v := store.variants[0]
	assert.Equal(t, int64(1), v.Impressions)
	assert.Equal(t, int64(1), v.Clicks)
	assert.Equal(t, int64(1), v.Conversions)
	assert.LessOrEqual(t, v.Conversions, v.Clicks)
	assert.LessOrEqual(t, v.Clicks, v.Impressions)

	// A late click after the conversion does not double-count.
	require.NoError(t, svc.RecordClick(context.Background(), offer.ID, sessionID))
	assert.Equal(t, int64(1), store.variants[0].Clicks)
}

func TestAutoOptimizeDeclaresWinner(t *testing.T) {
	offer := models.TimedOffer{ID: uuid.New(), Title: "Base", ButtonText: "Buy", ButtonURL: "https://x"}
	test := runningTest(offer.ID)
	test.AutoOptimize = true
	control := models.Variant{ID: uuid.New(), TestID: test.ID, IsControl: true, Weight: 1, Impressions: 50, Clicks: 20, Conversions: 5}
	b := models.Variant{ID: uuid.New(), TestID: test.ID, Weight: 1, Impressions: 50, Clicks: 30, Conversions: 14}
	store := newFakeStore(test, []models.Variant{control, b})
	svc := NewService(store, NewSelector(14, 0), nil)

	sessionID := uuid.New()
	_, err := svc.ResolveOffer(context.Background(), offer, sessionID)
	require.NoError(t, err)
	require.NoError(t, svc.RecordClick(context.Background(), offer.ID, sessionID))
	require.NoError(t, svc.RecordConversion(context.Background(), offer.ID, sessionID))

	require.NotNil(t, store.completed)
	assert.Equal(t, b.ID, *store.completed)
	assert.Equal(t, models.ABTestCompleted, store.test.Status)

	// New sessions now always get the winner.
	sel := NewSelector(15, 0)
	id, err := sel.Select(store.test, store.variants)
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)
}
