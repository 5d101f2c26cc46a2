package registrations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-webinar/backend/internal/models"
)

type fakeStore struct {
	byID    map[uuid.UUID]*models.Registration
	byEmail map[string]*models.Registration
	expiry  map[uuid.UUID]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:    map[uuid.UUID]*models.Registration{},
		byEmail: map[string]*models.Registration{},
		expiry:  map[uuid.UUID]time.Time{},
	}
}

func (f *fakeStore) Create(_ context.Context, reg *models.Registration) error {
	reg.ID = uuid.New()
	reg.CreatedAt = time.Now()
	f.byID[reg.ID] = reg
	f.byEmail[reg.WebinarID.String()+":"+reg.Email] = reg
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	return f.byID[id], nil
}

func (f *fakeStore) GetByEmail(_ context.Context, webinarID uuid.UUID, email string) (*models.Registration, error) {
	return f.byEmail[webinarID.String()+":"+email], nil
}

func (f *fakeStore) SetReplayExpiry(_ context.Context, id uuid.UUID, at time.Time) error {
	f.expiry[id] = at
	return nil
}

type fakeWebinars struct {
	webinar *models.Webinar
}

func (f *fakeWebinars) GetWebinar(_ context.Context, id uuid.UUID) (*models.Webinar, error) {
	if f.webinar == nil || f.webinar.ID != id {
		return nil, nil
	}
	return f.webinar, nil
}

type fakeNotifier struct {
	plans [][]models.ScheduledNotification
}

func (f *fakeNotifier) Schedule(_ context.Context, plan []models.ScheduledNotification) error {
	f.plans = append(f.plans, plan)
	return nil
}

func activeWebinar(schedule models.ScheduleType) *models.Webinar {
	return &models.Webinar{
		ID:                 uuid.New(),
		Title:              "Quarterly Masterclass",
		Status:             models.WebinarActive,
		VideoDuration:      3600,
		ScheduleType:       schedule,
		JustInTimeDelayMin: 15,
		ReplayEnabled:      true,
	}
}

func TestRegisterJustInTime(t *testing.T) {
	webinar := activeWebinar(models.ScheduleJustInTime)
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeWebinars{webinar: webinar}, notifier, nil)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reg, err := svc.Register(context.Background(), webinar.ID, "Ana@Example.com ", "Ana", now)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", reg.Email)
	assert.Equal(t, now.Add(15*time.Minute), reg.ScheduledStartAt)
	assert.NotEmpty(t, reg.ReplayToken)
	assert.Equal(t, models.RegistrationRegistered, reg.Status)

	require.Len(t, notifier.plans, 1)
	types := make([]models.NotificationType, 0, len(notifier.plans[0]))
	for _, n := range notifier.plans[0] {
		types = append(types, n.Type)
	}
	// a 15-minute lead skips only the 30-minute reminder
	assert.Equal(t, []models.NotificationType{
		models.NotifyReminder5Min,
		models.NotifyReminder1Min,
		models.NotifyStartingNow,
	}, types)
}

func TestRegisterFixedScheduleUsesSharedStart(t *testing.T) {
	webinar := activeWebinar(models.ScheduleFixed)
	start := time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)
	webinar.StartsAt = &start
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeWebinars{webinar: webinar}, notifier, nil)

	now := start.Add(-48 * time.Hour)
	reg, err := svc.Register(context.Background(), webinar.ID, "ben@example.com", "Ben", now)
	require.NoError(t, err)
	assert.Equal(t, start, reg.ScheduledStartAt)
	require.Len(t, notifier.plans, 1)
	assert.Len(t, notifier.plans[0], 4, "full reminder set with two days of lead")
}

func TestRegisterIsIdempotentPerEmail(t *testing.T) {
	webinar := activeWebinar(models.ScheduleJustInTime)
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeWebinars{webinar: webinar}, notifier, nil)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first, err := svc.Register(context.Background(), webinar.ID, "ana@example.com", "Ana", now)
	require.NoError(t, err)
	second, err := svc.Register(context.Background(), webinar.ID, "ana@example.com", "Ana", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, notifier.plans, 1, "reminders scheduled only once")
}

func TestRegisterClosedWebinar(t *testing.T) {
	webinar := activeWebinar(models.ScheduleJustInTime)
	webinar.Status = models.WebinarDraft
	svc := NewService(newFakeStore(), &fakeWebinars{webinar: webinar}, nil, nil)

	_, err := svc.Register(context.Background(), webinar.ID, "ana@example.com", "Ana", time.Now())
	assert.ErrorIs(t, err, ErrWebinarNotOpen)
}

func TestOnPlaybackEndedSchedulesReplay(t *testing.T) {
	webinar := activeWebinar(models.ScheduleJustInTime)
	hours := 72
	webinar.ReplayExpiresAfterHours = &hours
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeWebinars{webinar: webinar}, notifier, nil)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reg, err := svc.Register(context.Background(), webinar.ID, "ana@example.com", "Ana", now)
	require.NoError(t, err)
	notifier.plans = nil

	endAt := now.Add(time.Hour)
	svc.OnPlaybackEnded(context.Background(), reg.ID, endAt)

	assert.Equal(t, endAt.Add(72*time.Hour), store.expiry[reg.ID])
	require.Len(t, notifier.plans, 1)
	require.Len(t, notifier.plans[0], 2)
	assert.Equal(t, models.NotifyReplayReady, notifier.plans[0][0].Type)
	assert.Equal(t, models.NotifyReplayExpiring, notifier.plans[0][1].Type)
}
