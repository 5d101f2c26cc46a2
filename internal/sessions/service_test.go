package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-webinar/backend/internal/attendees"
	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/internal/playback"
	"github.com/evergreen-webinar/backend/internal/timeline"
)

type fakeSessions struct {
	byToken     map[string]*models.WebinarSession
	claims      map[string]bool
	clicks      map[uuid.UUID]int
	conversions map[uuid.UUID]int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		byToken:     map[string]*models.WebinarSession{},
		claims:      map[string]bool{},
		clicks:      map[uuid.UUID]int{},
		conversions: map[uuid.UUID]int{},
	}
}

func (f *fakeSessions) Create(_ context.Context, s *models.WebinarSession) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	cp := *s
	f.byToken[s.SessionToken] = &cp
	return nil
}

func (f *fakeSessions) GetByToken(_ context.Context, token string) (*models.WebinarSession, error) {
	s, ok := f.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) UpdateSync(_ context.Context, s *models.WebinarSession) error {
	cp := *s
	f.byToken[s.SessionToken] = &cp
	return nil
}

func (f *fakeSessions) ClaimReward(_ context.Context, sessionID, rewardID uuid.UUID) (bool, error) {
	key := sessionID.String() + ":" + rewardID.String()
	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

func (f *fakeSessions) IncrementOfferClick(_ context.Context, offerID uuid.UUID) error {
	f.clicks[offerID]++
	return nil
}

func (f *fakeSessions) IncrementOfferConversion(_ context.Context, offerID uuid.UUID) error {
	f.conversions[offerID]++
	return nil
}

type fakeTemplates struct {
	webinar *models.Webinar
	store   *timeline.Store
}

func (f *fakeTemplates) GetWebinar(_ context.Context, id uuid.UUID) (*models.Webinar, error) {
	if f.webinar == nil || f.webinar.ID != id {
		return nil, nil
	}
	cp := *f.webinar
	return &cp, nil
}

func (f *fakeTemplates) Events(_ context.Context, _ uuid.UUID) (*timeline.Store, error) {
	return f.store, nil
}

type fakeRegistrations struct {
	byID          map[uuid.UUID]*models.Registration
	byReplayToken map[string]*models.Registration
	attended      int
	watchedReplay int
}

func newFakeRegistrations() *fakeRegistrations {
	return &fakeRegistrations{
		byID:          map[uuid.UUID]*models.Registration{},
		byReplayToken: map[string]*models.Registration{},
	}
}

func (f *fakeRegistrations) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	return f.byID[id], nil
}

func (f *fakeRegistrations) GetByReplayToken(_ context.Context, token string) (*models.Registration, error) {
	return f.byReplayToken[token], nil
}

func (f *fakeRegistrations) MarkAttended(_ context.Context, _ uuid.UUID, _ time.Time) error {
	f.attended++
	return nil
}

func (f *fakeRegistrations) MarkWatchedReplay(_ context.Context, _ uuid.UUID) error {
	f.watchedReplay++
	return nil
}

func chatAt(webinarID uuid.UUID, seconds int, content string) models.ChatMessage {
	return models.ChatMessage{
		ID:              uuid.New(),
		WebinarID:       webinarID,
		AppearAtSeconds: seconds,
		SenderName:      "Host",
		Content:         content,
		MessageType:     models.ChatComment,
	}
}

func justInTimeWebinar(duration int) *models.Webinar {
	return &models.Webinar{
		ID:            uuid.New(),
		Title:         "Product Deep Dive",
		Status:        models.WebinarActive,
		VideoDuration: duration,
		ScheduleType:  models.ScheduleJustInTime,
		ReplayEnabled: true,
	}
}

func newTestService(store *fakeSessions, templates *fakeTemplates, regs *fakeRegistrations, hook EndHook) *Service {
	return NewService(store, templates, regs, nil, nil,
		playback.NewResolver(10), attendees.New(7), hook, nil)
}

func TestRepeatedHeartbeatYieldsEmptyDelta(t *testing.T) {
	webinar := justInTimeWebinar(600)
	chat := []models.ChatMessage{
		chatAt(webinar.ID, 2, "welcome"),
		chatAt(webinar.ID, 4, "glad you made it"),
	}
	store := newFakeSessions()
	templates := &fakeTemplates{webinar: webinar, store: timeline.NewStore(chat, nil, nil)}
	svc := newTestService(store, templates, nil, nil)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined, err := svc.Join(context.Background(), webinar.ID, nil, t0)
	require.NoError(t, err)
	require.Equal(t, models.ModeLive, joined.Snapshot.Mode)
	require.Empty(t, joined.Snapshot.ChatDelta)

	first, err := svc.Sync(context.Background(), joined.SessionToken, SyncRequest{ClientPosition: 5}, t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.Len(t, first.ChatDelta, 2)

	second, err := svc.Sync(context.Background(), joined.SessionToken, SyncRequest{ClientPosition: 5}, t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.Empty(t, second.ChatDelta, "nothing new between identical positions")
	assert.False(t, second.Rewound)
}

func TestReplayRewindReturnsFullVisibleSet(t *testing.T) {
	webinar := justInTimeWebinar(600)
	chat := []models.ChatMessage{
		chatAt(webinar.ID, 5, "early"),
		chatAt(webinar.ID, 20, "middle"),
		chatAt(webinar.ID, 40, "late"),
	}
	store := newFakeSessions()
	templates := &fakeTemplates{webinar: webinar, store: timeline.NewStore(chat, nil, nil)}
	regs := newFakeRegistrations()
	regs.byReplayToken["replay-abc"] = &models.Registration{
		ID:        uuid.New(),
		WebinarID: webinar.ID,
	}
	svc := newTestService(store, templates, regs, nil)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined, err := svc.JoinReplay(context.Background(), "replay-abc", t0)
	require.NoError(t, err)
	require.Equal(t, models.ModeReplay, joined.Snapshot.Mode)
	assert.Equal(t, 1, regs.watchedReplay)

	forward, err := svc.Sync(context.Background(), joined.SessionToken, SyncRequest{ClientPosition: 30}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, forward.ChatDelta, 2)
	assert.False(t, forward.Rewound)

	back, err := svc.Sync(context.Background(), joined.SessionToken, SyncRequest{ClientPosition: 10}, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, back.Rewound)
	require.Len(t, back.ChatDelta, 1)
	assert.Equal(t, "early", back.ChatDelta[0].Content)
}

func TestScheduledSessionCountsDownThenGoesLive(t *testing.T) {
	webinar := justInTimeWebinar(600)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	webinar.ScheduleType = models.ScheduleFixed
	webinar.StartsAt = &start

	store := newFakeSessions()
	templates := &fakeTemplates{webinar: webinar, store: timeline.NewStore(nil, nil, nil)}
	svc := newTestService(store, templates, nil, nil)

	joined, err := svc.Join(context.Background(), webinar.ID, nil, start.Add(-90*time.Second))
	require.NoError(t, err)
	require.Equal(t, models.ModeScheduled, joined.Snapshot.Mode)

	waiting, err := svc.Sync(context.Background(), joined.SessionToken, SyncRequest{}, start.Add(-60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.ModeScheduled, waiting.Mode)
	assert.Equal(t, 60, waiting.SecondsUntilStart)

	live, err := svc.Sync(context.Background(), joined.SessionToken, SyncRequest{ClientPosition: 0}, start.Add(12*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.ModeLive, live.Mode)
	assert.Equal(t, 12, live.Position)
}

func TestSessionEndsOncePastVideoDuration(t *testing.T) {
	webinar := justInTimeWebinar(100)
	store := newFakeSessions()
	templates := &fakeTemplates{webinar: webinar, store: timeline.NewStore(nil, nil, nil)}

	hookCalls := 0
	svc := newTestService(store, templates, nil, func(_ context.Context, s *models.WebinarSession, _ *uuid.UUID) {
		hookCalls++
		assert.Equal(t, models.ModeEnded, s.Mode)
	})

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined, err := svc.Join(context.Background(), webinar.ID, nil, t0)
	require.NoError(t, err)

	ended, err := svc.Sync(context.Background(), joined.SessionToken, SyncRequest{ClientPosition: 99}, t0.Add(150*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.ModeEnded, ended.Mode)
	assert.True(t, ended.IsEnded)
	assert.Equal(t, 100, ended.Position)
	assert.Equal(t, 1, hookCalls)

	again, err := svc.Sync(context.Background(), joined.SessionToken, SyncRequest{ClientPosition: 0}, t0.Add(200*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.ModeEnded, again.Mode)
	assert.Equal(t, 1, hookCalls, "end hook fires only on the transition")
}

func TestSyncUnknownToken(t *testing.T) {
	webinar := justInTimeWebinar(600)
	svc := newTestService(newFakeSessions(), &fakeTemplates{webinar: webinar, store: timeline.NewStore(nil, nil, nil)}, nil, nil)

	_, err := svc.Sync(context.Background(), "no-such-token", SyncRequest{}, time.Now())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestOfferClickAndConversionCounters(t *testing.T) {
	webinar := justInTimeWebinar(600)
	hide := 120
	offer := models.TimedOffer{
		ID:              uuid.New(),
		WebinarID:       webinar.ID,
		AppearAtSeconds: 10,
		HideAtSeconds:   &hide,
		Title:           "Launch bundle",
	}
	store := newFakeSessions()
	templates := &fakeTemplates{webinar: webinar, store: timeline.NewStore(nil, []models.TimedOffer{offer}, nil)}
	svc := newTestService(store, templates, nil, nil)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined, err := svc.Join(context.Background(), webinar.ID, nil, t0)
	require.NoError(t, err)

	snap, err := svc.Sync(context.Background(), joined.SessionToken,
		SyncRequest{ClientPosition: 30, OfferClickedID: &offer.ID}, t0.Add(30*time.Second))
	require.NoError(t, err)
	require.NotNil(t, snap.ActiveOffer)
	assert.Equal(t, offer.ID, snap.ActiveOffer.ID)
	assert.Equal(t, 1, store.clicks[offer.ID])

	require.NoError(t, svc.Convert(context.Background(), joined.SessionToken, offer.ID))
	assert.Equal(t, 1, store.conversions[offer.ID])
}

func TestRewardClaimOncePerSession(t *testing.T) {
	webinar := justInTimeWebinar(600)
	reward := models.Reward{
		ID:              uuid.New(),
		WebinarID:       webinar.ID,
		AppearAtSeconds: 50,
		Title:           "Workbook PDF",
	}
	store := newFakeSessions()
	templates := &fakeTemplates{webinar: webinar, store: timeline.NewStore(nil, nil, []models.Reward{reward})}
	svc := newTestService(store, templates, nil, nil)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined, err := svc.Join(context.Background(), webinar.ID, nil, t0)
	require.NoError(t, err)

	_, _, err = svc.ClaimReward(context.Background(), joined.SessionToken, reward.ID)
	assert.ErrorIs(t, err, ErrRewardNotAvailable, "reward has not appeared yet")

	_, err = svc.Sync(context.Background(), joined.SessionToken, SyncRequest{ClientPosition: 60}, t0.Add(60*time.Second))
	require.NoError(t, err)

	got, claimed, err := svc.ClaimReward(context.Background(), joined.SessionToken, reward.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, reward.ID, got.ID)

	_, claimed, err = svc.ClaimReward(context.Background(), joined.SessionToken, reward.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestAttendeeCountPersistsBetweenHeartbeats(t *testing.T) {
	webinar := justInTimeWebinar(600)
	webinar.AttendeeSimEnabled = true
	webinar.AttendeeSimMin = 100
	webinar.AttendeeSimMax = 500

	store := newFakeSessions()
	templates := &fakeTemplates{webinar: webinar, store: timeline.NewStore(nil, nil, nil)}
	svc := newTestService(store, templates, nil, nil)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined, err := svc.Join(context.Background(), webinar.ID, nil, t0)
	require.NoError(t, err)
	prev := joined.Snapshot.AttendeeCount
	require.GreaterOrEqual(t, prev, webinar.AttendeeSimMin)

	maxStep := (webinar.AttendeeSimMax - webinar.AttendeeSimMin) / 20
	for i := 1; i <= 20; i++ {
		snap, err := svc.Sync(context.Background(), joined.SessionToken,
			SyncRequest{ClientPosition: i * 5}, t0.Add(time.Duration(i*5)*time.Second))
		require.NoError(t, err)
		delta := snap.AttendeeCount - prev
		if delta < 0 {
			delta = -delta
		}
		assert.LessOrEqual(t, delta, maxStep+2, "steps stay bounded across heartbeats")
		assert.GreaterOrEqual(t, snap.AttendeeCount, webinar.AttendeeSimMin)
		assert.LessOrEqual(t, snap.AttendeeCount, webinar.AttendeeSimMax)
		prev = snap.AttendeeCount
	}
}
