package notifications

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-webinar/backend/internal/models"
)

func registrationStartingAt(start time.Time) *models.Registration {
	return &models.Registration{
		ID:               uuid.New(),
		WebinarID:        uuid.New(),
		Email:            "ana@example.com",
		FullName:         "Ana",
		ScheduledStartAt: start,
	}
}

func TestPlanForRegistrationFullSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	start := now.Add(2 * time.Hour)
	reg := registrationStartingAt(start)

	plan := PlanForRegistration(reg, models.ChannelEmail, now)
	require.Len(t, plan, 4)
	assert.Equal(t, models.NotifyReminder30Min, plan[0].Type)
	assert.Equal(t, start.Add(-30*time.Minute), plan[0].ScheduledAt)
	assert.Equal(t, models.NotifyReminder5Min, plan[1].Type)
	assert.Equal(t, start.Add(-5*time.Minute), plan[1].ScheduledAt)
	assert.Equal(t, models.NotifyReminder1Min, plan[2].Type)
	assert.Equal(t, start.Add(-time.Minute), plan[2].ScheduledAt)
	assert.Equal(t, models.NotifyStartingNow, plan[3].Type)
	assert.Equal(t, start, plan[3].ScheduledAt)
	for _, n := range plan {
		assert.Equal(t, models.NotificationScheduled, n.Status)
		assert.Equal(t, reg.ID, n.RegistrationID)
		assert.Equal(t, reg.WebinarID, n.WebinarID)
	}
}

func TestPlanForRegistrationSkipsPastReminders(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reg := registrationStartingAt(now.Add(3 * time.Minute))

	plan := PlanForRegistration(reg, models.ChannelEmail, now)
	require.Len(t, plan, 2, "30min and 5min reminders already passed")
	assert.Equal(t, models.NotifyReminder1Min, plan[0].Type)
	assert.Equal(t, models.NotifyStartingNow, plan[1].Type)
}

func TestPlanReplayWithExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(72 * time.Hour)
	reg := registrationStartingAt(now.Add(-time.Hour))
	reg.ReplayExpiresAt = &expires

	plan := PlanReplay(reg, models.ChannelEmail, now)
	require.Len(t, plan, 2)
	assert.Equal(t, models.NotifyReplayReady, plan[0].Type)
	assert.Equal(t, now, plan[0].ScheduledAt)
	assert.Equal(t, models.NotifyReplayExpiring, plan[1].Type)
	assert.Equal(t, expires.Add(-24*time.Hour), plan[1].ScheduledAt)
}

func TestPlanReplayWithoutExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := registrationStartingAt(now.Add(-time.Hour))

	plan := PlanReplay(reg, models.ChannelEmail, now)
	require.Len(t, plan, 1)
	assert.Equal(t, models.NotifyReplayReady, plan[0].Type)
}

func TestRenderCoversEveryType(t *testing.T) {
	in := RenderInput{
		WebinarTitle:     "Scaling Your Agency",
		RecipientName:    "Ana",
		ScheduledStartAt: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		ReplayURL:        "https://app.example.com/replay/tok123",
	}
	types := []models.NotificationType{
		models.NotifyReminder30Min,
		models.NotifyReminder5Min,
		models.NotifyReminder1Min,
		models.NotifyStartingNow,
		models.NotifyReplayReady,
		models.NotifyReplayExpiring,
	}
	for _, typ := range types {
		c := Render(typ, in)
		assert.NotEmpty(t, c.Subject, string(typ))
		assert.Contains(t, c.Body, "Ana", string(typ))
	}
	replay := Render(models.NotifyReplayReady, in)
	assert.Contains(t, replay.Body, in.ReplayURL)
}
