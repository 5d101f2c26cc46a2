// Package notifications schedules and delivers registrant reminders. Rows in
// scheduled_notifications are unique per (registration, webinar, type), so
// planning and sweeping stay idempotent across restarts.
package notifications

import (
	"time"

	"github.com/evergreen-webinar/backend/internal/models"
)

// reminderOffsets maps each pre-start reminder to how long before the
// registrant's personal start time it fires.
var reminderOffsets = []struct {
	Type   models.NotificationType
	Before time.Duration
}{
	{models.NotifyReminder30Min, 30 * time.Minute},
	{models.NotifyReminder5Min, 5 * time.Minute},
	{models.NotifyReminder1Min, time.Minute},
	{models.NotifyStartingNow, 0},
}

// PlanForRegistration produces the reminder rows for a new registration.
// Reminders whose fire time already passed are skipped, so a registrant who
// signs up two minutes before start only gets the 1-minute and starting-now
// notices.
func PlanForRegistration(reg *models.Registration, channel models.NotificationChannel, now time.Time) []models.ScheduledNotification {
	var plan []models.ScheduledNotification
	for _, o := range reminderOffsets {
		at := reg.ScheduledStartAt.Add(-o.Before)
		if at.Before(now) {
			continue
		}
		plan = append(plan, models.ScheduledNotification{
			WebinarID:      reg.WebinarID,
			RegistrationID: reg.ID,
			Type:           o.Type,
			Channel:        channel,
			ScheduledAt:    at,
			Status:         models.NotificationScheduled,
		})
	}
	return plan
}

// PlanReplay produces the post-webinar rows: replay-available immediately and,
// when the replay link expires, an expiring notice 24h before the cutoff.
func PlanReplay(reg *models.Registration, channel models.NotificationChannel, now time.Time) []models.ScheduledNotification {
	plan := []models.ScheduledNotification{{
		WebinarID:      reg.WebinarID,
		RegistrationID: reg.ID,
		Type:           models.NotifyReplayReady,
		Channel:        channel,
		ScheduledAt:    now,
		Status:         models.NotificationScheduled,
	}}
	if reg.ReplayExpiresAt != nil {
		at := reg.ReplayExpiresAt.Add(-24 * time.Hour)
		if at.Before(now) {
			at = now
		}
		if at.Before(*reg.ReplayExpiresAt) {
			plan = append(plan, models.ScheduledNotification{
				WebinarID:      reg.WebinarID,
				RegistrationID: reg.ID,
				Type:           models.NotifyReplayExpiring,
				Channel:        channel,
				ScheduledAt:    at,
				Status:         models.NotificationScheduled,
			})
		}
	}
	return plan
}
