package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies a reminder relative to a registrant's start time.
type NotificationType string

const (
	NotifyReminder30Min  NotificationType = "REMINDER_30MIN"
	NotifyReminder5Min   NotificationType = "REMINDER_5MIN"
	NotifyReminder1Min   NotificationType = "REMINDER_1MIN"
	NotifyStartingNow    NotificationType = "STARTING_NOW"
	NotifyReplayReady    NotificationType = "REPLAY_AVAILABLE"
	NotifyReplayExpiring NotificationType = "REPLAY_EXPIRING"
)

// NotificationStatus tracks a scheduled notification through delivery.
type NotificationStatus string

const (
	NotificationScheduled NotificationStatus = "SCHEDULED"
	NotificationClaimed   NotificationStatus = "CLAIMED"
	NotificationSent      NotificationStatus = "SENT"
	NotificationFailed    NotificationStatus = "FAILED"
)

// NotificationChannel is the delivery transport.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "EMAIL"
	ChannelLine  NotificationChannel = "LINE"
	ChannelBoth  NotificationChannel = "BOTH"
)

// ScheduledNotification is one pending reminder. The unique key
// (registration_id, webinar_id, notification_type) makes scheduling and
// delivery idempotent across scheduler restarts.
type ScheduledNotification struct {
	ID             uuid.UUID           `json:"id"`
	WebinarID      uuid.UUID           `json:"webinar_id"`
	RegistrationID uuid.UUID           `json:"registration_id"`
	Type           NotificationType    `json:"notification_type"`
	Channel        NotificationChannel `json:"channel"`
	ScheduledAt    time.Time           `json:"scheduled_at"`
	Status         NotificationStatus  `json:"status"`
	SentAt         *time.Time          `json:"sent_at,omitempty"`
	FailedAt       *time.Time          `json:"failed_at,omitempty"`
	ErrorMessage   *string             `json:"error_message,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// NotificationLog records one delivery attempt for auditing/resend tooling.
type NotificationLog struct {
	ID             uuid.UUID           `json:"id"`
	WebinarID      uuid.UUID           `json:"webinar_id"`
	RegistrationID uuid.UUID           `json:"registration_id"`
	Type           NotificationType    `json:"notification_type"`
	Channel        NotificationChannel `json:"channel"`
	Subject        string              `json:"subject"`
	Body           string              `json:"body"`
	Success        bool                `json:"success"`
	CreatedAt      time.Time           `json:"created_at"`
}
