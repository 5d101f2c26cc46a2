package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus tracks a registrant through the funnel.
type RegistrationStatus string

const (
	RegistrationRegistered    RegistrationStatus = "REGISTERED"
	RegistrationAttended      RegistrationStatus = "ATTENDED"
	RegistrationWatchedReplay RegistrationStatus = "WATCHED_REPLAY"
)

// Registration is an attendee registration for a simulated-live webinar.
// ScheduledStartAt is this registrant's personal broadcast time.
type Registration struct {
	ID               uuid.UUID          `json:"id"`
	WebinarID        uuid.UUID          `json:"webinar_id"`
	Email            string             `json:"email"`
	FullName         string             `json:"full_name"`
	Status           RegistrationStatus `json:"status"`
	ScheduledStartAt time.Time          `json:"scheduled_start_at"`
	ReplayToken      string             `json:"replay_token"`
	ReplayExpiresAt  *time.Time         `json:"replay_expires_at,omitempty"`
	AttendedAt       *time.Time         `json:"attended_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
