package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionMode is the viewer session state machine.
// SCHEDULED -> LIVE -> ENDED, or REPLAY -> ENDED. ENDED is terminal.
type SessionMode string

const (
	ModeScheduled SessionMode = "SCHEDULED"
	ModeLive      SessionMode = "LIVE"
	ModeReplay    SessionMode = "REPLAY"
	ModeEnded     SessionMode = "ENDED"
)

// WebinarSession is the per-viewer runtime state. Created on join, mutated
// only by the sync service, expired by TTL when heartbeats stop.
type WebinarSession struct {
	ID             uuid.UUID   `json:"id"`
	WebinarID      uuid.UUID   `json:"webinar_id"`
	RegistrationID *uuid.UUID  `json:"registration_id,omitempty"`
	SessionToken   string      `json:"session_token"`
	Mode           SessionMode `json:"mode"`

	// StartReference is the wall-clock instant this viewer's "live" clock began.
	StartReference     time.Time `json:"start_reference"`
	LastSyncedPosition int       `json:"last_synced_position"`
	MaxWatchedSeconds  int       `json:"max_watched_seconds"`
	CompletionPercent  float64   `json:"completion_percent"`
	AttendeeCount      int       `json:"attendee_count"`

	LastSyncedAt time.Time  `json:"last_synced_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
