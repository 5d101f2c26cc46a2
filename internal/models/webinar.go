package models

import (
	"time"

	"github.com/google/uuid"
)

// WebinarStatus is the lifecycle state of a webinar template.
type WebinarStatus string

const (
	WebinarDraft    WebinarStatus = "DRAFT"
	WebinarActive   WebinarStatus = "ACTIVE"
	WebinarArchived WebinarStatus = "ARCHIVED"
)

// ScheduleType determines how a registrant's personal start time is computed.
type ScheduleType string

const (
	// ScheduleFixed uses the webinar's StartsAt for every registrant.
	ScheduleFixed ScheduleType = "SCHEDULED"
	// ScheduleJustInTime starts each registrant's "broadcast" a few minutes after they register.
	ScheduleJustInTime ScheduleType = "JUST_IN_TIME"
)

// VideoType identifies how the template video is hosted.
type VideoType string

const (
	VideoYouTube VideoType = "YOUTUBE"
	VideoVimeo   VideoType = "VIMEO"
	VideoUpload  VideoType = "UPLOAD"
)

// Webinar is the immutable content template for a simulated-live webinar.
// Editors author it in DRAFT; during playback it is read-only.
type Webinar struct {
	ID            uuid.UUID     `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Status        WebinarStatus `json:"status"`
	VideoURL      string        `json:"video_url"`
	VideoType     VideoType     `json:"video_type"`
	VideoDuration int           `json:"video_duration"` // seconds

	ScheduleType       ScheduleType `json:"schedule_type"`
	StartsAt           *time.Time   `json:"starts_at,omitempty"`
	JustInTimeDelayMin int          `json:"just_in_time_delay_min"`

	SimulatedChatEnabled bool `json:"simulated_chat_enabled"`

	AttendeeSimEnabled       bool `json:"attendee_sim_enabled"`
	AttendeeSimMin           int  `json:"attendee_sim_min"`
	AttendeeSimMax           int  `json:"attendee_sim_max"`
	AttendeeUpdateIntervalMs int  `json:"attendee_update_interval_ms"`

	ReplayEnabled           bool `json:"replay_enabled"`
	ReplayExpiresAfterHours *int `json:"replay_expires_after_hours,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttendeeConfigured reports whether the fake attendee counter should run.
func (w *Webinar) AttendeeConfigured() bool {
	return w.AttendeeSimEnabled && w.AttendeeSimMax > 0 && w.AttendeeSimMin <= w.AttendeeSimMax
}
