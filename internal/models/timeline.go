package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessageType categorizes a simulated chat message.
type ChatMessageType string

const (
	ChatComment     ChatMessageType = "COMMENT"
	ChatQuestion    ChatMessageType = "QUESTION"
	ChatReaction    ChatMessageType = "REACTION"
	ChatTestimonial ChatMessageType = "TESTIMONIAL"
)

// ChatMessage is a pre-authored chat line shown once playback crosses AppearAtSeconds.
type ChatMessage struct {
	ID              uuid.UUID       `json:"id"`
	WebinarID       uuid.UUID       `json:"webinar_id"`
	AppearAtSeconds int             `json:"appear_at_seconds"`
	SenderName      string          `json:"sender_name"`
	SenderAvatar    *string         `json:"sender_avatar,omitempty"`
	Content         string          `json:"content"`
	MessageType     ChatMessageType `json:"message_type"`
	SortOrder       int             `json:"sort_order"` // tie-break for equal appear times
	CreatedAt       time.Time       `json:"created_at"`
}

// TimedOffer is a promotional popup shown while playback is inside its window.
type TimedOffer struct {
	ID               uuid.UUID `json:"id"`
	WebinarID        uuid.UUID `json:"webinar_id"`
	AppearAtSeconds  int       `json:"appear_at_seconds"`
	HideAtSeconds    *int      `json:"hide_at_seconds,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ButtonText       string    `json:"button_text"`
	ButtonURL        string    `json:"button_url"`
	CountdownSeconds *int      `json:"countdown_seconds,omitempty"`
	LimitedSeats     *int      `json:"limited_seats,omitempty"`
	ClickCount       int64     `json:"click_count"`
	ConversionCount  int64     `json:"conversion_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ActiveAt reports whether the offer window contains the given playback position.
func (o *TimedOffer) ActiveAt(seconds int) bool {
	if seconds < o.AppearAtSeconds {
		return false
	}
	return o.HideAtSeconds == nil || seconds < *o.HideAtSeconds
}

// Reward is a timeline bonus (download, coupon code) a viewer can claim once per session.
type Reward struct {
	ID              uuid.UUID `json:"id"`
	WebinarID       uuid.UUID `json:"webinar_id"`
	AppearAtSeconds int       `json:"appear_at_seconds"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	RewardURL       string    `json:"reward_url"`
	ClaimCount      int64     `json:"claim_count"`
	CreatedAt       time.Time `json:"created_at"`
}
