package timeline

import (
	"errors"
	"fmt"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Authoring-time validation. Malformed events are rejected when an editor
// saves them, never at playback time.

var (
	ErrNegativeAppearTime = errors.New("appear_at_seconds must be >= 0")
	ErrHideBeforeAppear   = errors.New("hide_at_seconds must be greater than appear_at_seconds")
	ErrEmptySender        = errors.New("sender_name is required")
	ErrEmptyContent       = errors.New("content is required")
	ErrBeyondDuration     = errors.New("appear_at_seconds is beyond the video duration")
)

var validMessageTypes = map[models.ChatMessageType]bool{
	models.ChatComment:     true,
	models.ChatQuestion:    true,
	models.ChatReaction:    true,
	models.ChatTestimonial: true,
}

// ValidateChatMessage checks one authored chat message against the template.
func ValidateChatMessage(m *models.ChatMessage, videoDuration int) error {
	if m.AppearAtSeconds < 0 {
		return ErrNegativeAppearTime
	}
	if videoDuration > 0 && m.AppearAtSeconds > videoDuration {
		return ErrBeyondDuration
	}
	if m.SenderName == "" {
		return ErrEmptySender
	}
	if m.Content == "" {
		return ErrEmptyContent
	}
	if !validMessageTypes[m.MessageType] {
		return fmt.Errorf("unknown message_type %q", m.MessageType)
	}
	return nil
}

// ValidateOffer checks one authored timed offer against the template.
func ValidateOffer(o *models.TimedOffer, videoDuration int) error {
	if o.AppearAtSeconds < 0 {
		return ErrNegativeAppearTime
	}
	if videoDuration > 0 && o.AppearAtSeconds > videoDuration {
		return ErrBeyondDuration
	}
	if o.HideAtSeconds != nil && *o.HideAtSeconds <= o.AppearAtSeconds {
		return ErrHideBeforeAppear
	}
	if o.Title == "" {
		return errors.New("title is required")
	}
	if o.ButtonText == "" || o.ButtonURL == "" {
		return errors.New("button_text and button_url are required")
	}
	if o.CountdownSeconds != nil && *o.CountdownSeconds <= 0 {
		return errors.New("countdown_seconds must be positive when set")
	}
	return nil
}

// ValidateReward checks one authored reward trigger.
func ValidateReward(r *models.Reward, videoDuration int) error {
	if r.AppearAtSeconds < 0 {
		return ErrNegativeAppearTime
	}
	if videoDuration > 0 && r.AppearAtSeconds > videoDuration {
		return ErrBeyondDuration
	}
	if r.Title == "" {
		return errors.New("title is required")
	}
	return nil
}
