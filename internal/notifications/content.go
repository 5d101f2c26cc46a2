package notifications

import (
	"fmt"
	"time"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Content is a rendered notification ready for a Sender.
type Content struct {
	Subject string
	Body    string
}

// RenderInput carries everything the templates need.
type RenderInput struct {
	WebinarTitle     string
	RecipientName    string
	ScheduledStartAt time.Time
	ReplayURL        string
	ReplayExpiresAt  *time.Time
}

// Render produces the subject and body for a notification type.
func Render(t models.NotificationType, in RenderInput) Content {
	startAt := in.ScheduledStartAt.Format("Jan 2, 3:04 PM MST")
	switch t {
	case models.NotifyReminder30Min:
		return Content{
			Subject: fmt.Sprintf("%s starts in 30 minutes", in.WebinarTitle),
			Body:    fmt.Sprintf("Hi %s, your seat for \"%s\" is reserved. We go live at %s.", in.RecipientName, in.WebinarTitle, startAt),
		}
	case models.NotifyReminder5Min:
		return Content{
			Subject: fmt.Sprintf("%s starts in 5 minutes", in.WebinarTitle),
			Body:    fmt.Sprintf("Hi %s, \"%s\" begins in 5 minutes. Grab your link and get settled.", in.RecipientName, in.WebinarTitle),
		}
	case models.NotifyReminder1Min:
		return Content{
			Subject: fmt.Sprintf("%s is about to start", in.WebinarTitle),
			Body:    fmt.Sprintf("Hi %s, \"%s\" starts in 1 minute. Join now so you don't miss the opening.", in.RecipientName, in.WebinarTitle),
		}
	case models.NotifyStartingNow:
		return Content{
			Subject: fmt.Sprintf("%s is live now", in.WebinarTitle),
			Body:    fmt.Sprintf("Hi %s, we just went live with \"%s\". Join before the intro wraps up.", in.RecipientName, in.WebinarTitle),
		}
	case models.NotifyReplayReady:
		return Content{
			Subject: fmt.Sprintf("Replay ready: %s", in.WebinarTitle),
			Body:    fmt.Sprintf("Hi %s, the replay of \"%s\" is ready: %s", in.RecipientName, in.WebinarTitle, in.ReplayURL),
		}
	case models.NotifyReplayExpiring:
		expires := "soon"
		if in.ReplayExpiresAt != nil {
			expires = in.ReplayExpiresAt.Format("Jan 2, 3:04 PM MST")
		}
		return Content{
			Subject: fmt.Sprintf("Last chance: %s replay expires", in.WebinarTitle),
			Body:    fmt.Sprintf("Hi %s, the replay of \"%s\" goes offline at %s: %s", in.RecipientName, in.WebinarTitle, expires, in.ReplayURL),
		}
	default:
		return Content{
			Subject: in.WebinarTitle,
			Body:    fmt.Sprintf("Hi %s, update about \"%s\".", in.RecipientName, in.WebinarTitle),
		}
	}
}
