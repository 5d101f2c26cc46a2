package notifications

import (
	"context"

	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Sender delivers a rendered notification over one channel. Email and LINE
// transports implement this; the worker only sees the interface.
type Sender interface {
	Send(ctx context.Context, channel models.NotificationChannel, recipient string, content Content) error
}

// LogSender writes deliveries to the log instead of sending. Default when no
// transport is configured, and the stand-in for local development.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the delivery and reports success.
func (s *LogSender) Send(_ context.Context, channel models.NotificationChannel, recipient string, content Content) error {
	s.logger.Info("notification delivered (log sender)",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
		zap.String("subject", content.Subject))
	return nil
}
