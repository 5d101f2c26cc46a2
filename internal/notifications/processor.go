package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/pkg/queue"
)

// Processor delivers queued notifications: render, send, log, mark.
type Processor struct {
	repo          *Repository
	queue         *queue.Queue
	sender        Sender
	replayBaseURL string
	logger        *zap.Logger
}

// NewProcessor creates a delivery processor.
func NewProcessor(repo *Repository, q *queue.Queue, sender Sender, replayBaseURL string, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{repo: repo, queue: q, sender: sender, replayBaseURL: replayBaseURL, logger: logger}
}

// Process executes one delivery job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeNotification {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	d, err := p.repo.GetDeliveryContext(ctx, payload.NotificationID)
	if err != nil {
		return fmt.Errorf("load delivery context: %w", err)
	}
	if d == nil {
		p.logger.Warn("notification row missing, dropping job", zap.String("notification_id", payload.NotificationID.String()))
		return nil
	}
	if d.Notification.Status == models.NotificationSent {
		p.logger.Info("notification already sent", zap.String("notification_id", d.Notification.ID.String()))
		return nil
	}

	content := Render(d.Notification.Type, RenderInput{
		WebinarTitle:     d.WebinarTitle,
		RecipientName:    d.RecipientName,
		ScheduledStartAt: d.ScheduledStartAt,
		ReplayURL:        p.replayBaseURL + "/replay/" + d.ReplayToken,
		ReplayExpiresAt:  d.ReplayExpiresAt,
	})

	sendErr := p.sender.Send(ctx, d.Notification.Channel, d.RecipientEmail, content)

	logEntry := &models.NotificationLog{
		WebinarID:      d.Notification.WebinarID,
		RegistrationID: d.Notification.RegistrationID,
		Type:           d.Notification.Type,
		Channel:        d.Notification.Channel,
		Subject:        content.Subject,
		Body:           content.Body,
		Success:        sendErr == nil,
	}
	if err := p.repo.LogDelivery(ctx, logEntry); err != nil {
		p.logger.Error("log delivery", zap.Error(err))
	}

	if sendErr != nil {
		if err := p.repo.MarkFailed(ctx, d.Notification.ID, sendErr.Error()); err != nil {
			p.logger.Error("mark failed", zap.Error(err))
		}
		return fmt.Errorf("send: %w", sendErr)
	}
	if err := p.repo.MarkSent(ctx, d.Notification.ID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	p.logger.Info("notification sent",
		zap.String("notification_id", d.Notification.ID.String()),
		zap.String("type", string(d.Notification.Type)),
		zap.String("recipient", d.RecipientEmail))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
