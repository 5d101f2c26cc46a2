package registrations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/internal/notifications"
)

// Store is the persistence surface the service needs. Satisfied by *Repository.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	GetByEmail(ctx context.Context, webinarID uuid.UUID, email string) (*models.Registration, error)
	SetReplayExpiry(ctx context.Context, id uuid.UUID, at time.Time) error
}

// WebinarSource is the template lookup the service needs.
type WebinarSource interface {
	GetWebinar(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// NotificationPlanner persists planned reminder rows.
type NotificationPlanner interface {
	Schedule(ctx context.Context, plan []models.ScheduledNotification) error
}

// Service registers attendees and keeps the reminder schedule in step with
// the registrant's personal start time.
type Service struct {
	repo     Store
	webinars WebinarSource
	notifier NotificationPlanner
	logger   *zap.Logger
}

// NewService creates the registration service. notifier may be nil.
func NewService(repo Store, webinars WebinarSource, notifier NotificationPlanner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, webinars: webinars, notifier: notifier, logger: logger}
}

// Register creates (or returns the existing) registration and schedules its
// reminders. Just-in-time webinars anchor the registrant's broadcast a few
// minutes after signup; fixed-schedule webinars use the shared start time.
func (s *Service) Register(ctx context.Context, webinarID uuid.UUID, email, fullName string, now time.Time) (*models.Registration, error) {
	webinar, err := s.webinars.GetWebinar(ctx, webinarID)
	if err != nil {
		return nil, fmt.Errorf("load webinar: %w", err)
	}
	if webinar == nil || webinar.Status != models.WebinarActive {
		return nil, ErrWebinarNotOpen
	}

	existing, err := s.repo.GetByEmail(ctx, webinarID, email)
	if err != nil {
		return nil, fmt.Errorf("registration lookup: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	startAt := now
	switch webinar.ScheduleType {
	case models.ScheduleJustInTime:
		delay := webinar.JustInTimeDelayMin
		if delay <= 0 {
			delay = 15
		}
		startAt = now.Add(time.Duration(delay) * time.Minute)
	case models.ScheduleFixed:
		if webinar.StartsAt != nil && webinar.StartsAt.After(now) {
			startAt = *webinar.StartsAt
		}
	}

	token, err := newReplayToken()
	if err != nil {
		return nil, fmt.Errorf("replay token: %w", err)
	}
	reg := &models.Registration{
		WebinarID:        webinarID,
		Email:            strings.ToLower(strings.TrimSpace(email)),
		FullName:         strings.TrimSpace(fullName),
		Status:           models.RegistrationRegistered,
		ScheduledStartAt: startAt,
		ReplayToken:      token,
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}

	if s.notifier != nil {
		plan := notifications.PlanForRegistration(reg, models.ChannelEmail, now)
		if err := s.notifier.Schedule(ctx, plan); err != nil {
			s.logger.Error("schedule reminders", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
	}
	return reg, nil
}

// OnPlaybackEnded stamps the replay cutoff and schedules the replay
// notifications for the registrant whose session just finished.
func (s *Service) OnPlaybackEnded(ctx context.Context, registrationID uuid.UUID, now time.Time) {
	reg, err := s.repo.GetByID(ctx, registrationID)
	if err != nil || reg == nil {
		s.logger.Warn("registration lookup after playback end", zap.Error(err))
		return
	}
	webinar, err := s.webinars.GetWebinar(ctx, reg.WebinarID)
	if err != nil || webinar == nil || !webinar.ReplayEnabled {
		return
	}

	if webinar.ReplayExpiresAfterHours != nil && reg.ReplayExpiresAt == nil {
		expiry := now.Add(time.Duration(*webinar.ReplayExpiresAfterHours) * time.Hour)
		if err := s.repo.SetReplayExpiry(ctx, reg.ID, expiry); err != nil {
			s.logger.Error("set replay expiry", zap.Error(err))
		} else {
			reg.ReplayExpiresAt = &expiry
		}
	}

	if s.notifier != nil {
		plan := notifications.PlanReplay(reg, models.ChannelEmail, now)
		if err := s.notifier.Schedule(ctx, plan); err != nil {
			s.logger.Error("schedule replay notifications", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
	}
}

func newReplayToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
