package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/pkg/queue"
)

const (
	// DefaultSweepInterval is how often the scheduler looks for due reminders.
	DefaultSweepInterval = 30 * time.Second
	// sweepBatchSize caps how many rows one sweep claims.
	sweepBatchSize = 200
)

// DueSource claims due reminder rows for delivery. Satisfied by *Repository.
type DueSource interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledNotification, error)
	Release(ctx context.Context, id uuid.UUID) error
}

// Scheduler sweeps due scheduled_notifications into the delivery queue on a
// fixed interval. Claiming flips the row status, so a crash between claim and
// enqueue loses at most one batch to manual Release, never double-sends.
type Scheduler struct {
	repo     DueSource
	queue    *queue.Queue
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a sweep scheduler. interval <= 0 uses the default.
func NewScheduler(repo DueSource, q *queue.Queue, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{repo: repo, queue: q, interval: interval, logger: logger}
}

// Start begins the sweep loop. Call Stop to release resources; the scheduler
// may be started again afterwards.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(ctx, done)
	s.logger.Info("notification scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the loop and waits for the current sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	<-s.done
	s.logger.Info("notification scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep claims due rows and enqueues a delivery job for each. Exported so the
// worker main can trigger an immediate pass on boot.
func (s *Scheduler) Sweep(ctx context.Context) {
	claimed, err := s.repo.ClaimDue(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		s.logger.Warn("claim due notifications", zap.Error(err))
		return
	}
	for i := range claimed {
		n := &claimed[i]
		err := s.queue.EnqueueNotification(ctx, queue.NotificationPayload{
			NotificationID: n.ID,
			WebinarID:      n.WebinarID,
			RegistrationID: n.RegistrationID,
			Type:           n.Type,
			Channel:        n.Channel,
		})
		if err != nil {
			s.logger.Error("enqueue notification", zap.Error(err), zap.String("notification_id", n.ID.String()))
			if relErr := s.repo.Release(ctx, n.ID); relErr != nil {
				s.logger.Error("release claimed notification", zap.Error(relErr))
			}
		}
	}
	if len(claimed) > 0 {
		s.logger.Info("notification sweep", zap.Int("claimed", len(claimed)))
	}
}
