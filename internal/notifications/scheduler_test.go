package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/evergreen-webinar/backend/internal/models"
)

type fakeDueSource struct {
	mu     sync.Mutex
	sweeps int
}

func (f *fakeDueSource) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return nil, nil
}

func (f *fakeDueSource) Release(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeDueSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func TestSchedulerStartStopStart(t *testing.T) {
	src := &fakeDueSource{}
	s := NewScheduler(src, nil, time.Hour, nil)

	s.Start()
	s.Stop()
	s.Start()
	s.Stop()

	// One immediate sweep per start, the hour ticker never fires.
	assert.Equal(t, 2, src.count())
}

func TestSchedulerStartIsIdempotentWhileRunning(t *testing.T) {
	src := &fakeDueSource{}
	s := NewScheduler(src, nil, time.Hour, nil)

	s.Start()
	s.Start()
	s.Stop()

	assert.Equal(t, 1, src.count())
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(&fakeDueSource{}, nil, time.Hour, nil)
	s.Stop()
}
