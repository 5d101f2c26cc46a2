package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Repository persists scheduled notifications and delivery logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Schedule inserts planned rows. The unique key
// (registration_id, webinar_id, notification_type) makes re-planning a no-op.
func (r *Repository) Schedule(ctx context.Context, plan []models.ScheduledNotification) error {
	const q = `INSERT INTO scheduled_notifications (id, webinar_id, registration_id, notification_type, channel, scheduled_at, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		ON CONFLICT (registration_id, webinar_id, notification_type) DO NOTHING`
	for i := range plan {
		n := &plan[i]
		if _, err := r.pool.Exec(ctx, q, n.WebinarID, n.RegistrationID, n.Type, n.Channel, n.ScheduledAt, n.Status); err != nil {
			return err
		}
	}
	return nil
}

// ClaimDue atomically claims up to limit due rows. SKIP LOCKED lets multiple
// sweep instances run without double-claiming; the status flip is the
// idempotency barrier.
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledNotification, error) {
	const q = `UPDATE scheduled_notifications SET status = 'CLAIMED'
		WHERE id IN (
			SELECT id FROM scheduled_notifications
			WHERE status = 'SCHEDULED' AND scheduled_at <= $1
			ORDER BY scheduled_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, webinar_id, registration_id, notification_type, channel, scheduled_at, status, sent_at, failed_at, error_message, created_at`
	rows, err := r.pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var claimed []models.ScheduledNotification
	for rows.Next() {
		var n models.ScheduledNotification
		if err := rows.Scan(&n.ID, &n.WebinarID, &n.RegistrationID, &n.Type, &n.Channel, &n.ScheduledAt, &n.Status, &n.SentAt, &n.FailedAt, &n.ErrorMessage, &n.CreatedAt); err != nil {
			return nil, err
		}
		claimed = append(claimed, n)
	}
	return claimed, rows.Err()
}

// Release puts a claimed row back to SCHEDULED, used when enqueueing the
// delivery job fails so the next sweep retries it.
func (r *Repository) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE scheduled_notifications SET status = 'SCHEDULED' WHERE id = $1 AND status = 'CLAIMED'`, id)
	return err
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE scheduled_notifications SET status = 'SENT', sent_at = NOW() WHERE id = $1`, id)
	return err
}

// MarkFailed records a failed delivery with the error message.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `UPDATE scheduled_notifications SET status = 'FAILED', failed_at = NOW(), error_message = $1 WHERE id = $2`, message, id)
	return err
}

// DeliveryContext is the joined data the worker needs to render and send one
// notification.
type DeliveryContext struct {
	Notification     models.ScheduledNotification
	RecipientEmail   string
	RecipientName    string
	WebinarTitle     string
	ScheduledStartAt time.Time
	ReplayToken      string
	ReplayExpiresAt  *time.Time
}

// GetDeliveryContext loads the notification with its registrant and webinar.
func (r *Repository) GetDeliveryContext(ctx context.Context, id uuid.UUID) (*DeliveryContext, error) {
	const q = `SELECT n.id, n.webinar_id, n.registration_id, n.notification_type, n.channel, n.scheduled_at, n.status, n.sent_at, n.failed_at, n.error_message, n.created_at,
			r.email, r.full_name, r.scheduled_start_at, r.replay_token, r.replay_expires_at,
			w.title
		FROM scheduled_notifications n
		JOIN registrations r ON r.id = n.registration_id
		JOIN webinars w ON w.id = n.webinar_id
		WHERE n.id = $1`
	var d DeliveryContext
	n := &d.Notification
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&n.ID, &n.WebinarID, &n.RegistrationID, &n.Type, &n.Channel, &n.ScheduledAt, &n.Status, &n.SentAt, &n.FailedAt, &n.ErrorMessage, &n.CreatedAt,
		&d.RecipientEmail, &d.RecipientName, &d.ScheduledStartAt, &d.ReplayToken, &d.ReplayExpiresAt,
		&d.WebinarTitle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// LogDelivery appends one delivery attempt to notification_logs.
func (r *Repository) LogDelivery(ctx context.Context, log *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (id, webinar_id, registration_id, notification_type, channel, subject, body, success)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, log.WebinarID, log.RegistrationID, log.Type, log.Channel, log.Subject, log.Body, log.Success).
		Scan(&log.ID, &log.CreatedAt)
}

// ListLogsByWebinar returns delivery history for a webinar, newest first.
func (r *Repository) ListLogsByWebinar(ctx context.Context, webinarID uuid.UUID, limit int) ([]models.NotificationLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, webinar_id, registration_id, notification_type, channel, subject, body, success, created_at
		FROM notification_logs WHERE webinar_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, webinarID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []models.NotificationLog
	for rows.Next() {
		var l models.NotificationLog
		if err := rows.Scan(&l.ID, &l.WebinarID, &l.RegistrationID, &l.Type, &l.Channel, &l.Subject, &l.Body, &l.Success, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
