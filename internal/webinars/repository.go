package webinars

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/internal/timeline"
)

// Repository handles webinar template persistence: the webinar row plus its
// authored timeline events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webinar repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const webinarColumns = `id, title, description, status, video_url, video_type, video_duration,
	schedule_type, starts_at, just_in_time_delay_min, simulated_chat_enabled,
	attendee_sim_enabled, attendee_sim_min, attendee_sim_max, attendee_update_interval_ms,
	replay_enabled, replay_expires_after_hours, created_by, created_at, updated_at`

func scanWebinar(row pgx.Row) (*models.Webinar, error) {
	var w models.Webinar
	err := row.Scan(&w.ID, &w.Title, &w.Description, &w.Status, &w.VideoURL, &w.VideoType, &w.VideoDuration,
		&w.ScheduleType, &w.StartsAt, &w.JustInTimeDelayMin, &w.SimulatedChatEnabled,
		&w.AttendeeSimEnabled, &w.AttendeeSimMin, &w.AttendeeSimMax, &w.AttendeeUpdateIntervalMs,
		&w.ReplayEnabled, &w.ReplayExpiresAfterHours, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts a new webinar template in DRAFT status.
func (r *Repository) Create(ctx context.Context, w *models.Webinar) error {
	const q = `INSERT INTO webinars (id, title, description, status, video_url, video_type, video_duration,
			schedule_type, starts_at, just_in_time_delay_min, simulated_chat_enabled,
			attendee_sim_enabled, attendee_sim_min, attendee_sim_max, attendee_update_interval_ms,
			replay_enabled, replay_expires_after_hours, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, w.Title, w.Description, w.Status, w.VideoURL, w.VideoType, w.VideoDuration,
		w.ScheduleType, w.StartsAt, w.JustInTimeDelayMin, w.SimulatedChatEnabled,
		w.AttendeeSimEnabled, w.AttendeeSimMin, w.AttendeeSimMax, w.AttendeeUpdateIntervalMs,
		w.ReplayEnabled, w.ReplayExpiresAfterHours, w.CreatedBy).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

// GetWebinar returns a webinar by ID, or nil when it does not exist.
func (r *Repository) GetWebinar(ctx context.Context, id uuid.UUID) (*models.Webinar, error) {
	w, err := scanWebinar(r.pool.QueryRow(ctx, `SELECT `+webinarColumns+` FROM webinars WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

// List returns webinars, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status *models.WebinarStatus) ([]models.Webinar, error) {
	q := `SELECT ` + webinarColumns + ` FROM webinars`
	var args []interface{}
	if status != nil {
		q += ` WHERE status = $1`
		args = append(args, *status)
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Webinar
	for rows.Next() {
		w, err := scanWebinar(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

// Update rewrites the template's editable fields.
func (r *Repository) Update(ctx context.Context, w *models.Webinar) error {
	const q = `UPDATE webinars SET title = $1, description = $2, status = $3, video_url = $4, video_type = $5,
			video_duration = $6, schedule_type = $7, starts_at = $8, just_in_time_delay_min = $9,
			simulated_chat_enabled = $10, attendee_sim_enabled = $11, attendee_sim_min = $12,
			attendee_sim_max = $13, attendee_update_interval_ms = $14, replay_enabled = $15,
			replay_expires_after_hours = $16, updated_at = NOW()
		WHERE id = $17`
	_, err := r.pool.Exec(ctx, q, w.Title, w.Description, w.Status, w.VideoURL, w.VideoType,
		w.VideoDuration, w.ScheduleType, w.StartsAt, w.JustInTimeDelayMin,
		w.SimulatedChatEnabled, w.AttendeeSimEnabled, w.AttendeeSimMin,
		w.AttendeeSimMax, w.AttendeeUpdateIntervalMs, w.ReplayEnabled,
		w.ReplayExpiresAfterHours, w.ID)
	return err
}

// Delete removes a template and its events (FK cascade).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM webinars WHERE id = $1`, id)
	return err
}

// CreateChatMessage inserts one authored chat line.
func (r *Repository) CreateChatMessage(ctx context.Context, m *models.ChatMessage) error {
	const q = `INSERT INTO chat_messages (id, webinar_id, appear_at_seconds, sender_name, sender_avatar, content, message_type, sort_order)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, m.WebinarID, m.AppearAtSeconds, m.SenderName, m.SenderAvatar, m.Content, m.MessageType, m.SortOrder).
		Scan(&m.ID, &m.CreatedAt)
}

// ListChatMessages returns a webinar's chat timeline in playback order.
func (r *Repository) ListChatMessages(ctx context.Context, webinarID uuid.UUID) ([]models.ChatMessage, error) {
	const q = `SELECT id, webinar_id, appear_at_seconds, sender_name, sender_avatar, content, message_type, sort_order, created_at
		FROM chat_messages WHERE webinar_id = $1 ORDER BY appear_at_seconds, sort_order`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.WebinarID, &m.AppearAtSeconds, &m.SenderName, &m.SenderAvatar, &m.Content, &m.MessageType, &m.SortOrder, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// DeleteChatMessage removes one chat line.
func (r *Repository) DeleteChatMessage(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
	return err
}

// CreateOffer inserts one timed offer.
func (r *Repository) CreateOffer(ctx context.Context, o *models.TimedOffer) error {
	const q = `INSERT INTO timed_offers (id, webinar_id, appear_at_seconds, hide_at_seconds, title, description, button_text, button_url, countdown_seconds, limited_seats)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, o.WebinarID, o.AppearAtSeconds, o.HideAtSeconds, o.Title, o.Description, o.ButtonText, o.ButtonURL, o.CountdownSeconds, o.LimitedSeats).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

// ListOffers returns a webinar's offers in playback order.
func (r *Repository) ListOffers(ctx context.Context, webinarID uuid.UUID) ([]models.TimedOffer, error) {
	const q = `SELECT id, webinar_id, appear_at_seconds, hide_at_seconds, title, description, button_text, button_url, countdown_seconds, limited_seats, click_count, conversion_count, created_at, updated_at
		FROM timed_offers WHERE webinar_id = $1 ORDER BY appear_at_seconds`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.TimedOffer
	for rows.Next() {
		var o models.TimedOffer
		if err := rows.Scan(&o.ID, &o.WebinarID, &o.AppearAtSeconds, &o.HideAtSeconds, &o.Title, &o.Description, &o.ButtonText, &o.ButtonURL, &o.CountdownSeconds, &o.LimitedSeats, &o.ClickCount, &o.ConversionCount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// DeleteOffer removes one offer.
func (r *Repository) DeleteOffer(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM timed_offers WHERE id = $1`, id)
	return err
}

// CreateReward inserts one timeline reward.
func (r *Repository) CreateReward(ctx context.Context, rw *models.Reward) error {
	const q = `INSERT INTO rewards (id, webinar_id, appear_at_seconds, title, description, reward_url)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, rw.WebinarID, rw.AppearAtSeconds, rw.Title, rw.Description, rw.RewardURL).
		Scan(&rw.ID, &rw.CreatedAt)
}

// ListRewards returns a webinar's rewards in playback order.
func (r *Repository) ListRewards(ctx context.Context, webinarID uuid.UUID) ([]models.Reward, error) {
	const q = `SELECT id, webinar_id, appear_at_seconds, title, description, reward_url, claim_count, created_at
		FROM rewards WHERE webinar_id = $1 ORDER BY appear_at_seconds`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Reward
	for rows.Next() {
		var rw models.Reward
		if err := rows.Scan(&rw.ID, &rw.WebinarID, &rw.AppearAtSeconds, &rw.Title, &rw.Description, &rw.RewardURL, &rw.ClaimCount, &rw.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rw)
	}
	return list, rows.Err()
}

// DeleteReward removes one reward.
func (r *Repository) DeleteReward(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM rewards WHERE id = $1`, id)
	return err
}

// Events loads the full timeline for a webinar as a sorted store.
func (r *Repository) Events(ctx context.Context, webinarID uuid.UUID) (*timeline.Store, error) {
	chat, err := r.ListChatMessages(ctx, webinarID)
	if err != nil {
		return nil, err
	}
	offers, err := r.ListOffers(ctx, webinarID)
	if err != nil {
		return nil, err
	}
	rewards, err := r.ListRewards(ctx, webinarID)
	if err != nil {
		return nil, err
	}
	return timeline.NewStore(chat, offers, rewards), nil
}
