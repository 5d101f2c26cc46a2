package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registration repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const registrationColumns = `id, webinar_id, email, full_name, status, scheduled_start_at, replay_token, replay_expires_at, attended_at, created_at, updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var r models.Registration
	err := row.Scan(&r.ID, &r.WebinarID, &r.Email, &r.FullName, &r.Status, &r.ScheduledStartAt, &r.ReplayToken, &r.ReplayExpiresAt, &r.AttendedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a registration.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (id, webinar_id, email, full_name, status, scheduled_start_at, replay_token)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, reg.WebinarID, reg.Email, reg.FullName, reg.Status, reg.ScheduledStartAt, reg.ReplayToken).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
}

// GetByID returns a registration, or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// GetByEmail returns the registrant's existing registration for a webinar, or nil.
func (r *Repository) GetByEmail(ctx context.Context, webinarID uuid.UUID, email string) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE webinar_id = $1 AND LOWER(email) = LOWER($2)`, webinarID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// GetByReplayToken returns the registration owning a replay token, or nil.
func (r *Repository) GetByReplayToken(ctx context.Context, token string) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE replay_token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// ListByWebinar returns a webinar's registrations, newest first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE webinar_id = $1 ORDER BY created_at DESC`, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// MarkAttended flips the funnel state the first time a registrant joins live.
func (r *Repository) MarkAttended(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE registrations SET status = 'ATTENDED', attended_at = COALESCE(attended_at, $1), updated_at = NOW()
		WHERE id = $2 AND status = 'REGISTERED'`
	_, err := r.pool.Exec(ctx, q, at, id)
	return err
}

// MarkWatchedReplay records that the registrant opened their replay link.
func (r *Repository) MarkWatchedReplay(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE registrations SET status = 'WATCHED_REPLAY', updated_at = NOW()
		WHERE id = $1 AND status <> 'WATCHED_REPLAY'`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// SetReplayExpiry stamps the replay cutoff once playback has ended. COALESCE
// keeps the first cutoff when the viewer re-enters.
func (r *Repository) SetReplayExpiry(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE registrations SET replay_expires_at = COALESCE(replay_expires_at, $1), updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, at, id)
	return err
}
