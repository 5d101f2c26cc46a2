package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Repository persists viewer sessions and per-session reward claims.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, webinar_id, registration_id, session_token, mode, start_reference, last_synced_position, max_watched_seconds, completion_percent, attendee_count, last_synced_at, ended_at, created_at`

// Create inserts a new session row.
func (r *Repository) Create(ctx context.Context, s *models.WebinarSession) error {
	const q = `INSERT INTO webinar_sessions (id, webinar_id, registration_id, session_token, mode, start_reference, last_synced_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, s.WebinarID, s.RegistrationID, s.SessionToken, s.Mode, s.StartReference, s.LastSyncedAt).
		Scan(&s.ID, &s.CreatedAt)
}

// GetByToken returns the session for a sync token, or nil.
func (r *Repository) GetByToken(ctx context.Context, token string) (*models.WebinarSession, error) {
	var s models.WebinarSession
	err := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM webinar_sessions WHERE session_token = $1`, token).
		Scan(&s.ID, &s.WebinarID, &s.RegistrationID, &s.SessionToken, &s.Mode, &s.StartReference, &s.LastSyncedPosition, &s.MaxWatchedSeconds, &s.CompletionPercent, &s.AttendeeCount, &s.LastSyncedAt, &s.EndedAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSync writes the post-heartbeat state back to the row.
func (r *Repository) UpdateSync(ctx context.Context, s *models.WebinarSession) error {
	const q = `UPDATE webinar_sessions
		SET mode = $1, last_synced_position = $2, max_watched_seconds = $3,
		    completion_percent = $4, attendee_count = $5, last_synced_at = $6, ended_at = $7
		WHERE id = $8`
	_, err := r.pool.Exec(ctx, q, s.Mode, s.LastSyncedPosition, s.MaxWatchedSeconds, s.CompletionPercent, s.AttendeeCount, s.LastSyncedAt, s.EndedAt, s.ID)
	return err
}

// ClaimReward records a claim once per (session, reward). The first claim
// also bumps the reward's claim counter; repeats report claimed=false.
func (r *Repository) ClaimReward(ctx context.Context, sessionID, rewardID uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `INSERT INTO session_reward_claims (id, session_id, reward_id)
		VALUES (gen_random_uuid(), $1, $2)
		ON CONFLICT (session_id, reward_id) DO NOTHING`, sessionID, rewardID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE rewards SET claim_count = claim_count + 1 WHERE id = $1`, rewardID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// IncrementOfferClick bumps the offer's aggregate click counter.
func (r *Repository) IncrementOfferClick(ctx context.Context, offerID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE timed_offers SET click_count = click_count + 1, updated_at = NOW() WHERE id = $1`, offerID)
	return err
}

// IncrementOfferConversion bumps the offer's aggregate conversion counter.
func (r *Repository) IncrementOfferConversion(ctx context.Context, offerID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE timed_offers SET conversion_count = conversion_count + 1, updated_at = NOW() WHERE id = $1`, offerID)
	return err
}
