package abtest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Repository handles A/B test persistence. Variant counters are only ever
// touched with atomic SET x = x + 1 updates guarded by assignment flags, so
// concurrent sessions cannot lose increments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an A/B test repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const testColumns = `id, offer_id, name, status, algorithm, confidence_level, min_sample_size, auto_optimize, winner_variant_id, started_at, completed_at, created_at, updated_at`

func scanTest(row pgx.Row) (*models.ABTest, error) {
	var t models.ABTest
	err := row.Scan(&t.ID, &t.OfferID, &t.Name, &t.Status, &t.Algorithm, &t.ConfidenceLevel, &t.MinSampleSize, &t.AutoOptimize, &t.WinnerVariantID, &t.StartedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTest inserts a test in DRAFT status.
func (r *Repository) CreateTest(ctx context.Context, t *models.ABTest) error {
	const q = `INSERT INTO offer_ab_tests (id, offer_id, name, status, algorithm, confidence_level, min_sample_size, auto_optimize)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.OfferID, t.Name, t.Status, t.Algorithm, t.ConfidenceLevel, t.MinSampleSize, t.AutoOptimize).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetTest returns a test by ID.
func (r *Repository) GetTest(ctx context.Context, id uuid.UUID) (*models.ABTest, error) {
	return scanTest(r.pool.QueryRow(ctx, `SELECT `+testColumns+` FROM offer_ab_tests WHERE id = $1`, id))
}

// GetRunningTestByOffer returns the RUNNING or COMPLETED-with-winner test
// for an offer, preferring the running one. Returns nil when no test applies.
func (r *Repository) GetRunningTestByOffer(ctx context.Context, offerID uuid.UUID) (*models.ABTest, error) {
	const q = `SELECT ` + testColumns + ` FROM offer_ab_tests
		WHERE offer_id = $1 AND (status = 'RUNNING' OR (status = 'COMPLETED' AND winner_variant_id IS NOT NULL))
		ORDER BY (status = 'RUNNING') DESC, created_at DESC LIMIT 1`
	t, err := scanTest(r.pool.QueryRow(ctx, q, offerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListTestsByOffer returns all tests for an offer, newest first.
func (r *Repository) ListTestsByOffer(ctx context.Context, offerID uuid.UUID) ([]models.ABTest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+testColumns+` FROM offer_ab_tests WHERE offer_id = $1 ORDER BY created_at DESC`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ABTest
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// UpdateStatus moves a test between lifecycle states.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ABTestStatus) error {
	const q = `UPDATE offer_ab_tests SET status = $1,
		started_at = CASE WHEN $1 = 'RUNNING' AND started_at IS NULL THEN NOW() ELSE started_at END,
		updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, status, id)
	return err
}

// Complete marks a test COMPLETED with a declared winner. Guarded so an
// auto-optimize sweep cannot overwrite an already-declared winner.
func (r *Repository) Complete(ctx context.Context, id, winnerID uuid.UUID) error {
	const q = `UPDATE offer_ab_tests
		SET status = 'COMPLETED', winner_variant_id = $1, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status <> 'COMPLETED'`
	_, err := r.pool.Exec(ctx, q, winnerID, id)
	return err
}

// DeleteTest removes a test and its variants/assignments (FK cascade).
func (r *Repository) DeleteTest(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM offer_ab_tests WHERE id = $1`, id)
	return err
}

const variantColumns = `id, test_id, name, is_control, weight, title, description, button_text, button_url, countdown_seconds, limited_seats, impressions, clicks, conversions, created_at`

// CreateVariant inserts one arm.
func (r *Repository) CreateVariant(ctx context.Context, v *models.Variant) error {
	const q = `INSERT INTO offer_ab_variants (id, test_id, name, is_control, weight, title, description, button_text, button_url, countdown_seconds, limited_seats)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, v.TestID, v.Name, v.IsControl, v.Weight, v.Title, v.Description, v.ButtonText, v.ButtonURL, v.CountdownSeconds, v.LimitedSeats).
		Scan(&v.ID, &v.CreatedAt)
}

// ListVariants returns a test's arms ordered by creation.
func (r *Repository) ListVariants(ctx context.Context, testID uuid.UUID) ([]models.Variant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+variantColumns+` FROM offer_ab_variants WHERE test_id = $1 ORDER BY created_at`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Variant
	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(&v.ID, &v.TestID, &v.Name, &v.IsControl, &v.Weight, &v.Title, &v.Description, &v.ButtonText, &v.ButtonURL, &v.CountdownSeconds, &v.LimitedSeats, &v.Impressions, &v.Clicks, &v.Conversions, &v.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// GetVariant returns one arm by ID.
func (r *Repository) GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var v models.Variant
	err := r.pool.QueryRow(ctx, `SELECT `+variantColumns+` FROM offer_ab_variants WHERE id = $1`, id).
		Scan(&v.ID, &v.TestID, &v.Name, &v.IsControl, &v.Weight, &v.Title, &v.Description, &v.ButtonText, &v.ButtonURL, &v.CountdownSeconds, &v.LimitedSeats, &v.Impressions, &v.Clicks, &v.Conversions, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetAssignment returns the session's pinned variant for a test, or nil.
func (r *Repository) GetAssignment(ctx context.Context, testID, sessionID uuid.UUID) (*models.ABAssignment, error) {
	const q = `SELECT id, test_id, variant_id, session_id, impressed, clicked, converted, impressed_at, clicked_at, converted_at, created_at
		FROM offer_ab_assignments WHERE test_id = $1 AND session_id = $2`
	var a models.ABAssignment
	err := r.pool.QueryRow(ctx, q, testID, sessionID).
		Scan(&a.ID, &a.TestID, &a.VariantID, &a.SessionID, &a.Impressed, &a.Clicked, &a.Converted, &a.ImpressedAt, &a.ClickedAt, &a.ConvertedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAssignment pins a session to a variant. On a concurrent duplicate the
// existing row wins and is returned.
func (r *Repository) CreateAssignment(ctx context.Context, testID, variantID, sessionID uuid.UUID) (*models.ABAssignment, error) {
	const q = `INSERT INTO offer_ab_assignments (id, test_id, variant_id, session_id)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (test_id, session_id) DO NOTHING
		RETURNING id, test_id, variant_id, session_id, impressed, clicked, converted, impressed_at, clicked_at, converted_at, created_at`
	var a models.ABAssignment
	err := r.pool.QueryRow(ctx, q, testID, variantID, sessionID).
		Scan(&a.ID, &a.TestID, &a.VariantID, &a.SessionID, &a.Impressed, &a.Clicked, &a.Converted, &a.ImpressedAt, &a.ClickedAt, &a.ConvertedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.GetAssignment(ctx, testID, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkImpressed flips the assignment's impressed flag and, only when this
// call won the flip, atomically bumps the variant's impression counter.
func (r *Repository) MarkImpressed(ctx context.Context, assignmentID uuid.UUID) (bool, error) {
	return r.markEvent(ctx, assignmentID, "impressed", "impressions")
}

// MarkClicked records a click exactly once per assignment.
func (r *Repository) MarkClicked(ctx context.Context, assignmentID uuid.UUID) (bool, error) {
	return r.markEvent(ctx, assignmentID, "clicked", "clicks")
}

// MarkConverted records a conversion exactly once per assignment.
func (r *Repository) MarkConverted(ctx context.Context, assignmentID uuid.UUID) (bool, error) {
	return r.markEvent(ctx, assignmentID, "converted", "conversions")
}

func (r *Repository) markEvent(ctx context.Context, assignmentID uuid.UUID, flag, counter string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var variantID uuid.UUID
	err = tx.QueryRow(ctx,
		`UPDATE offer_ab_assignments SET `+flag+` = TRUE, `+flag+`_at = NOW()
		 WHERE id = $1 AND `+flag+` = FALSE RETURNING variant_id`, assignmentID).Scan(&variantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil // already recorded; keep counters monotone
	}
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE offer_ab_variants SET `+counter+` = `+counter+` + 1 WHERE id = $1`, variantID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
