package abtest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Store is the persistence surface the experiment service needs. Satisfied
// by *Repository; narrowed so the sync path can be tested without Postgres.
type Store interface {
	GetRunningTestByOffer(ctx context.Context, offerID uuid.UUID) (*models.ABTest, error)
	GetTest(ctx context.Context, id uuid.UUID) (*models.ABTest, error)
	ListVariants(ctx context.Context, testID uuid.UUID) ([]models.Variant, error)
	GetAssignment(ctx context.Context, testID, sessionID uuid.UUID) (*models.ABAssignment, error)
	CreateAssignment(ctx context.Context, testID, variantID, sessionID uuid.UUID) (*models.ABAssignment, error)
	MarkImpressed(ctx context.Context, assignmentID uuid.UUID) (bool, error)
	MarkClicked(ctx context.Context, assignmentID uuid.UUID) (bool, error)
	MarkConverted(ctx context.Context, assignmentID uuid.UUID) (bool, error)
	Complete(ctx context.Context, id, winnerID uuid.UUID) error
}

// Service applies experiments to offers on the viewer sync path and feeds
// click/conversion events back into the bandit.
type Service struct {
	store    Store
	selector *Selector
	logger   *zap.Logger
}

// NewService creates the experiment service.
func NewService(store Store, selector *Selector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, selector: selector, logger: logger}
}

// ResolveOffer applies the session's experiment variant (assigning one on
// first sight) to the offer and records the impression. Without a running
// test the offer passes through untouched.
func (s *Service) ResolveOffer(ctx context.Context, offer models.TimedOffer, sessionID uuid.UUID) (models.TimedOffer, error) {
	test, err := s.store.GetRunningTestByOffer(ctx, offer.ID)
	if err != nil {
		return offer, fmt.Errorf("lookup test: %w", err)
	}
	if test == nil {
		return offer, nil
	}

	assignment, err := s.assign(ctx, test, sessionID)
	if err != nil {
		return offer, err
	}
	if assignment == nil {
		return offer, nil
	}

	if _, err := s.store.MarkImpressed(ctx, assignment.ID); err != nil {
		return offer, fmt.Errorf("record impression: %w", err)
	}

	variants, err := s.store.ListVariants(ctx, test.ID)
	if err != nil {
		return offer, fmt.Errorf("load variants: %w", err)
	}
	for i := range variants {
		if variants[i].ID == assignment.VariantID {
			applyVariant(&offer, &variants[i])
			break
		}
	}
	return offer, nil
}

func (s *Service) assign(ctx context.Context, test *models.ABTest, sessionID uuid.UUID) (*models.ABAssignment, error) {
	existing, err := s.store.GetAssignment(ctx, test.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup assignment: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	variants, err := s.store.ListVariants(ctx, test.ID)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	variantID, err := s.selector.Select(test, variants)
	if err != nil {
		s.logger.Warn("variant selection failed", zap.String("test_id", test.ID.String()), zap.Error(err))
		return nil, nil
	}
	return s.store.CreateAssignment(ctx, test.ID, variantID, sessionID)
}

// RecordClick bumps the session's variant click counter once. A click implies
// the impression, so an unimpressed assignment is backfilled first to keep
// clicks <= impressions.
func (s *Service) RecordClick(ctx context.Context, offerID, sessionID uuid.UUID) error {
	assignment, err := s.assignmentFor(ctx, offerID, sessionID)
	if err != nil || assignment == nil {
		return err
	}
	if !assignment.Impressed {
		if _, err := s.store.MarkImpressed(ctx, assignment.ID); err != nil {
			return err
		}
	}
	_, err = s.store.MarkClicked(ctx, assignment.ID)
	return err
}

// RecordConversion bumps the conversion counter once and, when the test has
// auto-optimize on, checks whether a winner can now be declared. A conversion
// implies the click and impression; when the session converted without ever
// reporting a click those events are backfilled first so
// conversions <= clicks <= impressions holds.
func (s *Service) RecordConversion(ctx context.Context, offerID, sessionID uuid.UUID) error {
	test, err := s.store.GetRunningTestByOffer(ctx, offerID)
	if err != nil || test == nil {
		return err
	}
	assignment, err := s.store.GetAssignment(ctx, test.ID, sessionID)
	if err != nil || assignment == nil {
		return err
	}
	if !assignment.Impressed {
		if _, err := s.store.MarkImpressed(ctx, assignment.ID); err != nil {
			return err
		}
	}
	if !assignment.Clicked {
		if _, err := s.store.MarkClicked(ctx, assignment.ID); err != nil {
			return err
		}
	}
	if _, err := s.store.MarkConverted(ctx, assignment.ID); err != nil {
		return err
	}
	if test.AutoOptimize && test.Status == models.ABTestRunning {
		return s.checkAutoOptimize(ctx, test.ID)
	}
	return nil
}

// checkAutoOptimize completes the test when the analyzer finds a significant
// winner. Losing the race against a concurrent completion is harmless: the
// Complete update is guarded on status.
func (s *Service) checkAutoOptimize(ctx context.Context, testID uuid.UUID) error {
	test, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return err
	}
	if test.Status != models.ABTestRunning {
		return nil
	}
	variants, err := s.store.ListVariants(ctx, testID)
	if err != nil {
		return err
	}
	result := Analyze(test, variants)
	if !result.IsSignificant || result.WinnerVariantID == nil {
		return nil
	}
	if err := s.store.Complete(ctx, testID, *result.WinnerVariantID); err != nil {
		return err
	}
	s.logger.Info("experiment auto-completed",
		zap.String("test_id", testID.String()),
		zap.String("winner_variant_id", result.WinnerVariantID.String()),
		zap.Float64p("p_value", result.PValue))
	return nil
}

func (s *Service) assignmentFor(ctx context.Context, offerID, sessionID uuid.UUID) (*models.ABAssignment, error) {
	test, err := s.store.GetRunningTestByOffer(ctx, offerID)
	if err != nil || test == nil {
		return nil, err
	}
	return s.store.GetAssignment(ctx, test.ID, sessionID)
}

// applyVariant overlays non-nil variant content onto the base offer.
func applyVariant(offer *models.TimedOffer, v *models.Variant) {
	if v.Title != nil {
		offer.Title = *v.Title
	}
	if v.Description != nil {
		offer.Description = *v.Description
	}
	if v.ButtonText != nil {
		offer.ButtonText = *v.ButtonText
	}
	if v.ButtonURL != nil {
		offer.ButtonURL = *v.ButtonURL
	}
	if v.CountdownSeconds != nil {
		offer.CountdownSeconds = v.CountdownSeconds
	}
	if v.LimitedSeats != nil {
		offer.LimitedSeats = v.LimitedSeats
	}
}
