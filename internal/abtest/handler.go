package abtest

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/pkg/response"
)

// Handler exposes the A/B test admin endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an A/B test handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// VariantRequest is one arm in a create request.
type VariantRequest struct {
	Name             string  `json:"name" binding:"required"`
	IsControl        bool    `json:"is_control"`
	Weight           float64 `json:"weight"`
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	ButtonText       *string `json:"button_text"`
	ButtonURL        *string `json:"button_url"`
	CountdownSeconds *int    `json:"countdown_seconds"`
	LimitedSeats     *int    `json:"limited_seats"`
}

// CreateRequest is the body for POST /offers/:id/ab-tests.
type CreateRequest struct {
	Name            string           `json:"name" binding:"required"`
	Algorithm       string           `json:"algorithm" binding:"required"`
	ConfidenceLevel float64          `json:"confidence_level"`
	MinSampleSize   int              `json:"min_sample_size"`
	AutoOptimize    bool             `json:"auto_optimize"`
	Variants        []VariantRequest `json:"variants" binding:"required,min=2"`
}

var validAlgorithms = map[models.ABTestAlgorithm]bool{
	models.AlgorithmRandom:           true,
	models.AlgorithmEpsilonGreedy:    true,
	models.AlgorithmUCB1:             true,
	models.AlgorithmThompsonSampling: true,
}

// Create handles POST /offers/:id/ab-tests.
func (h *Handler) Create(c *gin.Context) {
	offerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid offer id")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	algorithm := models.ABTestAlgorithm(req.Algorithm)
	if !validAlgorithms[algorithm] {
		response.BadRequest(c, "unknown algorithm")
		return
	}
	controls := 0
	for _, v := range req.Variants {
		if v.IsControl {
			controls++
		}
	}
	if controls != 1 {
		response.BadRequest(c, "exactly one variant must be the control")
		return
	}
	if req.ConfidenceLevel <= 0 || req.ConfidenceLevel >= 1 {
		req.ConfidenceLevel = 0.95
	}
	if req.MinSampleSize <= 0 {
		req.MinSampleSize = 100
	}

	test := &models.ABTest{
		OfferID:         offerID,
		Name:            req.Name,
		Status:          models.ABTestDraft,
		Algorithm:       algorithm,
		ConfidenceLevel: req.ConfidenceLevel,
		MinSampleSize:   req.MinSampleSize,
		AutoOptimize:    req.AutoOptimize,
	}
	if err := h.repo.CreateTest(c.Request.Context(), test); err != nil {
		h.logger.Error("create ab test", zap.Error(err))
		response.Internal(c, "failed to create test")
		return
	}
	for _, vr := range req.Variants {
		weight := vr.Weight
		if weight <= 0 {
			weight = 1
		}
		v := &models.Variant{
			TestID: test.ID, Name: vr.Name, IsControl: vr.IsControl, Weight: weight,
			Title: vr.Title, Description: vr.Description,
			ButtonText: vr.ButtonText, ButtonURL: vr.ButtonURL,
			CountdownSeconds: vr.CountdownSeconds, LimitedSeats: vr.LimitedSeats,
		}
		if err := h.repo.CreateVariant(c.Request.Context(), v); err != nil {
			h.logger.Error("create variant", zap.Error(err))
			response.Internal(c, "failed to create variant")
			return
		}
	}
	response.Created(c, test)
}

// Get handles GET /ab-tests/:id (test plus variants with live counters).
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid test id")
		return
	}
	test, err := h.repo.GetTest(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "test not found")
		return
	}
	variants, err := h.repo.ListVariants(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load variants")
		return
	}
	response.OK(c, gin.H{"test": test, "variants": variants})
}

// ListByOffer handles GET /offers/:id/ab-tests.
func (h *Handler) ListByOffer(c *gin.Context) {
	offerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid offer id")
		return
	}
	list, err := h.repo.ListTestsByOffer(c.Request.Context(), offerID)
	if err != nil {
		response.Internal(c, "failed to list tests")
		return
	}
	response.OK(c, list)
}

// Analyze handles GET /ab-tests/:id/analysis.
func (h *Handler) Analyze(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid test id")
		return
	}
	test, err := h.repo.GetTest(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "test not found")
		return
	}
	variants, err := h.repo.ListVariants(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load variants")
		return
	}
	response.OK(c, Analyze(test, variants))
}

// Start handles POST /ab-tests/:id/start.
func (h *Handler) Start(c *gin.Context) {
	h.transition(c, models.ABTestRunning)
}

// Pause handles POST /ab-tests/:id/pause.
func (h *Handler) Pause(c *gin.Context) {
	h.transition(c, models.ABTestPaused)
}

func (h *Handler) transition(c *gin.Context, status models.ABTestStatus) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid test id")
		return
	}
	test, err := h.repo.GetTest(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "test not found")
		return
	}
	if test.Status == models.ABTestCompleted {
		response.Conflict(c, "test is already completed")
		return
	}
	if err := h.repo.UpdateStatus(c.Request.Context(), id, status); err != nil {
		response.Internal(c, "failed to update test")
		return
	}
	updated, _ := h.repo.GetTest(c.Request.Context(), id)
	response.OK(c, updated)
}

// CompleteRequest optionally names an explicit winner, overriding the
// significance-based pick.
type CompleteRequest struct {
	WinnerID *string `json:"winner_id"`
}

// Complete handles POST /ab-tests/:id/complete.
func (h *Handler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid test id")
		return
	}
	var req CompleteRequest
	_ = c.ShouldBindJSON(&req)

	test, err := h.repo.GetTest(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "test not found")
		return
	}
	variants, err := h.repo.ListVariants(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load variants")
		return
	}

	var winnerID uuid.UUID
	if req.WinnerID != nil {
		winnerID, err = uuid.Parse(*req.WinnerID)
		if err != nil {
			response.BadRequest(c, "invalid winner_id")
			return
		}
		found := false
		for _, v := range variants {
			if v.ID == winnerID {
				found = true
				break
			}
		}
		if !found {
			response.BadRequest(c, "winner_id is not a variant of this test")
			return
		}
	} else {
		result := Analyze(test, variants)
		if result.WinnerVariantID == nil {
			response.Conflict(c, "no significant winner yet; pass winner_id to override")
			return
		}
		winnerID = *result.WinnerVariantID
	}

	if err := h.repo.Complete(c.Request.Context(), id, winnerID); err != nil {
		response.Internal(c, "failed to complete test")
		return
	}
	updated, _ := h.repo.GetTest(c.Request.Context(), id)
	response.OK(c, updated)
}

// Delete handles DELETE /ab-tests/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid test id")
		return
	}
	if err := h.repo.DeleteTest(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete test")
		return
	}
	response.NoContent(c)
}
