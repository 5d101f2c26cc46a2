package registrations

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/pkg/response"
)

// ErrWebinarNotOpen means the webinar does not exist or is not accepting registrations.
var ErrWebinarNotOpen = errors.New("webinar is not open for registration")

// Handler exposes the registration endpoints. Register is public; listing is
// admin-only.
type Handler struct {
	service *Service
	repo    *Repository
	logger  *zap.Logger
}

// NewHandler creates a registration handler.
func NewHandler(service *Service, repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{service: service, repo: repo, logger: logger}
}

// RegisterRequest is the public signup body.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required"`
}

// Register handles POST /webinars/:id/register.
func (h *Handler) Register(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.service.Register(c.Request.Context(), webinarID, req.Email, req.FullName, time.Now())
	if err != nil {
		if errors.Is(err, ErrWebinarNotOpen) {
			response.NotFound(c, "webinar is not open for registration")
			return
		}
		h.logger.Error("register", zap.Error(err))
		response.Internal(c, "failed to register")
		return
	}
	response.Created(c, reg)
}

// ListByWebinar handles GET /webinars/:id/registrations (admin).
func (h *Handler) ListByWebinar(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	list, err := h.repo.ListByWebinar(c.Request.Context(), webinarID)
	if err != nil {
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// Get handles GET /registrations/:id (admin).
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load registration")
		return
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return
	}
	response.OK(c, reg)
}
