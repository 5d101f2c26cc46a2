package notifications

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/pkg/response"
)

// Handler exposes delivery history to the admin UI.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByWebinar handles GET /webinars/:id/notifications.
func (h *Handler) ListByWebinar(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.repo.ListLogsByWebinar(c.Request.Context(), webinarID, limit)
	if err != nil {
		h.logger.Error("list notification logs", zap.Error(err))
		response.Internal(c, "failed to list notification logs")
		return
	}
	response.OK(c, logs)
}
