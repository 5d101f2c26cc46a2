package sessions

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/pkg/response"
)

// Handler exposes the public viewer endpoints. No auth: sessions are keyed
// by opaque tokens.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a session handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// JoinRequest optionally binds the session to a registration.
type JoinRequest struct {
	RegistrationID *string `json:"registration_id"`
}

// Join handles POST /webinars/:id/sessions.
func (h *Handler) Join(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req JoinRequest
	_ = c.ShouldBindJSON(&req)

	var registrationID *uuid.UUID
	if req.RegistrationID != nil {
		id, err := uuid.Parse(*req.RegistrationID)
		if err != nil {
			response.BadRequest(c, "invalid registration_id")
			return
		}
		registrationID = &id
	}

	result, err := h.service.Join(c.Request.Context(), webinarID, registrationID, time.Now())
	if err != nil {
		if errors.Is(err, ErrWebinarNotFound) {
			response.NotFound(c, "webinar not found")
			return
		}
		h.logger.Error("join session", zap.Error(err))
		response.Internal(c, "failed to join webinar")
		return
	}
	response.Created(c, result)
}

// JoinReplay handles POST /replay/:token/sessions.
func (h *Handler) JoinReplay(c *gin.Context) {
	result, err := h.service.JoinReplay(c.Request.Context(), c.Param("token"), time.Now())
	if err != nil {
		switch {
		case errors.Is(err, ErrReplayUnavailable):
			response.NotFound(c, "replay not available")
		case errors.Is(err, ErrWebinarNotFound):
			response.NotFound(c, "webinar not found")
		default:
			h.logger.Error("join replay", zap.Error(err))
			response.Internal(c, "failed to join replay")
		}
		return
	}
	response.Created(c, result)
}

// Sync handles POST /sessions/:token/sync, the heartbeat endpoint.
func (h *Handler) Sync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	snapshot, err := h.service.Sync(c.Request.Context(), c.Param("token"), req, time.Now())
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			response.NotFound(c, "session not found")
			return
		}
		h.logger.Error("sync session", zap.Error(err))
		response.Internal(c, "sync failed")
		return
	}
	response.OK(c, snapshot)
}

// ConvertRequest names the offer a conversion belongs to.
type ConvertRequest struct {
	OfferID string `json:"offer_id" binding:"required"`
}

// Convert handles POST /sessions/:token/convert.
func (h *Handler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	offerID, err := uuid.Parse(req.OfferID)
	if err != nil {
		response.BadRequest(c, "invalid offer_id")
		return
	}
	if err := h.service.Convert(c.Request.Context(), c.Param("token"), offerID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			response.NotFound(c, "session not found")
			return
		}
		h.logger.Error("record conversion", zap.Error(err))
		response.Internal(c, "failed to record conversion")
		return
	}
	response.OK(c, gin.H{"recorded": true})
}

// ClaimReward handles POST /sessions/:token/rewards/:rewardId/claim.
func (h *Handler) ClaimReward(c *gin.Context) {
	rewardID, err := uuid.Parse(c.Param("rewardId"))
	if err != nil {
		response.BadRequest(c, "invalid reward id")
		return
	}
	reward, claimed, err := h.service.ClaimReward(c.Request.Context(), c.Param("token"), rewardID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			response.NotFound(c, "session not found")
		case errors.Is(err, ErrRewardNotAvailable):
			response.NotFound(c, "reward not available yet")
		default:
			h.logger.Error("claim reward", zap.Error(err))
			response.Internal(c, "failed to claim reward")
		}
		return
	}
	response.OK(c, gin.H{"reward": reward, "claimed": claimed})
}
