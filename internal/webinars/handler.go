package webinars

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/internal/middleware"
	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/internal/timeline"
	"github.com/evergreen-webinar/backend/pkg/response"
	"github.com/evergreen-webinar/backend/pkg/storage"
)

// Broadcaster pushes authoring changes to viewers already connected over
// WebSocket, on this instance and via Redis on the others.
type Broadcaster interface {
	BroadcastToWebinarAndPublish(webinarID uuid.UUID, event string, payload interface{})
}

// Handler exposes the admin authoring endpoints for webinar templates.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	hub    Broadcaster
	logger *zap.Logger
}

// NewHandler creates a webinar handler. s3 may be nil when uploads are not
// configured; the upload-url endpoint then returns 503. hub may be nil.
func NewHandler(repo *Repository, s3 *storage.S3, hub Broadcaster, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, s3: s3, hub: hub, logger: logger}
}

// WebinarRequest is the create/update body for a template.
type WebinarRequest struct {
	Title                    string     `json:"title" binding:"required"`
	Description              string     `json:"description"`
	Status                   string     `json:"status"`
	VideoURL                 string     `json:"video_url"`
	VideoType                string     `json:"video_type"`
	VideoDuration            int        `json:"video_duration" binding:"required,gt=0"`
	ScheduleType             string     `json:"schedule_type" binding:"required"`
	StartsAt                 *time.Time `json:"starts_at"`
	JustInTimeDelayMin       int        `json:"just_in_time_delay_min"`
	SimulatedChatEnabled     bool       `json:"simulated_chat_enabled"`
	AttendeeSimEnabled       bool       `json:"attendee_sim_enabled"`
	AttendeeSimMin           int        `json:"attendee_sim_min"`
	AttendeeSimMax           int        `json:"attendee_sim_max"`
	AttendeeUpdateIntervalMs int        `json:"attendee_update_interval_ms"`
	ReplayEnabled            bool       `json:"replay_enabled"`
	ReplayExpiresAfterHours  *int       `json:"replay_expires_after_hours"`
}

func (req *WebinarRequest) validate() string {
	switch models.ScheduleType(req.ScheduleType) {
	case models.ScheduleFixed:
		if req.StartsAt == nil {
			return "starts_at is required for SCHEDULED webinars"
		}
	case models.ScheduleJustInTime:
		if req.JustInTimeDelayMin <= 0 {
			return "just_in_time_delay_min must be positive"
		}
	default:
		return "unknown schedule_type"
	}
	if req.AttendeeSimEnabled {
		if req.AttendeeSimMin < 0 || req.AttendeeSimMax <= 0 || req.AttendeeSimMin > req.AttendeeSimMax {
			return "attendee simulator bounds must satisfy 0 <= min <= max"
		}
	}
	return ""
}

func (req *WebinarRequest) apply(w *models.Webinar) {
	w.Title = req.Title
	w.Description = req.Description
	if req.Status != "" {
		w.Status = models.WebinarStatus(req.Status)
	}
	w.VideoURL = req.VideoURL
	if req.VideoType != "" {
		w.VideoType = models.VideoType(req.VideoType)
	}
	w.VideoDuration = req.VideoDuration
	w.ScheduleType = models.ScheduleType(req.ScheduleType)
	w.StartsAt = req.StartsAt
	w.JustInTimeDelayMin = req.JustInTimeDelayMin
	w.SimulatedChatEnabled = req.SimulatedChatEnabled
	w.AttendeeSimEnabled = req.AttendeeSimEnabled
	w.AttendeeSimMin = req.AttendeeSimMin
	w.AttendeeSimMax = req.AttendeeSimMax
	w.AttendeeUpdateIntervalMs = req.AttendeeUpdateIntervalMs
	w.ReplayEnabled = req.ReplayEnabled
	w.ReplayExpiresAfterHours = req.ReplayExpiresAfterHours
}

// Create handles POST /webinars.
func (h *Handler) Create(c *gin.Context) {
	var req WebinarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}

	w := &models.Webinar{Status: models.WebinarDraft, VideoType: models.VideoYouTube}
	req.apply(w)
	if userID, ok := c.Get(middleware.ContextUserID); ok {
		if id, err := uuid.Parse(userID.(string)); err == nil {
			w.CreatedBy = id
		}
	}
	if err := h.repo.Create(c.Request.Context(), w); err != nil {
		h.logger.Error("create webinar", zap.Error(err))
		response.Internal(c, "failed to create webinar")
		return
	}
	response.Created(c, w)
}

// List handles GET /webinars. ?status= filters by lifecycle state.
func (h *Handler) List(c *gin.Context) {
	var status *models.WebinarStatus
	if s := c.Query("status"); s != "" {
		st := models.WebinarStatus(s)
		status = &st
	}
	list, err := h.repo.List(c.Request.Context(), status)
	if err != nil {
		response.Internal(c, "failed to list webinars")
		return
	}
	response.OK(c, list)
}

// Get handles GET /webinars/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	w, err := h.repo.GetWebinar(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load webinar")
		return
	}
	if w == nil {
		response.NotFound(c, "webinar not found")
		return
	}
	response.OK(c, w)
}

// Update handles PUT /webinars/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req WebinarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	w, err := h.repo.GetWebinar(c.Request.Context(), id)
	if err != nil || w == nil {
		response.NotFound(c, "webinar not found")
		return
	}
	req.apply(w)
	if err := h.repo.Update(c.Request.Context(), w); err != nil {
		h.logger.Error("update webinar", zap.Error(err))
		response.Internal(c, "failed to update webinar")
		return
	}
	response.OK(c, w)
}

// Delete handles DELETE /webinars/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete webinar")
		return
	}
	response.NoContent(c)
}

// ChatMessageRequest is one authored chat line.
type ChatMessageRequest struct {
	AppearAtSeconds int     `json:"appear_at_seconds"`
	SenderName      string  `json:"sender_name" binding:"required"`
	SenderAvatar    *string `json:"sender_avatar"`
	Content         string  `json:"content" binding:"required"`
	MessageType     string  `json:"message_type"`
	SortOrder       int     `json:"sort_order"`
}

// CreateChatMessages handles POST /webinars/:id/chat, accepting a batch so
// editors can import a whole script at once.
func (h *Handler) CreateChatMessages(c *gin.Context) {
	webinar, ok := h.loadWebinar(c)
	if !ok {
		return
	}
	var reqs []ChatMessageRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	created := make([]models.ChatMessage, 0, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		msgType := models.ChatComment
		if req.MessageType != "" {
			msgType = models.ChatMessageType(req.MessageType)
		}
		m := models.ChatMessage{
			WebinarID:       webinar.ID,
			AppearAtSeconds: req.AppearAtSeconds,
			SenderName:      req.SenderName,
			SenderAvatar:    req.SenderAvatar,
			Content:         req.Content,
			MessageType:     msgType,
			SortOrder:       req.SortOrder,
		}
		if err := timeline.ValidateChatMessage(&m, webinar.VideoDuration); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		created = append(created, m)
	}
	for i := range created {
		if err := h.repo.CreateChatMessage(c.Request.Context(), &created[i]); err != nil {
			h.logger.Error("create chat message", zap.Error(err))
			response.Internal(c, "failed to create chat message")
			return
		}
	}
	response.Created(c, created)
}

// ListChatMessages handles GET /webinars/:id/chat.
func (h *Handler) ListChatMessages(c *gin.Context) {
	webinar, ok := h.loadWebinar(c)
	if !ok {
		return
	}
	list, err := h.repo.ListChatMessages(c.Request.Context(), webinar.ID)
	if err != nil {
		response.Internal(c, "failed to list chat messages")
		return
	}
	response.OK(c, list)
}

// DeleteChatMessage handles DELETE /webinars/:id/chat/:messageId.
func (h *Handler) DeleteChatMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	if err := h.repo.DeleteChatMessage(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete chat message")
		return
	}
	response.NoContent(c)
}

// OfferRequest is one authored timed offer.
type OfferRequest struct {
	AppearAtSeconds  int    `json:"appear_at_seconds"`
	HideAtSeconds    *int   `json:"hide_at_seconds"`
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	ButtonText       string `json:"button_text" binding:"required"`
	ButtonURL        string `json:"button_url" binding:"required"`
	CountdownSeconds *int   `json:"countdown_seconds"`
	LimitedSeats     *int   `json:"limited_seats"`
}

// CreateOffer handles POST /webinars/:id/offers.
func (h *Handler) CreateOffer(c *gin.Context) {
	webinar, ok := h.loadWebinar(c)
	if !ok {
		return
	}
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	o := models.TimedOffer{
		WebinarID:        webinar.ID,
		AppearAtSeconds:  req.AppearAtSeconds,
		HideAtSeconds:    req.HideAtSeconds,
		Title:            req.Title,
		Description:      req.Description,
		ButtonText:       req.ButtonText,
		ButtonURL:        req.ButtonURL,
		CountdownSeconds: req.CountdownSeconds,
		LimitedSeats:     req.LimitedSeats,
	}
	if err := timeline.ValidateOffer(&o, webinar.VideoDuration); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.CreateOffer(c.Request.Context(), &o); err != nil {
		h.logger.Error("create offer", zap.Error(err))
		response.Internal(c, "failed to create offer")
		return
	}
	if h.hub != nil {
		h.hub.BroadcastToWebinarAndPublish(webinar.ID, "offers_changed", gin.H{"webinar_id": webinar.ID})
	}
	response.Created(c, o)
}

// ListOffers handles GET /webinars/:id/offers.
func (h *Handler) ListOffers(c *gin.Context) {
	webinar, ok := h.loadWebinar(c)
	if !ok {
		return
	}
	list, err := h.repo.ListOffers(c.Request.Context(), webinar.ID)
	if err != nil {
		response.Internal(c, "failed to list offers")
		return
	}
	response.OK(c, list)
}

// DeleteOffer handles DELETE /webinars/:id/offers/:offerId.
func (h *Handler) DeleteOffer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("offerId"))
	if err != nil {
		response.BadRequest(c, "invalid offer id")
		return
	}
	if err := h.repo.DeleteOffer(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete offer")
		return
	}
	if webinarID, err := uuid.Parse(c.Param("id")); err == nil && h.hub != nil {
		h.hub.BroadcastToWebinarAndPublish(webinarID, "offers_changed", gin.H{"webinar_id": webinarID})
	}
	response.NoContent(c)
}

// RewardRequest is one authored timeline reward.
type RewardRequest struct {
	AppearAtSeconds int    `json:"appear_at_seconds"`
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	RewardURL       string `json:"reward_url" binding:"required"`
}

// CreateReward handles POST /webinars/:id/rewards.
func (h *Handler) CreateReward(c *gin.Context) {
	webinar, ok := h.loadWebinar(c)
	if !ok {
		return
	}
	var req RewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rw := models.Reward{
		WebinarID:       webinar.ID,
		AppearAtSeconds: req.AppearAtSeconds,
		Title:           req.Title,
		Description:     req.Description,
		RewardURL:       req.RewardURL,
	}
	if err := timeline.ValidateReward(&rw, webinar.VideoDuration); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.CreateReward(c.Request.Context(), &rw); err != nil {
		h.logger.Error("create reward", zap.Error(err))
		response.Internal(c, "failed to create reward")
		return
	}
	response.Created(c, rw)
}

// ListRewards handles GET /webinars/:id/rewards.
func (h *Handler) ListRewards(c *gin.Context) {
	webinar, ok := h.loadWebinar(c)
	if !ok {
		return
	}
	list, err := h.repo.ListRewards(c.Request.Context(), webinar.ID)
	if err != nil {
		response.Internal(c, "failed to list rewards")
		return
	}
	response.OK(c, list)
}

// DeleteReward handles DELETE /webinars/:id/rewards/:rewardId.
func (h *Handler) DeleteReward(c *gin.Context) {
	id, err := uuid.Parse(c.Param("rewardId"))
	if err != nil {
		response.BadRequest(c, "invalid reward id")
		return
	}
	if err := h.repo.DeleteReward(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete reward")
		return
	}
	response.NoContent(c)
}

// UploadURLRequest asks for a presigned PUT for the template video.
type UploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// VideoUploadURL handles POST /webinars/:id/video/upload-url. The client
// uploads directly to S3 and then PUTs the resulting key as video_url.
func (h *Handler) VideoUploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "video uploads are not configured")
		return
	}
	webinar, ok := h.loadWebinar(c)
	if !ok {
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateVideoFileType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported video type")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	key := storage.VideoKey(webinar.ID.String(), req.Filename)
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.VideosBucket(), key, contentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign video upload", zap.Error(err))
		response.Internal(c, "failed to create upload url")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "key": key, "content_type": contentType})
}

func (h *Handler) loadWebinar(c *gin.Context) (*models.Webinar, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return nil, false
	}
	w, err := h.repo.GetWebinar(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load webinar")
		return nil, false
	}
	if w == nil {
		response.NotFound(c, "webinar not found")
		return nil, false
	}
	return w, true
}
