package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/internal/attendees"
	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/internal/playback"
	"github.com/evergreen-webinar/backend/internal/timeline"
)

var (
	// ErrSessionNotFound means the sync token does not map to a session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrWebinarNotFound means the webinar template does not exist or is not active.
	ErrWebinarNotFound = errors.New("webinar not found")
	// ErrReplayUnavailable means replay is disabled or the replay link expired.
	ErrReplayUnavailable = errors.New("replay not available")
	// ErrRewardNotAvailable means the reward has not appeared at the viewer's position.
	ErrRewardNotAvailable = errors.New("reward not available yet")
)

// SessionStore is the persistence surface for viewer sessions.
type SessionStore interface {
	Create(ctx context.Context, s *models.WebinarSession) error
	GetByToken(ctx context.Context, token string) (*models.WebinarSession, error)
	UpdateSync(ctx context.Context, s *models.WebinarSession) error
	ClaimReward(ctx context.Context, sessionID, rewardID uuid.UUID) (bool, error)
	IncrementOfferClick(ctx context.Context, offerID uuid.UUID) error
	IncrementOfferConversion(ctx context.Context, offerID uuid.UUID) error
}

// TemplateSource loads the webinar template and its timeline events.
type TemplateSource interface {
	GetWebinar(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
	Events(ctx context.Context, webinarID uuid.UUID) (*timeline.Store, error)
}

// RegistrationSource resolves registrants for joins and funnel updates.
type RegistrationSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	GetByReplayToken(ctx context.Context, token string) (*models.Registration, error)
	MarkAttended(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkWatchedReplay(ctx context.Context, id uuid.UUID) error
}

// Experiments is the offer A/B surface used on the sync path.
type Experiments interface {
	ResolveOffer(ctx context.Context, offer models.TimedOffer, sessionID uuid.UUID) (models.TimedOffer, error)
	RecordClick(ctx context.Context, offerID, sessionID uuid.UUID) error
	RecordConversion(ctx context.Context, offerID, sessionID uuid.UUID) error
}

// Presence refreshes the viewer's liveness key on every heartbeat.
type Presence interface {
	Touch(ctx context.Context, webinarID uuid.UUID, token string) error
}

// EndHook runs once when a session transitions into ENDED.
type EndHook func(ctx context.Context, session *models.WebinarSession, registrationID *uuid.UUID)

// Service drives the heartbeat loop: resolve position, diff the timeline,
// apply experiments, step the attendee counter, persist.
type Service struct {
	sessions      SessionStore
	templates     TemplateSource
	registrations RegistrationSource
	experiments   Experiments
	presence      Presence
	resolver      *playback.Resolver
	sim           *attendees.Simulator
	onEnded       EndHook
	logger        *zap.Logger
}

// NewService wires the sync service. experiments, presence, registrations and
// onEnded may be nil; the corresponding steps are skipped.
func NewService(
	sessions SessionStore,
	templates TemplateSource,
	registrations RegistrationSource,
	experiments Experiments,
	presence Presence,
	resolver *playback.Resolver,
	sim *attendees.Simulator,
	onEnded EndHook,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions:      sessions,
		templates:     templates,
		registrations: registrations,
		experiments:   experiments,
		presence:      presence,
		resolver:      resolver,
		sim:           sim,
		onEnded:       onEnded,
		logger:        logger,
	}
}

// SyncRequest is the heartbeat body.
type SyncRequest struct {
	ClientPosition int        `json:"client_position"`
	OfferClickedID *uuid.UUID `json:"offer_clicked_id,omitempty"`
}

// SyncResponse is the heartbeat snapshot the player renders from.
type SyncResponse struct {
	Mode              models.SessionMode   `json:"mode"`
	Position          int                  `json:"position"`
	Corrected         bool                 `json:"corrected"`
	SecondsUntilStart int                  `json:"seconds_until_start,omitempty"`
	ChatDelta         []models.ChatMessage `json:"chat_delta"`
	ActiveOffer       *models.TimedOffer   `json:"active_offer,omitempty"`
	Rewards           []models.Reward      `json:"rewards"`
	AttendeeCount     int                  `json:"attendee_count"`
	Rewound           bool                 `json:"rewound"`
	IsEnded           bool                 `json:"is_ended"`
	CompletionPercent float64              `json:"completion_percent"`
}

// JoinResult is the session token plus the initial snapshot.
type JoinResult struct {
	SessionToken string       `json:"session_token"`
	Snapshot     SyncResponse `json:"snapshot"`
}

// Join creates a live-track session for a webinar. With a registration the
// registrant's personal start time anchors the clock; anonymous viewers get
// the webinar's fixed start, or "now" for just-in-time templates.
func (s *Service) Join(ctx context.Context, webinarID uuid.UUID, registrationID *uuid.UUID, now time.Time) (*JoinResult, error) {
	webinar, err := s.templates.GetWebinar(ctx, webinarID)
	if err != nil || webinar == nil {
		return nil, ErrWebinarNotFound
	}

	startRef := now
	if registrationID != nil && s.registrations != nil {
		reg, err := s.registrations.GetByID(ctx, *registrationID)
		if err != nil || reg == nil {
			return nil, fmt.Errorf("registration lookup: %w", err)
		}
		startRef = reg.ScheduledStartAt
		if err := s.registrations.MarkAttended(ctx, reg.ID, now); err != nil {
			s.logger.Warn("mark attended", zap.Error(err))
		}
	} else if webinar.ScheduleType == models.ScheduleFixed && webinar.StartsAt != nil {
		startRef = *webinar.StartsAt
	}

	mode := models.ModeLive
	if startRef.After(now) {
		mode = models.ModeScheduled
	}
	session := &models.WebinarSession{
		WebinarID:      webinarID,
		RegistrationID: registrationID,
		SessionToken:   uuid.NewString(),
		Mode:           mode,
		StartReference: startRef,
		LastSyncedAt:   now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s.initialSnapshot(ctx, session, webinar, now)
}

// JoinReplay creates a replay-track session from a replay token.
func (s *Service) JoinReplay(ctx context.Context, replayToken string, now time.Time) (*JoinResult, error) {
	if s.registrations == nil {
		return nil, ErrReplayUnavailable
	}
	reg, err := s.registrations.GetByReplayToken(ctx, replayToken)
	if err != nil || reg == nil {
		return nil, ErrReplayUnavailable
	}
	webinar, err := s.templates.GetWebinar(ctx, reg.WebinarID)
	if err != nil || webinar == nil {
		return nil, ErrWebinarNotFound
	}
	if !webinar.ReplayEnabled {
		return nil, ErrReplayUnavailable
	}
	if reg.ReplayExpiresAt != nil && now.After(*reg.ReplayExpiresAt) {
		return nil, ErrReplayUnavailable
	}

	regID := reg.ID
	session := &models.WebinarSession{
		WebinarID:      webinar.ID,
		RegistrationID: &regID,
		SessionToken:   uuid.NewString(),
		Mode:           models.ModeReplay,
		StartReference: now,
		LastSyncedAt:   now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.registrations.MarkWatchedReplay(ctx, reg.ID); err != nil {
		s.logger.Warn("mark watched replay", zap.Error(err))
	}
	return s.initialSnapshot(ctx, session, webinar, now)
}

func (s *Service) initialSnapshot(ctx context.Context, session *models.WebinarSession, webinar *models.Webinar, now time.Time) (*JoinResult, error) {
	store, err := s.templates.Events(ctx, webinar.ID)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	pos := s.resolver.Resolve(session, webinar.VideoDuration, 0, now)
	resp := s.buildResponse(ctx, session, webinar, store, pos, true)
	if err := s.persist(ctx, session, webinar, pos, resp, now); err != nil {
		return nil, err
	}
	return &JoinResult{SessionToken: session.SessionToken, Snapshot: resp}, nil
}

// Session returns the session for a token, or ErrSessionNotFound.
func (s *Service) Session(ctx context.Context, token string) (*models.WebinarSession, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Sync handles one heartbeat for the session identified by token.
func (s *Service) Sync(ctx context.Context, token string, req SyncRequest, now time.Time) (*SyncResponse, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	webinar, err := s.templates.GetWebinar(ctx, session.WebinarID)
	if err != nil || webinar == nil {
		return nil, ErrWebinarNotFound
	}
	store, err := s.templates.Events(ctx, session.WebinarID)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}

	pos := s.resolver.Resolve(session, webinar.VideoDuration, req.ClientPosition, now)
	if pos.Mode == models.ModeScheduled {
		return &SyncResponse{
			Mode:              models.ModeScheduled,
			SecondsUntilStart: pos.SecondsUntilStart,
			ChatDelta:         []models.ChatMessage{},
			Rewards:           []models.Reward{},
		}, nil
	}

	if req.OfferClickedID != nil {
		s.recordClick(ctx, *req.OfferClickedID, session.ID)
	}

	resp := s.buildResponse(ctx, session, webinar, store, pos, false)
	if err := s.persist(ctx, session, webinar, pos, resp, now); err != nil {
		return nil, err
	}
	if s.presence != nil && pos.Mode == models.ModeLive {
		if err := s.presence.Touch(ctx, session.WebinarID, token); err != nil {
			s.logger.Warn("presence touch", zap.Error(err))
		}
	}
	return &resp, nil
}

func (s *Service) buildResponse(ctx context.Context, session *models.WebinarSession, webinar *models.Webinar, store *timeline.Store, pos playback.Position, initial bool) SyncResponse {
	var window timeline.Window
	if initial {
		window = store.VisibleAt(pos.Seconds)
	} else {
		window = store.Window(session.LastSyncedPosition, pos.Seconds)
	}

	activeOffer := window.ActiveOffer
	if activeOffer != nil && s.experiments != nil {
		resolved, err := s.experiments.ResolveOffer(ctx, *activeOffer, session.ID)
		if err != nil {
			s.logger.Warn("resolve offer experiment", zap.Error(err))
		} else {
			activeOffer = &resolved
		}
	}

	count := 0
	if webinar.AttendeeConfigured() && pos.Mode == models.ModeLive && s.sim != nil {
		progress := 0.0
		if webinar.VideoDuration > 0 {
			progress = float64(pos.Seconds) / float64(webinar.VideoDuration)
		}
		count = s.sim.Next(session.AttendeeCount, attendees.Config{
			Min: webinar.AttendeeSimMin,
			Max: webinar.AttendeeSimMax,
		}, progress)
	}

	maxWatched := session.MaxWatchedSeconds
	if pos.Seconds > maxWatched {
		maxWatched = pos.Seconds
	}
	if window.Chat == nil {
		window.Chat = []models.ChatMessage{}
	}
	if window.Rewards == nil {
		window.Rewards = []models.Reward{}
	}
	return SyncResponse{
		Mode:              pos.Mode,
		Position:          pos.Seconds,
		Corrected:         pos.Corrected,
		SecondsUntilStart: pos.SecondsUntilStart,
		ChatDelta:         window.Chat,
		ActiveOffer:       activeOffer,
		Rewards:           window.Rewards,
		AttendeeCount:     count,
		Rewound:           window.Rewound,
		IsEnded:           pos.Mode == models.ModeEnded,
		CompletionPercent: playback.CompletionPercent(maxWatched, webinar.VideoDuration),
	}
}

func (s *Service) persist(ctx context.Context, session *models.WebinarSession, webinar *models.Webinar, pos playback.Position, resp SyncResponse, now time.Time) error {
	justEnded := session.Mode != models.ModeEnded && pos.Mode == models.ModeEnded

	session.Mode = pos.Mode
	session.LastSyncedPosition = pos.Seconds
	if pos.Seconds > session.MaxWatchedSeconds {
		session.MaxWatchedSeconds = pos.Seconds
	}
	session.CompletionPercent = resp.CompletionPercent
	if resp.AttendeeCount > 0 {
		session.AttendeeCount = resp.AttendeeCount
	}
	session.LastSyncedAt = now
	if justEnded {
		endedAt := now
		session.EndedAt = &endedAt
	}
	if err := s.sessions.UpdateSync(ctx, session); err != nil {
		return fmt.Errorf("persist sync: %w", err)
	}
	if justEnded && s.onEnded != nil {
		s.onEnded(ctx, session, session.RegistrationID)
	}
	return nil
}

func (s *Service) recordClick(ctx context.Context, offerID, sessionID uuid.UUID) {
	if err := s.sessions.IncrementOfferClick(ctx, offerID); err != nil {
		s.logger.Warn("offer click counter", zap.Error(err))
	}
	if s.experiments != nil {
		if err := s.experiments.RecordClick(ctx, offerID, sessionID); err != nil {
			s.logger.Warn("experiment click", zap.Error(err))
		}
	}
}

// Convert records a purchase/conversion attributed to an offer.
func (s *Service) Convert(ctx context.Context, token string, offerID uuid.UUID) error {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("session lookup: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := s.sessions.IncrementOfferConversion(ctx, offerID); err != nil {
		return fmt.Errorf("offer conversion counter: %w", err)
	}
	if s.experiments != nil {
		if err := s.experiments.RecordConversion(ctx, offerID, session.ID); err != nil {
			return fmt.Errorf("experiment conversion: %w", err)
		}
	}
	return nil
}

// ClaimReward claims a timeline reward once per session. The reward must
// already have appeared at the viewer's last synced position.
func (s *Service) ClaimReward(ctx context.Context, token string, rewardID uuid.UUID) (*models.Reward, bool, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, false, fmt.Errorf("session lookup: %w", err)
	}
	if session == nil {
		return nil, false, ErrSessionNotFound
	}
	store, err := s.templates.Events(ctx, session.WebinarID)
	if err != nil {
		return nil, false, fmt.Errorf("load timeline: %w", err)
	}
	reward := store.Reward(rewardID.String())
	if reward == nil || reward.AppearAtSeconds > session.LastSyncedPosition {
		return nil, false, ErrRewardNotAvailable
	}
	claimed, err := s.sessions.ClaimReward(ctx, session.ID, rewardID)
	if err != nil {
		return nil, false, fmt.Errorf("claim reward: %w", err)
	}
	return reward, claimed, nil
}
