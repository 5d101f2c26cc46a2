// Package playback resolves the canonical playback position for a viewer
// session. The server clock is the source of truth: in LIVE mode the
// client-reported position is advisory only, in REPLAY the client controls
// seeking within the video bounds.
package playback

import (
	"time"

	"github.com/evergreen-webinar/backend/internal/models"
)

// DefaultDriftToleranceSec is how far a LIVE client may drift from the
// canonical position before the sync response flags a correction.
const DefaultDriftToleranceSec = 10

// Position is the resolved playback state for one heartbeat.
type Position struct {
	Seconds           int                `json:"seconds"`
	Mode              models.SessionMode `json:"mode"`
	Corrected         bool               `json:"corrected"`
	SecondsUntilStart int                `json:"seconds_until_start,omitempty"`
}

// Resolver computes canonical positions against a drift tolerance.
type Resolver struct {
	driftTolerance int
}

// NewResolver creates a resolver. toleranceSec <= 0 falls back to the default.
func NewResolver(toleranceSec int) *Resolver {
	if toleranceSec <= 0 {
		toleranceSec = DefaultDriftToleranceSec
	}
	return &Resolver{driftTolerance: toleranceSec}
}

// Resolve returns the canonical position for a session at wall-clock now.
//
// SCHEDULED sessions flip to LIVE once now reaches the start reference.
// LIVE positions derive purely from elapsed wall-clock time, so a reconnect
// lands the viewer exactly where the "broadcast" is. REPLAY trusts the
// client's requested position. Reaching the end of the video is terminal.
func (r *Resolver) Resolve(session *models.WebinarSession, videoDuration int, clientPosition int, now time.Time) Position {
	switch session.Mode {
	case models.ModeEnded:
		return Position{Seconds: videoDuration, Mode: models.ModeEnded}

	case models.ModeReplay:
		pos := clamp(clientPosition, 0, videoDuration)
		if pos >= videoDuration {
			return Position{Seconds: videoDuration, Mode: models.ModeEnded}
		}
		return Position{Seconds: pos, Mode: models.ModeReplay}

	case models.ModeScheduled:
		if now.Before(session.StartReference) {
			until := int(session.StartReference.Sub(now).Seconds())
			if until < 1 {
				until = 1
			}
			return Position{Seconds: 0, Mode: models.ModeScheduled, SecondsUntilStart: until}
		}
		return r.resolveLive(session, videoDuration, clientPosition, now)

	default: // LIVE
		return r.resolveLive(session, videoDuration, clientPosition, now)
	}
}

func (r *Resolver) resolveLive(session *models.WebinarSession, videoDuration int, clientPosition int, now time.Time) Position {
	elapsed := int(now.Sub(session.StartReference).Seconds())
	pos := clamp(elapsed, 0, videoDuration)
	if pos >= videoDuration {
		return Position{Seconds: videoDuration, Mode: models.ModeEnded}
	}
	drift := clientPosition - pos
	if drift < 0 {
		drift = -drift
	}
	return Position{
		Seconds:   pos,
		Mode:      models.ModeLive,
		Corrected: drift > r.driftTolerance,
	}
}

// CompletionPercent returns how much of the video the viewer has seen, capped at 100.
func CompletionPercent(maxWatchedSeconds, videoDuration int) float64 {
	if videoDuration <= 0 {
		return 0
	}
	pct := float64(maxWatchedSeconds) / float64(videoDuration) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
