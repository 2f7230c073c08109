package activity

import (
	"time"

	"github.com/wfh-tracker/backend/internal/models"
)

// Window accumulates activity pings for one user on one calendar day.
// Pings are applied in arrival order; durations come from timestamp deltas.
// Callers must serialize Apply per user.
type Window struct {
	userID          string
	date            string
	activeSeconds   int64
	idleSeconds     int64
	appUsage        map[string]int64
	firstActivityAt time.Time
	lastActivityAt  time.Time
	lastIdle        bool
	sawPing         bool
}

// NewWindow creates an empty window for a user and date key.
func NewWindow(userID, date string) *Window {
	return &Window{userID: userID, date: date, appUsage: make(map[string]int64)}
}

// Restore rebuilds a window from a persisted snapshot, e.g. after restart.
func Restore(w models.ActivityWindow) *Window {
	usage := make(map[string]int64, len(w.AppUsage))
	for app, s := range w.AppUsage {
		usage[app] = s
	}
	return &Window{
		userID:          w.UserID,
		date:            w.Date,
		activeSeconds:   w.ActiveSeconds,
		idleSeconds:     w.IdleSeconds,
		appUsage:        usage,
		firstActivityAt: w.FirstActivityAt,
		lastActivityAt:  w.LastActivityAt,
		lastIdle:        w.LastIdle,
		sawPing:         !w.LastActivityAt.IsZero(),
	}
}

// Apply folds one ping into the window and returns the credited elapsed time.
//
// Elapsed time is the delta from the previous ping, floored at zero for
// out-of-order pings and capped at clamp so long silences are not credited.
// A ping whose idle flag differs from the previous ping's credits nothing:
// the state flipped somewhere inside the gap and neither bucket can claim it.
func (w *Window) Apply(p models.ActivityPing, clamp time.Duration) time.Duration {
	defer func() {
		w.lastIdle = p.IsIdle
		w.sawPing = true
	}()

	if !w.sawPing {
		w.firstActivityAt = p.OccurredAt
		w.lastActivityAt = p.OccurredAt
		return 0
	}

	elapsed := p.OccurredAt.Sub(w.lastActivityAt)
	if elapsed < 0 {
		// Out-of-order ping: accepted, contributes nothing.
		return 0
	}
	if p.OccurredAt.After(w.lastActivityAt) {
		w.lastActivityAt = p.OccurredAt
	}
	if elapsed > clamp {
		elapsed = clamp
	}
	if p.IsIdle != w.lastIdle {
		return 0
	}

	secs := int64(elapsed / time.Second)
	if p.IsIdle {
		w.idleSeconds += secs
	} else {
		w.activeSeconds += secs
		if p.ForegroundApp != "" {
			w.appUsage[p.ForegroundApp] += secs
		}
	}
	return elapsed
}

// Snapshot returns the window as a persistable record.
func (w *Window) Snapshot() models.ActivityWindow {
	usage := make(map[string]int64, len(w.appUsage))
	for app, s := range w.appUsage {
		usage[app] = s
	}
	return models.ActivityWindow{
		UserID:          w.userID,
		Date:            w.date,
		ActiveSeconds:   w.activeSeconds,
		IdleSeconds:     w.idleSeconds,
		AppUsage:        usage,
		FirstActivityAt: w.firstActivityAt,
		LastActivityAt:  w.lastActivityAt,
		LastIdle:        w.lastIdle,
	}
}
