// Package aggregator folds normalized presence events and activity pings into
// per-user sessions, activity windows, live status, and daily summaries.
package aggregator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wfh-tracker/backend/internal/activity"
	"github.com/wfh-tracker/backend/internal/models"
	"github.com/wfh-tracker/backend/internal/sessions"
)

// Flusher enqueues best-effort async persistence writes. Enqueue failures are
// logged and never block event acceptance.
type Flusher interface {
	EnqueueSessionFlush(ctx context.Context, s models.Session) error
	EnqueueWindowFlush(ctx context.Context, w models.ActivityWindow) error
}

// StatusSink receives a status snapshot after every accepted event or ping.
type StatusSink interface {
	BroadcastStatus(status models.UserStatus)
}

// SessionReader loads persisted sessions for days the engine no longer holds in memory.
type SessionReader interface {
	ListOverlappingDay(ctx context.Context, userID string, dayStart, dayEnd time.Time) ([]models.Session, error)
}

// WindowReader loads persisted activity windows for days the engine no longer holds in memory.
type WindowReader interface {
	GetByUserAndDate(ctx context.Context, userID, date string) (*models.ActivityWindow, error)
}

// Config wires the engine's collaborators. All of them are optional except ActivityGap.
type Config struct {
	// ActivityGap caps elapsed time credited between consecutive pings.
	ActivityGap time.Duration
	Flusher     Flusher
	Status      StatusSink
	Sessions    SessionReader
	Windows     WindowReader
	Logger      *zap.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// SubmitResult reports how an event was applied.
type SubmitResult struct {
	Stale       bool `json:"stale,omitempty"`
	Synthesized bool `json:"synthesized,omitempty"`
	NoOp        bool `json:"no_op,omitempty"`
}

// userState is everything the engine tracks for one user. Its mutex enforces
// the single-writer-per-user discipline; events for different users never
// contend.
type userState struct {
	mu          sync.Mutex
	machine     *sessions.Machine
	windows     map[string]*activity.Window // by date key
	closed      []models.Session            // archived sessions since boot
	lastChannel string
	activeApp   string
	activeApps  []string
}

// Engine owns all per-user state. Reads take snapshots and never block
// writers for longer than one user's lock.
type Engine struct {
	mu    sync.RWMutex
	users map[string]*userState
	order []string // first-seen order, for AllStatuses

	gap      time.Duration
	flusher  Flusher
	status   StatusSink
	sessions SessionReader
	windows  WindowReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates an aggregation engine.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	gap := cfg.ActivityGap
	if gap <= 0 {
		gap = 5 * time.Minute
	}
	return &Engine{
		users:    make(map[string]*userState),
		gap:      gap,
		flusher:  cfg.Flusher,
		status:   cfg.Status,
		sessions: cfg.Sessions,
		windows:  cfg.Windows,
		logger:   logger,
		now:      now,
	}
}

// SubmitEvent applies one presence event. Events for the same user are
// serialized; the call never blocks on persistence.
func (e *Engine) SubmitEvent(ctx context.Context, ev models.RawEvent) SubmitResult {
	st := e.user(ev.UserID)

	st.mu.Lock()
	res := st.machine.Apply(ev)
	st.lastChannel = ev.Channel
	var flush *models.Session
	if res.Closed != nil {
		st.closed = append(st.closed, *res.Closed)
		flush = res.Closed
	} else if !res.NoOp {
		flush = st.machine.Current()
	}
	status := e.statusLocked(st, ev.UserID, e.now())
	st.mu.Unlock()

	if res.Stale {
		e.logger.Warn("stale event applied",
			zap.String("user_id", ev.UserID),
			zap.String("event_kind", string(ev.Kind)),
			zap.Time("occurred_at", ev.OccurredAt))
	}
	if res.Synthesized {
		e.logger.Warn("started_streaming without open session, synthesized implicit join",
			zap.String("user_id", ev.UserID))
	}
	if flush != nil && e.flusher != nil {
		if err := e.flusher.EnqueueSessionFlush(ctx, *flush); err != nil {
			e.logger.Warn("session flush enqueue failed", zap.Error(err), zap.String("user_id", ev.UserID))
		}
	}
	if e.status != nil {
		e.status.BroadcastStatus(status)
	}
	return SubmitResult{Stale: res.Stale, Synthesized: res.Synthesized, NoOp: res.NoOp}
}

// SubmitActivity applies one activity ping.
func (e *Engine) SubmitActivity(ctx context.Context, p models.ActivityPing) {
	st := e.user(p.UserID)
	date := models.DayOf(p.OccurredAt)

	st.mu.Lock()
	w, ok := st.windows[date]
	if !ok {
		w = e.loadWindow(ctx, p.UserID, date)
		st.windows[date] = w
	}
	w.Apply(p, e.gap)
	if p.IsIdle {
		st.activeApp = ""
	} else if p.ForegroundApp != "" {
		st.activeApp = p.ForegroundApp
	}
	if p.ActiveApps != nil {
		st.activeApps = p.ActiveApps
	}
	snap := w.Snapshot()
	status := e.statusLocked(st, p.UserID, e.now())
	st.mu.Unlock()

	if e.flusher != nil {
		if err := e.flusher.EnqueueWindowFlush(ctx, snap); err != nil {
			e.logger.Warn("window flush enqueue failed", zap.Error(err), zap.String("user_id", p.UserID))
		}
	}
	if e.status != nil {
		e.status.BroadcastStatus(status)
	}
}

// Status returns the latest-known view for one user. The second return is
// false when the user has no recorded events or pings.
func (e *Engine) Status(userID string) (models.UserStatus, bool) {
	e.mu.RLock()
	st := e.users[userID]
	e.mu.RUnlock()
	if st == nil {
		return models.UserStatus{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return e.statusLocked(st, userID, e.now()), true
}

// AllStatuses returns every known user's status in first-seen order.
func (e *Engine) AllStatuses() []models.UserStatus {
	e.mu.RLock()
	ids := append([]string(nil), e.order...)
	states := make([]*userState, len(ids))
	for i, id := range ids {
		states[i] = e.users[id]
	}
	e.mu.RUnlock()

	now := e.now()
	out := make([]models.UserStatus, 0, len(ids))
	for i, st := range states {
		st.mu.Lock()
		out = append(out, e.statusLocked(st, ids[i], now))
		st.mu.Unlock()
	}
	return out
}

// DailySummary derives the rollup for one user and date. In-memory state is
// authoritative for days seen since boot; older days are read through the
// persisted stores. found is false when neither has data.
func (e *Engine) DailySummary(ctx context.Context, userID, date string) (models.DailySummary, bool, error) {
	dayStart, dayEnd, err := models.DayBounds(date)
	if err != nil {
		return models.DailySummary{}, false, err
	}
	now := e.now()

	e.mu.RLock()
	st := e.users[userID]
	e.mu.RUnlock()

	var daySessions []models.Session
	var window *models.ActivityWindow
	if st != nil {
		st.mu.Lock()
		for _, s := range st.closed {
			if sessionOverlaps(s, dayStart, dayEnd, now) {
				daySessions = append(daySessions, s)
			}
		}
		if cur := st.machine.Current(); cur != nil && sessionOverlaps(*cur, dayStart, dayEnd, now) {
			daySessions = append(daySessions, *cur)
		}
		if w, ok := st.windows[date]; ok {
			snap := w.Snapshot()
			window = &snap
		}
		st.mu.Unlock()
	}

	if len(daySessions) == 0 && window == nil {
		if e.sessions != nil {
			daySessions, err = e.sessions.ListOverlappingDay(ctx, userID, dayStart, dayEnd)
			if err != nil {
				return models.DailySummary{}, false, err
			}
		}
		if e.windows != nil {
			window, err = e.windows.GetByUserAndDate(ctx, userID, date)
			if err != nil {
				return models.DailySummary{}, false, err
			}
		}
	}

	found := len(daySessions) > 0 || window != nil
	return buildSummary(userID, date, daySessions, window, dayStart, dayEnd, now), found, nil
}

// History returns the days most recent DailySummary records, most recent
// first. Days without data appear as zero rows so consumers get a dense series.
func (e *Engine) History(ctx context.Context, userID string, days int) ([]models.DailySummary, error) {
	if days <= 0 {
		days = 1
	}
	now := e.now()
	out := make([]models.DailySummary, 0, days)
	for i := 0; i < days; i++ {
		date := models.DayOf(now.AddDate(0, 0, -i))
		summary, _, err := e.DailySummary(ctx, userID, date)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// HasUser reports whether the engine has seen any event or ping for the user.
func (e *Engine) HasUser(userID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.users[userID]
	return ok
}

// loadWindow seeds a day's window from the persisted store so totals flushed
// before a restart are carried forward instead of being overwritten by a
// fresh zero snapshot. Happens once per (user, date); the window then lives
// in memory.
func (e *Engine) loadWindow(ctx context.Context, userID, date string) *activity.Window {
	if e.windows != nil {
		persisted, err := e.windows.GetByUserAndDate(ctx, userID, date)
		if err != nil {
			e.logger.Warn("window load failed, starting fresh",
				zap.Error(err), zap.String("user_id", userID), zap.String("date", date))
		} else if persisted != nil {
			return activity.Restore(*persisted)
		}
	}
	return activity.NewWindow(userID, date)
}

func (e *Engine) user(userID string) *userState {
	e.mu.RLock()
	st := e.users[userID]
	e.mu.RUnlock()
	if st != nil {
		return st
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if st = e.users[userID]; st != nil {
		return st
	}
	st = &userState{
		machine: sessions.NewMachine(userID),
		windows: make(map[string]*activity.Window),
	}
	e.users[userID] = st
	e.order = append(e.order, userID)
	return st
}

// statusLocked computes the UserStatus snapshot. Caller holds st.mu.
func (e *Engine) statusLocked(st *userState, userID string, now time.Time) models.UserStatus {
	dayStart, dayEnd, _ := models.DayBounds(models.DayOf(now))

	status := models.UserStatus{
		UserID:       userID,
		Online:       st.machine.State() != sessions.StateAbsent,
		ScreenShared: st.machine.State() == sessions.StateStreaming,
		ActiveApp:    st.activeApp,
		Channel:      st.lastChannel,
	}
	if apps := st.activeApps; len(apps) > 0 {
		status.ActiveApps = append([]string(nil), apps...)
	}
	if cur := st.machine.Current(); cur != nil {
		status.Channel = cur.Channel
		status.ScreenShareSeconds += screenShareSecondsInDay(*cur, dayStart, dayEnd, now)
	}
	for _, s := range st.closed {
		status.ScreenShareSeconds += screenShareSecondsInDay(s, dayStart, dayEnd, now)
	}
	if w, ok := st.windows[models.DayOf(now)]; ok {
		snap := w.Snapshot()
		status.TotalActiveSeconds = snap.ActiveSeconds
		status.TotalIdleSeconds = snap.IdleSeconds
		status.AppUsage = snap.AppUsage
		status.MostUsedApp, _ = snap.MostUsedApp()
	}
	return status
}

func buildSummary(userID, date string, daySessions []models.Session, window *models.ActivityWindow, dayStart, dayEnd, now time.Time) models.DailySummary {
	summary := models.DailySummary{UserID: userID, Date: date}
	for _, s := range daySessions {
		summary.TotalSessionSeconds += sessionSecondsInDay(s, dayStart, dayEnd, now)
		summary.ScreenShareSeconds += screenShareSecondsInDay(s, dayStart, dayEnd, now)
	}
	if window != nil {
		summary.TotalActiveSeconds = window.ActiveSeconds
		summary.TotalIdleSeconds = window.IdleSeconds
		summary.MostUsedApp, summary.MostUsedAppSeconds = window.MostUsedApp()
	}
	return summary
}

func sessionOverlaps(s models.Session, dayStart, dayEnd, now time.Time) bool {
	return sessionSecondsInDay(s, dayStart, dayEnd, now) > 0 ||
		(!s.OpenedAt.Before(dayStart) && s.OpenedAt.Before(dayEnd))
}

// sessionSecondsInDay returns the session's overlap with [dayStart, dayEnd);
// an open session ends at now.
func sessionSecondsInDay(s models.Session, dayStart, dayEnd, now time.Time) int64 {
	end := now
	if s.ClosedAt != nil {
		end = *s.ClosedAt
	}
	return overlapSeconds(s.OpenedAt, end, dayStart, dayEnd)
}

// screenShareSecondsInDay sums streaming interval overlap with [dayStart, dayEnd);
// an open interval ends at now.
func screenShareSecondsInDay(s models.Session, dayStart, dayEnd, now time.Time) int64 {
	var total int64
	for _, iv := range s.StreamingIntervals {
		end := now
		if iv.EndedAt != nil {
			end = *iv.EndedAt
		}
		total += overlapSeconds(iv.StartedAt, end, dayStart, dayEnd)
	}
	return total
}

func overlapSeconds(start, end, lo, hi time.Time) int64 {
	if start.Before(lo) {
		start = lo
	}
	if end.After(hi) {
		end = hi
	}
	if !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}
