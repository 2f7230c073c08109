package sessions

import (
	"time"

	"github.com/google/uuid"

	"github.com/wfh-tracker/backend/internal/models"
)

// State is the presence state of one user's machine.
type State int

const (
	// StateAbsent means no open session.
	StateAbsent State = iota
	// StatePresent means an open session without screen share.
	StatePresent
	// StateStreaming means an open session with an open streaming interval.
	StateStreaming
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StatePresent:
		return "present"
	case StateStreaming:
		return "streaming"
	default:
		return "absent"
	}
}

// Result describes what applying one event did.
type Result struct {
	// Stale is set when the event timestamp precedes the last recorded
	// transition. The event is still applied; callers surface this to
	// observability only.
	Stale bool
	// Synthesized is set when a started_streaming with no open session
	// created an implicit one.
	Synthesized bool
	// NoOp is set for idempotent repeats (left while absent, started_streaming
	// while streaming, joined while present).
	NoOp bool
	// Closed holds the archived session when this event closed it.
	Closed *models.Session
}

// Machine tracks channel presence and streaming state for a single user.
// It is long-lived and cycles absent -> present -> streaming -> absent.
// Callers must serialize Apply per user.
type Machine struct {
	userID         string
	state          State
	current        *models.Session
	lastTransition time.Time
}

// NewMachine creates a machine for one user, starting absent.
func NewMachine(userID string) *Machine {
	return &Machine{userID: userID, state: StateAbsent}
}

// State returns the current presence state.
func (m *Machine) State() State { return m.state }

// Current returns a snapshot of the open session, or nil when absent.
func (m *Machine) Current() *models.Session {
	if m.current == nil {
		return nil
	}
	snap := *m.current
	snap.StreamingIntervals = append([]models.StreamingInterval(nil), m.current.StreamingIntervals...)
	return &snap
}

// Apply runs one event through the transition table. Events are applied in
// acceptance order even when their timestamps are out of order; interval and
// session bounds are clamped so the invariants (one open session, no
// overlapping intervals, intervals inside session bounds) always hold.
func (m *Machine) Apply(ev models.RawEvent) Result {
	res := Result{
		Stale: !m.lastTransition.IsZero() && ev.OccurredAt.Before(m.lastTransition),
	}

	switch ev.Kind {
	case models.EventJoined:
		if m.state != StateAbsent {
			res.NoOp = true
			return res
		}
		m.open(ev)

	case models.EventStartedStreaming:
		switch m.state {
		case StateStreaming:
			res.NoOp = true
			return res
		case StateAbsent:
			// No preceding joined: treat as an implicit join.
			m.open(ev)
			res.Synthesized = true
		}
		start := ev.OccurredAt
		if start.Before(m.current.OpenedAt) {
			start = m.current.OpenedAt
		}
		// Keep intervals non-overlapping when a stale start lands inside
		// an already-closed interval.
		if n := len(m.current.StreamingIntervals); n > 0 {
			if prev := m.current.StreamingIntervals[n-1].EndedAt; prev != nil && start.Before(*prev) {
				start = *prev
			}
		}
		m.current.StreamingIntervals = append(m.current.StreamingIntervals, models.StreamingInterval{StartedAt: start})
		m.state = StateStreaming

	case models.EventStoppedStreaming:
		if m.state != StateStreaming {
			res.NoOp = true
			return res
		}
		m.closeInterval(ev.OccurredAt)
		m.state = StatePresent

	case models.EventLeft:
		if m.state == StateAbsent {
			res.NoOp = true
			return res
		}
		if m.state == StateStreaming {
			m.closeInterval(ev.OccurredAt)
		}
		closedAt := ev.OccurredAt
		if closedAt.Before(m.current.OpenedAt) {
			closedAt = m.current.OpenedAt
		}
		// A stale left must not close the session before intervals that
		// already ended later; interval ends stay <= closed_at.
		if n := len(m.current.StreamingIntervals); n > 0 {
			if end := m.current.StreamingIntervals[n-1].EndedAt; end != nil && closedAt.Before(*end) {
				closedAt = *end
			}
		}
		m.current.ClosedAt = &closedAt
		res.Closed = m.current
		m.current = nil
		m.state = StateAbsent
	}

	if ev.OccurredAt.After(m.lastTransition) {
		m.lastTransition = ev.OccurredAt
	}
	return res
}

func (m *Machine) open(ev models.RawEvent) {
	m.current = &models.Session{
		ID:       uuid.New(),
		UserID:   m.userID,
		Channel:  ev.Channel,
		OpenedAt: ev.OccurredAt,
	}
	m.state = StatePresent
}

// closeInterval ends the open streaming interval, flooring the end at the
// interval start so intervals never run backwards.
func (m *Machine) closeInterval(at time.Time) {
	n := len(m.current.StreamingIntervals)
	if n == 0 {
		return
	}
	iv := &m.current.StreamingIntervals[n-1]
	if iv.EndedAt != nil {
		return
	}
	end := at
	if end.Before(iv.StartedAt) {
		end = iv.StartedAt
	}
	iv.EndedAt = &end
}
