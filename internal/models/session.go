package models

import (
	"time"

	"github.com/google/uuid"
)

// StreamingInterval is a screen-share span within a session. EndedAt nil means still open.
type StreamingInterval struct {
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Session is one continuous span of a user's presence in the monitored channel.
// ClosedAt nil means the session is still open. Once ClosedAt is set the
// record is immutable history.
type Session struct {
	ID                 uuid.UUID           `json:"id"`
	UserID             string              `json:"user_id"`
	Channel            string              `json:"channel"`
	OpenedAt           time.Time           `json:"opened_at"`
	ClosedAt           *time.Time          `json:"closed_at,omitempty"`
	StreamingIntervals []StreamingInterval `json:"streaming_intervals"`
}

// Duration returns the session length; open sessions use now as the end.
func (s Session) Duration(now time.Time) time.Duration {
	end := now
	if s.ClosedAt != nil {
		end = *s.ClosedAt
	}
	if end.Before(s.OpenedAt) {
		return 0
	}
	return end.Sub(s.OpenedAt)
}

// ScreenShareTime returns the total duration of all streaming intervals;
// an open interval uses now as its end.
func (s Session) ScreenShareTime(now time.Time) time.Duration {
	var total time.Duration
	for _, iv := range s.StreamingIntervals {
		end := now
		if iv.EndedAt != nil {
			end = *iv.EndedAt
		}
		if end.After(iv.StartedAt) {
			total += end.Sub(iv.StartedAt)
		}
	}
	return total
}
