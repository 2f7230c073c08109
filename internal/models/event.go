package models

import "time"

// EventKind identifies a presence/voice-channel event.
type EventKind string

const (
	EventJoined           EventKind = "joined"
	EventLeft             EventKind = "left"
	EventStartedStreaming EventKind = "started_streaming"
	EventStoppedStreaming EventKind = "stopped_streaming"
)

// Valid reports whether k is one of the recognized event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventJoined, EventLeft, EventStartedStreaming, EventStoppedStreaming:
		return true
	}
	return false
}

// RawEvent is a canonicalized presence event. Immutable once accepted.
type RawEvent struct {
	UserID     string    `json:"user_id"`
	Channel    string    `json:"channel"`
	Kind       EventKind `json:"event_kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityPing is a canonicalized client activity sample. Immutable once accepted.
type ActivityPing struct {
	UserID        string    `json:"user_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	ForegroundApp string    `json:"active_app,omitempty"`
	ActiveApps    []string  `json:"active_apps,omitempty"`
	IsIdle        bool      `json:"is_idle"`
}

// DayOf returns the UTC calendar date key (YYYY-MM-DD) for a timestamp.
func DayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DayBounds returns the UTC start (inclusive) and end (exclusive) of a date key.
func DayBounds(date string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(24 * time.Hour), nil
}
