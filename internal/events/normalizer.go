package events

import (
	"strings"
	"time"

	"github.com/wfh-tracker/backend/internal/models"
)

// EventPayload is the wire shape for POST /events.
type EventPayload struct {
	UserID     string `json:"user_id"`
	Channel    string `json:"channel"`
	EventKind  string `json:"event_kind"`
	OccurredAt string `json:"occurred_at"`
}

// ActivityPayload is the wire shape for POST /activity.
type ActivityPayload struct {
	UserID     string   `json:"user_id"`
	OccurredAt string   `json:"occurred_at"`
	ActiveApp  string   `json:"active_app"`
	ActiveApps []string `json:"active_apps"`
	IsIdle     bool     `json:"is_idle"`
}

// Normalizer validates and canonicalizes inbound payloads. It is pure: it
// neither dedupes nor reorders, that is the state machine's concern.
type Normalizer struct {
	clockSkew time.Duration
	now       func() time.Time
}

// NewNormalizer creates a normalizer with the given future-timestamp tolerance.
func NewNormalizer(clockSkew time.Duration) *Normalizer {
	return &Normalizer{clockSkew: clockSkew, now: time.Now}
}

// NormalizeEvent converts a raw payload into a RawEvent.
// Returns *ValidationError or *ClockSkewError on rejection.
func (n *Normalizer) NormalizeEvent(p EventPayload) (models.RawEvent, error) {
	var ev models.RawEvent
	if strings.TrimSpace(p.UserID) == "" {
		return ev, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if strings.TrimSpace(p.Channel) == "" {
		return ev, &ValidationError{Field: "channel", Reason: "required"}
	}
	kind := models.EventKind(p.EventKind)
	if !kind.Valid() {
		return ev, &ValidationError{Field: "event_kind", Reason: "unrecognized: " + p.EventKind}
	}
	occurredAt, err := n.parseTimestamp(p.OccurredAt)
	if err != nil {
		return ev, err
	}
	return models.RawEvent{
		UserID:     strings.TrimSpace(p.UserID),
		Channel:    strings.TrimSpace(p.Channel),
		Kind:       kind,
		OccurredAt: occurredAt,
	}, nil
}

// NormalizeActivity converts a raw payload into an ActivityPing.
func (n *Normalizer) NormalizeActivity(p ActivityPayload) (models.ActivityPing, error) {
	var ping models.ActivityPing
	if strings.TrimSpace(p.UserID) == "" {
		return ping, &ValidationError{Field: "user_id", Reason: "required"}
	}
	occurredAt, err := n.parseTimestamp(p.OccurredAt)
	if err != nil {
		return ping, err
	}
	apps := make([]string, 0, len(p.ActiveApps))
	for _, a := range p.ActiveApps {
		if a = strings.TrimSpace(a); a != "" {
			apps = append(apps, a)
		}
	}
	return models.ActivityPing{
		UserID:        strings.TrimSpace(p.UserID),
		OccurredAt:    occurredAt,
		ForegroundApp: strings.TrimSpace(p.ActiveApp),
		ActiveApps:    apps,
		IsIdle:        p.IsIdle,
	}, nil
}

func (n *Normalizer) parseTimestamp(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, &ValidationError{Field: "occurred_at", Reason: "required"}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "occurred_at", Reason: "unparsable timestamp"}
	}
	t = t.UTC()
	if limit := n.now().Add(n.clockSkew); t.After(limit) {
		return time.Time{}, &ClockSkewError{OccurredAt: t, Limit: n.clockSkew}
	}
	return t, nil
}
