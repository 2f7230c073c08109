package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfh-tracker/backend/internal/models"
)

func testNormalizer() *Normalizer {
	n := NewNormalizer(5 * time.Minute)
	n.now = func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) }
	return n
}

func TestNormalizeEventValid(t *testing.T) {
	n := testNormalizer()
	ev, err := n.NormalizeEvent(EventPayload{
		UserID:     "  alice ",
		Channel:    "wfh-monitoring",
		EventKind:  "joined",
		OccurredAt: "2026-08-20T09:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", ev.UserID)
	assert.Equal(t, "wfh-monitoring", ev.Channel)
	assert.Equal(t, models.EventJoined, ev.Kind)
	assert.Equal(t, time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC), ev.OccurredAt)
}

func TestNormalizeEventOffsetToUTC(t *testing.T) {
	n := testNormalizer()
	ev, err := n.NormalizeEvent(EventPayload{
		UserID:     "alice",
		Channel:    "wfh-monitoring",
		EventKind:  "left",
		OccurredAt: "2026-08-20T14:30:00+05:30",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC), ev.OccurredAt)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
}

func TestNormalizeEventRejections(t *testing.T) {
	n := testNormalizer()
	valid := EventPayload{
		UserID:     "alice",
		Channel:    "wfh-monitoring",
		EventKind:  "joined",
		OccurredAt: "2026-08-20T09:00:00Z",
	}

	tests := []struct {
		name   string
		mutate func(p *EventPayload)
		field  string
	}{
		{"missing user_id", func(p *EventPayload) { p.UserID = "   " }, "user_id"},
		{"missing channel", func(p *EventPayload) { p.Channel = "" }, "channel"},
		{"unknown kind", func(p *EventPayload) { p.EventKind = "waved" }, "event_kind"},
		{"missing timestamp", func(p *EventPayload) { p.OccurredAt = "" }, "occurred_at"},
		{"unparsable timestamp", func(p *EventPayload) { p.OccurredAt = "yesterday at nine" }, "occurred_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := valid
			tt.mutate(&payload)
			_, err := n.NormalizeEvent(payload)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestNormalizeEventClockSkew(t *testing.T) {
	n := testNormalizer()

	// Inside the 5 minute tolerance.
	_, err := n.NormalizeEvent(EventPayload{
		UserID:     "alice",
		Channel:    "wfh-monitoring",
		EventKind:  "joined",
		OccurredAt: "2026-08-20T12:04:00Z",
	})
	require.NoError(t, err)

	// Beyond it.
	_, err = n.NormalizeEvent(EventPayload{
		UserID:     "alice",
		Channel:    "wfh-monitoring",
		EventKind:  "joined",
		OccurredAt: "2026-08-20T12:10:00Z",
	})
	var skewErr *ClockSkewError
	require.ErrorAs(t, err, &skewErr)
	assert.Equal(t, 5*time.Minute, skewErr.Limit)

	var vErr *ValidationError
	assert.False(t, errors.As(err, &vErr))
}

func TestNormalizeActivity(t *testing.T) {
	n := testNormalizer()
	ping, err := n.NormalizeActivity(ActivityPayload{
		UserID:     "alice",
		OccurredAt: "2026-08-20T09:00:00Z",
		ActiveApp:  " Editor ",
		ActiveApps: []string{"Editor", " Browser ", ""},
		IsIdle:     false,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", ping.UserID)
	assert.Equal(t, "Editor", ping.ForegroundApp)
	assert.Equal(t, []string{"Editor", "Browser"}, ping.ActiveApps)
	assert.False(t, ping.IsIdle)
}

func TestNormalizeActivityMissingUser(t *testing.T) {
	n := testNormalizer()
	_, err := n.NormalizeActivity(ActivityPayload{OccurredAt: "2026-08-20T09:00:00Z"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "user_id", vErr.Field)
}
