package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfh-tracker/backend/internal/models"
)

const clamp = 5 * time.Minute

func pingAt(h, m int, idle bool, app string) models.ActivityPing {
	return models.ActivityPing{
		UserID:        "alice",
		OccurredAt:    time.Date(2026, 8, 20, h, m, 0, 0, time.UTC),
		ForegroundApp: app,
		IsIdle:        idle,
	}
}

func TestWindowEditorScenario(t *testing.T) {
	wide := 15 * time.Minute
	w := NewWindow("alice", "2026-08-20")
	w.Apply(pingAt(9, 0, false, "Editor"), wide)
	w.Apply(pingAt(9, 10, false, "Editor"), wide)
	w.Apply(pingAt(9, 12, true, ""), wide)

	snap := w.Snapshot()
	assert.Equal(t, int64(600), snap.ActiveSeconds)
	assert.Equal(t, int64(0), snap.IdleSeconds, "idle ping after active contributes no elapsed time")
	assert.Equal(t, int64(600), snap.AppUsage["Editor"])
}

func TestWindowGapClamp(t *testing.T) {
	w := NewWindow("alice", "2026-08-20")
	w.Apply(pingAt(9, 0, false, "Editor"), clamp)
	w.Apply(pingAt(9, 20, false, "Editor"), clamp)

	snap := w.Snapshot()
	assert.Equal(t, int64(300), snap.ActiveSeconds, "20m gap credits only the 5m clamp")
	assert.Equal(t, int64(300), snap.AppUsage["Editor"])
}

func TestWindowIdleAccumulation(t *testing.T) {
	w := NewWindow("alice", "2026-08-20")
	w.Apply(pingAt(9, 0, true, ""), clamp)
	w.Apply(pingAt(9, 3, true, ""), clamp)

	snap := w.Snapshot()
	assert.Equal(t, int64(180), snap.IdleSeconds)
	assert.Equal(t, int64(0), snap.ActiveSeconds)
}

func TestWindowOutOfOrderPing(t *testing.T) {
	w := NewWindow("alice", "2026-08-20")
	w.Apply(pingAt(9, 10, false, "Editor"), clamp)
	w.Apply(pingAt(9, 0, false, "Editor"), clamp)

	snap := w.Snapshot()
	assert.Equal(t, int64(0), snap.ActiveSeconds, "out-of-order pings contribute zero elapsed time")
	assert.Equal(t, time.Date(2026, 8, 20, 9, 10, 0, 0, time.UTC), snap.LastActivityAt)
}

func TestWindowFirstAndLastActivity(t *testing.T) {
	w := NewWindow("alice", "2026-08-20")
	w.Apply(pingAt(9, 0, false, "Editor"), clamp)
	w.Apply(pingAt(9, 10, false, "Terminal"), clamp)

	snap := w.Snapshot()
	assert.Equal(t, time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC), snap.FirstActivityAt)
	assert.Equal(t, time.Date(2026, 8, 20, 9, 10, 0, 0, time.UTC), snap.LastActivityAt)
}

func TestWindowTotalsBoundedByWallClock(t *testing.T) {
	w := NewWindow("alice", "2026-08-20")
	pings := []models.ActivityPing{
		pingAt(9, 0, false, "Editor"),
		pingAt(9, 2, false, "Editor"),
		pingAt(9, 30, false, "Browser"), // clamped gap
		pingAt(9, 31, true, ""),
		pingAt(9, 40, true, ""),
		pingAt(9, 41, false, "Editor"),
		pingAt(9, 45, false, "Editor"),
	}
	for _, p := range pings {
		w.Apply(p, clamp)
	}

	snap := w.Snapshot()
	wall := int64(snap.LastActivityAt.Sub(snap.FirstActivityAt) / time.Second)
	assert.LessOrEqual(t, snap.ActiveSeconds+snap.IdleSeconds, wall+int64(clamp/time.Second))
}

func TestWindowMostUsedAppTieBreak(t *testing.T) {
	w := models.ActivityWindow{
		AppUsage: map[string]int64{"Zulip": 300, "Editor": 300, "Browser": 120},
	}
	app, secs := w.MostUsedApp()
	assert.Equal(t, "Editor", app, "ties break lexicographically")
	assert.Equal(t, int64(300), secs)
}

func TestWindowRestoreKeepsIdleFlag(t *testing.T) {
	restored := Restore(models.ActivityWindow{
		UserID:         "alice",
		Date:           "2026-08-20",
		IdleSeconds:    100,
		LastActivityAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		LastIdle:       true,
	})
	restored.Apply(pingAt(9, 2, true, ""), clamp)

	snap := restored.Snapshot()
	assert.Equal(t, int64(220), snap.IdleSeconds, "idle run continues across a restore")
	assert.Equal(t, int64(0), snap.ActiveSeconds)
	assert.True(t, snap.LastIdle)
}

func TestWindowRestore(t *testing.T) {
	orig := NewWindow("alice", "2026-08-20")
	orig.Apply(pingAt(9, 0, false, "Editor"), clamp)
	orig.Apply(pingAt(9, 4, false, "Editor"), clamp)

	restored := Restore(orig.Snapshot())
	restored.Apply(pingAt(9, 8, false, "Editor"), clamp)

	snap := restored.Snapshot()
	require.Equal(t, int64(480), snap.ActiveSeconds)
	assert.Equal(t, int64(480), snap.AppUsage["Editor"])
}
