package models

import "time"

// ActivityWindow is the per-user, per-day accumulation of activity pings.
type ActivityWindow struct {
	UserID          string           `json:"user_id"`
	Date            string           `json:"date"` // YYYY-MM-DD (UTC)
	ActiveSeconds   int64            `json:"active_seconds"`
	IdleSeconds     int64            `json:"idle_seconds"`
	AppUsage        map[string]int64 `json:"app_usage"` // app name -> accumulated seconds
	FirstActivityAt time.Time        `json:"first_activity_at"`
	LastActivityAt  time.Time        `json:"last_activity_at"`
	// LastIdle is the idle flag of the last applied ping, kept so a window
	// restored after a restart judges its next ping against the real
	// previous state instead of a zero value.
	LastIdle bool `json:"last_idle"`
}

// MostUsedApp returns the app with the largest accumulated seconds.
// Ties break by lexicographic app name so the result is deterministic.
func (w ActivityWindow) MostUsedApp() (string, int64) {
	var name string
	var secs int64
	for app, s := range w.AppUsage {
		if s > secs || (s == secs && s > 0 && (name == "" || app < name)) {
			name, secs = app, s
		}
	}
	return name, secs
}
