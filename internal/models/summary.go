package models

// DailySummary is a read-only rollup of one user's sessions and activity for one date.
// Always derived from Session and ActivityWindow records, never a source of truth.
type DailySummary struct {
	UserID              string `json:"user_id"`
	Date                string `json:"date"`
	TotalActiveSeconds  int64  `json:"total_active_seconds"`
	TotalIdleSeconds    int64  `json:"total_idle_seconds"`
	TotalSessionSeconds int64  `json:"total_session_seconds"`
	ScreenShareSeconds  int64  `json:"screen_share_seconds"`
	MostUsedApp         string `json:"most_used_app,omitempty"`
	MostUsedAppSeconds  int64  `json:"most_used_app_seconds"`
}

// UserStatus is the latest-known view of a user, recomputed on every accepted
// event or ping. It has no persistence of its own.
type UserStatus struct {
	UserID             string           `json:"user_id"`
	Channel            string           `json:"channel,omitempty"`
	Online             bool             `json:"online"`
	ScreenShared       bool             `json:"screen_shared"`
	ActiveApp          string           `json:"active_app,omitempty"`
	ActiveApps         []string         `json:"active_apps,omitempty"`
	TotalActiveSeconds int64            `json:"total_active_seconds"`
	TotalIdleSeconds   int64            `json:"total_idle_seconds"`
	ScreenShareSeconds int64            `json:"screen_share_seconds"`
	MostUsedApp        string           `json:"most_used_app,omitempty"`
	AppUsage           map[string]int64 `json:"app_usage,omitempty"`
}
