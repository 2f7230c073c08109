package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfh-tracker/backend/internal/aggregator"
	"github.com/wfh-tracker/backend/internal/models"
	"github.com/wfh-tracker/backend/pkg/response"
)

func seededEngine(t *testing.T) *aggregator.Engine {
	t.Helper()
	engine := aggregator.NewEngine(aggregator.Config{
		Now: func() time.Time { return time.Date(2026, 8, 20, 18, 0, 0, 0, time.UTC) },
	})
	ctx := context.Background()
	ts := func(h, m int) time.Time { return time.Date(2026, 8, 20, h, m, 0, 0, time.UTC) }

	engine.SubmitEvent(ctx, models.RawEvent{UserID: "alice", Channel: "wfh-monitoring", Kind: models.EventJoined, OccurredAt: ts(9, 0)})
	engine.SubmitEvent(ctx, models.RawEvent{UserID: "alice", Channel: "wfh-monitoring", Kind: models.EventLeft, OccurredAt: ts(10, 0)})
	engine.SubmitEvent(ctx, models.RawEvent{UserID: "bob", Channel: "wfh-monitoring", Kind: models.EventJoined, OccurredAt: ts(9, 30)})
	return engine
}

func newTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(seededEngine(t), 7)

	r := gin.New()
	r.GET("/status", h.GetAllStatuses)
	r.GET("/status/:user_id", h.GetStatus)
	r.GET("/users/:user_id/history", h.GetHistory)
	r.GET("/users/:user_id/summary", h.GetDailySummary)
	r.GET("/report", h.GetReport)
	r.GET("/stats", h.GetStats)
	return r
}

func get(t *testing.T, r *gin.Engine, path string) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestGetAllStatuses(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/status")
	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, body.Success)

	data := body.Data.(map[string]any)
	statuses := data["statuses"].([]any)
	require.Len(t, statuses, 2)
	first := statuses[0].(map[string]any)
	second := statuses[1].(map[string]any)
	assert.Equal(t, "alice", first["user_id"], "first-seen user comes first")
	assert.Equal(t, false, first["online"])
	assert.Equal(t, "bob", second["user_id"])
	assert.Equal(t, true, second["online"])
}

func TestGetStatusKnownUser(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/status/bob")
	assert.Equal(t, http.StatusOK, w.Code)

	data := body.Data.(map[string]any)
	assert.Equal(t, "bob", data["user_id"])
	assert.Equal(t, true, data["online"])
	assert.Equal(t, "wfh-monitoring", data["channel"])
}

func TestGetStatusUnknownUserNoData(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/status/ghost")
	assert.Equal(t, http.StatusOK, w.Code, "unknown user is no-data, not an error")

	data := body.Data.(map[string]any)
	assert.Equal(t, "ghost", data["user_id"])
	assert.Equal(t, true, data["no_data"])
}

func TestGetHistory(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/users/alice/history?days=3")
	assert.Equal(t, http.StatusOK, w.Code)

	data := body.Data.(map[string]any)
	assert.Equal(t, float64(3), data["days"])
	history := data["history"].([]any)
	require.Len(t, history, 3)
	today := history[0].(map[string]any)
	assert.Equal(t, "2026-08-20", today["date"])
	assert.Equal(t, float64(3600), today["total_session_seconds"])
}

func TestGetHistoryInvalidDays(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/users/alice/history?days=soon")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
}

func TestGetDailySummary(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/users/alice/summary?date=2026-08-20")
	assert.Equal(t, http.StatusOK, w.Code)

	data := body.Data.(map[string]any)
	assert.Equal(t, "alice", data["user_id"])
	assert.Equal(t, "2026-08-20", data["date"])
	assert.Equal(t, float64(3600), data["total_session_seconds"])
}

func TestGetDailySummaryBadDate(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/users/alice/summary?date=august-20")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
}

func TestGetReport(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/report?date=2026-08-20")
	assert.Equal(t, http.StatusOK, w.Code)

	data := body.Data.(map[string]any)
	assert.Equal(t, "2026-08-20", data["date"])
	users := data["users"].([]any)
	require.Len(t, users, 2)
	first := users[0].(map[string]any)
	assert.Equal(t, "alice", first["user_id"])
	assert.Equal(t, float64(3600), first["total_session_seconds"])

	// bob joined 09:30 and is still present, so his open session runs to now (18:00).
	totals := data["totals"].(map[string]any)
	assert.Equal(t, float64(3600+30600), totals["total_session_seconds"])
}

func TestGetReportBadDate(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/report?date=next-tuesday")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
}

func TestGetStats(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/stats")
	assert.Equal(t, http.StatusOK, w.Code)

	data := body.Data.(map[string]any)
	assert.Equal(t, float64(2), data["tracked_users"])
	assert.Equal(t, float64(1), data["online_users"])
	assert.Equal(t, float64(0), data["streaming_users"])
}

func TestGetDailySummaryNoData(t *testing.T) {
	r := newTestRouter(t)

	w, body := get(t, r, "/users/ghost/summary?date=2026-08-20")
	assert.Equal(t, http.StatusOK, w.Code)

	data := body.Data.(map[string]any)
	assert.Equal(t, true, data["no_data"])
}
