package events

import (
	"bytes"
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

type fakeEngine struct {
	events []models.RawEvent
	pings  []models.ActivityPing
	result aggregator.SubmitResult
}

func (f *fakeEngine) SubmitEvent(_ context.Context, ev models.RawEvent) aggregator.SubmitResult {
	f.events = append(f.events, ev)
	return f.result
}

func (f *fakeEngine) SubmitActivity(_ context.Context, p models.ActivityPing) {
	f.pings = append(f.pings, p)
}

func newTestRouter(engine Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	n := NewNormalizer(5 * time.Minute)
	n.now = func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) }
	h := NewHandler(n, engine, "wfh-monitoring", nil)

	r := gin.New()
	r.POST("/events", h.SubmitEvent)
	r.POST("/activity", h.SubmitActivity)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSubmitEventAccepted(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRouter(engine)

	w, body := postJSON(t, r, "/events", EventPayload{
		UserID:     "alice",
		Channel:    "wfh-monitoring",
		EventKind:  "joined",
		OccurredAt: "2026-08-20T09:00:00Z",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	data := body.Data.(map[string]any)
	assert.Equal(t, true, data["accepted"])
	require.Len(t, engine.events, 1)
	assert.Equal(t, models.EventJoined, engine.events[0].Kind)
}

func TestSubmitEventStaleFlagSurfaced(t *testing.T) {
	engine := &fakeEngine{result: aggregator.SubmitResult{Stale: true}}
	r := newTestRouter(engine)

	w, body := postJSON(t, r, "/events", EventPayload{
		UserID:     "alice",
		Channel:    "wfh-monitoring",
		EventKind:  "left",
		OccurredAt: "2026-08-20T08:00:00Z",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	data := body.Data.(map[string]any)
	assert.Equal(t, true, data["accepted"])
	assert.Equal(t, true, data["stale"])
}

func TestSubmitEventOffChannelDropped(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRouter(engine)

	w, body := postJSON(t, r, "/events", EventPayload{
		UserID:     "alice",
		Channel:    "general",
		EventKind:  "joined",
		OccurredAt: "2026-08-20T09:00:00Z",
	})

	assert.Equal(t, http.StatusOK, w.Code, "off-channel facts are acknowledged, not failed")
	data := body.Data.(map[string]any)
	assert.Equal(t, false, data["accepted"])
	assert.Equal(t, true, data["dropped"])
	assert.Empty(t, engine.events, "dropped events must not reach the engine")
}

func TestSubmitEventValidationRejected(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRouter(engine)

	w, body := postJSON(t, r, "/events", EventPayload{
		UserID:     "alice",
		Channel:    "wfh-monitoring",
		EventKind:  "teleported",
		OccurredAt: "2026-08-20T09:00:00Z",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "event_kind")
	assert.Empty(t, engine.events)
}

func TestSubmitEventClockSkewRejected(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRouter(engine)

	w, body := postJSON(t, r, "/events", EventPayload{
		UserID:     "alice",
		Channel:    "wfh-monitoring",
		EventKind:  "joined",
		OccurredAt: "2026-08-20T13:00:00Z",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body.Error, "clock skew")
	assert.Empty(t, engine.events)
}

func TestSubmitActivityAccepted(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRouter(engine)

	w, body := postJSON(t, r, "/activity", ActivityPayload{
		UserID:     "alice",
		OccurredAt: "2026-08-20T09:00:00Z",
		ActiveApp:  "Editor",
		IsIdle:     false,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	require.Len(t, engine.pings, 1)
	assert.Equal(t, "Editor", engine.pings[0].ForegroundApp)
}

func TestSubmitActivityMalformedBody(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRouter(engine)

	req := httptest.NewRequest(http.MethodPost, "/activity", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, engine.pings)
}
