// Package status is the read-only query surface consumed by the dashboard.
package status

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wfh-tracker/backend/internal/aggregator"
	"github.com/wfh-tracker/backend/internal/models"
	"github.com/wfh-tracker/backend/pkg/response"
)

// Handler handles the status, history, and summary endpoints.
type Handler struct {
	engine      *aggregator.Engine
	historyDays int
}

// NewHandler creates a query surface handler.
func NewHandler(engine *aggregator.Engine, historyDays int) *Handler {
	if historyDays <= 0 {
		historyDays = 7
	}
	return &Handler{engine: engine, historyDays: historyDays}
}

// GetAllStatuses handles GET /status: every known user, first-seen order.
func (h *Handler) GetAllStatuses(c *gin.Context) {
	statuses := h.engine.AllStatuses()
	if statuses == nil {
		statuses = []models.UserStatus{}
	}
	response.OK(c, gin.H{"statuses": statuses})
}

// GetStatus handles GET /status/:user_id. Unknown users get an explicit
// no-data result, not an error.
func (h *Handler) GetStatus(c *gin.Context) {
	userID := c.Param("user_id")
	st, ok := h.engine.Status(userID)
	if !ok {
		response.OK(c, gin.H{"user_id": userID, "no_data": true})
		return
	}
	response.OK(c, st)
}

// GetHistory handles GET /users/:user_id/history?days=N.
func (h *Handler) GetHistory(c *gin.Context) {
	userID := c.Param("user_id")
	days := h.historyDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(c, "invalid days")
			return
		}
		days = n
	}
	history, err := h.engine.History(c.Request.Context(), userID, days)
	if err != nil {
		response.Internal(c, "failed to load history")
		return
	}
	response.OK(c, gin.H{"user_id": userID, "days": days, "history": history})
}

// GetReport handles GET /report?date=YYYY-MM-DD (default today): one summary
// row per tracked user plus team-wide totals, for the dashboard report view.
func (h *Handler) GetReport(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = models.DayOf(time.Now())
	} else if _, _, err := models.DayBounds(date); err != nil {
		response.BadRequest(c, "invalid date, expected YYYY-MM-DD")
		return
	}

	var totalActive, totalIdle, totalSession, totalShare int64
	statuses := h.engine.AllStatuses()
	rows := make([]models.DailySummary, 0, len(statuses))
	for _, st := range statuses {
		summary, found, err := h.engine.DailySummary(c.Request.Context(), st.UserID, date)
		if err != nil {
			response.Internal(c, "failed to build report")
			return
		}
		if !found {
			continue
		}
		rows = append(rows, summary)
		totalActive += summary.TotalActiveSeconds
		totalIdle += summary.TotalIdleSeconds
		totalSession += summary.TotalSessionSeconds
		totalShare += summary.ScreenShareSeconds
	}

	response.OK(c, gin.H{
		"date":  date,
		"users": rows,
		"totals": gin.H{
			"total_active_seconds":  totalActive,
			"total_idle_seconds":    totalIdle,
			"total_session_seconds": totalSession,
			"screen_share_seconds":  totalShare,
		},
	})
}

// GetStats handles GET /stats: tracked/online/streaming user counts.
func (h *Handler) GetStats(c *gin.Context) {
	var online, streaming int
	statuses := h.engine.AllStatuses()
	for _, st := range statuses {
		if st.Online {
			online++
		}
		if st.ScreenShared {
			streaming++
		}
	}
	response.OK(c, gin.H{
		"tracked_users":   len(statuses),
		"online_users":    online,
		"streaming_users": streaming,
	})
}

// GetDailySummary handles GET /users/:user_id/summary?date=YYYY-MM-DD (default today).
func (h *Handler) GetDailySummary(c *gin.Context) {
	userID := c.Param("user_id")
	date := c.Query("date")
	if date == "" {
		date = models.DayOf(time.Now())
	} else if _, _, err := models.DayBounds(date); err != nil {
		response.BadRequest(c, "invalid date, expected YYYY-MM-DD")
		return
	}
	summary, found, err := h.engine.DailySummary(c.Request.Context(), userID, date)
	if err != nil {
		response.Internal(c, "failed to load summary")
		return
	}
	if !found {
		response.OK(c, gin.H{"user_id": userID, "date": date, "no_data": true})
		return
	}
	response.OK(c, summary)
}
