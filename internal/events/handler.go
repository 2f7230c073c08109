package events

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfh-tracker/backend/internal/aggregator"
	"github.com/wfh-tracker/backend/internal/models"
	"github.com/wfh-tracker/backend/pkg/response"
)

// Engine is the subset of the aggregator the ingest handlers need.
type Engine interface {
	SubmitEvent(ctx context.Context, ev models.RawEvent) aggregator.SubmitResult
	SubmitActivity(ctx context.Context, p models.ActivityPing)
}

// Handler handles POST /events and POST /activity.
type Handler struct {
	normalizer *Normalizer
	engine     Engine
	channel    string // monitored channel; empty accepts all
	logger     *zap.Logger
}

// NewHandler creates an ingest handler.
func NewHandler(normalizer *Normalizer, engine Engine, channel string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{normalizer: normalizer, engine: engine, channel: channel, logger: logger}
}

// SubmitEvent handles POST /events: presence events from the voice-channel listener.
func (h *Handler) SubmitEvent(c *gin.Context) {
	var payload EventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ev, err := h.normalizer.NormalizeEvent(payload)
	if err != nil {
		h.reject(c, err)
		return
	}

	// Channel filtering belongs to the event-source collaborator; this handler
	// is that boundary. Off-channel facts are acknowledged, not failed, so the
	// source never retries them.
	if h.channel != "" && ev.Channel != h.channel {
		h.logger.Debug("event for unmonitored channel dropped",
			zap.String("user_id", ev.UserID), zap.String("channel", ev.Channel))
		response.OK(c, gin.H{"accepted": false, "dropped": true})
		return
	}

	res := h.engine.SubmitEvent(c.Request.Context(), ev)
	response.OK(c, gin.H{
		"accepted":    true,
		"stale":       res.Stale,
		"synthesized": res.Synthesized,
		"no_op":       res.NoOp,
	})
}

// SubmitActivity handles POST /activity: pings from the client-side activity sampler.
func (h *Handler) SubmitActivity(c *gin.Context) {
	var payload ActivityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ping, err := h.normalizer.NormalizeActivity(payload)
	if err != nil {
		h.reject(c, err)
		return
	}

	h.engine.SubmitActivity(c.Request.Context(), ping)
	response.OK(c, gin.H{"accepted": true})
}

func (h *Handler) reject(c *gin.Context, err error) {
	var vErr *ValidationError
	var skewErr *ClockSkewError
	switch {
	case errors.As(err, &skewErr):
		response.BadRequest(c, "clock skew: "+skewErr.Error())
	case errors.As(err, &vErr):
		response.BadRequest(c, vErr.Error())
	default:
		response.BadRequest(c, err.Error())
	}
}
