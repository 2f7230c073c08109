// Package realtime pushes status snapshots to dashboard WebSocket clients.
package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/wfh-tracker/backend/internal/models"
)

// Publisher publishes a status update to Redis for cross-instance fan-out.
type Publisher interface {
	PublishStatusUpdate(payload []byte) error
}

// Hub maintains the set of connected dashboard clients and fans status
// snapshots out to them. With a Publisher attached, updates route through
// Redis pub/sub so every instance (including this one) delivers them locally.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
	pub     Publisher
}

// NewHub creates a WebSocket hub. pub may be nil for single-instance deployments.
func NewHub(logger *zap.Logger, pub Publisher) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		pub:     pub,
	}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("dashboard client connected", zap.String("client_id", c.ID), zap.Int("clients", n))
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("dashboard client disconnected", zap.String("client_id", c.ID), zap.Int("clients", n))
}

// BroadcastStatus sends a status snapshot to all dashboards. Satisfies the
// aggregator's StatusSink.
func (h *Hub) BroadcastStatus(status models.UserStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		h.logger.Warn("marshal status failed", zap.Error(err))
		return
	}
	if h.pub != nil {
		if err := h.pub.PublishStatusUpdate(data); err != nil {
			h.logger.Warn("publish status failed, broadcasting locally", zap.Error(err))
			h.DeliverLocal(data)
		}
		return
	}
	h.DeliverLocal(data)
}

// DeliverLocal writes a status payload to every locally connected client.
// Slow clients are dropped rather than blocking the broadcast.
func (h *Hub) DeliverLocal(data []byte) {
	msg := WSMessage{Event: "status_update", Data: json.RawMessage(data)}

	h.mu.RLock()
	stale := make([]*Client, 0)
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logger.Warn("dropping slow dashboard client", zap.String("client_id", c.ID))
		h.Unregister(c)
		c.conn.Close()
	}
}

// ClientCount returns the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
