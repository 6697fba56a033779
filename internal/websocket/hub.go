// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"babylon-billing-service/internal/domain/billing"

	"go.uber.org/zap"
)

// Hub fans payment events out to the connected clients of each user. The
// reconciler publishes after commit, so a connected frontend learns about
// an activated license without polling verify-payment.
type Hub struct {
	// Registered clients by user ID
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	events chan *billing.PaymentEvent

	logger *zap.Logger
}

// WSMessage is the envelope sent to clients.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *billing.PaymentEvent, 256),
		logger:     logger,
	}
}

// PublishPaymentEvent queues an event for delivery. It never blocks the
// caller; delivery is dropped when the queue is full.
func (h *Hub) PublishPaymentEvent(ev *billing.PaymentEvent) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("payment event queue full, dropping event",
			zap.String("payment_id", ev.PaymentID))
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*Client]bool)
	}
	h.clients[c.userID][c] = true

	h.logger.Debug("websocket client registered", zap.String("user_id", c.userID))
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[c.userID]; ok {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			close(c.send)
			if len(conns) == 0 {
				delete(h.clients, c.userID)
			}
		}
	}
}

func (h *Hub) dispatch(ev *billing.PaymentEvent) {
	payload, err := json.Marshal(WSMessage{Type: "payment.updated", Data: ev})
	if err != nil {
		h.logger.Error("failed to marshal payment event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[ev.UserID] {
		select {
		case client.send <- payload:
		default:
			// Slow consumer, skip rather than block the hub.
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.clients {
		for client := range conns {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
