package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the set of connected agent clients and fans events out to
// them. Each client is pinned to one business; events are only delivered to
// clients of the matching business.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu  sync.RWMutex
	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

// Run starts the hub's main loop. Call it once in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("realtime client connected",
				"profile_id", client.profileID,
				"business_id", client.businessID,
				"total_clients", total,
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("realtime client disconnected",
				"profile_id", client.profileID,
				"total_clients", total,
			)

		case message := <-h.broadcast:
			var e Event
			if err := json.Unmarshal(message, &e); err != nil {
				// Unparseable payloads are dropped; push is best-effort.
				h.log.Warn("realtime event unmarshal failed", "err", err)
				continue
			}
			h.deliver(e.BusinessID, message)
		}
	}
}

// Broadcast queues a serialized event for delivery.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver sends a message to every client of the given business. A client
// whose send buffer is full is dropped; it will reconnect and the polling
// fallback covers the gap.
func (h *Hub) deliver(businessID string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if businessID != "" && client.businessID != businessID {
			continue
		}
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
			h.log.Warn("realtime client send buffer full, dropping",
				"profile_id", client.profileID,
			)
		}
	}
}
