// Package ws broadcasts job transition events to local websocket clients
// (a dashboard next to the till, mostly).
package ws

import (
	"encoding/json"
	"sync"

	"github.com/printrelay/printrelay/internal/dispatch"
	"github.com/printrelay/printrelay/internal/logger"
)

// Hub maintains the set of connected clients and fans messages out to
// them. Slow clients are disconnected rather than allowed to block the
// dispatcher.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop; call it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast queues a message for every connected client. Never blocks.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		logger.WithComponent("ws").Warn().Msg("Broadcast buffer full, dropping message")
	}
}

// JobTransition implements dispatch.Sink: every state change goes out to
// connected clients as JSON.
func (h *Hub) JobTransition(ev dispatch.Event) {
	message, err := json.Marshal(map[string]any{
		"type": "job_update",
		"data": ev,
	})
	if err != nil {
		logger.WithComponent("ws").Error().Err(err).Msg("Failed to marshal job update")
		return
	}
	h.Broadcast(message)
}
