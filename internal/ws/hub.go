package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// canteenEvent is an internal struct for routing events to specific canteens
type canteenEvent struct {
	CanteenID uuid.UUID
	Event     Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Staff dashboards subscribe to their canteen's room and see orders flip
// to PAID and advance through the kitchen states live.
type Hub struct {
	// Registered clients by canteen ID
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *canteenEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *canteenEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.canteenID] == nil {
				h.rooms[client.canteenID] = make(map[*Client]bool)
			}
			h.rooms[client.canteenID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.canteenID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.canteenID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.CanteenID]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to all clients in this canteen's room
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.CanteenID], client)
					if len(h.rooms[event.CanteenID]) == 0 {
						delete(h.rooms, event.CanteenID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToCanteen sends an event to all clients subscribed to a specific canteen
// This is the public API for services and handlers to broadcast events
func (h *Hub) BroadcastToCanteen(canteenID uuid.UUID, event Event) {
	h.broadcast <- &canteenEvent{
		CanteenID: canteenID,
		Event:     event,
	}
}
