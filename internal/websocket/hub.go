package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSeatsUpdated MessageType = "seats_updated"
)

// Message is pushed to every client watching a flight whenever its seat
// count changes
type Message struct {
	Type           MessageType `json:"type"`
	FlightID       string      `json:"flightId"`
	SeatsAvailable int         `json:"seatsAvailable"`
	SeatsTotal     int         `json:"seatsTotal"`
	Timestamp      int64       `json:"timestamp"`
}

// Hub manages WebSocket connections per flight
type Hub struct {
	clients    map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.flightID] == nil {
				h.clients[client.flightID] = make(map[*Client]bool)
			}
			h.clients[client.flightID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.flightID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.flightID)
					}
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			flightID, err := uuid.Parse(message.FlightID)
			if err != nil {
				log.Printf("websocket: invalid flight ID in broadcast: %s", message.FlightID)
				continue
			}

			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("websocket: failed to marshal message: %v", err)
				continue
			}

			h.mu.RLock()
			clients := h.clients[flightID]
			h.mu.RUnlock()

			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Slow client; drop it rather than block the hub.
					h.mu.Lock()
					delete(h.clients[flightID], client)
					close(client.send)
					h.mu.Unlock()
				}
			}
		}
	}
}

// BroadcastSeatUpdate pushes the new seat count to all clients watching a
// flight
func (h *Hub) BroadcastSeatUpdate(flightID uuid.UUID, available, total int) {
	msg := &Message{
		Type:           MessageTypeSeatsUpdated,
		FlightID:       flightID.String(),
		SeatsAvailable: available,
		SeatsTotal:     total,
		Timestamp:      time.Now().UnixMilli(),
	}

	select {
	case h.broadcast <- msg:
	default:
		log.Printf("websocket: broadcast buffer full, dropping update for flight %s", flightID)
	}
}

// ClientCount returns the number of clients watching a flight
func (h *Hub) ClientCount(flightID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[flightID])
}
