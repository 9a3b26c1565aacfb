// Package chat implements the real-time messaging hub. The hub is an
// in-memory connection registry keyed by room and by user; persistence and
// authorization stay in the service layer. Events reach the hub only after
// the corresponding row is durable, so a socket never sees state the
// database does not have.
package chat

import (
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Hub fans events out to connected clients. It implements the service
// layer's Notifier contract. All methods are safe for concurrent use and
// never block: a client that cannot keep up has its connection dropped
// rather than stalling the sender.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	users map[string]map[*Client]struct{}

	log         zerolog.Logger
	connections prometheus.Gauge
}

// NewHub constructs a Hub. The gauge (optional) tracks the number of open
// connections.
func NewHub(log zerolog.Logger, connections prometheus.Gauge) *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]struct{}),
		users:       make(map[string]map[*Client]struct{}),
		log:         log,
		connections: connections,
	}
}

// register adds a client to the room and user indexes.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.roomID] == nil {
		h.rooms[c.roomID] = make(map[*Client]struct{})
	}
	h.rooms[c.roomID][c] = struct{}{}
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Client]struct{})
	}
	h.users[c.userID][c] = struct{}{}
	h.mu.Unlock()

	if h.connections != nil {
		h.connections.Inc()
	}
	h.log.Debug().Str("room_id", c.roomID).Str("user_id", c.userID).Msg("ws client connected")
}

// unregister removes a client and tells the rest of the room the user went
// away. Safe to call more than once per client.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, present := h.rooms[c.roomID][c]
	if present {
		delete(h.rooms[c.roomID], c)
		if len(h.rooms[c.roomID]) == 0 {
			delete(h.rooms, c.roomID)
		}
		delete(h.users[c.userID], c)
		if len(h.users[c.userID]) == 0 {
			delete(h.users, c.userID)
		}
	}
	h.mu.Unlock()

	if !present {
		return
	}
	if h.connections != nil {
		h.connections.Dec()
	}
	h.log.Debug().Str("room_id", c.roomID).Str("user_id", c.userID).Msg("ws client disconnected")
	h.RoomEvent(c.roomID, map[string]any{"type": "user_disconnected", "user_id": c.userID})
}

// RoomEvent implements services.Notifier: deliver to every client attached
// to the room.
func (h *Hub) RoomEvent(roomID string, event any) {
	h.broadcast(h.snapshotRoom(roomID, nil), event)
}

// RoomEventExcept implements services.Notifier: deliver to the room minus
// every connection of one user. Message delivery goes through here so the
// sender never receives an echo of their own message.
func (h *Hub) RoomEventExcept(roomID, exceptUserID string, event any) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c.userID == exceptUserID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	h.broadcast(targets, event)
}

// roomEventExcept delivers to the room minus one client, for transient
// frames that echo the sender's own action (typing, read receipts).
func (h *Hub) roomEventExcept(roomID string, skip *Client, event any) {
	h.broadcast(h.snapshotRoom(roomID, skip), event)
}

// UserEvent implements services.Notifier: deliver to every connection of a
// user, across rooms.
func (h *Hub) UserEvent(userID string, event any) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	h.broadcast(targets, event)
}

// RoomSize reports how many clients are attached to a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) snapshotRoom(roomID string, skip *Client) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c == skip {
			continue
		}
		targets = append(targets, c)
	}
	return targets
}

func (h *Hub) broadcast(targets []*Client, event any) {
	if len(targets) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("ws event marshal failed")
		return
	}
	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			// Slow consumer: drop the connection, never the sender.
			h.log.Warn().Str("user_id", c.userID).Msg("ws send buffer full, closing client")
			c.close()
		}
	}
}
