package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wishloop/go-market-backend/internal/services"
)

const (
	// writeWait is the deadline for a single outbound frame.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead. Pings go out at a fraction of it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxInboundBytes = 8 << 10

	sendBuffer = 64
)

// inboundFrame is what clients send over the socket. message frames are
// persisted through the chat service; typing and read frames are transient
// and only relayed to the other side of the room.
type inboundFrame struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

// Client is one websocket connection bound to a room.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	chat   *services.ChatService
	userID string
	roomID string

	send      chan []byte
	closeOnce sync.Once
}

// NewClient wires an upgraded connection into the hub and starts its pumps.
// The first frame on the wire is the connected acknowledgement, queued
// before the pumps run so nothing can precede it.
func NewClient(hub *Hub, conn *websocket.Conn, chat *services.ChatService, userID, roomID string) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		chat:   chat,
		userID: userID,
		roomID: roomID,
		send:   make(chan []byte, sendBuffer),
	}
	if payload, err := json.Marshal(map[string]any{
		"type":    "connected",
		"room_id": roomID,
		"user_id": userID,
	}); err == nil {
		c.send <- payload
	}
	hub.register(c)
	go c.writePump()
	go c.readPump()
	return c
}

// close shuts the send channel exactly once; the write pump then closes the
// underlying connection.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump consumes inbound frames until the connection dies, then removes
// the client from the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f inboundFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f inboundFrame) {
	switch f.Type {
	case "message":
		// Persisted through the service; the broadcast to the rest of the
		// room happens after the write succeeds.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := c.chat.Send(ctx, c.userID, c.roomID, f.Content); err != nil {
			c.sendError(err)
		}
	case "typing":
		// Transient: relayed with the indicator state, never stored.
		c.hub.roomEventExcept(c.roomID, c, map[string]any{
			"type":      "typing",
			"room_id":   c.roomID,
			"user_id":   c.userID,
			"is_typing": f.IsTyping,
		})
	case "read":
		// Transient: relayed, never stored.
		c.hub.roomEventExcept(c.roomID, c, map[string]any{
			"type":    "read",
			"room_id": c.roomID,
			"user_id": c.userID,
		})
	}
}

func (c *Client) sendError(err error) {
	payload, merr := json.Marshal(map[string]any{"type": "error", "message": err.Error()})
	if merr != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
