// Chat HTTP handlers.
//
// REST endpoints cover room listing, history, and sending (persist first,
// then broadcast); the WebSocket endpoint attaches a live connection to the
// hub for real-time delivery on the same rooms.
//
//   - GET  /chat/rooms                  (caller's rooms with last message)
//   - GET  /chat/rooms/{id}/messages    (history, oldest first)
//   - POST /chat/rooms/{id}/messages    (send)
//   - GET  /ws/chat/{id}                (WebSocket upgrade)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wishloop/go-market-backend/internal/chat"
	"github.com/wishloop/go-market-backend/internal/http/middleware"
	"github.com/wishloop/go-market-backend/internal/services"
)

// SendMessageRequest is the JSON payload for posting a chat message.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListRooms returns the caller's chat rooms, most recently active first.
func (h *Handlers) ListRooms(c *gin.Context) {
	rooms, err := h.chatSvc.ListRooms(c.Request.Context(), userID(c), clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"rooms": rooms})
}

// ListMessages returns a room's message history, oldest first. Participants only.
func (h *Handlers) ListMessages(c *gin.Context) {
	id, okID := roomID(c)
	if !okID {
		return
	}
	msgs, err := h.chatSvc.Messages(c.Request.Context(), userID(c), id, clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage persists a message to the room and broadcasts it to connected
// participants.
func (h *Handlers) SendMessage(c *gin.Context) {
	id, okID := roomID(c)
	if !okID {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.chatSvc.Send(c.Request.Context(), userID(c), id, req.Content)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// wsUpgrader performs the HTTP -> WebSocket handshake. Cross-origin browser
// clients are admitted; the bearer token (query param fallback) already
// gates the route.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ChatSocket returns the WebSocket endpoint for a chat room. The caller must
// be a participant; the connection is registered with the hub and serviced by
// the client's read/write pumps until either side closes it.
func ChatSocket(hub *chat.Hub, chatSvc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, okID := roomID(c)
		if !okID {
			return
		}
		uid := middleware.UserID(c)
		if uid == "" {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid session token")
			return
		}
		if _, err := chatSvc.Room(c.Request.Context(), uid, id); err != nil {
			failErr(c, err)
			return
		}

		conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the handshake failure.
			return
		}
		chat.NewClient(hub, conn, chatSvc, uid, id)
	}
}

// roomID validates the :id path param as a UUID.
func roomID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return "", false
	}
	return id, true
}
