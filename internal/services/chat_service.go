// Package services – ChatService
//
// This file implements the persistent side of messaging: room listings with
// last-message previews, history reads, and message sends. A send persists
// the row first and broadcasts only after the write succeeds, so every
// delivered event corresponds to a durable message and the table's insert
// order is the authoritative delivery order.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/repo"
)

// ChatService owns chat persistence and room authorization.
type ChatService struct {
	DB     *gorm.DB
	Notify Notifier

	// MaxContentRunes caps message length; zero disables the check.
	MaxContentRunes int
}

// NewChatService constructs a ChatService with a sane message length cap.
func NewChatService(db *gorm.DB, notify Notifier) *ChatService {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &ChatService{DB: db, Notify: notify, MaxContentRunes: 4000}
}

// RoomView is a room with its last message attached for list previews.
type RoomView struct {
	domain.ChatRoom
	LastMessage *domain.Message `json:"last_message,omitempty"`
}

// ListRooms returns the user's rooms, most recently active first, each with
// its latest message.
func (s *ChatService) ListRooms(ctx context.Context, userID string, limit int) ([]RoomView, error) {
	rooms, err := repo.ListUserRooms(ctx, s.DB, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RoomView, 0, len(rooms))
	for i := range rooms {
		last, err := repo.LastMessage(ctx, s.DB, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, RoomView{ChatRoom: rooms[i], LastMessage: last})
	}
	return out, nil
}

// Room returns a single room if userID is a participant. The chat hub uses
// this as its connection authorization check.
func (s *ChatService) Room(ctx context.Context, userID, roomID string) (*domain.ChatRoom, error) {
	r, err := repo.GetRoom(ctx, s.DB, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !r.HasParticipant(userID) {
		return nil, ErrForbidden
	}
	return r, nil
}

// Messages returns a room's history in delivery order, oldest first.
func (s *ChatService) Messages(ctx context.Context, userID, roomID string, limit int) ([]domain.Message, error) {
	if _, err := s.Room(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return repo.ListMessages(ctx, s.DB, roomID, limit)
}

// Send persists a message and then broadcasts it to the other connected
// participants; the sender gets the persisted row back as the return value,
// not as an echo. Sends into closed or completed rooms are rejected.
func (s *ChatService) Send(ctx context.Context, userID, roomID, content string) (*domain.Message, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrValidation
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrValidation
	}

	r, err := s.Room(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if r.Status == domain.RoomStatusClosed || r.Status == domain.RoomStatusCompleted {
		return nil, ErrClosedRoom
	}

	role := domain.SenderWisher
	if r.PartnerID == userID {
		role = domain.SenderPartner
	}
	m, err := repo.CreateMessage(ctx, s.DB, roomID, userID, role, content)
	if err != nil {
		return nil, err
	}
	s.Notify.RoomEventExcept(roomID, userID, ChatMessageEvent(m))
	return m, nil
}
