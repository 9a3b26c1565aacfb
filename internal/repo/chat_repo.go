// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chat rooms and
// messages.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wishloop/go-market-backend/internal/domain"
)

// CreateRoom inserts a new ChatRoom row.
func CreateRoom(ctx context.Context, db *gorm.DB, r *domain.ChatRoom) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(r).Error
}

// GetRoom fetches a room by ID, or ErrNotFound if missing.
func GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error) {
	var r domain.ChatRoom
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListUserRooms returns every room the user participates in (either side),
// most recent first.
func ListUserRooms(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.ChatRoom, error) {
	q := db.WithContext(ctx).
		Where("wisher_id = ? OR partner_id = ?", userID, userID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.ChatRoom
	err := q.Find(&out).Error
	return out, err
}

// UpdateRoomStatus sets the room's coarse status. Returns ErrNotFound when
// the room does not exist.
func UpdateRoomStatus(ctx context.Context, db *gorm.DB, roomID, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Where("id = ?", roomID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateRoomStatusByWishID mirrors the parent wish's terminal status onto
// its room, if one exists. Missing rooms are not an error here.
func UpdateRoomStatusByWishID(ctx context.Context, db *gorm.DB, wishID, status string) error {
	err := db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Where("wish_id = ?", wishID).
		Update("status", status).Error
	return err
}

// CreateMessage appends a message row. Persistence order is the
// authoritative delivery order: broadcast happens only after this returns.
func CreateMessage(ctx context.Context, db *gorm.DB, roomID, senderID, senderRole, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderRole: senderRole,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns a room's messages ordered deterministically
// (CreatedAt ASC, ID ASC).
func ListMessages(ctx context.Context, db *gorm.DB, roomID string, limit int) ([]domain.Message, error) {
	q := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Message
	err := q.Find(&out).Error
	return out, err
}

// LastMessage returns the most recent message in a room, or nil when the
// room has none.
func LastMessage(ctx context.Context, db *gorm.DB, roomID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
