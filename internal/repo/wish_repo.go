// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Wish model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a wish is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Conditional writes (AssignWishPartner, TransitionWishStatus) report a
//     lost race or a stale status via ok=false rather than an error; the
//     service layer maps that to its own sentinel.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wishloop/go-market-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateWish inserts a new Wish row. The ID is a randomly generated UUID and
// CreatedAt is set to UTC. The initial status is the caller's responsibility.
func CreateWish(ctx context.Context, db *gorm.DB, w *domain.Wish) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(w).Error
}

// GetWish fetches a single wish by ID, or ErrNotFound if missing.
func GetWish(ctx context.Context, db *gorm.DB, id string) (*domain.Wish, error) {
	var w domain.Wish
	if err := db.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// ListAvailableWishes returns unassigned searching wishes, optionally
// restricted to the given categories, most recent first.
func ListAvailableWishes(ctx context.Context, db *gorm.DB, categories []string, limit int) ([]domain.Wish, error) {
	q := db.WithContext(ctx).
		Where("status = ? AND assigned_partner_id IS NULL AND linked_order_id IS NULL", domain.WishStatusSearching).
		Order("created_at desc")
	if len(categories) > 0 {
		q = q.Where("category IN ?", categories)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Wish
	err := q.Find(&out).Error
	return out, err
}

// ListPartnerWishes returns all wishes currently or previously assigned to
// partnerID, most recent first.
func ListPartnerWishes(ctx context.Context, db *gorm.DB, partnerID string, limit int) ([]domain.Wish, error) {
	q := db.WithContext(ctx).
		Where("assigned_partner_id = ?", partnerID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Wish
	err := q.Find(&out).Error
	return out, err
}

// ListWisherWishes returns the requester's own wishes, most recent first.
func ListWisherWishes(ctx context.Context, db *gorm.DB, wisherID string, limit int) ([]domain.Wish, error) {
	q := db.WithContext(ctx).
		Where("wisher_id = ?", wisherID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Wish
	err := q.Find(&out).Error
	return out, err
}

// AssignWishPartner performs the set-once assignment as a single conditional
// write: the partner and new status are stored only if the wish currently
// has no assignee and is in fromStatus. It reports ok=false when the guard
// fails (already assigned, or status moved underneath the caller). This is
// the only way an assignment comes into existence.
func AssignWishPartner(ctx context.Context, db *gorm.DB, wishID, partnerID, fromStatus, toStatus string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Wish{}).
		Where("id = ? AND assigned_partner_id IS NULL AND status = ?", wishID, fromStatus).
		Updates(map[string]any{
			"assigned_partner_id": partnerID,
			"status":              toStatus,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClearWishAssignment removes the current assignee (decline/reassignment
// path) and moves the wish to toStatus. The write is conditional on the
// declining partner still holding the assignment.
func ClearWishAssignment(ctx context.Context, db *gorm.DB, wishID, partnerID, toStatus string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Wish{}).
		Where("id = ? AND assigned_partner_id = ?", wishID, partnerID).
		Updates(map[string]any{
			"assigned_partner_id": nil,
			"status":              toStatus,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReplaceWishAssignment swaps the assignee from oldPartnerID to newPartnerID
// in one conditional write (decline with an immediate re-match). The wish
// stays in (or returns to) the matched status.
func ReplaceWishAssignment(ctx context.Context, db *gorm.DB, wishID, oldPartnerID, newPartnerID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Wish{}).
		Where("id = ? AND assigned_partner_id = ?", wishID, oldPartnerID).
		Updates(map[string]any{
			"assigned_partner_id": newPartnerID,
			"status":              domain.WishStatusMatched,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TransitionWishStatus moves a wish from any of fromStatuses to toStatus as
// one conditional write, reporting ok=false when the wish is no longer in an
// eligible status. Extra column updates (room id, etc.) ride along.
func TransitionWishStatus(ctx context.Context, db *gorm.DB, wishID string, fromStatuses []string, toStatus string, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": toStatus}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Wish{}).
		Where("id = ? AND status IN ?", wishID, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
