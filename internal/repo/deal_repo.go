// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Deal model
// and its append-only offer log.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wishloop/go-market-backend/internal/domain"
)

// CreateDeal inserts a new Deal row. Callers that need the deal, its room,
// and the first offer created atomically run this inside a transaction.
func CreateDeal(ctx context.Context, db *gorm.DB, d *domain.Deal) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(d).Error
}

// GetDeal fetches a deal with its offers (oldest first), or ErrNotFound.
func GetDeal(ctx context.Context, db *gorm.DB, id string) (*domain.Deal, error) {
	var d domain.Deal
	err := db.WithContext(ctx).
		Preload("Offers", func(q *gorm.DB) *gorm.DB {
			return q.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListPartnerDeals returns all deals owned by partnerID, most recent first.
func ListPartnerDeals(ctx context.Context, db *gorm.DB, partnerID string, limit int) ([]domain.Deal, error) {
	q := db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Deal
	err := q.Find(&out).Error
	return out, err
}

// AppendOffer appends one row to the deal's offer log and projects the
// price onto current_price in the same call sequence. Offer rows are
// insert-only; nothing ever rewrites them.
func AppendOffer(ctx context.Context, db *gorm.DB, o *domain.DealOffer) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(o).Error
}

// CountOffers returns the length of a deal's offer log.
func CountOffers(ctx context.Context, db *gorm.DB, dealID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DealOffer{}).
		Where("deal_id = ?", dealID).
		Count(&total).Error
	return total, err
}

// TransitionDealStatus moves a deal from any of fromStatuses to toStatus as
// one conditional write, with optional extra column updates (current_price,
// timestamps) riding along. ok=false means the deal was no longer in an
// eligible status.
func TransitionDealStatus(ctx context.Context, db *gorm.DB, dealID string, fromStatuses []string, toStatus string, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": toStatus}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("id = ? AND status IN ?", dealID, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
