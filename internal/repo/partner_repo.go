// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for partners,
// their presence row, and session lookup.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wishloop/go-market-backend/internal/domain"
)

// GetPartner fetches a partner with all role profiles preloaded (only the
// one matching Role will be non-nil), or ErrNotFound.
func GetPartner(ctx context.Context, db *gorm.DB, id string) (*domain.Partner, error) {
	var p domain.Partner
	err := db.WithContext(ctx).
		Preload("Agent").
		Preload("Vendor").
		Preload("Promoter").
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListAvailableAgents returns available agents with their profiles,
// excluding excludeID when non-empty, oldest-registered first. Category
// filtering happens in the allocator: service lists are stored as JSON and
// the candidate pool per query is small.
func ListAvailableAgents(ctx context.Context, db *gorm.DB, excludeID string, limit int) ([]domain.Partner, error) {
	q := db.WithContext(ctx).
		Preload("Agent").
		Where("role = ? AND status = ?", domain.RoleAgent, domain.PartnerAvailable).
		Order("created_at asc")
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Partner
	err := q.Find(&out).Error
	return out, err
}

// UpdatePartnerStatus sets the partner's availability. Returns ErrNotFound
// when no such partner exists.
func UpdatePartnerStatus(ctx context.Context, db *gorm.DB, partnerID, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Partner{}).
		Where("id = ?", partnerID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementPartnerTotals bumps the cumulative task count and earnings total
// in one UPDATE. Callers run it in the same transaction as the matching
// ledger append so the two can never drift.
func IncrementPartnerTotals(ctx context.Context, db *gorm.DB, partnerID string, amount float64) error {
	res := db.WithContext(ctx).
		Model(&domain.Partner{}).
		Where("id = ?", partnerID).
		UpdateColumns(map[string]any{
			"total_tasks":    gorm.Expr("total_tasks + 1"),
			"total_earnings": gorm.Expr("total_earnings + ?", amount),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertLocation writes the partner's single presence row: insert on first
// report, overwrite thereafter. Last write wins per partner.
func UpsertLocation(ctx context.Context, db *gorm.DB, loc *domain.PartnerLocation) error {
	loc.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "partner_id"}},
			UpdateAll: true,
		}).
		Create(loc).Error
}

// GetLocation fetches a partner's current position, or ErrNotFound when the
// partner has never reported one.
func GetLocation(ctx context.Context, db *gorm.DB, partnerID string) (*domain.PartnerLocation, error) {
	var loc domain.PartnerLocation
	if err := db.WithContext(ctx).Where("partner_id = ?", partnerID).First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetValidSession resolves a session token to its row, rejecting expired
// tokens with ErrNotFound.
func GetValidSession(ctx context.Context, db *gorm.DB, token string, now time.Time) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountAgentActiveTasks returns the agent's in-flight work: orders in a
// delivery status plus wishes in progress. Used by the stats endpoint.
func CountAgentActiveTasks(ctx context.Context, db *gorm.DB, agentID string) (int64, error) {
	var orders int64
	err := db.WithContext(ctx).
		Model(&domain.ShopOrder{}).
		Where("assigned_agent_id = ? AND status IN ?", agentID,
			[]string{domain.OrderStatusPickedUp, domain.OrderStatusOnTheWay, domain.OrderStatusNearby}).
		Count(&orders).Error
	if err != nil {
		return 0, err
	}
	var wishes int64
	err = db.WithContext(ctx).
		Model(&domain.Wish{}).
		Where("assigned_partner_id = ? AND status IN ?", agentID,
			[]string{domain.WishStatusAccepted, domain.WishStatusInProgress}).
		Count(&wishes).Error
	return orders + wishes, err
}

// CountVendorActiveOrders returns the vendor's orders still on the shop side
// of the pipeline.
func CountVendorActiveOrders(ctx context.Context, db *gorm.DB, vendorID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ShopOrder{}).
		Where("vendor_id = ? AND status IN ?", vendorID,
			[]string{domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusPreparing, domain.OrderStatusReady}).
		Count(&total).Error
	return total, err
}
