// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ShopOrder
// model and its append-only status history.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wishloop/go-market-backend/internal/domain"
)

// CreateOrder inserts a new ShopOrder row with its line items.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.ShopOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.NewString()
		}
		o.Items[i].OrderID = o.ID
	}
	o.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(o).Error
}

// GetOrder fetches an order with its items and status history, or
// ErrNotFound if missing. History is ordered oldest first.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.ShopOrder, error) {
	var o domain.ShopOrder
	err := db.WithContext(ctx).
		Preload("Items").
		Preload("StatusHistory", func(q *gorm.DB) *gorm.DB {
			return q.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListAvailableOrders returns unassigned agent-delivery orders in a
// claimable status, most recent first.
func ListAvailableOrders(ctx context.Context, db *gorm.DB, limit int) ([]domain.ShopOrder, error) {
	q := db.WithContext(ctx).
		Preload("Items").
		Where("delivery_type = ? AND assigned_agent_id IS NULL AND status IN ?",
			domain.DeliveryByAgent,
			[]string{domain.OrderStatusConfirmed, domain.OrderStatusPreparing, domain.OrderStatusReady}).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.ShopOrder
	err := q.Find(&out).Error
	return out, err
}

// ListAgentOrders returns the agent's orders in the given statuses,
// most recent first.
func ListAgentOrders(ctx context.Context, db *gorm.DB, agentID string, statuses []string, limit int) ([]domain.ShopOrder, error) {
	q := db.WithContext(ctx).
		Preload("Items").
		Where("assigned_agent_id = ?", agentID).
		Order("created_at desc")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.ShopOrder
	err := q.Find(&out).Error
	return out, err
}

// ListVendorOrders returns all orders for the vendor's shop, most recent
// first.
func ListVendorOrders(ctx context.Context, db *gorm.DB, vendorID string, limit int) ([]domain.ShopOrder, error) {
	q := db.WithContext(ctx).
		Preload("Items").
		Where("vendor_id = ?", vendorID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.ShopOrder
	err := q.Find(&out).Error
	return out, err
}

// ListCustomerOrders returns the customer's own orders, most recent first.
func ListCustomerOrders(ctx context.Context, db *gorm.DB, customerID string, limit int) ([]domain.ShopOrder, error) {
	q := db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.ShopOrder
	err := q.Find(&out).Error
	return out, err
}

// ClaimOrderAgent is the assignment compare-and-swap: it sets
// assigned_agent_id to agentID only if it is currently NULL, in a single
// conditional UPDATE. Under concurrent claims exactly one caller observes
// ok=true; everyone else loses the race (never a double assignment).
// The order status is advanced to toStatus in the same write.
func ClaimOrderAgent(ctx context.Context, db *gorm.DB, orderID, agentID, toStatus string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ShopOrder{}).
		Where("id = ? AND assigned_agent_id IS NULL AND delivery_type = ?", orderID, domain.DeliveryByAgent).
		Updates(map[string]any{
			"assigned_agent_id": agentID,
			"status":            toStatus,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TransitionOrderStatus moves an order from fromStatus to toStatus as one
// conditional write, reporting ok=false when the order left fromStatus
// underneath the caller.
func TransitionOrderStatus(ctx context.Context, db *gorm.DB, orderID, fromStatus, toStatus string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ShopOrder{}).
		Where("id = ? AND status = ?", orderID, fromStatus).
		Update("status", toStatus)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkOrderForAgentDelivery flips the delivery type to agent_delivery and
// clears any prior assignment so the order reappears in the claim pool.
func MarkOrderForAgentDelivery(ctx context.Context, db *gorm.DB, orderID, vendorID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ShopOrder{}).
		Where("id = ? AND vendor_id = ?", orderID, vendorID).
		Updates(map[string]any{
			"delivery_type":     domain.DeliveryByAgent,
			"assigned_agent_id": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendStatusEntry appends one row to the order's append-only audit log.
// Entries are never updated or deleted.
func AppendStatusEntry(ctx context.Context, db *gorm.DB, orderID, status, message string) error {
	e := &domain.OrderStatusEntry{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(e).Error
}

// CountStatusEntries returns the length of an order's audit log.
func CountStatusEntries(ctx context.Context, db *gorm.DB, orderID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.OrderStatusEntry{}).
		Where("order_id = ?", orderID).
		Count(&total).Error
	return total, err
}
