// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the immutable
// earnings ledger.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wishloop/go-market-backend/internal/domain"
)

// CreateEarning appends an immutable ledger row. There is deliberately no
// update or delete counterpart.
func CreateEarning(ctx context.Context, db *gorm.DB, e *domain.EarningsRecord) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(e).Error
}

// SumEarningsSince sums a partner's ledger amounts with timestamp >= since.
// Always recomputed from the rows; there is no cached aggregate here.
func SumEarningsSince(ctx context.Context, db *gorm.DB, partnerID string, since time.Time) (float64, error) {
	var row struct {
		Total float64
	}
	err := db.WithContext(ctx).
		Model(&domain.EarningsRecord{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("partner_id = ? AND created_at >= ?", partnerID, since).
		Scan(&row).Error
	return row.Total, err
}

// SumEarnings sums a partner's entire ledger.
func SumEarnings(ctx context.Context, db *gorm.DB, partnerID string) (float64, error) {
	return SumEarningsSince(ctx, db, partnerID, time.Time{})
}

// ListEarnings returns a partner's ledger rows, most recent first.
func ListEarnings(ctx context.Context, db *gorm.DB, partnerID string, limit int) ([]domain.EarningsRecord, error) {
	q := db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.EarningsRecord
	err := q.Find(&out).Error
	return out, err
}
