// Package services – EarningsService
//
// This file implements windowed earnings summaries over the append-only
// ledger. Totals are always recomputed from the records; the cumulative
// figure on the partner row is a convenience projection, never the source
// of truth.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/repo"
)

// EarningsService reads the earnings ledger.
type EarningsService struct {
	DB *gorm.DB

	// Now is the clock used for window boundaries. Tests override it.
	Now func() time.Time
}

// NewEarningsService constructs an EarningsService on the real clock.
func NewEarningsService(db *gorm.DB) *EarningsService {
	return &EarningsService{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// EarningsSummary is the windowed view returned to partners. Windows are
// calendar-aligned in UTC: today from midnight, week from Monday, month from
// the first.
type EarningsSummary struct {
	Today float64 `json:"today"`
	Week  float64 `json:"week"`
	Month float64 `json:"month"`
	Total float64 `json:"total"`
}

// Summary computes the partner's earnings for the current day, calendar
// week, and calendar month, plus the all-time total.
func (s *EarningsService) Summary(ctx context.Context, partnerID string) (*EarningsSummary, error) {
	tr := otel.Tracer("services/EarningsService")
	ctx, span := tr.Start(ctx, "Summary",
		trace.WithAttributes(attribute.String("partner.id", partnerID)),
	)
	defer span.End()

	now := s.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := startOfWeek(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := &EarningsSummary{}
	var err error
	if out.Today, err = repo.SumEarningsSince(ctx, s.DB, partnerID, dayStart); err != nil {
		return nil, err
	}
	if out.Week, err = repo.SumEarningsSince(ctx, s.DB, partnerID, weekStart); err != nil {
		return nil, err
	}
	if out.Month, err = repo.SumEarningsSince(ctx, s.DB, partnerID, monthStart); err != nil {
		return nil, err
	}
	if out.Total, err = repo.SumEarnings(ctx, s.DB, partnerID); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the partner's ledger entries, most recent first.
func (s *EarningsService) List(ctx context.Context, partnerID string, limit int) ([]domain.EarningsRecord, error) {
	return repo.ListEarnings(ctx, s.DB, partnerID, limit)
}

// startOfWeek returns the Monday 00:00 UTC preceding (or equal to) t.
func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}
