// Package services – PartnerService
//
// This file implements the partner directory surface: profile reads,
// availability toggles, activity stats, and the live position upsert used by
// the allocator and delivery ETAs.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/repo"
)

// PartnerService reads and updates partner directory state.
type PartnerService struct {
	DB *gorm.DB
}

// NewPartnerService constructs a PartnerService.
func NewPartnerService(db *gorm.DB) *PartnerService {
	return &PartnerService{DB: db}
}

// Get returns a partner with their role profile.
func (s *PartnerService) Get(ctx context.Context, partnerID string) (*domain.Partner, error) {
	p, err := repo.GetPartner(ctx, s.DB, partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// SetStatus updates the partner's availability.
func (s *PartnerService) SetStatus(ctx context.Context, partnerID, status string) error {
	switch status {
	case domain.PartnerAvailable, domain.PartnerBusy, domain.PartnerOffline:
	default:
		return ErrValidation
	}
	err := repo.UpdatePartnerStatus(ctx, s.DB, partnerID, status)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// PartnerStats is the activity snapshot shown on partner dashboards.
type PartnerStats struct {
	Status        string  `json:"status"`
	Rating        float64 `json:"rating"`
	TotalTasks    int64   `json:"total_tasks"`
	TotalEarnings float64 `json:"total_earnings"`
	ActiveTasks   int64   `json:"active_tasks"`
}

// Stats returns the partner's cumulative figures plus their in-flight work
// count: deliveries under way and wishes in progress for agents, open shop
// orders for vendors.
func (s *PartnerService) Stats(ctx context.Context, partnerID string) (*PartnerStats, error) {
	tr := otel.Tracer("services/PartnerService")
	ctx, span := tr.Start(ctx, "Stats",
		trace.WithAttributes(attribute.String("partner.id", partnerID)),
	)
	defer span.End()

	p, err := s.Get(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	var active int64
	switch p.Role {
	case domain.RoleAgent:
		active, err = repo.CountAgentActiveTasks(ctx, s.DB, partnerID)
	case domain.RoleVendor:
		active, err = repo.CountVendorActiveOrders(ctx, s.DB, partnerID)
	}
	if err != nil {
		return nil, err
	}
	return &PartnerStats{
		Status:        p.Status,
		Rating:        p.Rating,
		TotalTasks:    p.TotalTasks,
		TotalEarnings: p.TotalEarnings,
		ActiveTasks:   active,
	}, nil
}

// ReportLocation upserts the partner's current position. Last write wins.
func (s *PartnerService) ReportLocation(ctx context.Context, partnerID string, lat, lng, heading, speedKmh float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrValidation
	}
	return repo.UpsertLocation(ctx, s.DB, &domain.PartnerLocation{
		PartnerID: partnerID,
		Lat:       lat,
		Lng:       lng,
		Heading:   heading,
		SpeedKmh:  speedKmh,
		Online:    true,
	})
}

// Location returns the partner's last reported position, or ErrNotFound when
// none exists.
func (s *PartnerService) Location(ctx context.Context, partnerID string) (*domain.PartnerLocation, error) {
	loc, err := repo.GetLocation(ctx, s.DB, partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return loc, nil
}
