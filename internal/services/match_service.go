// Package services – matching allocator
//
// This file implements partner allocation for wishes. The policy is naive
// first-available selection: the allocator scans the partner directory in
// registration order and claims the wish for the first available agent
// serving the wish's category with a conditional assignment write. No
// geographic or load ranking happens here; the Allocator interface is the
// seam where a ranking policy would slot in.
package services

import (
	"context"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/repo"
)

// Allocator picks a partner for a wish and claims the assignment. Allocate
// returns the winning partner, ErrNoCandidate when nobody suitable is
// available, or ErrAlreadyAssigned when every claim attempt lost.
type Allocator interface {
	Allocate(ctx context.Context, w *domain.Wish, excludeID string) (*domain.Partner, error)
}

// DirectoryAllocator allocates from the partner directory: the first
// available agent whose registered services cover the wish category.
type DirectoryAllocator struct {
	DB *gorm.DB

	// MaxCandidates caps how many directory rows are considered per call.
	MaxCandidates int
}

// NewDirectoryAllocator constructs a DirectoryAllocator with a sane
// candidate cap.
func NewDirectoryAllocator(db *gorm.DB) *DirectoryAllocator {
	return &DirectoryAllocator{DB: db, MaxCandidates: 50}
}

// Allocate implements Allocator. excludeID (when non-empty) names a partner
// that must not be considered, typically the one that just declined.
func (a *DirectoryAllocator) Allocate(ctx context.Context, w *domain.Wish, excludeID string) (*domain.Partner, error) {
	tr := otel.Tracer("services/DirectoryAllocator")
	ctx, span := tr.Start(ctx, "Allocate",
		trace.WithAttributes(
			attribute.String("wish.id", w.ID),
			attribute.String("wish.category", w.Category),
		),
	)
	defer span.End()

	limit := a.MaxCandidates
	if limit <= 0 {
		limit = 50
	}
	agents, err := repo.ListAvailableAgents(ctx, a.DB, excludeID, limit)
	if err != nil {
		return nil, err
	}

	for i := range agents {
		p := &agents[i]
		if p.Agent == nil || !p.Agent.Serves(w.Category) {
			continue
		}
		ok, err := repo.AssignWishPartner(ctx, a.DB, w.ID, p.ID, domain.WishStatusSearching, domain.WishStatusMatched)
		if err != nil {
			return nil, err
		}
		if ok {
			span.SetAttributes(attribute.String("partner.id", p.ID))
			return p, nil
		}
		// The wish was claimed between listing and assignment. No point
		// trying further candidates against the same wish.
		return nil, ErrAlreadyAssigned
	}
	return nil, ErrNoCandidate
}
