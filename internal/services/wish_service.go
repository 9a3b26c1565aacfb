// Package services – WishService
//
// This file implements the wish lifecycle: posting, matching, acceptance,
// progress, and completion. Assignment is always a conditional write (the
// repository's claim functions), so two partners racing for the same wish
// resolve to exactly one winner without locks.
//
// Completion is the money path: the remuneration credit, the partner's
// cumulative totals, the availability flip, and the room close all happen in
// one transaction.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// wish/partner identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/geo"
	"github.com/wishloop/go-market-backend/internal/repo"
)

// titleCaser renders category slugs presentable in room titles.
var titleCaser = cases.Title(language.English)

// roomTitle builds the chat room title shown to both parties.
func roomTitle(w *domain.Wish) string {
	return titleCaser.String(strings.ReplaceAll(w.Category, "_", " ")) + ": " + w.Title
}

// WishService coordinates the wish lifecycle end to end.
type WishService struct {
	DB     *gorm.DB
	Alloc  Allocator
	Notify Notifier

	// MaxTitleRunes caps stored titles by rune length.
	MaxTitleRunes int

	// SpeedKmh is the assumed partner travel speed for tracking estimates.
	SpeedKmh float64
}

// NewWishService constructs a WishService with defaults.
func NewWishService(db *gorm.DB, alloc Allocator, notify Notifier) *WishService {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &WishService{DB: db, Alloc: alloc, Notify: notify, MaxTitleRunes: 255}
}

// CreateWishInput is the payload for posting a new wish.
type CreateWishInput struct {
	Category     string
	Title        string
	Description  string
	Address      string
	Lat          float64
	Lng          float64
	RadiusKm     float64
	Remuneration float64
	Immediate    bool
	ScheduledAt  *time.Time
}

// Create posts a new wish in the searching status and immediately tries to
// match it against the partner directory. A failed match leaves the wish
// searching; it stays visible to browsing partners.
func (s *WishService) Create(ctx context.Context, wisherID string, in CreateWishInput) (*domain.Wish, error) {
	tr := otel.Tracer("services/WishService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", wisherID),
			attribute.String("wish.category", in.Category),
		),
	)
	defer span.End()

	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if in.Title == "" || in.Category == "" {
		return nil, ErrValidation
	}
	if in.Remuneration <= 0 {
		return nil, ErrValidation
	}
	if s.MaxTitleRunes > 0 && len([]rune(in.Title)) > s.MaxTitleRunes {
		in.Title = string([]rune(in.Title)[:s.MaxTitleRunes])
	}

	w := &domain.Wish{
		WisherID:     wisherID,
		Category:     in.Category,
		Title:        in.Title,
		Description:  strings.TrimSpace(in.Description),
		Address:      strings.TrimSpace(in.Address),
		Lat:          in.Lat,
		Lng:          in.Lng,
		RadiusKm:     in.RadiusKm,
		Remuneration: in.Remuneration,
		Immediate:    in.Immediate,
		ScheduledAt:  in.ScheduledAt,
		Status:       domain.WishStatusSearching,
	}
	if err := repo.CreateWish(ctx, s.DB, w); err != nil {
		return nil, err
	}

	if s.Alloc != nil {
		if p, err := s.Alloc.Allocate(ctx, w, ""); err == nil {
			w.Status = domain.WishStatusMatched
			w.AssignedPartnerID = &p.ID
			s.Notify.UserEvent(p.ID, WishMatchedEvent(w))
		} else if !errors.Is(err, ErrNoCandidate) && !errors.Is(err, ErrAlreadyAssigned) {
			// Matching failures never lose the posted wish.
			span.RecordError(err)
		}
	}
	return w, nil
}

// Get returns a wish visible to userID: its requester, its assigned partner,
// or any partner while the wish is still unassigned.
func (s *WishService) Get(ctx context.Context, userID, wishID string) (*domain.Wish, error) {
	w, err := repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if w.WisherID != userID && !assignedTo(w, userID) && w.AssignedPartnerID != nil {
		return nil, ErrForbidden
	}
	return w, nil
}

// WishTracking is the live view of an assigned wish: the partner's last
// reported position plus an arrival estimate for the wish location.
type WishTracking struct {
	Status          string                  `json:"status"`
	PartnerLocation *domain.PartnerLocation `json:"partner_location,omitempty"`
	ETAMinutes      int                     `json:"eta_minutes,omitempty"`
}

// Track reports where the assigned partner last was and how long until they
// reach the wish location. Wishes without an assignee, or whose partner has
// never pushed a position, yield a view with status only.
func (s *WishService) Track(ctx context.Context, wishID string) (*WishTracking, error) {
	w, err := repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	t := &WishTracking{Status: w.Status}
	if w.AssignedPartnerID == nil {
		return t, nil
	}
	loc, err := repo.GetLocation(ctx, s.DB, *w.AssignedPartnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return t, nil
		}
		return nil, err
	}
	t.PartnerLocation = loc
	if w.Lat != 0 || w.Lng != 0 {
		d := geo.DistanceKm(loc.Lat, loc.Lng, w.Lat, w.Lng)
		t.ETAMinutes = geo.ETAMinutes(d, s.SpeedKmh)
	}
	return t, nil
}

// ListForWisher returns the requester's own wishes, most recent first.
func (s *WishService) ListForWisher(ctx context.Context, wisherID string, limit int) ([]domain.Wish, error) {
	return repo.ListWisherWishes(ctx, s.DB, wisherID, limit)
}

// ListAssigned returns the wishes currently or previously assigned to the
// partner, most recent first.
func (s *WishService) ListAssigned(ctx context.Context, partnerID string, limit int) ([]domain.Wish, error) {
	return repo.ListPartnerWishes(ctx, s.DB, partnerID, limit)
}

// ListAvailable returns unassigned searching wishes in the categories the
// agent serves, most recent first.
func (s *WishService) ListAvailable(ctx context.Context, partnerID string, limit int) ([]domain.Wish, error) {
	p, err := repo.GetPartner(ctx, s.DB, partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.Role != domain.RoleAgent || p.Agent == nil {
		return nil, ErrForbidden
	}
	categories := append(append([]string{}, p.Agent.Services...), p.Agent.Skills...)
	return repo.ListAvailableWishes(ctx, s.DB, categories, limit)
}

// Accept lets a partner take a wish: either confirming an allocator match
// held in their name, or claiming an unassigned searching wish directly.
// Acceptance opens the chat room with the partner's greeting and flips the
// partner to busy, atomically with the status write. Exactly one partner can
// ever succeed here.
func (s *WishService) Accept(ctx context.Context, partnerID, wishID string) (*domain.Wish, *domain.ChatRoom, error) {
	tr := otel.Tracer("services/WishService")
	ctx, span := tr.Start(ctx, "Accept",
		trace.WithAttributes(
			attribute.String("wish.id", wishID),
			attribute.String("partner.id", partnerID),
		),
	)
	defer span.End()

	p, err := repo.GetPartner(ctx, s.DB, partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if p.Role != domain.RoleAgent || p.Agent == nil {
		return nil, nil, ErrForbidden
	}

	w, err := repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if domain.TerminalWishStatus(w.Status) {
		return nil, nil, ErrTerminal
	}
	if w.AssignedPartnerID != nil && *w.AssignedPartnerID != partnerID {
		return nil, nil, ErrAlreadyAssigned
	}
	if w.AssignedPartnerID == nil && !p.Agent.Serves(w.Category) {
		return nil, nil, ErrForbidden
	}

	var room *domain.ChatRoom
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ok bool
		var err error
		if w.AssignedPartnerID == nil {
			// Direct claim from the browse list.
			ok, err = repo.AssignWishPartner(ctx, tx, wishID, partnerID, domain.WishStatusSearching, domain.WishStatusAccepted)
		} else {
			// Confirming an allocator match (or a negotiated deal hand-off).
			ok, err = repo.TransitionWishStatus(ctx, tx, wishID,
				[]string{domain.WishStatusMatched, domain.WishStatusNegotiating}, domain.WishStatusAccepted, nil)
		}
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyAssigned
		}

		room = &domain.ChatRoom{
			WishID:    &wishID,
			WisherID:  w.WisherID,
			PartnerID: partnerID,
			Title:     roomTitle(w),
			Status:    domain.RoomStatusActive,
		}
		if err := repo.CreateRoom(ctx, tx, room); err != nil {
			return err
		}
		if err := tx.Model(&domain.Wish{}).Where("id = ?", wishID).
			Update("chat_room_id", room.ID).Error; err != nil {
			return err
		}
		if _, err := repo.CreateMessage(ctx, tx, room.ID, partnerID, domain.SenderPartner,
			"Hi! I'm "+p.Name+" and I can help with your request."); err != nil {
			return err
		}
		return repo.UpdatePartnerStatus(ctx, tx, partnerID, domain.PartnerBusy)
	})
	if err != nil {
		return nil, nil, err
	}

	w, err = repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		return nil, nil, err
	}
	s.Notify.UserEvent(w.WisherID, WishStatusEvent(w))
	return w, room, nil
}

// Decline releases a matched wish back to searching and immediately tries to
// re-match it, excluding the partner that declined.
func (s *WishService) Decline(ctx context.Context, partnerID, wishID string) error {
	tr := otel.Tracer("services/WishService")
	ctx, span := tr.Start(ctx, "Decline",
		trace.WithAttributes(
			attribute.String("wish.id", wishID),
			attribute.String("partner.id", partnerID),
		),
	)
	defer span.End()

	w, err := repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if w.Status != domain.WishStatusMatched && w.Status != domain.WishStatusNegotiating {
		return ErrInvalidTransition
	}
	ok, err := repo.ClearWishAssignment(ctx, s.DB, wishID, partnerID, domain.WishStatusSearching)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAssigned
	}

	if s.Alloc != nil {
		w.Status = domain.WishStatusSearching
		w.AssignedPartnerID = nil
		if p, err := s.Alloc.Allocate(ctx, w, partnerID); err == nil {
			s.Notify.UserEvent(p.ID, WishMatchedEvent(w))
		}
	}
	if w2, err := repo.GetWish(ctx, s.DB, wishID); err == nil {
		s.Notify.UserEvent(w2.WisherID, WishStatusEvent(w2))
	}
	return nil
}

// Start moves an accepted wish to in_progress. Only the assigned partner can
// start it.
func (s *WishService) Start(ctx context.Context, partnerID, wishID string) (*domain.Wish, error) {
	return s.partnerTransition(ctx, partnerID, wishID,
		[]string{domain.WishStatusAccepted}, domain.WishStatusInProgress)
}

// Complete finishes an accepted or in-progress wish. In one transaction it
// writes the terminal status, credits the remuneration to the partner's
// ledger, bumps the partner's cumulative totals, flips the partner back to
// available, and closes the chat room.
func (s *WishService) Complete(ctx context.Context, partnerID, wishID string) (*domain.Wish, error) {
	tr := otel.Tracer("services/WishService")
	ctx, span := tr.Start(ctx, "Complete",
		trace.WithAttributes(
			attribute.String("wish.id", wishID),
			attribute.String("partner.id", partnerID),
		),
	)
	defer span.End()

	w, err := repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !assignedTo(w, partnerID) {
		return nil, ErrNotAssigned
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TransitionWishStatus(ctx, tx, wishID,
			[]string{domain.WishStatusAccepted, domain.WishStatusInProgress},
			domain.WishStatusCompleted, nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if err := repo.CreateEarning(ctx, tx, &domain.EarningsRecord{
			PartnerID:   partnerID,
			WishID:      &wishID,
			Amount:      w.Remuneration,
			Type:        domain.EarningWish,
			Description: "Wish completed: " + w.Title,
		}); err != nil {
			return err
		}
		if err := repo.IncrementPartnerTotals(ctx, tx, partnerID, w.Remuneration); err != nil {
			return err
		}
		if err := repo.UpdatePartnerStatus(ctx, tx, partnerID, domain.PartnerAvailable); err != nil {
			return err
		}
		return repo.UpdateRoomStatusByWishID(ctx, tx, wishID, domain.RoomStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	w, err = repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		return nil, err
	}
	s.Notify.UserEvent(w.WisherID, WishStatusEvent(w))
	return w, nil
}

// Cancel lets the requester withdraw a wish from any non-terminal status.
// The assignment (if any) is released, the partner freed, and the room
// closed.
func (s *WishService) Cancel(ctx context.Context, wisherID, wishID string) (*domain.Wish, error) {
	tr := otel.Tracer("services/WishService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(attribute.String("wish.id", wishID)),
	)
	defer span.End()

	w, err := repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if w.WisherID != wisherID {
		return nil, ErrForbidden
	}
	if domain.TerminalWishStatus(w.Status) {
		return nil, ErrTerminal
	}

	assigned := w.AssignedPartnerID
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TransitionWishStatus(ctx, tx, wishID,
			[]string{domain.WishStatusSearching, domain.WishStatusMatched, domain.WishStatusNegotiating,
				domain.WishStatusAccepted, domain.WishStatusInProgress},
			domain.WishStatusCancelled, nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTerminal
		}
		if assigned != nil {
			if err := repo.UpdatePartnerStatus(ctx, tx, *assigned, domain.PartnerAvailable); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return repo.UpdateRoomStatusByWishID(ctx, tx, wishID, domain.RoomStatusClosed)
	})
	if err != nil {
		return nil, err
	}

	w, err = repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		return nil, err
	}
	if assigned != nil {
		s.Notify.UserEvent(*assigned, WishStatusEvent(w))
	}
	return w, nil
}

// partnerTransition applies a guarded status move that only the assigned
// partner may perform.
func (s *WishService) partnerTransition(ctx context.Context, partnerID, wishID string, from []string, to string) (*domain.Wish, error) {
	tr := otel.Tracer("services/WishService")
	ctx, span := tr.Start(ctx, "Transition",
		trace.WithAttributes(
			attribute.String("wish.id", wishID),
			attribute.String("wish.to_status", to),
		),
	)
	defer span.End()

	w, err := repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !assignedTo(w, partnerID) {
		return nil, ErrNotAssigned
	}
	ok, err := repo.TransitionWishStatus(ctx, s.DB, wishID, from, to, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	w, err = repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		return nil, err
	}
	s.Notify.UserEvent(w.WisherID, WishStatusEvent(w))
	return w, nil
}

func assignedTo(w *domain.Wish, partnerID string) bool {
	return w.AssignedPartnerID != nil && *w.AssignedPartnerID == partnerID
}
