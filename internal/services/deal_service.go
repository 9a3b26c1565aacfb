// Package services – DealService
//
// This file implements price/schedule negotiation on top of wishes. A deal
// is opened by a partner proposing terms; the requester accepts or rejects.
// Every proposed term set is one row in the deal's append-only offer log and
// CurrentPrice is always the last offer's price.
//
// The deal lifecycle and the parent wish lifecycle advance together inside
// transactions: an accepted deal is an accepted wish, a completed deal pays
// the partner the negotiated price, a rejected deal releases the wish back
// to matching.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/repo"
)

// DealService owns deal negotiation and its coupling to the wish lifecycle.
type DealService struct {
	DB     *gorm.DB
	Notify Notifier
}

// NewDealService constructs a DealService.
func NewDealService(db *gorm.DB, notify Notifier) *DealService {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &DealService{DB: db, Notify: notify}
}

// ProposeInput is the payload for opening or countering a deal.
type ProposeInput struct {
	Price    float64
	Schedule string
	Notes    string
}

// offerMessage renders proposed terms as the chat line the other side reads.
// Negotiation steps always leave a persisted message so the conversation
// history tells the whole story without the live socket.
func offerMessage(format string, in ProposeInput) string {
	msg := fmt.Sprintf(format, in.Price)
	if in.Schedule != "" {
		msg += " Schedule: " + in.Schedule + "."
	}
	return msg
}

// Propose opens a negotiation: the partner claims the wish into the
// negotiating status, a chat room is created, and the proposed terms become
// the deal's initial offer. All of it commits atomically; a lost claim
// leaves no partial deal behind.
func (s *DealService) Propose(ctx context.Context, partnerID, wishID string, in ProposeInput) (*domain.Deal, error) {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Propose",
		trace.WithAttributes(
			attribute.String("wish.id", wishID),
			attribute.String("partner.id", partnerID),
		),
	)
	defer span.End()

	if in.Price <= 0 {
		return nil, ErrValidation
	}
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
	w, err := repo.GetWish(ctx, s.DB, wishID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if domain.TerminalWishStatus(w.Status) {
		return nil, ErrTerminal
	}
	if w.AssignedPartnerID != nil && *w.AssignedPartnerID != partnerID {
		return nil, ErrAlreadyAssigned
	}

	var deal *domain.Deal
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ok bool
		var err error
		if w.AssignedPartnerID == nil {
			ok, err = repo.AssignWishPartner(ctx, tx, wishID, partnerID, domain.WishStatusSearching, domain.WishStatusNegotiating)
		} else {
			ok, err = repo.TransitionWishStatus(ctx, tx, wishID,
				[]string{domain.WishStatusMatched}, domain.WishStatusNegotiating, nil)
		}
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyAssigned
		}

		room := &domain.ChatRoom{
			WishID:    &wishID,
			WisherID:  w.WisherID,
			PartnerID: partnerID,
			Title:     roomTitle(w),
			Status:    domain.RoomStatusNegotiating,
		}
		if err := repo.CreateRoom(ctx, tx, room); err != nil {
			return err
		}

		deal = &domain.Deal{
			WishID:       wishID,
			PartnerID:    partnerID,
			InitialPrice: in.Price,
			CurrentPrice: in.Price,
			Schedule:     in.Schedule,
			Status:       domain.DealStatusPending,
			RoomID:       room.ID,
		}
		if err := repo.CreateDeal(ctx, tx, deal); err != nil {
			return err
		}
		if err := tx.Model(&domain.ChatRoom{}).Where("id = ?", room.ID).
			Update("deal_id", deal.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Wish{}).Where("id = ?", wishID).
			Update("chat_room_id", room.ID).Error; err != nil {
			return err
		}
		if err := repo.AppendOffer(ctx, tx, &domain.DealOffer{
			DealID:   deal.ID,
			Side:     domain.OfferSidePartner,
			Kind:     domain.OfferKindInitial,
			Price:    in.Price,
			Schedule: in.Schedule,
			Notes:    in.Notes,
		}); err != nil {
			return err
		}
		_, err = repo.CreateMessage(ctx, tx, room.ID, partnerID, domain.SenderPartner,
			offerMessage("I can help with this for %.2f.", in))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notify.UserEvent(w.WisherID, DealUpdateEvent(deal))
	return deal, nil
}

// Counter appends revised terms to an open deal. Only the owning partner
// proposes terms; the requester's side of the protocol is accept or reject.
func (s *DealService) Counter(ctx context.Context, partnerID, dealID string, in ProposeInput) (*domain.Deal, error) {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Counter",
		trace.WithAttributes(attribute.String("deal.id", dealID)),
	)
	defer span.End()

	if in.Price <= 0 {
		return nil, ErrValidation
	}
	d, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.PartnerID != partnerID {
		return nil, ErrForbidden
	}
	if d.Status != domain.DealStatusPending && d.Status != domain.DealStatusNegotiating {
		return nil, ErrInvalidTransition
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.AppendOffer(ctx, tx, &domain.DealOffer{
			DealID:   dealID,
			Side:     domain.OfferSidePartner,
			Kind:     domain.OfferKindCounter,
			Price:    in.Price,
			Schedule: in.Schedule,
			Notes:    in.Notes,
		}); err != nil {
			return err
		}
		ok, err := repo.TransitionDealStatus(ctx, tx, dealID,
			[]string{domain.DealStatusPending, domain.DealStatusNegotiating},
			domain.DealStatusNegotiating,
			map[string]any{"current_price": in.Price, "schedule": in.Schedule})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		_, err = repo.CreateMessage(ctx, tx, d.RoomID, partnerID, domain.SenderPartner,
			offerMessage("New offer: %.2f.", in))
		return err
	})
	if err != nil {
		return nil, err
	}

	d, err = s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if w, err := repo.GetWish(ctx, s.DB, d.WishID); err == nil {
		s.Notify.UserEvent(w.WisherID, DealUpdateEvent(d))
	}
	s.Notify.RoomEvent(d.RoomID, DealUpdateEvent(d))
	return d, nil
}

// Accept is the requester fixing the current terms. The deal, the wish, and
// the room move to their accepted/active statuses in one transaction and the
// partner goes busy.
func (s *DealService) Accept(ctx context.Context, wisherID, dealID string) (*domain.Deal, error) {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Accept",
		trace.WithAttributes(attribute.String("deal.id", dealID)),
	)
	defer span.End()

	d, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	w, err := repo.GetWish(ctx, s.DB, d.WishID)
	if err != nil {
		return nil, err
	}
	if w.WisherID != wisherID {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TransitionDealStatus(ctx, tx, dealID,
			[]string{domain.DealStatusPending, domain.DealStatusNegotiating},
			domain.DealStatusAccepted,
			map[string]any{"accepted_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		ok, err = repo.TransitionWishStatus(ctx, tx, d.WishID,
			[]string{domain.WishStatusNegotiating}, domain.WishStatusAccepted, nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if err := repo.UpdateRoomStatus(ctx, tx, d.RoomID, domain.RoomStatusActive); err != nil {
			return err
		}
		if err := repo.UpdatePartnerStatus(ctx, tx, d.PartnerID, domain.PartnerBusy); err != nil {
			return err
		}
		_, err = repo.CreateMessage(ctx, tx, d.RoomID, wisherID, domain.SenderWisher,
			fmt.Sprintf("Offer accepted at %.2f.", d.CurrentPrice))
		return err
	})
	if err != nil {
		return nil, err
	}

	d, err = s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	s.Notify.UserEvent(d.PartnerID, DealUpdateEvent(d))
	s.Notify.RoomEvent(d.RoomID, DealUpdateEvent(d))
	return d, nil
}

// Reject ends the negotiation. The deal goes terminal, the wish returns to
// searching with no assignee, and the room closes.
func (s *DealService) Reject(ctx context.Context, wisherID, dealID string) (*domain.Deal, error) {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Reject",
		trace.WithAttributes(attribute.String("deal.id", dealID)),
	)
	defer span.End()

	d, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	w, err := repo.GetWish(ctx, s.DB, d.WishID)
	if err != nil {
		return nil, err
	}
	if w.WisherID != wisherID {
		return nil, ErrForbidden
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TransitionDealStatus(ctx, tx, dealID,
			[]string{domain.DealStatusPending, domain.DealStatusNegotiating},
			domain.DealStatusRejected, nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if _, err := repo.ClearWishAssignment(ctx, tx, d.WishID, d.PartnerID, domain.WishStatusSearching); err != nil {
			return err
		}
		if _, err := repo.CreateMessage(ctx, tx, d.RoomID, wisherID, domain.SenderWisher,
			"Offer declined."); err != nil {
			return err
		}
		return repo.UpdateRoomStatus(ctx, tx, d.RoomID, domain.RoomStatusClosed)
	})
	if err != nil {
		return nil, err
	}

	d, err = s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	s.Notify.UserEvent(d.PartnerID, DealUpdateEvent(d))
	return d, nil
}

// Start moves an accepted deal (and its wish) to in_progress.
func (s *DealService) Start(ctx context.Context, partnerID, dealID string) (*domain.Deal, error) {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Start",
		trace.WithAttributes(attribute.String("deal.id", dealID)),
	)
	defer span.End()

	d, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.PartnerID != partnerID {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TransitionDealStatus(ctx, tx, dealID,
			[]string{domain.DealStatusAccepted}, domain.DealStatusInProgress,
			map[string]any{"started_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		_, err = repo.TransitionWishStatus(ctx, tx, d.WishID,
			[]string{domain.WishStatusAccepted}, domain.WishStatusInProgress, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	d, err = s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if w, err := repo.GetWish(ctx, s.DB, d.WishID); err == nil {
		s.Notify.UserEvent(w.WisherID, DealUpdateEvent(d))
	}
	return d, nil
}

// Complete finishes an in-progress deal. In one transaction the deal and
// wish go terminal, the negotiated price is credited as a service earning,
// the partner's totals are bumped, availability flips back, and the room
// completes.
func (s *DealService) Complete(ctx context.Context, partnerID, dealID string) (*domain.Deal, error) {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Complete",
		trace.WithAttributes(attribute.String("deal.id", dealID)),
	)
	defer span.End()

	d, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.PartnerID != partnerID {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TransitionDealStatus(ctx, tx, dealID,
			[]string{domain.DealStatusInProgress}, domain.DealStatusCompleted,
			map[string]any{"completed_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if _, err := repo.TransitionWishStatus(ctx, tx, d.WishID,
			[]string{domain.WishStatusInProgress}, domain.WishStatusCompleted, nil); err != nil {
			return err
		}
		if err := repo.CreateEarning(ctx, tx, &domain.EarningsRecord{
			PartnerID:   partnerID,
			DealID:      &dealID,
			WishID:      &d.WishID,
			Amount:      d.CurrentPrice,
			Type:        domain.EarningService,
			Description: fmt.Sprintf("Deal completed at %.2f", d.CurrentPrice),
		}); err != nil {
			return err
		}
		if err := repo.IncrementPartnerTotals(ctx, tx, partnerID, d.CurrentPrice); err != nil {
			return err
		}
		if err := repo.UpdatePartnerStatus(ctx, tx, partnerID, domain.PartnerAvailable); err != nil {
			return err
		}
		return repo.UpdateRoomStatus(ctx, tx, d.RoomID, domain.RoomStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	d, err = s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if w, err := repo.GetWish(ctx, s.DB, d.WishID); err == nil {
		s.Notify.UserEvent(w.WisherID, DealUpdateEvent(d))
	}
	return d, nil
}

// Get returns a deal visible to userID (the wish's requester or the deal's
// partner), offers included.
func (s *DealService) Get(ctx context.Context, userID, dealID string) (*domain.Deal, error) {
	d, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.PartnerID != userID {
		w, err := repo.GetWish(ctx, s.DB, d.WishID)
		if err != nil {
			return nil, err
		}
		if w.WisherID != userID {
			return nil, ErrForbidden
		}
	}
	return d, nil
}

// ListForPartner returns the partner's deals, most recent first.
func (s *DealService) ListForPartner(ctx context.Context, partnerID string, limit int) ([]domain.Deal, error) {
	return repo.ListPartnerDeals(ctx, s.DB, partnerID, limit)
}

func (s *DealService) getDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	d, err := repo.GetDeal(ctx, s.DB, dealID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}
