// Handler wiring.
//
// This file declares the service contracts consumed by the HTTP layer and the
// Handlers aggregate that binds them. Handlers are transport-thin: they
// validate input, call application services, and translate results into HTTP
// responses. Business rules (claim races, status machines, settlement) live in
// the services package.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/http/middleware"
	"github.com/wishloop/go-market-backend/internal/services"
	"github.com/wishloop/go-market-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// WishService defines wish lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type WishService interface {
	Create(ctx context.Context, wisherID string, in services.CreateWishInput) (*domain.Wish, error)
	Get(ctx context.Context, userID, wishID string) (*domain.Wish, error)
	Track(ctx context.Context, wishID string) (*services.WishTracking, error)
	ListForWisher(ctx context.Context, wisherID string, limit int) ([]domain.Wish, error)
	ListAssigned(ctx context.Context, partnerID string, limit int) ([]domain.Wish, error)
	ListAvailable(ctx context.Context, partnerID string, limit int) ([]domain.Wish, error)
	Accept(ctx context.Context, partnerID, wishID string) (*domain.Wish, *domain.ChatRoom, error)
	Decline(ctx context.Context, partnerID, wishID string) error
	Start(ctx context.Context, partnerID, wishID string) (*domain.Wish, error)
	Complete(ctx context.Context, partnerID, wishID string) (*domain.Wish, error)
	Cancel(ctx context.Context, wisherID, wishID string) (*domain.Wish, error)
}

// DealService defines negotiation operations consumed by HTTP handlers.
type DealService interface {
	Propose(ctx context.Context, partnerID, wishID string, in services.ProposeInput) (*domain.Deal, error)
	Counter(ctx context.Context, partnerID, dealID string, in services.ProposeInput) (*domain.Deal, error)
	Accept(ctx context.Context, wisherID, dealID string) (*domain.Deal, error)
	Reject(ctx context.Context, wisherID, dealID string) (*domain.Deal, error)
	Start(ctx context.Context, partnerID, dealID string) (*domain.Deal, error)
	Complete(ctx context.Context, partnerID, dealID string) (*domain.Deal, error)
	Get(ctx context.Context, userID, dealID string) (*domain.Deal, error)
	ListForPartner(ctx context.Context, partnerID string, limit int) ([]domain.Deal, error)
}

// OrderService defines shop order operations consumed by HTTP handlers.
type OrderService interface {
	Create(ctx context.Context, customerID string, in services.CreateOrderInput) (*domain.ShopOrder, error)
	Get(ctx context.Context, userID, orderID string) (*domain.ShopOrder, error)
	ListForCustomer(ctx context.Context, customerID string, limit int) ([]domain.ShopOrder, error)
	ListForVendor(ctx context.Context, vendorID string, limit int) ([]domain.ShopOrder, error)
	ListAvailableForAgent(ctx context.Context, limit int) ([]domain.ShopOrder, error)
	ListForAgent(ctx context.Context, agentID string, statuses []string, limit int) ([]domain.ShopOrder, error)
	Confirm(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error)
	Prepare(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error)
	Ready(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error)
	DeliverByVendor(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error)
	CancelByVendor(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error)
	CancelByCustomer(ctx context.Context, customerID, orderID string) (*domain.ShopOrder, error)
	RequestAgentDelivery(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error)
	AcceptByAgent(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error)
	PickUp(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error)
	OnTheWay(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error)
	Nearby(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error)
	Deliver(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error)
	ReportDeliveryLocation(ctx context.Context, agentID, orderID string, lat, lng float64) error
	ETAMinutes(ctx context.Context, orderID string) (int, bool, error)
}

// PartnerService defines partner profile operations consumed by HTTP handlers.
type PartnerService interface {
	Get(ctx context.Context, partnerID string) (*domain.Partner, error)
	SetStatus(ctx context.Context, partnerID, status string) error
	Stats(ctx context.Context, partnerID string) (*services.PartnerStats, error)
	ReportLocation(ctx context.Context, partnerID string, lat, lng, heading, speedKmh float64) error
	Location(ctx context.Context, partnerID string) (*domain.PartnerLocation, error)
}

// EarningsService defines ledger read operations consumed by HTTP handlers.
type EarningsService interface {
	Summary(ctx context.Context, partnerID string) (*services.EarningsSummary, error)
	List(ctx context.Context, partnerID string, limit int) ([]domain.EarningsRecord, error)
}

// ChatService defines messaging operations consumed by HTTP handlers.
type ChatService interface {
	ListRooms(ctx context.Context, userID string, limit int) ([]services.RoomView, error)
	Room(ctx context.Context, userID, roomID string) (*domain.ChatRoom, error)
	Messages(ctx context.Context, userID, roomID string, limit int) ([]domain.Message, error)
	Send(ctx context.Context, userID, roomID, content string) (*domain.Message, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for wishes, deals, orders, partners,
// earnings, and chat. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	wishSvc    WishService
	dealSvc    DealService
	orderSvc   OrderService
	partnerSvc PartnerService
	earnSvc    EarningsService
	chatSvc    ChatService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(wishSvc WishService, dealSvc DealService, orderSvc OrderService, partnerSvc PartnerService, earnSvc EarningsService, chatSvc ChatService) *Handlers {
	return &Handlers{
		wishSvc:    wishSvc,
		dealSvc:    dealSvc,
		orderSvc:   orderSvc,
		partnerSvc: partnerSvc,
		earnSvc:    earnSvc,
		chatSvc:    chatSvc,
	}
}

// userID extracts the authenticated user id from Gin context (set by the auth
// middleware). If absent, it falls back to the "X-User-ID" header (tests use
// it). It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if s := middleware.UserID(c); s != "" {
		return s
	}
	if c != nil && c.Request != nil {
		if h := c.GetHeader("X-User-ID"); h != "" {
			return h
		}
	}
	return ""
}

// clampLimit parses and bounds the `limit` query param, returning a value in
// [1, maxLimit] with a sensible default.
func clampLimit(c *gin.Context) int {
	const (
		defaultLimit = 50
		maxLimit     = 200
	)
	n := utils.AtoiDefault(c.Query("limit"), defaultLimit)
	if n < 1 {
		n = 1
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n
}
