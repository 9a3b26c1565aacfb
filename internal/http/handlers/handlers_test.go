package handlers

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/services"
)

// ---- stubs to satisfy handlers.New() dependencies ----
//
// Each stub exposes function fields for the methods a test exercises; the
// rest return zero values.

type stubWishSvc struct {
	create   func(ctx context.Context, wisherID string, in services.CreateWishInput) (*domain.Wish, error)
	get      func(ctx context.Context, userID, wishID string) (*domain.Wish, error)
	accept   func(ctx context.Context, partnerID, wishID string) (*domain.Wish, *domain.ChatRoom, error)
	decline  func(ctx context.Context, partnerID, wishID string) error
	complete func(ctx context.Context, partnerID, wishID string) (*domain.Wish, error)
	cancel   func(ctx context.Context, wisherID, wishID string) (*domain.Wish, error)
	track    func(ctx context.Context, wishID string) (*services.WishTracking, error)
}

func (s stubWishSvc) Create(ctx context.Context, wisherID string, in services.CreateWishInput) (*domain.Wish, error) {
	if s.create != nil {
		return s.create(ctx, wisherID, in)
	}
	return &domain.Wish{}, nil
}
func (s stubWishSvc) Get(ctx context.Context, userID, wishID string) (*domain.Wish, error) {
	if s.get != nil {
		return s.get(ctx, userID, wishID)
	}
	return &domain.Wish{}, nil
}
func (s stubWishSvc) Track(ctx context.Context, wishID string) (*services.WishTracking, error) {
	if s.track != nil {
		return s.track(ctx, wishID)
	}
	return &services.WishTracking{}, nil
}
func (stubWishSvc) ListForWisher(context.Context, string, int) ([]domain.Wish, error) {
	return nil, nil
}
func (stubWishSvc) ListAssigned(context.Context, string, int) ([]domain.Wish, error) {
	return nil, nil
}
func (stubWishSvc) ListAvailable(context.Context, string, int) ([]domain.Wish, error) {
	return nil, nil
}
func (s stubWishSvc) Accept(ctx context.Context, partnerID, wishID string) (*domain.Wish, *domain.ChatRoom, error) {
	if s.accept != nil {
		return s.accept(ctx, partnerID, wishID)
	}
	return &domain.Wish{}, &domain.ChatRoom{}, nil
}
func (s stubWishSvc) Decline(ctx context.Context, partnerID, wishID string) error {
	if s.decline != nil {
		return s.decline(ctx, partnerID, wishID)
	}
	return nil
}
func (stubWishSvc) Start(context.Context, string, string) (*domain.Wish, error) {
	return &domain.Wish{}, nil
}
func (s stubWishSvc) Complete(ctx context.Context, partnerID, wishID string) (*domain.Wish, error) {
	if s.complete != nil {
		return s.complete(ctx, partnerID, wishID)
	}
	return &domain.Wish{}, nil
}
func (s stubWishSvc) Cancel(ctx context.Context, wisherID, wishID string) (*domain.Wish, error) {
	if s.cancel != nil {
		return s.cancel(ctx, wisherID, wishID)
	}
	return &domain.Wish{}, nil
}

type stubDealSvc struct {
	propose func(ctx context.Context, partnerID, wishID string, in services.ProposeInput) (*domain.Deal, error)
	accept  func(ctx context.Context, wisherID, dealID string) (*domain.Deal, error)
}

func (s stubDealSvc) Propose(ctx context.Context, partnerID, wishID string, in services.ProposeInput) (*domain.Deal, error) {
	if s.propose != nil {
		return s.propose(ctx, partnerID, wishID, in)
	}
	return &domain.Deal{}, nil
}
func (stubDealSvc) Counter(context.Context, string, string, services.ProposeInput) (*domain.Deal, error) {
	return &domain.Deal{}, nil
}
func (s stubDealSvc) Accept(ctx context.Context, wisherID, dealID string) (*domain.Deal, error) {
	if s.accept != nil {
		return s.accept(ctx, wisherID, dealID)
	}
	return &domain.Deal{}, nil
}
func (stubDealSvc) Reject(context.Context, string, string) (*domain.Deal, error) {
	return &domain.Deal{}, nil
}
func (stubDealSvc) Start(context.Context, string, string) (*domain.Deal, error) {
	return &domain.Deal{}, nil
}
func (stubDealSvc) Complete(context.Context, string, string) (*domain.Deal, error) {
	return &domain.Deal{}, nil
}
func (stubDealSvc) Get(context.Context, string, string) (*domain.Deal, error) {
	return &domain.Deal{}, nil
}
func (stubDealSvc) ListForPartner(context.Context, string, int) ([]domain.Deal, error) {
	return nil, nil
}

type stubOrderSvc struct {
	create       func(ctx context.Context, customerID string, in services.CreateOrderInput) (*domain.ShopOrder, error)
	get          func(ctx context.Context, userID, orderID string) (*domain.ShopOrder, error)
	accept       func(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error)
	deliver      func(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error)
	eta          func(ctx context.Context, orderID string) (int, bool, error)
	listForAgent func(ctx context.Context, agentID string, statuses []string, limit int) ([]domain.ShopOrder, error)
	reportLoc    func(ctx context.Context, agentID, orderID string, lat, lng float64) error
}

func (s stubOrderSvc) Create(ctx context.Context, customerID string, in services.CreateOrderInput) (*domain.ShopOrder, error) {
	if s.create != nil {
		return s.create(ctx, customerID, in)
	}
	return &domain.ShopOrder{}, nil
}
func (s stubOrderSvc) Get(ctx context.Context, userID, orderID string) (*domain.ShopOrder, error) {
	if s.get != nil {
		return s.get(ctx, userID, orderID)
	}
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) ListForCustomer(context.Context, string, int) ([]domain.ShopOrder, error) {
	return nil, nil
}
func (stubOrderSvc) ListForVendor(context.Context, string, int) ([]domain.ShopOrder, error) {
	return nil, nil
}
func (stubOrderSvc) ListAvailableForAgent(context.Context, int) ([]domain.ShopOrder, error) {
	return nil, nil
}
func (s stubOrderSvc) ListForAgent(ctx context.Context, agentID string, statuses []string, limit int) ([]domain.ShopOrder, error) {
	if s.listForAgent != nil {
		return s.listForAgent(ctx, agentID, statuses, limit)
	}
	return nil, nil
}
func (stubOrderSvc) Confirm(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) Prepare(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) Ready(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) DeliverByVendor(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) CancelByVendor(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) CancelByCustomer(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) RequestAgentDelivery(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (s stubOrderSvc) AcceptByAgent(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error) {
	if s.accept != nil {
		return s.accept(ctx, agentID, orderID)
	}
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) PickUp(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) OnTheWay(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (stubOrderSvc) Nearby(context.Context, string, string) (*domain.ShopOrder, error) {
	return &domain.ShopOrder{}, nil
}
func (s stubOrderSvc) Deliver(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error) {
	if s.deliver != nil {
		return s.deliver(ctx, agentID, orderID)
	}
	return &domain.ShopOrder{}, nil
}
func (s stubOrderSvc) ReportDeliveryLocation(ctx context.Context, agentID, orderID string, lat, lng float64) error {
	if s.reportLoc != nil {
		return s.reportLoc(ctx, agentID, orderID, lat, lng)
	}
	return nil
}
func (s stubOrderSvc) ETAMinutes(ctx context.Context, orderID string) (int, bool, error) {
	if s.eta != nil {
		return s.eta(ctx, orderID)
	}
	return 0, false, nil
}

type stubPartnerSvc struct {
	setStatus func(ctx context.Context, partnerID, status string) error
}

func (stubPartnerSvc) Get(context.Context, string) (*domain.Partner, error) {
	return &domain.Partner{}, nil
}
func (s stubPartnerSvc) SetStatus(ctx context.Context, partnerID, status string) error {
	if s.setStatus != nil {
		return s.setStatus(ctx, partnerID, status)
	}
	return nil
}
func (stubPartnerSvc) Stats(context.Context, string) (*services.PartnerStats, error) {
	return &services.PartnerStats{}, nil
}
func (stubPartnerSvc) ReportLocation(context.Context, string, float64, float64, float64, float64) error {
	return nil
}
func (stubPartnerSvc) Location(context.Context, string) (*domain.PartnerLocation, error) {
	return &domain.PartnerLocation{}, nil
}

type stubEarnSvc struct{}

func (stubEarnSvc) Summary(context.Context, string) (*services.EarningsSummary, error) {
	return &services.EarningsSummary{}, nil
}
func (stubEarnSvc) List(context.Context, string, int) ([]domain.EarningsRecord, error) {
	return nil, nil
}

type stubChatSvc struct {
	send func(ctx context.Context, userID, roomID, content string) (*domain.Message, error)
}

func (stubChatSvc) ListRooms(context.Context, string, int) ([]services.RoomView, error) {
	return nil, nil
}
func (stubChatSvc) Room(context.Context, string, string) (*domain.ChatRoom, error) {
	return &domain.ChatRoom{}, nil
}
func (stubChatSvc) Messages(context.Context, string, string, int) ([]domain.Message, error) {
	return nil, nil
}
func (s stubChatSvc) Send(ctx context.Context, userID, roomID, content string) (*domain.Message, error) {
	if s.send != nil {
		return s.send(ctx, userID, roomID, content)
	}
	return &domain.Message{}, nil
}

// newStubbed builds a Handlers with the given overrides; zero-value stubs
// elsewhere.
func newStubbed(w stubWishSvc, d stubDealSvc, o stubOrderSvc, p stubPartnerSvc, c stubChatSvc) *Handlers {
	return New(w, d, o, p, stubEarnSvc{}, c)
}

func TestClampLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		q    string
		want int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=0", 1},
		{"limit=9999", 200},
		{"limit=abc", 50},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/x?"+tc.q, nil)
		if got := clampLimit(c); got != tc.want {
			t.Fatalf("clampLimit(%q) = %d, want %d", tc.q, got, tc.want)
		}
	}
}
