package services

import (
	"context"
	"errors"
	"testing"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/repo"
)

func placeOrder(t *testing.T, svc *OrderService, deliveryType string) *domain.ShopOrder {
	t.Helper()
	o, err := svc.Create(context.Background(), "cust-1", CreateOrderInput{
		VendorID:        "vendor-1",
		DeliveryAddress: "12 Elm St",
		DeliveryLat:     40.41,
		DeliveryLng:     -3.70,
		DeliveryType:    deliveryType,
		DeliveryFee:     300,
		Items: []OrderItemInput{
			{Name: "Sandwich", Quantity: 2, UnitPrice: 1200},
			{Name: "Juice", Quantity: 1, UnitPrice: 600},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestOrder_Create_TotalsFromItems(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	svc := NewOrderService(db, nil)

	o := placeOrder(t, svc, domain.DeliveryByAgent)
	if o.TotalAmount != 3000 {
		t.Fatalf("total = %v, want 3000", o.TotalAmount)
	}
	if o.Status != domain.OrderStatusPending {
		t.Fatalf("status = %q, want pending", o.Status)
	}
	if o.VendorName != "Corner Deli" {
		t.Fatalf("vendor name = %q", o.VendorName)
	}

	n, err := repo.CountStatusEntries(context.Background(), db, o.ID)
	if err != nil {
		t.Fatalf("count history: %v", err)
	}
	if n != 1 {
		t.Fatalf("history after placement = %d, want 1", n)
	}
}

func TestOrder_Create_Validation(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	svc := NewOrderService(db, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "cust-1", CreateOrderInput{
		VendorID: "vendor-1", DeliveryType: domain.DeliveryByAgent,
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("no items: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Create(ctx, "cust-1", CreateOrderInput{
		VendorID:     "vendor-1",
		DeliveryType: "parachute",
		Items:        []OrderItemInput{{Name: "x", Quantity: 1, UnitPrice: 1}},
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad delivery type: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Create(ctx, "cust-1", CreateOrderInput{
		VendorID:     "missing",
		DeliveryType: domain.DeliveryByAgent,
		Items:        []OrderItemInput{{Name: "x", Quantity: 1, UnitPrice: 1}},
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing vendor: expected ErrNotFound, got %v", err)
	}
}

func TestOrder_AgentDelivery_FullPipeline(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	seedAgent(t, db, "agent-1", "delivery")
	svc := NewOrderService(db, &recordingNotifier{})
	ctx := context.Background()

	o := placeOrder(t, svc, domain.DeliveryByAgent)

	if _, err := svc.Confirm(ctx, "vendor-1", o.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Prepare(ctx, "vendor-1", o.ID); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := svc.Ready(ctx, "vendor-1", o.ID); err != nil {
		t.Fatalf("ready: %v", err)
	}

	// Claiming a ready order goes straight to picked_up.
	claimed, err := svc.AcceptByAgent(ctx, "agent-1", o.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if claimed.Status != domain.OrderStatusPickedUp {
		t.Fatalf("status after claim = %q, want picked_up", claimed.Status)
	}

	if _, err := svc.OnTheWay(ctx, "agent-1", o.ID); err != nil {
		t.Fatalf("on the way: %v", err)
	}
	if _, err := svc.Nearby(ctx, "agent-1", o.ID); err != nil {
		t.Fatalf("nearby: %v", err)
	}
	final, err := svc.Deliver(ctx, "agent-1", o.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if final.Status != domain.OrderStatusDelivered {
		t.Fatalf("status = %q, want delivered", final.Status)
	}

	// One audit entry per step: placed, confirmed, preparing, ready,
	// agent_assigned, picked_up, on_the_way, nearby, delivered.
	if len(final.StatusHistory) != 9 {
		t.Fatalf("history length = %d, want 9", len(final.StatusHistory))
	}
	if final.StatusHistory[4].Status != statusAgentAssigned {
		t.Fatalf("claim entry = %+v, want agent_assigned", final.StatusHistory[4])
	}
	if final.StatusHistory[8].Status != domain.OrderStatusDelivered {
		t.Fatalf("last entry = %+v", final.StatusHistory[8])
	}

	// Agent earns the delivery fee; vendor earns 90% of the total.
	agentRecords, _ := repo.ListEarnings(ctx, db, "agent-1", 0)
	if len(agentRecords) != 1 || agentRecords[0].Amount != 300 || agentRecords[0].Type != domain.EarningDelivery {
		t.Fatalf("agent earnings = %+v", agentRecords)
	}
	vendorRecords, _ := repo.ListEarnings(ctx, db, "vendor-1", 0)
	if len(vendorRecords) != 1 || vendorRecords[0].Amount != 2700 || vendorRecords[0].Type != domain.EarningSale {
		t.Fatalf("vendor earnings = %+v", vendorRecords)
	}

	agent, _ := repo.GetPartner(ctx, db, "agent-1")
	if agent.TotalEarnings != 300 || agent.Status != domain.PartnerAvailable {
		t.Fatalf("agent totals/status = %v/%q", agent.TotalEarnings, agent.Status)
	}
	vendor, _ := repo.GetPartner(ctx, db, "vendor-1")
	if vendor.TotalEarnings != 2700 {
		t.Fatalf("vendor totals = %v", vendor.TotalEarnings)
	}
}

func TestOrder_AcceptByAgent_RaceOneWinner(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	seedAgent(t, db, "agent-1", "delivery")
	seedAgent(t, db, "agent-2", "delivery")
	svc := NewOrderService(db, nil)
	ctx := context.Background()

	o := placeOrder(t, svc, domain.DeliveryByAgent)
	if _, err := svc.Confirm(ctx, "vendor-1", o.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := svc.AcceptByAgent(ctx, "agent-1", o.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := svc.AcceptByAgent(ctx, "agent-2", o.ID); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("second claim: expected ErrAlreadyAssigned, got %v", err)
	}

	got, _ := repo.GetOrder(ctx, db, o.ID)
	if got.AssignedAgentID == nil || *got.AssignedAgentID != "agent-1" {
		t.Fatalf("assignee = %v, want agent-1", got.AssignedAgentID)
	}
	// Claimed before ready: the lifecycle status is unchanged, but the claim
	// itself is on the record and the winner is busy.
	if got.Status != domain.OrderStatusConfirmed {
		t.Fatalf("status = %q, want confirmed", got.Status)
	}
	if len(got.StatusHistory) != 3 || got.StatusHistory[2].Status != statusAgentAssigned {
		t.Fatalf("history = %+v, want placed/confirmed/agent_assigned", got.StatusHistory)
	}
	winner, _ := repo.GetPartner(ctx, db, "agent-1")
	if winner.Status != domain.PartnerBusy {
		t.Fatalf("winner status = %q, want busy", winner.Status)
	}
	loser, _ := repo.GetPartner(ctx, db, "agent-2")
	if loser.Status != domain.PartnerAvailable {
		t.Fatalf("loser status = %q, want available", loser.Status)
	}
}

func TestOrder_ReportDeliveryLocation(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	seedAgent(t, db, "agent-1", "delivery")
	seedAgent(t, db, "agent-2", "delivery")
	svc := NewOrderService(db, nil)
	ctx := context.Background()

	o := placeOrder(t, svc, domain.DeliveryByAgent)
	if _, err := svc.Confirm(ctx, "vendor-1", o.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.AcceptByAgent(ctx, "agent-1", o.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := svc.ReportDeliveryLocation(ctx, "agent-1", o.ID, 13.75, 100.5); err != nil {
		t.Fatalf("report location: %v", err)
	}
	loc, err := repo.GetLocation(ctx, db, "agent-1")
	if err != nil {
		t.Fatalf("get location: %v", err)
	}
	if loc.Lat != 13.75 || loc.Lng != 100.5 || !loc.Online {
		t.Fatalf("location = %+v", loc)
	}

	// Only the assigned agent may report for the order.
	if err := svc.ReportDeliveryLocation(ctx, "agent-2", o.ID, 1, 2); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned, got %v", err)
	}
	if err := svc.ReportDeliveryLocation(ctx, "agent-1", o.ID, 91, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestOrder_VendorDelivery_PaysSaleShare(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	svc := NewOrderService(db, nil)
	ctx := context.Background()

	o := placeOrder(t, svc, domain.DeliveryByVendor)
	for _, step := range []func(context.Context, string, string) (*domain.ShopOrder, error){
		svc.Confirm, svc.Prepare, svc.Ready,
	} {
		if _, err := step(ctx, "vendor-1", o.ID); err != nil {
			t.Fatalf("vendor step: %v", err)
		}
	}
	final, err := svc.DeliverByVendor(ctx, "vendor-1", o.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if final.Status != domain.OrderStatusDelivered {
		t.Fatalf("status = %q, want delivered", final.Status)
	}
	records, _ := repo.ListEarnings(ctx, db, "vendor-1", 0)
	if len(records) != 1 || records[0].Amount != 2700 {
		t.Fatalf("vendor earnings = %+v, want one sale record of 2700", records)
	}
}

func TestOrder_DeliverByVendor_RejectsAgentOrders(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	svc := NewOrderService(db, nil)
	ctx := context.Background()

	o := placeOrder(t, svc, domain.DeliveryByAgent)
	if _, err := svc.DeliverByVendor(ctx, "vendor-1", o.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestOrder_Transitions_RejectSkips(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	svc := NewOrderService(db, nil)
	ctx := context.Background()

	o := placeOrder(t, svc, domain.DeliveryByAgent)

	// pending → ready skips two states.
	if _, err := svc.Ready(ctx, "vendor-1", o.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	// Nothing was appended for the failed attempt.
	n, _ := repo.CountStatusEntries(ctx, db, o.ID)
	if n != 1 {
		t.Fatalf("history = %d, want 1", n)
	}
}

func TestOrder_Cancel_OnlyEarly(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	svc := NewOrderService(db, nil)
	ctx := context.Background()

	o := placeOrder(t, svc, domain.DeliveryByAgent)
	got, err := svc.CancelByCustomer(ctx, "cust-1", o.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}

	o2 := placeOrder(t, svc, domain.DeliveryByAgent)
	for _, step := range []func(context.Context, string, string) (*domain.ShopOrder, error){
		svc.Confirm, svc.Prepare,
	} {
		if _, err := step(ctx, "vendor-1", o2.ID); err != nil {
			t.Fatalf("vendor step: %v", err)
		}
	}
	if _, err := svc.CancelByVendor(ctx, "vendor-1", o2.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel after preparing: expected ErrInvalidTransition, got %v", err)
	}
}

func TestOrder_RequestAgentDelivery_ReopensClaimPool(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	svc := NewOrderService(db, nil)
	ctx := context.Background()

	o := placeOrder(t, svc, domain.DeliverySelfPickup)
	if _, err := svc.Confirm(ctx, "vendor-1", o.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got, err := svc.RequestAgentDelivery(ctx, "vendor-1", o.ID)
	if err != nil {
		t.Fatalf("request agent: %v", err)
	}
	if got.DeliveryType != domain.DeliveryByAgent {
		t.Fatalf("delivery type = %q, want agent_delivery", got.DeliveryType)
	}

	pool, err := svc.ListAvailableForAgent(ctx, 10)
	if err != nil {
		t.Fatalf("list pool: %v", err)
	}
	if len(pool) != 1 || pool[0].ID != o.ID {
		t.Fatalf("pool = %+v, want the converted order", pool)
	}
}

func TestOrder_ETAMinutes(t *testing.T) {
	db := newTestDB(t)
	seedVendor(t, db, "vendor-1", "Corner Deli")
	seedAgent(t, db, "agent-1", "delivery")
	svc := NewOrderService(db, nil)
	partners := NewPartnerService(db)
	ctx := context.Background()

	o := placeOrder(t, svc, domain.DeliveryByAgent)
	if _, err := svc.Confirm(ctx, "vendor-1", o.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.AcceptByAgent(ctx, "agent-1", o.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Without a reported position there is no estimate.
	if _, ok, err := svc.ETAMinutes(ctx, o.ID); err != nil || ok {
		t.Fatalf("eta before location: ok=%v err=%v", ok, err)
	}

	if err := partners.ReportLocation(ctx, "agent-1", 40.45, -3.70, 0, 0); err != nil {
		t.Fatalf("report location: %v", err)
	}
	mins, ok, err := svc.ETAMinutes(ctx, o.ID)
	if err != nil || !ok {
		t.Fatalf("eta: ok=%v err=%v", ok, err)
	}
	// ~4.4 km at 25 km/h is around 11 minutes.
	if mins < 5 || mins > 20 {
		t.Fatalf("eta = %d minutes, out of plausible range", mins)
	}
}
