// Package services – OrderService
//
// This file implements the shop order pipeline. The vendor drives the shop
// side (pending → confirmed → preparing → ready), the assigned agent drives
// the street side (picked_up → on_the_way → nearby → delivered), and every
// successful transition appends exactly one audit entry in the same
// transaction as the status write.
//
// Delivery settles money on the delivered transition: the vendor's share of
// the total and (for agent deliveries) the delivery fee are credited in one
// transaction with the status write, so the ledger can never record a
// delivery that did not happen.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/geo"
	"github.com/wishloop/go-market-backend/internal/repo"
)

// Audit log lines, one per pipeline step.
const (
	historyPlaced    = "Order placed"
	historyConfirmed = "Order confirmed by shop"
	historyPreparing = "Shop is preparing your order"
	historyReady     = "Order is ready"
	historyPickedUp  = "Agent picked up your order"
	historyOnTheWay  = "Agent is on the way"
	historyNearby    = "Agent is nearby"
	historyDelivered = "Order delivered"
	historyCancelled = "Order cancelled"
)

// statusAgentAssigned is the audit-only marker for a successful claim; it is
// not a lifecycle status, so it never appears on the order row itself.
const statusAgentAssigned = "agent_assigned"

// OrderService owns the shop order lifecycle for vendors, agents, and
// customers.
type OrderService struct {
	DB     *gorm.DB
	Notify Notifier

	// VendorShare is the fraction of the order total credited to the vendor
	// on delivery. The remainder is the platform margin.
	VendorShare float64

	// SpeedKmh is the assumed courier speed for ETA estimates.
	SpeedKmh float64
}

// NewOrderService constructs an OrderService with the standard revenue split.
func NewOrderService(db *gorm.DB, notify Notifier) *OrderService {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &OrderService{DB: db, Notify: notify, VendorShare: 0.9, SpeedKmh: geo.DefaultSpeedKmh}
}

// OrderItemInput is one line item of a new order.
type OrderItemInput struct {
	Name      string
	Quantity  int
	UnitPrice float64
}

// CreateOrderInput is the payload for placing an order.
type CreateOrderInput struct {
	VendorID        string
	DeliveryAddress string
	DeliveryLat     float64
	DeliveryLng     float64
	DeliveryType    string
	DeliveryFee     float64
	Items           []OrderItemInput
}

// Create places an order with the vendor in the pending status. The total is
// computed from the line items; the audit log opens with the placement
// entry in the same transaction.
func (s *OrderService) Create(ctx context.Context, customerID string, in CreateOrderInput) (*domain.ShopOrder, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", customerID),
			attribute.String("vendor.id", in.VendorID),
		),
	)
	defer span.End()

	if len(in.Items) == 0 {
		return nil, ErrValidation
	}
	switch in.DeliveryType {
	case domain.DeliverySelfPickup, domain.DeliveryByVendor, domain.DeliveryByAgent:
	default:
		return nil, ErrValidation
	}
	var total float64
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			return nil, ErrValidation
		}
		total += float64(it.Quantity) * it.UnitPrice
		items = append(items, domain.OrderItem{Name: name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	if total <= 0 {
		return nil, ErrValidation
	}

	vendor, err := repo.GetPartner(ctx, s.DB, in.VendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if vendor.Role != domain.RoleVendor || vendor.Vendor == nil {
		return nil, ErrValidation
	}

	o := &domain.ShopOrder{
		CustomerID:      customerID,
		VendorID:        in.VendorID,
		VendorName:      vendor.Vendor.ShopName,
		TotalAmount:     total,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		DeliveryLat:     in.DeliveryLat,
		DeliveryLng:     in.DeliveryLng,
		DeliveryType:    in.DeliveryType,
		DeliveryFee:     in.DeliveryFee,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   "pending",
		Items:           items,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateOrder(ctx, tx, o); err != nil {
			return err
		}
		return repo.AppendStatusEntry(ctx, tx, o.ID, domain.OrderStatusPending, historyPlaced)
	})
	if err != nil {
		return nil, err
	}

	s.Notify.UserEvent(in.VendorID, OrderStatusEvent(o))
	return o, nil
}

// Get returns an order visible to userID: its customer, its vendor, or its
// assigned agent.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*domain.ShopOrder, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if o.CustomerID != userID && o.VendorID != userID && !agentAssigned(o, userID) {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListForCustomer returns the customer's orders, most recent first.
func (s *OrderService) ListForCustomer(ctx context.Context, customerID string, limit int) ([]domain.ShopOrder, error) {
	return repo.ListCustomerOrders(ctx, s.DB, customerID, limit)
}

// ListForVendor returns the vendor's orders, most recent first.
func (s *OrderService) ListForVendor(ctx context.Context, vendorID string, limit int) ([]domain.ShopOrder, error) {
	return repo.ListVendorOrders(ctx, s.DB, vendorID, limit)
}

// ListAvailableForAgent returns unassigned agent-delivery orders an agent can
// claim.
func (s *OrderService) ListAvailableForAgent(ctx context.Context, limit int) ([]domain.ShopOrder, error) {
	return repo.ListAvailableOrders(ctx, s.DB, limit)
}

// ListForAgent returns the agent's orders in the given statuses.
func (s *OrderService) ListForAgent(ctx context.Context, agentID string, statuses []string, limit int) ([]domain.ShopOrder, error) {
	return repo.ListAgentOrders(ctx, s.DB, agentID, statuses, limit)
}

// Confirm is the vendor acknowledging a pending order.
func (s *OrderService) Confirm(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error) {
	return s.vendorTransition(ctx, vendorID, orderID, domain.OrderStatusPending, domain.OrderStatusConfirmed, historyConfirmed)
}

// Prepare marks a confirmed order as in preparation.
func (s *OrderService) Prepare(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error) {
	return s.vendorTransition(ctx, vendorID, orderID, domain.OrderStatusConfirmed, domain.OrderStatusPreparing, historyPreparing)
}

// Ready marks the order as ready for pickup or delivery.
func (s *OrderService) Ready(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error) {
	return s.vendorTransition(ctx, vendorID, orderID, domain.OrderStatusPreparing, domain.OrderStatusReady, historyReady)
}

// DeliverByVendor completes a self-pickup or vendor-delivery order from the
// ready status. Agent-delivery orders finish through the agent path instead.
// The vendor's sale share is credited in the same transaction.
func (s *OrderService) DeliverByVendor(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "DeliverByVendor",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	o, err := s.vendorOrder(ctx, vendorID, orderID)
	if err != nil {
		return nil, err
	}
	if o.DeliveryType == domain.DeliveryByAgent {
		return nil, ErrInvalidTransition
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TransitionOrderStatus(ctx, tx, orderID, domain.OrderStatusReady, domain.OrderStatusDelivered)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if err := repo.AppendStatusEntry(ctx, tx, orderID, domain.OrderStatusDelivered, historyDelivered); err != nil {
			return err
		}
		return s.creditVendorSale(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, orderID, o.CustomerID)
}

// CancelByVendor withdraws an order that has not started preparation.
func (s *OrderService) CancelByVendor(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error) {
	o, err := s.vendorOrder(ctx, vendorID, orderID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, o)
}

// CancelByCustomer withdraws the customer's own order while it is still
// pending or confirmed.
func (s *OrderService) CancelByCustomer(ctx context.Context, customerID, orderID string) (*domain.ShopOrder, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrForbidden
	}
	return s.cancel(ctx, o)
}

func (s *OrderService) cancel(ctx context.Context, o *domain.ShopOrder) (*domain.ShopOrder, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, from := range []string{domain.OrderStatusPending, domain.OrderStatusConfirmed} {
			ok, err := repo.TransitionOrderStatus(ctx, tx, o.ID, from, domain.OrderStatusCancelled)
			if err != nil {
				return err
			}
			if ok {
				return repo.AppendStatusEntry(ctx, tx, o.ID, domain.OrderStatusCancelled, historyCancelled)
			}
		}
		return ErrInvalidTransition
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, o.ID, o.CustomerID)
}

// RequestAgentDelivery converts the order to agent delivery and returns it
// to the claim pool.
func (s *OrderService) RequestAgentDelivery(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error) {
	o, err := s.vendorOrder(ctx, vendorID, orderID)
	if err != nil {
		return nil, err
	}
	if domain.TerminalOrderStatus(o.Status) {
		return nil, ErrTerminal
	}
	ok, err := repo.MarkOrderForAgentDelivery(ctx, s.DB, orderID, vendorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return repo.GetOrder(ctx, s.DB, orderID)
}

// AcceptByAgent claims an unassigned agent-delivery order. Exactly one agent
// wins a contested claim. The claim writes its own audit entry and flips the
// agent to busy; claiming a ready order additionally advances it straight to
// picked_up.
func (s *OrderService) AcceptByAgent(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "AcceptByAgent",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("partner.id", agentID),
		),
	)
	defer span.End()

	agent, err := repo.GetPartner(ctx, s.DB, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if agent.Role != domain.RoleAgent {
		return nil, ErrForbidden
	}

	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if domain.TerminalOrderStatus(o.Status) {
		return nil, ErrTerminal
	}

	toStatus := o.Status
	pickedUp := o.Status == domain.OrderStatusReady
	if pickedUp {
		toStatus = domain.OrderStatusPickedUp
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.ClaimOrderAgent(ctx, tx, orderID, agentID, toStatus)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyAssigned
		}
		if err := repo.AppendStatusEntry(ctx, tx, orderID, statusAgentAssigned,
			"Agent "+agent.Name+" accepted the order"); err != nil {
			return err
		}
		if pickedUp {
			if err := repo.AppendStatusEntry(ctx, tx, orderID, domain.OrderStatusPickedUp, historyPickedUp); err != nil {
				return err
			}
		}
		return repo.UpdatePartnerStatus(ctx, tx, agentID, domain.PartnerBusy)
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, orderID, o.CustomerID)
}

// PickUp is the assigned agent collecting a ready order.
func (s *OrderService) PickUp(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error) {
	return s.agentTransition(ctx, agentID, orderID, domain.OrderStatusReady, domain.OrderStatusPickedUp, historyPickedUp)
}

// OnTheWay marks the delivery as en route.
func (s *OrderService) OnTheWay(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error) {
	return s.agentTransition(ctx, agentID, orderID, domain.OrderStatusPickedUp, domain.OrderStatusOnTheWay, historyOnTheWay)
}

// Nearby marks the agent as close to the drop-off point.
func (s *OrderService) Nearby(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error) {
	return s.agentTransition(ctx, agentID, orderID, domain.OrderStatusOnTheWay, domain.OrderStatusNearby, historyNearby)
}

// ReportDeliveryLocation stores the assigned agent's live position during a
// delivery. The write lands in the partner's single location row, so order
// tracking and wish tracking read the same feed. Last write wins.
func (s *OrderService) ReportDeliveryLocation(ctx context.Context, agentID, orderID string, lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrValidation
	}
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !agentAssigned(o, agentID) {
		return ErrNotAssigned
	}
	return repo.UpsertLocation(ctx, s.DB, &domain.PartnerLocation{
		PartnerID: agentID,
		Lat:       lat,
		Lng:       lng,
		Online:    true,
	})
}

// Deliver completes an agent delivery. One transaction writes the terminal
// status and the audit entry, credits the delivery fee to the agent and the
// sale share to the vendor, bumps both partners' totals, and frees the
// agent.
func (s *OrderService) Deliver(ctx context.Context, agentID, orderID string) (*domain.ShopOrder, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Deliver",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("partner.id", agentID),
		),
	)
	defer span.End()

	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !agentAssigned(o, agentID) {
		return nil, ErrNotAssigned
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TransitionOrderStatus(ctx, tx, orderID, domain.OrderStatusNearby, domain.OrderStatusDelivered)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if err := repo.AppendStatusEntry(ctx, tx, orderID, domain.OrderStatusDelivered, historyDelivered); err != nil {
			return err
		}
		if o.DeliveryFee > 0 {
			if err := repo.CreateEarning(ctx, tx, &domain.EarningsRecord{
				PartnerID:   agentID,
				OrderID:     &orderID,
				Amount:      o.DeliveryFee,
				Type:        domain.EarningDelivery,
				Description: "Delivery fee for order from " + o.VendorName,
			}); err != nil {
				return err
			}
			if err := repo.IncrementPartnerTotals(ctx, tx, agentID, o.DeliveryFee); err != nil {
				return err
			}
		}
		if err := s.creditVendorSale(ctx, tx, o); err != nil {
			return err
		}
		return repo.UpdatePartnerStatus(ctx, tx, agentID, domain.PartnerAvailable)
	})
	if err != nil {
		return nil, err
	}
	out, err := s.finish(ctx, orderID, o.CustomerID)
	if err == nil {
		s.Notify.UserEvent(o.VendorID, OrderStatusEvent(out))
	}
	return out, err
}

// ETAMinutes estimates the remaining travel time from the agent's last
// reported position to the drop-off point, in whole minutes. It returns
// ok=false when no position or destination is known.
func (s *OrderService) ETAMinutes(ctx context.Context, orderID string) (int, bool, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, ErrNotFound
		}
		return 0, false, err
	}
	if o.AssignedAgentID == nil || (o.DeliveryLat == 0 && o.DeliveryLng == 0) {
		return 0, false, nil
	}
	loc, err := repo.GetLocation(ctx, s.DB, *o.AssignedAgentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	d := geo.DistanceKm(loc.Lat, loc.Lng, o.DeliveryLat, o.DeliveryLng)
	return geo.ETAMinutes(d, s.SpeedKmh), true, nil
}

func (s *OrderService) creditVendorSale(ctx context.Context, tx *gorm.DB, o *domain.ShopOrder) error {
	share := s.VendorShare
	if share <= 0 || share > 1 {
		share = 0.9
	}
	amount := o.TotalAmount * share
	if err := repo.CreateEarning(ctx, tx, &domain.EarningsRecord{
		PartnerID:   o.VendorID,
		OrderID:     &o.ID,
		Amount:      amount,
		Type:        domain.EarningSale,
		Description: "Sale proceeds for delivered order",
	}); err != nil {
		return err
	}
	return repo.IncrementPartnerTotals(ctx, tx, o.VendorID, amount)
}

func (s *OrderService) vendorOrder(ctx context.Context, vendorID, orderID string) (*domain.ShopOrder, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if o.VendorID != vendorID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *OrderService) vendorTransition(ctx context.Context, vendorID, orderID, from, to, note string) (*domain.ShopOrder, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "VendorTransition",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("order.to_status", to),
		),
	)
	defer span.End()

	o, err := s.vendorOrder(ctx, vendorID, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, from, to, note)
}

func (s *OrderService) agentTransition(ctx context.Context, agentID, orderID, from, to, note string) (*domain.ShopOrder, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "AgentTransition",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("order.to_status", to),
		),
	)
	defer span.End()

	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !agentAssigned(o, agentID) {
		return nil, ErrNotAssigned
	}
	return s.transition(ctx, o, from, to, note)
}

// transition applies one guarded status move with its audit entry, then
// notifies the customer.
func (s *OrderService) transition(ctx context.Context, o *domain.ShopOrder, from, to, note string) (*domain.ShopOrder, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TransitionOrderStatus(ctx, tx, o.ID, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		return repo.AppendStatusEntry(ctx, tx, o.ID, to, note)
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, o.ID, o.CustomerID)
}

// finish reloads the order and pushes the status event to the customer.
func (s *OrderService) finish(ctx context.Context, orderID, customerID string) (*domain.ShopOrder, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		return nil, err
	}
	s.Notify.UserEvent(customerID, OrderStatusEvent(o))
	return o, nil
}

func agentAssigned(o *domain.ShopOrder, agentID string) bool {
	return o.AssignedAgentID != nil && *o.AssignedAgentID == agentID
}
