// Shop order HTTP handlers.
//
// Three audiences share the order resource: customers place and track orders,
// vendors run the fulfillment side of the status machine, and agents handle
// the delivery leg. Each audience gets its own route group (see router.go);
// the service layer enforces who may drive which transition.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/services"
)

//
// DTOs
//

// OrderItemRequest is one line item in an order payload.
type OrderItemRequest struct {
	Name      string  `json:"name" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" binding:"required,gt=0"`
}

// CreateOrderRequest is the JSON payload for placing an order.
type CreateOrderRequest struct {
	VendorID        string             `json:"vendor_id" binding:"required"`
	DeliveryAddress string             `json:"delivery_address"`
	DeliveryLat     float64            `json:"delivery_lat"`
	DeliveryLng     float64            `json:"delivery_lng"`
	DeliveryType    string             `json:"delivery_type" binding:"required"`
	DeliveryFee     float64            `json:"delivery_fee"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

//
// Customer endpoints
//

// CreateOrder places an order with a vendor. The total is computed
// server-side from the line items.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	in := services.CreateOrderInput{
		VendorID:        req.VendorID,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryLat:     req.DeliveryLat,
		DeliveryLng:     req.DeliveryLng,
		DeliveryType:    strings.TrimSpace(req.DeliveryType),
		DeliveryFee:     req.DeliveryFee,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, services.OrderItemInput{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	o, err := h.orderSvc.Create(c.Request.Context(), userID(c), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, o)
}

// ListOrders returns the current user's orders, newest first.
func (h *Handlers) ListOrders(c *gin.Context) {
	items, err := h.orderSvc.ListForCustomer(c.Request.Context(), userID(c), clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"orders": items})
}

// GetOrder returns a single order with items and status history.
func (h *Handlers) GetOrder(c *gin.Context) {
	id, okID := orderID(c)
	if !okID {
		return
	}
	o, err := h.orderSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// OrderETA returns the estimated minutes until delivery, based on the
// assigned agent's last reported position. Returns 204 when no estimate is
// available yet.
func (h *Handlers) OrderETA(c *gin.Context) {
	id, okID := orderID(c)
	if !okID {
		return
	}
	// Visibility check rides on Get.
	if _, err := h.orderSvc.Get(c.Request.Context(), userID(c), id); err != nil {
		failErr(c, err)
		return
	}
	mins, known, err := h.orderSvc.ETAMinutes(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	if !known {
		noContent(c)
		return
	}
	ok(c, http.StatusOK, gin.H{"eta_minutes": mins})
}

// CancelOrder cancels an order on behalf of its customer. Only pending and
// confirmed orders can still be cancelled.
func (h *Handlers) CancelOrder(c *gin.Context) {
	h.orderAction(c, h.orderSvc.CancelByCustomer)
}

//
// Vendor endpoints
//

// ListVendorOrders returns orders placed with the calling vendor.
func (h *Handlers) ListVendorOrders(c *gin.Context) {
	items, err := h.orderSvc.ListForVendor(c.Request.Context(), userID(c), clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"orders": items})
}

// ConfirmOrder moves pending -> confirmed.
func (h *Handlers) ConfirmOrder(c *gin.Context) { h.orderAction(c, h.orderSvc.Confirm) }

// PrepareOrder moves confirmed -> preparing.
func (h *Handlers) PrepareOrder(c *gin.Context) { h.orderAction(c, h.orderSvc.Prepare) }

// ReadyOrder moves preparing -> ready.
func (h *Handlers) ReadyOrder(c *gin.Context) { h.orderAction(c, h.orderSvc.Ready) }

// DeliverOrderByVendor closes a ready order the vendor hands over directly
// (pickup and vendor-courier orders; agent orders must go through an agent).
func (h *Handlers) DeliverOrderByVendor(c *gin.Context) {
	h.orderAction(c, h.orderSvc.DeliverByVendor)
}

// RequestAgentDelivery flags an order for agent delivery, putting it in the
// claim pool.
func (h *Handlers) RequestAgentDelivery(c *gin.Context) {
	h.orderAction(c, h.orderSvc.RequestAgentDelivery)
}

// CancelOrderByVendor cancels an early-stage order from the vendor side.
func (h *Handlers) CancelOrderByVendor(c *gin.Context) {
	h.orderAction(c, h.orderSvc.CancelByVendor)
}

//
// Agent endpoints
//

// ListAvailableOrders returns unclaimed agent-delivery orders.
func (h *Handlers) ListAvailableOrders(c *gin.Context) {
	items, err := h.orderSvc.ListAvailableForAgent(c.Request.Context(), clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"orders": items})
}

// ListAgentOrders returns orders assigned to the calling agent, optionally
// filtered by a comma-separated `status` query param.
func (h *Handlers) ListAgentOrders(c *gin.Context) {
	var statuses []string
	if q := c.Query("status"); q != "" {
		for _, s := range strings.Split(q, ",") {
			if t := strings.TrimSpace(s); t != "" {
				statuses = append(statuses, t)
			}
		}
	}
	items, err := h.orderSvc.ListForAgent(c.Request.Context(), userID(c), statuses, clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"orders": items})
}

// AcceptOrder claims an order for delivery. Exactly one agent wins a
// contested claim; ready orders advance straight to picked_up.
func (h *Handlers) AcceptOrder(c *gin.Context) { h.orderAction(c, h.orderSvc.AcceptByAgent) }

// PickUpOrder moves ready -> picked_up.
func (h *Handlers) PickUpOrder(c *gin.Context) { h.orderAction(c, h.orderSvc.PickUp) }

// OrderOnTheWay moves picked_up -> on_the_way.
func (h *Handlers) OrderOnTheWay(c *gin.Context) { h.orderAction(c, h.orderSvc.OnTheWay) }

// OrderNearby moves on_the_way -> nearby.
func (h *Handlers) OrderNearby(c *gin.Context) { h.orderAction(c, h.orderSvc.Nearby) }

// DeliverOrder closes the delivery and settles both the agent's fee and the
// vendor's sale share.
func (h *Handlers) DeliverOrder(c *gin.Context) { h.orderAction(c, h.orderSvc.Deliver) }

// DeliveryLocationRequest is the JSON payload for a live position update on
// an in-flight delivery.
type DeliveryLocationRequest struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

// ReportDeliveryLocation stores the assigned agent's live position for the
// order's delivery (last write wins).
func (h *Handlers) ReportDeliveryLocation(c *gin.Context) {
	id, okID := orderID(c)
	if !okID {
		return
	}
	var req DeliveryLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.orderSvc.ReportDeliveryLocation(c.Request.Context(), userID(c), id, req.Lat, req.Lng); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

//
// Helpers
//

// orderAction runs a (caller, orderID) service call and writes the updated order.
func (h *Handlers) orderAction(c *gin.Context, fn func(ctx context.Context, callerID, orderID string) (*domain.ShopOrder, error)) {
	id, okID := orderID(c)
	if !okID {
		return
	}
	o, err := fn(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// orderID validates the :id path param as a UUID.
func orderID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return "", false
	}
	return id, true
}
