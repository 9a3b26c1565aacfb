// Package domain defines the persistence models for the marketplace core:
// wishes, deals, shop orders, chat rooms/messages, earnings, and partner
// presence. These types are mapped with GORM and are shared by the
// repository and service layers.
//
// Mutation rules worth knowing before touching anything here:
//   - Wish.AssignedPartnerID and ShopOrder.AssignedAgentID are set-once per
//     lifecycle run; they only move null→id through a conditional write and
//     are cleared solely by an explicit decline/reassignment transition.
//   - DealOffer, OrderStatusEntry, and Message rows are append-only. They are
//     never updated or deleted; current state (Deal.CurrentPrice,
//     ShopOrder.Status) is a projection over them.
//   - EarningsRecord rows are immutable once written and are the sole source
//     of truth for windowed earnings totals.
package domain

import "time"

// Wish lifecycle statuses. Cancelled is reachable from every non-terminal
// status; Completed and Cancelled are terminal.
const (
	WishStatusSearching   = "searching"
	WishStatusMatched     = "matched"
	WishStatusNegotiating = "negotiating"
	WishStatusAccepted    = "accepted"
	WishStatusInProgress  = "in_progress"
	WishStatusCompleted   = "completed"
	WishStatusCancelled   = "cancelled"
)

// Wish is a requester's ad-hoc task posting seeking a mobile or skilled
// partner. It is owned by the wish service and mutated only through its
// transition API.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - WisherID: identifier of the requester; indexed for listing.
//   - Category: task category (delivery, errands, cleaning, ...) matched
//     against agent services by the allocator.
//   - Address/Lat/Lng: where the task happens.
//   - Remuneration: the wisher's monetary offer.
//   - Immediate: urgency flag; ScheduledAt is set for planned tasks.
//   - Status: one of the WishStatus* constants.
//   - AssignedPartnerID: set-once assignment (see package doc).
//   - LinkedOrderID: present when the wish was spawned from a shop order.
//   - ChatRoomID: room opened when the wish reaches an active state.
type Wish struct {
	ID                string     `json:"id"                    gorm:"type:char(36);primaryKey"`
	WisherID          string     `json:"wisher_id"             gorm:"type:varchar(64);not null;index:idx_wisher_wishes"`
	Category          string     `json:"category"              gorm:"type:varchar(64);not null;index"`
	Title             string     `json:"title"                 gorm:"type:varchar(255);not null"`
	Description       string     `json:"description,omitempty" gorm:"type:text"`
	Address           string     `json:"address"               gorm:"type:varchar(255)"`
	Lat               float64    `json:"lat"`
	Lng               float64    `json:"lng"`
	RadiusKm          float64    `json:"radius_km"`
	Remuneration      float64    `json:"remuneration"          gorm:"not null"`
	Immediate         bool       `json:"immediate"`
	ScheduledAt       *time.Time `json:"scheduled_at,omitempty"`
	Status            string     `json:"status"                gorm:"type:varchar(24);not null;index"`
	AssignedPartnerID *string    `json:"assigned_partner_id,omitempty" gorm:"type:varchar(64);index"`
	LinkedOrderID     *string    `json:"linked_order_id,omitempty"     gorm:"type:char(36)"`
	ChatRoomID        *string    `json:"chat_room_id,omitempty"        gorm:"type:char(36)"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Wish.
func (Wish) TableName() string { return "wishes" }

// TerminalWishStatus reports whether s admits no further transitions.
func TerminalWishStatus(s string) bool {
	return s == WishStatusCompleted || s == WishStatusCancelled
}

// Shop order lifecycle statuses. The vendor drives pending→ready (and
// cancellation); the assigned agent drives picked_up→delivered.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusPickedUp  = "picked_up"
	OrderStatusOnTheWay  = "on_the_way"
	OrderStatusNearby    = "nearby"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// TerminalOrderStatus reports whether s admits no further transitions.
func TerminalOrderStatus(s string) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Delivery types for a shop order.
const (
	DeliverySelfPickup = "self_pickup"
	DeliveryByVendor   = "vendor_delivery"
	DeliveryByAgent    = "agent_delivery"
)

// ShopOrder is a vendor-fulfilled purchase, optionally delivered by an
// agent. AssignedAgentID follows the set-once rule; StatusHistory rows are
// append-only (one per successful transition, either actor path).
type ShopOrder struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	CustomerID      string    `json:"customer_id"      gorm:"type:varchar(64);not null;index"`
	VendorID        string    `json:"vendor_id"        gorm:"type:varchar(64);not null;index"`
	VendorName      string    `json:"vendor_name"      gorm:"type:varchar(255)"`
	TotalAmount     float64   `json:"total_amount"     gorm:"not null"`
	DeliveryAddress string    `json:"delivery_address" gorm:"type:varchar(255)"`
	DeliveryLat     float64   `json:"delivery_lat"`
	DeliveryLng     float64   `json:"delivery_lng"`
	DeliveryType    string    `json:"delivery_type"    gorm:"type:varchar(24);not null;index"`
	DeliveryFee     float64   `json:"delivery_fee"`
	AssignedAgentID *string   `json:"assigned_agent_id,omitempty" gorm:"type:varchar(64);index"`
	Status          string    `json:"status"           gorm:"type:varchar(24);not null;index"`
	PaymentStatus   string    `json:"payment_status"   gorm:"type:varchar(24);not null;default:'pending'"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Items         []OrderItem        `json:"items"          gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	StatusHistory []OrderStatusEntry `json:"status_history" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ShopOrder.
func (ShopOrder) TableName() string { return "shop_orders" }

// OrderItem is a single line item within a shop order.
type OrderItem struct {
	ID        string  `json:"id"         gorm:"type:char(36);primaryKey"`
	OrderID   string  `json:"order_id"   gorm:"type:char(36);not null;index"`
	Name      string  `json:"name"       gorm:"type:varchar(255);not null"`
	Quantity  int     `json:"quantity"   gorm:"not null"`
	UnitPrice float64 `json:"unit_price" gorm:"not null"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }

// OrderStatusEntry is one row of an order's append-only audit log. Every
// successful transition appends exactly one entry, regardless of whether the
// vendor or the agent drove it.
type OrderStatusEntry struct {
	ID        string    `json:"-"         gorm:"type:char(36);primaryKey"`
	OrderID   string    `json:"-"         gorm:"type:char(36);not null;index:idx_order_history,priority:1"`
	Status    string    `json:"status"    gorm:"type:varchar(24);not null"`
	Message   string    `json:"message"   gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"timestamp" gorm:"index:idx_order_history,priority:2"`
}

// TableName returns the database table name for OrderStatusEntry.
func (OrderStatusEntry) TableName() string { return "order_status_entries" }

// ChatRoom statuses mirror the parent wish/deal at a coarser grain.
const (
	RoomStatusNegotiating = "negotiating"
	RoomStatusActive      = "active"
	RoomStatusCompleted   = "completed"
	RoomStatusClosed      = "closed"
)

// ChatRoom is the messaging channel opened when a wish or deal reaches an
// active negotiation or fulfillment state. The hub uses it for connection
// authorization; the originating engine persists and owns its status.
type ChatRoom struct {
	ID        string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	WishID    *string   `json:"wish_id,omitempty"  gorm:"type:char(36);index"`
	DealID    *string   `json:"deal_id,omitempty"  gorm:"type:char(36);index"`
	WisherID  string    `json:"wisher_id"          gorm:"type:varchar(64);not null;index"`
	PartnerID string    `json:"partner_id"         gorm:"type:varchar(64);not null;index"`
	Title     string    `json:"title"              gorm:"type:varchar(255)"`
	Status    string    `json:"status"             gorm:"type:varchar(24);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatRoom.
func (ChatRoom) TableName() string { return "chat_rooms" }

// HasParticipant reports whether userID is one of the room's two parties.
func (r *ChatRoom) HasParticipant(userID string) bool {
	return r.WisherID == userID || r.PartnerID == userID
}

// Sender roles for chat messages.
const (
	SenderWisher  = "wisher"
	SenderPartner = "partner"
)

// Message is a single chat utterance. Messages are append-only; persistence
// order is the authoritative delivery order.
type Message struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	RoomID     string    `json:"room_id"     gorm:"type:char(36);not null;index:idx_room_msgs,priority:1"`
	SenderID   string    `json:"sender_id"   gorm:"type:varchar(64);not null"`
	SenderRole string    `json:"sender_role" gorm:"type:varchar(16);not null;check:sender_role IN ('wisher','partner')"`
	Content    string    `json:"content"     gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index:idx_room_msgs,priority:2"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Earnings categories. Each maps to the completion path that produced it.
const (
	EarningDelivery = "delivery" // agent delivered a shop order
	EarningWish     = "wish"     // agent completed a wish
	EarningService  = "service"  // partner completed a negotiated deal
	EarningSale     = "sale"     // vendor's share of a delivered order
)

// EarningsRecord is an immutable ledger entry crediting a partner for
// completed work. Records are never adjusted after write; all summaries are
// recomputed from them.
type EarningsRecord struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	PartnerID   string    `json:"partner_id"  gorm:"type:varchar(64);not null;index:idx_partner_earnings,priority:1"`
	OrderID     *string   `json:"order_id,omitempty" gorm:"type:char(36)"`
	WishID      *string   `json:"wish_id,omitempty"  gorm:"type:char(36)"`
	DealID      *string   `json:"deal_id,omitempty"  gorm:"type:char(36)"`
	Amount      float64   `json:"amount"      gorm:"not null"`
	Type        string    `json:"type"        gorm:"type:varchar(16);not null"`
	Description string    `json:"description" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"  gorm:"index:idx_partner_earnings,priority:2"`
}

// TableName returns the database table name for EarningsRecord.
func (EarningsRecord) TableName() string { return "earnings_records" }

// PartnerLocation is the single current-value position row per partner.
// It is an upsert target, not an event log: last write wins, with no
// ordering guarantee relative to other partners' updates.
type PartnerLocation struct {
	PartnerID string    `json:"partner_id" gorm:"type:varchar(64);primaryKey"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   float64   `json:"heading"`
	SpeedKmh  float64   `json:"speed_kmh"`
	Online    bool      `json:"online"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for PartnerLocation.
func (PartnerLocation) TableName() string { return "partner_locations" }

// Session is an opaque session token resolved by the auth middleware.
// Issuance and expiry policy live in the external identity service; this
// core only reads the rows.
type Session struct {
	Token     string    `json:"-"          gorm:"type:varchar(128);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "user_sessions" }
