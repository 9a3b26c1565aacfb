package domain

import "time"

// Deal lifecycle statuses. Rejected is reachable from pending/negotiating;
// Completed and Rejected are terminal.
const (
	DealStatusPending     = "pending"
	DealStatusNegotiating = "negotiating"
	DealStatusAccepted    = "accepted"
	DealStatusInProgress  = "in_progress"
	DealStatusCompleted   = "completed"
	DealStatusRejected    = "rejected"
)

// Offer kinds inside a deal's negotiation log.
const (
	OfferKindInitial = "initial"
	OfferKindCounter = "counter"
)

// Offer origin sides. Only the partner side originates offers today; the
// field exists so a symmetric flow is a guard change, not a schema change.
const (
	OfferSidePartner = "partner"
	OfferSideWisher  = "wisher"
)

// Deal is a price/schedule negotiation instance tied to a wish, with its own
// lifecycle distinct from the wish's status. CurrentPrice is a projection of
// the last offer; the authoritative history lives in the Offers rows.
type Deal struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	WishID       string     `json:"wish_id"       gorm:"type:char(36);not null;index"`
	PartnerID    string     `json:"partner_id"    gorm:"type:varchar(64);not null;index"`
	InitialPrice float64    `json:"initial_price" gorm:"not null"`
	CurrentPrice float64    `json:"current_price" gorm:"not null"`
	Schedule     string     `json:"schedule,omitempty" gorm:"type:varchar(255)"`
	Status       string     `json:"status"        gorm:"type:varchar(24);not null;index"`
	RoomID       string     `json:"room_id"       gorm:"type:char(36);not null"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Offers []DealOffer `json:"offers" gorm:"foreignKey:DealID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Deal.
func (Deal) TableName() string { return "deals" }

// TerminalDealStatus reports whether s admits no further transitions.
func TerminalDealStatus(s string) bool {
	return s == DealStatusCompleted || s == DealStatusRejected
}

// DealOffer is one entry of a deal's append-only offer log. Rows are never
// edited or reordered; (DealID, CreatedAt, ID) is the authoritative order.
type DealOffer struct {
	ID        string    `json:"-"        gorm:"type:char(36);primaryKey"`
	DealID    string    `json:"-"        gorm:"type:char(36);not null;index:idx_deal_offers,priority:1"`
	Side      string    `json:"side"     gorm:"type:varchar(16);not null"`
	Kind      string    `json:"kind"     gorm:"type:varchar(16);not null"`
	Price     float64   `json:"price"    gorm:"not null"`
	Schedule  string    `json:"schedule,omitempty" gorm:"type:varchar(255)"`
	Notes     string    `json:"notes,omitempty"    gorm:"type:text"`
	CreatedAt time.Time `json:"timestamp" gorm:"index:idx_deal_offers,priority:2"`
}

// TableName returns the database table name for DealOffer.
func (DealOffer) TableName() string { return "deal_offers" }
