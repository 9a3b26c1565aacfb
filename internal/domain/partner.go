package domain

import "time"

// Partner roles. A partner has exactly one role; role-specific attributes
// live in the per-role profile tables below so that illegal field
// combinations (a vendor with a vehicle, an agent with a shop) are
// unrepresentable.
const (
	RoleAgent    = "agent"
	RoleVendor   = "vendor"
	RolePromoter = "promoter"
)

// Partner availability statuses.
const (
	PartnerAvailable = "available"
	PartnerBusy      = "busy"
	PartnerOffline   = "offline"
)

// Partner is a service-providing actor. The row carries only role-neutral
// state; exactly one of the profile associations is non-nil, keyed by Role.
//
// TotalTasks and TotalEarnings are cumulative projections maintained in the
// same transaction as each EarningsRecord append (the ledger invariant:
// TotalEarnings == sum of the partner's records).
type Partner struct {
	ID            string    `json:"id"             gorm:"type:varchar(64);primaryKey"`
	Name          string    `json:"name"           gorm:"type:varchar(255)"`
	Phone         string    `json:"phone"          gorm:"type:varchar(32)"`
	Role          string    `json:"role"           gorm:"type:varchar(16);not null;index;check:role IN ('agent','vendor','promoter')"`
	Status        string    `json:"status"         gorm:"type:varchar(16);not null;default:'offline';index"`
	Rating        float64   `json:"rating"         gorm:"not null;default:5"`
	TotalTasks    int64     `json:"total_tasks"    gorm:"not null;default:0"`
	TotalEarnings float64   `json:"total_earnings" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Agent    *AgentProfile    `json:"agent,omitempty"    gorm:"foreignKey:PartnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Vendor   *VendorProfile   `json:"vendor,omitempty"   gorm:"foreignKey:PartnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Promoter *PromoterProfile `json:"promoter,omitempty" gorm:"foreignKey:PartnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Partner.
func (Partner) TableName() string { return "partners" }

// Agent kinds.
const (
	AgentMobile  = "mobile"
	AgentSkilled = "skilled"
)

// AgentProfile holds attributes of a mobile or skilled agent. Services and
// Skills are stored as JSON arrays via the GORM serializer.
type AgentProfile struct {
	PartnerID  string   `json:"-"           gorm:"type:varchar(64);primaryKey"`
	Kind       string   `json:"kind"        gorm:"type:varchar(16);not null;check:kind IN ('mobile','skilled')"`
	Vehicle    string   `json:"vehicle,omitempty" gorm:"type:varchar(32)"`
	Electric   bool     `json:"electric"`
	HasVehicle bool     `json:"has_vehicle"`
	Services   []string `json:"services" gorm:"serializer:json;type:text"`
	Skills     []string `json:"skills"   gorm:"serializer:json;type:text"`
}

// TableName returns the database table name for AgentProfile.
func (AgentProfile) TableName() string { return "agent_profiles" }

// Serves reports whether the agent offers a service covering the given wish
// category. Delivery-flavored categories fold into the "delivery" service,
// mirroring how agents register.
func (p *AgentProfile) Serves(category string) bool {
	for _, s := range p.Services {
		if s == category {
			return true
		}
	}
	for _, s := range p.Skills {
		if s == category {
			return true
		}
	}
	return false
}

// VendorProfile holds attributes of a shop vendor.
type VendorProfile struct {
	PartnerID   string   `json:"-"            gorm:"type:varchar(64);primaryKey"`
	ShopName    string   `json:"shop_name"    gorm:"type:varchar(255);not null"`
	ShopType    string   `json:"shop_type"    gorm:"type:varchar(64)"`
	ShopAddress string   `json:"shop_address" gorm:"type:varchar(255)"`
	ShopLat     float64  `json:"shop_lat"`
	ShopLng     float64  `json:"shop_lng"`
	CanDeliver  bool     `json:"can_deliver"`
	Categories  []string `json:"categories" gorm:"serializer:json;type:text"`
	Verified    bool     `json:"verified"`
}

// TableName returns the database table name for VendorProfile.
func (VendorProfile) TableName() string { return "vendor_profiles" }

// PromoterProfile holds attributes of an event/trip promoter.
type PromoterProfile struct {
	PartnerID    string `json:"-"             gorm:"type:varchar(64);primaryKey"`
	BusinessName string `json:"business_name" gorm:"type:varchar(255);not null"`
	Kind         string `json:"kind"          gorm:"type:varchar(32)"`
	Description  string `json:"description"   gorm:"type:text"`
}

// TableName returns the database table name for PromoterProfile.
func (PromoterProfile) TableName() string { return "promoter_profiles" }
