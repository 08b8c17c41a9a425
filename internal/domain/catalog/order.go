package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Order is a canonical order row. Identity is the (provider, external ID)
// pair; the same external ID from different providers is two orders.
//
// Status and totals follow the provider on every sync. Buyer and shipping
// fields are written once at creation and never updated afterwards.
type Order struct {
	shared.BaseEntity
	Provider      ProviderCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_order_provider_ext,priority:1"`
	ExternalID    string       `gorm:"type:varchar(100);not null;uniqueIndex:idx_order_provider_ext,priority:2"`
	MarketplaceID uuid.UUID    `gorm:"type:uuid;not null;index"`
	// PlacedAt is when the order was created on the provider.
	PlacedAt       time.Time       `gorm:"not null;index"`
	BuyerCountry   string          `gorm:"type:varchar(2)"`
	BuyerCity      string          `gorm:"type:varchar(100)"`
	DeliveryMethod string          `gorm:"type:varchar(100)"`
	DeliveryCost   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	TotalOriginal  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	TotalPLN       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	// StatusCode is the provider's numeric order status.
	StatusCode int `gorm:"not null"`
	// RawPayload keeps the provider response for provenance.
	RawPayload string      `gorm:"type:jsonb"`
	Items      []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// OrderItem is a single order line. Lines are replaced wholesale whenever
// the parent order is refreshed.
type OrderItem struct {
	shared.BaseEntity
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index"`
	LineIndex int       `gorm:"not null"`
	Quantity  int       `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	// UnitPricePLN is the unit price converted to PLN at sync time.
	UnitPricePLN decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:23"`
}

// TableName returns the table name for GORM
func (OrderItem) TableName() string {
	return "order_items"
}
