package catalog

import (
	"github.com/google/uuid"
	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Offer is a provider listing of a product on a marketplace. Identity is
// the (provider, external ID) pair. Offers are pure snapshots: every sync
// overwrites price, stock and the active flag with provider truth.
type Offer struct {
	shared.BaseEntity
	Provider      ProviderCode    `gorm:"type:varchar(20);not null;uniqueIndex:idx_offer_provider_ext,priority:1"`
	ExternalID    string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_offer_provider_ext,priority:2"`
	MarketplaceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	PriceWithTax  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Active        bool            `gorm:"not null"`
	StockQuantity int             `gorm:"not null;default:0"`
	EAN           string          `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (Offer) TableName() string {
	return "offers"
}
