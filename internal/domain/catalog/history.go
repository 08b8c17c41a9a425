package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockHistory is an append-only daily stock snapshot. At most one row
// exists per product, marketplace and observation date; re-running a sync
// for the same day is a no-op.
type StockHistory struct {
	shared.BaseEntity
	ProductID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_marketplace_date,priority:1"`
	MarketplaceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_marketplace_date,priority:2"`
	// ObservedDate is truncated to a calendar day.
	ObservedDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_stock_product_marketplace_date,priority:3"`
	Quantity     int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockHistory) TableName() string {
	return "stock_history"
}

// PriceHistory records the PLN price of an active offer at sync time.
// Rows are append-only.
type PriceHistory struct {
	shared.BaseEntity
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	MarketplaceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ObservedAt    time.Time       `gorm:"not null"`
	PricePLN      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

// TableName returns the table name for GORM
func (PriceHistory) TableName() string {
	return "price_history"
}
