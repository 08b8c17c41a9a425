package catalog

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var (
	ErrProductEmptySKU  = errors.New("catalog: product SKU is empty after normalization")
	ErrProductEmptyName = errors.New("catalog: product name is required")
)

// NormalizeSKU applies the canonical SKU normalization: surrounding
// whitespace is stripped and the result is uppercased. Two raw SKUs that
// normalize to the same value refer to the same product.
func NormalizeSKU(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Product is the canonical product record. There is exactly one row per
// normalized SKU regardless of how many providers report it.
type Product struct {
	shared.BaseEntity
	SKU      string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name     string `gorm:"type:varchar(255);not null"`
	ImageURL string `gorm:"type:text"`
	Kind     string `gorm:"type:varchar(50)"`
	// UnitPurchaseCost is only reported by the secondary provider and is
	// first-write-wins: once set it is never overwritten by a sync.
	UnitPurchaseCost *decimal.Decimal `gorm:"type:decimal(10,2)"`
	// SourceProvider is the provider that first created this row.
	SourceProvider ProviderCode `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a product from a raw SKU, normalizing it first
func NewProduct(rawSKU, name string, provider ProviderCode) (*Product, error) {
	sku := NormalizeSKU(rawSKU)
	if sku == "" {
		return nil, ErrProductEmptySKU
	}
	if name == "" {
		return nil, ErrProductEmptyName
	}
	return &Product{
		BaseEntity:     shared.NewBaseEntity(),
		SKU:            sku,
		Name:           name,
		SourceProvider: provider,
	}, nil
}

// ProductMarketplaceLink records that a product is (or was) listed on a
// marketplace. Links are append-only: offer deactivation never removes them.
type ProductMarketplaceLink struct {
	shared.BaseEntity
	ProductID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_link_product_marketplace,priority:1"`
	MarketplaceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_link_product_marketplace,priority:2"`
}

// TableName returns the table name for GORM
func (ProductMarketplaceLink) TableName() string {
	return "product_marketplace_links"
}

// NewProductMarketplaceLink creates a link between a product and a marketplace
func NewProductMarketplaceLink(productID, marketplaceID uuid.UUID) *ProductMarketplaceLink {
	return &ProductMarketplaceLink{
		BaseEntity:    shared.NewBaseEntity(),
		ProductID:     productID,
		MarketplaceID: marketplaceID,
	}
}
