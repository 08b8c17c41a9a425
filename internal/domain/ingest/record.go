package ingest

import (
	"fmt"
	"time"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// RecordKind
// ---------------------------------------------------------------------------

// RecordKind identifies which entity an inbound record describes
type RecordKind string

const (
	RecordKindProduct     RecordKind = "PRODUCT"
	RecordKindMarketplace RecordKind = "MARKETPLACE"
	RecordKindOrder       RecordKind = "ORDER"
	RecordKindOffer       RecordKind = "OFFER"
	RecordKindStock       RecordKind = "STOCK"
)

// IsValid returns true if the record kind is valid
func (k RecordKind) IsValid() bool {
	switch k {
	case RecordKindProduct, RecordKindMarketplace, RecordKindOrder, RecordKindOffer, RecordKindStock:
		return true
	default:
		return false
	}
}

// String returns the string representation of RecordKind
func (k RecordKind) String() string {
	return string(k)
}

// EntityRef identifies an inbound record in summaries and error reports
type EntityRef struct {
	Kind       RecordKind
	Provider   catalog.ProviderCode
	ExternalID string
}

// String returns a compact reference like "ORDER/BASELINKER/12345"
func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Provider, r.ExternalID)
}

// ---------------------------------------------------------------------------
// Record and payloads
// ---------------------------------------------------------------------------

// Record is a normalized inbound record as produced by a provider adapter.
// Exactly one payload field matching Kind is set.
type Record struct {
	Kind       RecordKind
	Provider   catalog.ProviderCode
	ExternalID string
	// Raw is the provider response fragment this record was built from.
	Raw string

	Product     *ProductPayload
	Marketplace *MarketplacePayload
	Order       *OrderPayload
	Offer       *OfferPayload
	Stock       *StockPayload
}

// ProductPayload carries product fields reported by a provider
type ProductPayload struct {
	SKU      string
	Name     string
	ImageURL string
	Kind     string
	// PurchaseCost is only reported by the secondary provider.
	PurchaseCost *decimal.Decimal
}

// MarketplacePayload carries the raw marketplace name; the external ID
// lives on the enclosing record
type MarketplacePayload struct {
	Name string
}

// OrderPayload carries order fields reported by a provider
type OrderPayload struct {
	ExternalMarketplaceID string
	PlacedAt              time.Time
	BuyerCountry          string
	BuyerCity             string
	DeliveryMethod        string
	DeliveryCost          decimal.Decimal
	Currency              string
	TotalOriginal         decimal.Decimal
	TotalPLN              decimal.Decimal
	StatusCode            int
	Items                 []OrderItemPayload
}

// OrderItemPayload is a single inbound order line
type OrderItemPayload struct {
	SKU          string
	Name         string
	Quantity     int
	UnitPrice    decimal.Decimal
	UnitPricePLN decimal.Decimal
	TaxRate      decimal.Decimal
}

// OfferPayload carries offer fields reported by a provider
type OfferPayload struct {
	ExternalMarketplaceID string
	SKU                   string
	PriceWithTax          decimal.Decimal
	PricePLN              decimal.Decimal
	Active                bool
	StockQuantity         int
	EAN                   string
}

// StockPayload carries a daily stock observation
type StockPayload struct {
	SKU                   string
	ExternalMarketplaceID string
	ObservedDate          time.Time
	Quantity              int
}

// Ref returns the record's identity for summaries and errors
func (r *Record) Ref() EntityRef {
	return EntityRef{Kind: r.Kind, Provider: r.Provider, ExternalID: r.ExternalID}
}

// Validate checks structural completeness. A failure is a ValidationError:
// the record is skipped, never retried, and never aborts its batch.
func (r *Record) Validate() error {
	if !r.Kind.IsValid() {
		return NewValidationError(r.Ref(), "unknown record kind")
	}
	if !r.Provider.IsValid() {
		return NewValidationError(r.Ref(), "unknown provider")
	}
	if r.ExternalID == "" && r.Kind != RecordKindProduct && r.Kind != RecordKindStock {
		return NewValidationError(r.Ref(), "external ID is required")
	}
	switch r.Kind {
	case RecordKindProduct:
		if r.Product == nil {
			return NewValidationError(r.Ref(), "product payload missing")
		}
		if catalog.NormalizeSKU(r.Product.SKU) == "" {
			return NewValidationError(r.Ref(), "product SKU is empty")
		}
		if r.Product.Name == "" {
			return NewValidationError(r.Ref(), "product name is empty")
		}
	case RecordKindMarketplace:
		if r.Marketplace == nil {
			return NewValidationError(r.Ref(), "marketplace payload missing")
		}
		if r.Marketplace.Name == "" {
			return NewValidationError(r.Ref(), "marketplace name is empty")
		}
	case RecordKindOrder:
		if r.Order == nil {
			return NewValidationError(r.Ref(), "order payload missing")
		}
		if r.Order.ExternalMarketplaceID == "" {
			return NewValidationError(r.Ref(), "order marketplace reference is empty")
		}
		if r.Order.Currency == "" {
			return NewValidationError(r.Ref(), "order currency is empty")
		}
		if r.Order.PlacedAt.IsZero() {
			return NewValidationError(r.Ref(), "order placement time is zero")
		}
		for _, item := range r.Order.Items {
			if catalog.NormalizeSKU(item.SKU) == "" {
				return NewValidationError(r.Ref(), "order item SKU is empty")
			}
			if item.Quantity <= 0 {
				return NewValidationError(r.Ref(), "order item quantity must be positive")
			}
		}
	case RecordKindOffer:
		if r.Offer == nil {
			return NewValidationError(r.Ref(), "offer payload missing")
		}
		if catalog.NormalizeSKU(r.Offer.SKU) == "" {
			return NewValidationError(r.Ref(), "offer SKU is empty")
		}
		if r.Offer.ExternalMarketplaceID == "" {
			return NewValidationError(r.Ref(), "offer marketplace reference is empty")
		}
	case RecordKindStock:
		if r.Stock == nil {
			return NewValidationError(r.Ref(), "stock payload missing")
		}
		if catalog.NormalizeSKU(r.Stock.SKU) == "" {
			return NewValidationError(r.Ref(), "stock SKU is empty")
		}
		if r.Stock.ObservedDate.IsZero() {
			return NewValidationError(r.Ref(), "stock observation date is zero")
		}
		if r.Stock.Quantity < 0 {
			return NewValidationError(r.Ref(), "stock quantity cannot be negative")
		}
	}
	return nil
}
