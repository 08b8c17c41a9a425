package ingest

import (
	"context"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// Resolver maps inbound records onto existing canonical rows. A nil result
// with a nil error means the record is new.
//
// Identity rules:
//   - Product: normalized SKU only, regardless of provider.
//   - Order, Offer: exact (provider, external ID) pair. The same external
//     ID from the other provider is a different entity.
//   - Marketplace: (provider, external ID) first, then the rename-mapped
//     canonical name.
type Resolver struct {
	lookup  Lookup
	renames map[string]string
}

// NewResolver creates a resolver with the configured rename mapping
func NewResolver(lookup Lookup, renames map[string]string) *Resolver {
	if renames == nil {
		renames = map[string]string{}
	}
	return &Resolver{lookup: lookup, renames: renames}
}

// CanonicalName maps a raw provider marketplace name through the rename
// mapping. Unknown names pass through unchanged.
func (r *Resolver) CanonicalName(rawName string) string {
	if canonical, ok := r.renames[rawName]; ok {
		return canonical
	}
	return rawName
}

// ResolveProduct finds the canonical product for a payload by normalized SKU
func (r *Resolver) ResolveProduct(ctx context.Context, payload *ProductPayload) (*catalog.Product, error) {
	sku := catalog.NormalizeSKU(payload.SKU)
	if sku == "" {
		return nil, NewValidationError(EntityRef{Kind: RecordKindProduct}, "product SKU is empty")
	}
	return r.lookup.FindProductBySKU(ctx, sku)
}

// ResolveProductBySKU finds the canonical product for a raw SKU
func (r *Resolver) ResolveProductBySKU(ctx context.Context, rawSKU string) (*catalog.Product, error) {
	sku := catalog.NormalizeSKU(rawSKU)
	if sku == "" {
		return nil, NewValidationError(EntityRef{Kind: RecordKindProduct}, "product SKU is empty")
	}
	return r.lookup.FindProductBySKU(ctx, sku)
}

// ResolveMarketplace finds the canonical marketplace for a provider
// reference, falling back to the canonical name
func (r *Resolver) ResolveMarketplace(ctx context.Context, provider catalog.ProviderCode, externalID, rawName string) (*catalog.Marketplace, error) {
	return r.ResolveMarketplaceIn(ctx, r.lookup, provider, externalID, rawName)
}

// ResolveMarketplaceIn applies the marketplace identity rules against an
// explicit lookup, typically a batch transaction. The name fallback is what
// collapses provider-specific identifiers for the same storefront onto one
// row.
func (r *Resolver) ResolveMarketplaceIn(ctx context.Context, lookup Lookup, provider catalog.ProviderCode, externalID, rawName string) (*catalog.Marketplace, error) {
	marketplace, err := lookup.FindMarketplace(ctx, provider, externalID)
	if err != nil || marketplace != nil {
		return marketplace, err
	}
	canonical := r.CanonicalName(rawName)
	if canonical == "" {
		return nil, nil
	}
	return lookup.FindMarketplaceByName(ctx, canonical)
}

// ResolveOrder finds an order by its exact provider identity
func (r *Resolver) ResolveOrder(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Order, error) {
	if externalID == "" {
		return nil, NewValidationError(EntityRef{Kind: RecordKindOrder, Provider: provider}, "order external ID is empty")
	}
	return r.lookup.FindOrder(ctx, provider, externalID)
}

// ResolveOffer finds an offer by its exact provider identity
func (r *Resolver) ResolveOffer(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Offer, error) {
	if externalID == "" {
		return nil, NewValidationError(EntityRef{Kind: RecordKindOffer, Provider: provider}, "offer external ID is empty")
	}
	return r.lookup.FindOffer(ctx, provider, externalID)
}
