package ingest

import (
	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/shared"
)

// Merge functions reconcile an inbound payload with the existing canonical
// row. They never touch storage; callers persist the result. Passing a nil
// existing row yields a freshly created entity.

// MergeProduct applies product field precedence:
//   - the primary provider always wins name, image and kind;
//   - the secondary provider fills those fields only when empty;
//   - the purchase cost is first-write-wins for every provider.
func MergeProduct(existing *catalog.Product, payload *ProductPayload, provider catalog.ProviderCode) (*catalog.Product, error) {
	if existing == nil {
		product, err := catalog.NewProduct(payload.SKU, payload.Name, provider)
		if err != nil {
			return nil, NewValidationError(EntityRef{Kind: RecordKindProduct, Provider: provider}, err.Error())
		}
		product.ImageURL = payload.ImageURL
		product.Kind = payload.Kind
		if payload.PurchaseCost != nil {
			cost := *payload.PurchaseCost
			product.UnitPurchaseCost = &cost
		}
		return product, nil
	}

	if provider.IsPrimary() {
		if payload.Name != "" {
			existing.Name = payload.Name
		}
		if payload.ImageURL != "" {
			existing.ImageURL = payload.ImageURL
		}
		if payload.Kind != "" {
			existing.Kind = payload.Kind
		}
	} else {
		if existing.Name == "" {
			existing.Name = payload.Name
		}
		if existing.ImageURL == "" {
			existing.ImageURL = payload.ImageURL
		}
		if existing.Kind == "" {
			existing.Kind = payload.Kind
		}
	}
	if existing.UnitPurchaseCost == nil && payload.PurchaseCost != nil {
		cost := *payload.PurchaseCost
		existing.UnitPurchaseCost = &cost
	}
	existing.Touch()
	return existing, nil
}

// MergeMarketplace creates or refreshes a marketplace. The raw provider
// name is always recorded; the canonical name is only overwritten when the
// rename mapping produced it, so manual canonical names survive syncs.
func MergeMarketplace(existing *catalog.Marketplace, provider catalog.ProviderCode, externalID, rawName, canonicalName string) (*catalog.Marketplace, error) {
	if existing == nil {
		marketplace, err := catalog.NewMarketplace(provider, externalID, canonicalName, rawName)
		if err != nil {
			return nil, NewValidationError(EntityRef{Kind: RecordKindMarketplace, Provider: provider, ExternalID: externalID}, err.Error())
		}
		return marketplace, nil
	}
	existing.RawName = rawName
	if canonicalName != rawName {
		existing.Name = canonicalName
	}
	existing.Touch()
	return existing, nil
}

// MergeOrder applies order field precedence: status and totals follow the
// provider on every sync, buyer and shipping fields are immutable after
// creation, and line items are replaced wholesale.
func MergeOrder(existing *catalog.Order, payload *OrderPayload, provider catalog.ProviderCode, externalID string, items []catalog.OrderItem, raw string) *catalog.Order {
	if existing == nil {
		order := &catalog.Order{
			BaseEntity:     shared.NewBaseEntity(),
			Provider:       provider,
			ExternalID:     externalID,
			PlacedAt:       payload.PlacedAt,
			BuyerCountry:   payload.BuyerCountry,
			BuyerCity:      payload.BuyerCity,
			DeliveryMethod: payload.DeliveryMethod,
			DeliveryCost:   payload.DeliveryCost,
			Currency:       payload.Currency,
			TotalOriginal:  payload.TotalOriginal,
			TotalPLN:       payload.TotalPLN,
			StatusCode:     payload.StatusCode,
			RawPayload:     raw,
			Items:          items,
		}
		return order
	}

	existing.StatusCode = payload.StatusCode
	existing.TotalOriginal = payload.TotalOriginal
	existing.TotalPLN = payload.TotalPLN
	existing.DeliveryCost = payload.DeliveryCost
	existing.RawPayload = raw
	existing.Items = items
	existing.Touch()
	return existing
}

// MergeOffer overwrites the snapshot fields with provider truth. A
// deactivated offer keeps its row and its marketplace link.
func MergeOffer(existing *catalog.Offer, payload *OfferPayload, provider catalog.ProviderCode, externalID string) *catalog.Offer {
	if existing == nil {
		return &catalog.Offer{
			BaseEntity:    shared.NewBaseEntity(),
			Provider:      provider,
			ExternalID:    externalID,
			PriceWithTax:  payload.PriceWithTax,
			Active:        payload.Active,
			StockQuantity: payload.StockQuantity,
			EAN:           payload.EAN,
		}
	}
	existing.PriceWithTax = payload.PriceWithTax
	existing.Active = payload.Active
	existing.StockQuantity = payload.StockQuantity
	if payload.EAN != "" {
		existing.EAN = payload.EAN
	}
	existing.Touch()
	return existing
}
