package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Storage ports
// ---------------------------------------------------------------------------

// Lookup exposes the read side of the canonical store. All finders return
// (nil, nil) when no row matches.
type Lookup interface {
	FindProductBySKU(ctx context.Context, sku string) (*catalog.Product, error)
	FindMarketplace(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Marketplace, error)
	FindMarketplaceByName(ctx context.Context, name string) (*catalog.Marketplace, error)
	FindOrder(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Order, error)
	FindOffer(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Offer, error)
}

// Tx is the transactional write surface handed to a batch. Every write
// either commits with the whole batch or rolls back with it.
type Tx interface {
	Lookup

	SaveProduct(ctx context.Context, product *catalog.Product) error
	SaveMarketplace(ctx context.Context, marketplace *catalog.Marketplace) error
	// SaveOrder persists the order row before its items and replaces the
	// item set wholesale.
	SaveOrder(ctx context.Context, order *catalog.Order) error
	SaveOffer(ctx context.Context, offer *catalog.Offer) error

	// EnsureLink records a product/marketplace association. Existing links
	// are left untouched; links are never deleted.
	EnsureLink(ctx context.Context, productID, marketplaceID uuid.UUID) error
	// AppendStockHistory inserts a stock snapshot, ignoring duplicates for
	// the same product, marketplace and date.
	AppendStockHistory(ctx context.Context, snapshot *catalog.StockHistory) error
	AppendPriceHistory(ctx context.Context, entry *catalog.PriceHistory) error
}

// Gateway is the persistence port of the sync engine. Storage errors
// surfacing from WithinTx are classified into the domain taxonomy.
type Gateway interface {
	Lookup

	// WithinTx runs fn inside one transaction. fn returning an error rolls
	// everything back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// OrderReader exposes the order queries used by reporting
type OrderReader interface {
	ListOrdersBetween(ctx context.Context, from, to time.Time) ([]catalog.Order, error)
	ListMarketplaces(ctx context.Context) ([]catalog.Marketplace, error)
}

// ---------------------------------------------------------------------------
// Provider ports
// ---------------------------------------------------------------------------

// ProviderAdapter pulls normalized records out of one provider API.
// Implementations live in the infrastructure layer.
type ProviderAdapter interface {
	Provider() catalog.ProviderCode

	FetchMarketplaces(ctx context.Context) ([]Record, error)
	FetchProducts(ctx context.Context) ([]Record, error)
	FetchOrders(ctx context.Context, since, until time.Time) ([]Record, error)
	FetchOffers(ctx context.Context) ([]Record, error)
	FetchStock(ctx context.Context, date time.Time) ([]Record, error)
}

// RateSource provides currency-to-PLN conversion rates
type RateSource interface {
	// Rates returns mid rates keyed by ISO currency code. PLN maps to 1.
	Rates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// ---------------------------------------------------------------------------
// Credential ports
// ---------------------------------------------------------------------------

// CredentialStore persists the rotating token pair for a provider.
// Save writes both tokens and the state in one atomic operation.
type CredentialStore interface {
	Load(ctx context.Context, provider catalog.ProviderCode) (*CredentialRecord, error)
	Save(ctx context.Context, record *CredentialRecord) error
}

// TokenExchanger calls the provider's token endpoint
type TokenExchanger interface {
	Provider() catalog.ProviderCode
	// ExchangeAuthCode trades a one-time authorization code for a pair.
	ExchangeAuthCode(ctx context.Context, authCode string) (*TokenPair, error)
	// ExchangeRefreshToken rotates the pair. A rejected refresh token
	// surfaces as a CredentialError.
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// RefreshLock serializes token refreshes per provider
type RefreshLock interface {
	// Acquire returns a release function, or an error when another refresh
	// holds the lock.
	Acquire(ctx context.Context, provider catalog.ProviderCode) (func(), error)
}

// TokenPair is the result of a successful token exchange
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
}
