package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// GormGateway implements the ingest storage port on top of GORM
type GormGateway struct {
	db *gorm.DB
}

// NewGormGateway creates a new GormGateway
func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

// FindProductBySKU finds a product by its normalized SKU
func (g *GormGateway) FindProductBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return findProductBySKU(ctx, g.db, sku)
}

// FindMarketplace finds a marketplace by its provider identity
func (g *GormGateway) FindMarketplace(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Marketplace, error) {
	return findMarketplace(ctx, g.db, provider, externalID)
}

// FindMarketplaceByName finds a marketplace by its canonical name
func (g *GormGateway) FindMarketplaceByName(ctx context.Context, name string) (*catalog.Marketplace, error) {
	return findMarketplaceByName(ctx, g.db, name)
}

// FindOrder finds an order by its provider identity
func (g *GormGateway) FindOrder(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Order, error) {
	return findOrder(ctx, g.db, provider, externalID)
}

// FindOffer finds an offer by its provider identity
func (g *GormGateway) FindOffer(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Offer, error) {
	return findOffer(ctx, g.db, provider, externalID)
}

// WithinTx runs fn inside one database transaction. Errors coming back from
// the database are classified into the domain taxonomy before they surface.
func (g *GormGateway) WithinTx(ctx context.Context, fn func(tx ingest.Tx) error) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
	return classifyStorageError(err)
}

// Ensure GormGateway implements the storage port
var _ ingest.Gateway = (*GormGateway)(nil)

// gormTx is the transactional write surface. It wraps the transaction handle
// GORM passes into the callback.
type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) FindProductBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return findProductBySKU(ctx, t.db, sku)
}

func (t *gormTx) FindMarketplace(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Marketplace, error) {
	return findMarketplace(ctx, t.db, provider, externalID)
}

func (t *gormTx) FindMarketplaceByName(ctx context.Context, name string) (*catalog.Marketplace, error) {
	return findMarketplaceByName(ctx, t.db, name)
}

func (t *gormTx) FindOrder(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Order, error) {
	return findOrder(ctx, t.db, provider, externalID)
}

func (t *gormTx) FindOffer(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Offer, error) {
	return findOffer(ctx, t.db, provider, externalID)
}

func (t *gormTx) SaveProduct(ctx context.Context, product *catalog.Product) error {
	return t.db.WithContext(ctx).Save(product).Error
}

func (t *gormTx) SaveMarketplace(ctx context.Context, marketplace *catalog.Marketplace) error {
	return t.db.WithContext(ctx).Save(marketplace).Error
}

// SaveOrder upserts the order row first, then replaces its item set
// wholesale. Item rows carry fresh IDs on every sync.
func (t *gormTx) SaveOrder(ctx context.Context, order *catalog.Order) error {
	items := order.Items
	order.Items = nil
	defer func() { order.Items = items }()

	if err := t.db.WithContext(ctx).Save(order).Error; err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).
		Where("order_id = ?", order.ID).
		Delete(&catalog.OrderItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	return t.db.WithContext(ctx).Create(&items).Error
}

func (t *gormTx) SaveOffer(ctx context.Context, offer *catalog.Offer) error {
	return t.db.WithContext(ctx).Save(offer).Error
}

// EnsureLink inserts the association row unless it already exists. Links are
// append-only, so conflicts on the composite key are silently dropped.
func (t *gormTx) EnsureLink(ctx context.Context, productID, marketplaceID uuid.UUID) error {
	link := catalog.NewProductMarketplaceLink(productID, marketplaceID)
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "marketplace_id"}},
			DoNothing: true,
		}).
		Create(link).Error
}

// AppendStockHistory inserts a daily snapshot, ignoring duplicates for the
// same product, marketplace and date.
func (t *gormTx) AppendStockHistory(ctx context.Context, snapshot *catalog.StockHistory) error {
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "marketplace_id"}, {Name: "observed_date"}},
			DoNothing: true,
		}).
		Create(snapshot).Error
}

func (t *gormTx) AppendPriceHistory(ctx context.Context, entry *catalog.PriceHistory) error {
	return t.db.WithContext(ctx).Create(entry).Error
}

// Ensure gormTx implements the transactional write surface
var _ ingest.Tx = (*gormTx)(nil)

// ---------------------------------------------------------------------------
// Shared finders
// ---------------------------------------------------------------------------

func findProductBySKU(ctx context.Context, db *gorm.DB, sku string) (*catalog.Product, error) {
	var product catalog.Product
	err := db.WithContext(ctx).First(&product, "sku = ?", catalog.NormalizeSKU(sku)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return &product, nil
}

func findMarketplace(ctx context.Context, db *gorm.DB, provider catalog.ProviderCode, externalID string) (*catalog.Marketplace, error) {
	var marketplace catalog.Marketplace
	err := db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&marketplace).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return &marketplace, nil
}

func findMarketplaceByName(ctx context.Context, db *gorm.DB, name string) (*catalog.Marketplace, error) {
	var marketplace catalog.Marketplace
	err := db.WithContext(ctx).First(&marketplace, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return &marketplace, nil
}

func findOrder(ctx context.Context, db *gorm.DB, provider catalog.ProviderCode, externalID string) (*catalog.Order, error) {
	var order catalog.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return &order, nil
}

func findOffer(ctx context.Context, db *gorm.DB, provider catalog.ProviderCode, externalID string) (*catalog.Offer, error) {
	var offer catalog.Offer
	err := db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return &offer, nil
}

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------

// classifyStorageError maps database failures onto the domain taxonomy.
// Serialization failures, deadlocks, lost connections and cancelled
// statements are retryable; constraint violations are not.
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *ingest.Error
	if errors.As(err, &domainErr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case code == "40001" || code == "40P01":
			return ingest.NewTransientStorageError("serialization conflict", err)
		case strings.HasPrefix(code, "08"):
			return ingest.NewTransientStorageError("connection failure", err)
		case code == "57014" || strings.HasPrefix(code, "53"):
			return ingest.NewTransientStorageError("statement cancelled or resources exhausted", err)
		case code == "23505":
			// A unique violation under concurrent batches means another
			// transaction inserted the row first; a retry re-resolves and
			// finds it.
			return ingest.NewTransientStorageError("unique violation on concurrent insert", err)
		case strings.HasPrefix(code, "23"):
			return ingest.NewDataIntegrityError("constraint violation", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ingest.NewTransientStorageError("operation cancelled", err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ingest.NewTransientStorageError("unique violation on concurrent insert", err)
	}
	return ingest.NewTransientStorageError("storage failure", err)
}
