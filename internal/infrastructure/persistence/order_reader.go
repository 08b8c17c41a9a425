package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// GormOrderReader implements the reporting read port
type GormOrderReader struct {
	db *gorm.DB
}

// NewGormOrderReader creates a new GormOrderReader
func NewGormOrderReader(db *gorm.DB) *GormOrderReader {
	return &GormOrderReader{db: db}
}

// ListOrdersBetween returns orders placed inside [from, to], oldest first
func (r *GormOrderReader) ListOrdersBetween(ctx context.Context, from, to time.Time) ([]catalog.Order, error) {
	var orders []catalog.Order
	err := r.db.WithContext(ctx).
		Where("placed_at >= ? AND placed_at <= ?", from, to).
		Order("placed_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return orders, nil
}

// ListMarketplaces returns every known marketplace
func (r *GormOrderReader) ListMarketplaces(ctx context.Context) ([]catalog.Marketplace, error) {
	var marketplaces []catalog.Marketplace
	err := r.db.WithContext(ctx).Order("name ASC").Find(&marketplaces).Error
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return marketplaces, nil
}

// Ensure GormOrderReader implements the reporting port
var _ ingest.OrderReader = (*GormOrderReader)(nil)
