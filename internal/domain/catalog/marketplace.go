package catalog

import (
	"errors"

	"github.com/marketsync/backend/internal/domain/shared"
)

var (
	ErrMarketplaceEmptyExternalID = errors.New("catalog: marketplace external ID is required")
	ErrMarketplaceEmptyName       = errors.New("catalog: marketplace name is required")
)

// Marketplace is a sales channel reported by a provider. Identity is the
// (provider, external ID) pair; the canonical display name may differ from
// the raw provider name when a rename mapping applies.
type Marketplace struct {
	shared.BaseEntity
	Provider   ProviderCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_marketplace_provider_ext,priority:1"`
	ExternalID string       `gorm:"type:varchar(100);not null;uniqueIndex:idx_marketplace_provider_ext,priority:2"`
	// Name is the canonical display name used in reports.
	Name string `gorm:"type:varchar(100);not null"`
	// RawName is the name exactly as the provider reported it.
	RawName string `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (Marketplace) TableName() string {
	return "marketplaces"
}

// NewMarketplace creates a marketplace with the canonical and raw names
func NewMarketplace(provider ProviderCode, externalID, name, rawName string) (*Marketplace, error) {
	if externalID == "" {
		return nil, ErrMarketplaceEmptyExternalID
	}
	if name == "" {
		return nil, ErrMarketplaceEmptyName
	}
	return &Marketplace{
		BaseEntity: shared.NewBaseEntity(),
		Provider:   provider,
		ExternalID: externalID,
		Name:       name,
		RawName:    rawName,
	}, nil
}
