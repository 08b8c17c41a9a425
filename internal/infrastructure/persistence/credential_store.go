package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// CredentialModel is the persisted token pair for one provider. The provider
// code is the primary key, so there is exactly one row per provider and an
// upsert replaces both tokens and the state in a single statement.
type CredentialModel struct {
	Provider     string    `gorm:"type:varchar(20);primaryKey"`
	AccessToken  string    `gorm:"type:text;not null"`
	RefreshToken string    `gorm:"type:text;not null"`
	State        string    `gorm:"type:varchar(20);not null"`
	IssuedAt     time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CredentialModel) TableName() string {
	return "provider_credentials"
}

// ToDomain converts the model to a domain record
func (m *CredentialModel) ToDomain() *ingest.CredentialRecord {
	return &ingest.CredentialRecord{
		Provider:     catalog.ProviderCode(m.Provider),
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		State:        ingest.CredentialState(m.State),
		IssuedAt:     m.IssuedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// CredentialModelFromDomain converts a domain record to the persistence model
func CredentialModelFromDomain(record *ingest.CredentialRecord) *CredentialModel {
	return &CredentialModel{
		Provider:     record.Provider.String(),
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		State:        record.State.String(),
		IssuedAt:     record.IssuedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

// GormCredentialStore implements the credential store on top of GORM
type GormCredentialStore struct {
	db *gorm.DB
}

// NewGormCredentialStore creates a new GormCredentialStore
func NewGormCredentialStore(db *gorm.DB) *GormCredentialStore {
	return &GormCredentialStore{db: db}
}

// Load returns the stored record for a provider, or (nil, nil) when the
// provider was never seen
func (s *GormCredentialStore) Load(ctx context.Context, provider catalog.ProviderCode) (*ingest.CredentialRecord, error) {
	var model CredentialModel
	err := s.db.WithContext(ctx).First(&model, "provider = ?", provider.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return model.ToDomain(), nil
}

// Save upserts the record. Both tokens and the state land in one statement,
// so a crash can never persist half a rotation.
func (s *GormCredentialStore) Save(ctx context.Context, record *ingest.CredentialRecord) error {
	model := CredentialModelFromDomain(record)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}},
			UpdateAll: true,
		}).
		Create(model).Error
	return classifyStorageError(err)
}

// Ensure GormCredentialStore implements the credential port
var _ ingest.CredentialStore = (*GormCredentialStore)(nil)
