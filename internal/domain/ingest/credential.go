package ingest

import (
	"errors"
	"time"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// SentinelToken is the placeholder stored before a provider has ever been
// bootstrapped. A record whose tokens equal the sentinel is Uninitialized.
const SentinelToken = "-1"

var (
	ErrCredentialNotBootstrapped  = errors.New("ingest: provider credentials not bootstrapped")
	ErrCredentialAlreadyActive    = errors.New("ingest: provider credentials already active")
	ErrCredentialFailed           = errors.New("ingest: provider credentials in failed state, re-bootstrap required")
	ErrCredentialRefreshInFlight  = errors.New("ingest: token refresh already in progress")
	ErrCredentialInvalidTokenPair = errors.New("ingest: token pair is incomplete")
)

// ---------------------------------------------------------------------------
// CredentialState
// ---------------------------------------------------------------------------

// CredentialState is the token lifecycle state for one provider
type CredentialState string

const (
	// CredentialStateUninitialized means only the sentinel pair exists.
	CredentialStateUninitialized CredentialState = "UNINITIALIZED"
	// CredentialStateActive means the stored pair is usable.
	CredentialStateActive CredentialState = "ACTIVE"
	// CredentialStateRefreshPending means a refresh started but its result
	// was not yet persisted. Recovery re-attempts the refresh.
	CredentialStateRefreshPending CredentialState = "REFRESH_PENDING"
	// CredentialStateFailed is terminal until an operator re-bootstraps.
	CredentialStateFailed CredentialState = "FAILED"
)

// IsValid returns true if the state is valid
func (s CredentialState) IsValid() bool {
	switch s {
	case CredentialStateUninitialized, CredentialStateActive, CredentialStateRefreshPending, CredentialStateFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of CredentialState
func (s CredentialState) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// CredentialRecord
// ---------------------------------------------------------------------------

// CredentialRecord is the single persisted token pair for a provider.
// Only the credential service writes it.
type CredentialRecord struct {
	Provider     catalog.ProviderCode
	AccessToken  string
	RefreshToken string
	State        CredentialState
	IssuedAt     time.Time
	UpdatedAt    time.Time
}

// NewUninitializedCredential returns the sentinel record for a provider
func NewUninitializedCredential(provider catalog.ProviderCode) *CredentialRecord {
	now := time.Now()
	return &CredentialRecord{
		Provider:     provider,
		AccessToken:  SentinelToken,
		RefreshToken: SentinelToken,
		State:        CredentialStateUninitialized,
		IssuedAt:     now,
		UpdatedAt:    now,
	}
}

// IsSentinel returns true when the record still holds the placeholder pair
func (r *CredentialRecord) IsSentinel() bool {
	return r.AccessToken == SentinelToken || r.RefreshToken == SentinelToken
}

// Bootstrap installs the first real token pair. Valid from Uninitialized,
// and from Failed as the operator recovery path.
func (r *CredentialRecord) Bootstrap(pair *TokenPair) error {
	if r.State == CredentialStateActive || r.State == CredentialStateRefreshPending {
		return ErrCredentialAlreadyActive
	}
	return r.install(pair)
}

// BeginRefresh transitions Active to RefreshPending. Refreshing from
// RefreshPending is allowed: that is the crash-recovery path.
func (r *CredentialRecord) BeginRefresh() error {
	switch r.State {
	case CredentialStateActive, CredentialStateRefreshPending:
		r.State = CredentialStateRefreshPending
		r.UpdatedAt = time.Now()
		return nil
	case CredentialStateFailed:
		return ErrCredentialFailed
	default:
		return ErrCredentialNotBootstrapped
	}
}

// CompleteRefresh installs the rotated pair and returns to Active
func (r *CredentialRecord) CompleteRefresh(pair *TokenPair) error {
	if r.State != CredentialStateRefreshPending {
		return ErrCredentialNotBootstrapped
	}
	return r.install(pair)
}

// MarkFailed records a terminal credential rejection
func (r *CredentialRecord) MarkFailed() {
	r.State = CredentialStateFailed
	r.UpdatedAt = time.Now()
}

// Usable returns true when the access token may be sent to the provider
func (r *CredentialRecord) Usable() bool {
	return r.State == CredentialStateActive && !r.IsSentinel()
}

func (r *CredentialRecord) install(pair *TokenPair) error {
	if pair == nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		return ErrCredentialInvalidTokenPair
	}
	if pair.AccessToken == SentinelToken || pair.RefreshToken == SentinelToken {
		return ErrCredentialInvalidTokenPair
	}
	r.AccessToken = pair.AccessToken
	r.RefreshToken = pair.RefreshToken
	r.State = CredentialStateActive
	r.IssuedAt = pair.IssuedAt
	r.UpdatedAt = time.Now()
	return nil
}
