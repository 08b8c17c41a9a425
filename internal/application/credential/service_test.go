package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// fakeStore keeps records in memory and remembers every save so tests can
// assert that token pairs are persisted atomically.
type fakeStore struct {
	records map[catalog.ProviderCode]*ingest.CredentialRecord
	saves   []ingest.CredentialRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[catalog.ProviderCode]*ingest.CredentialRecord{}}
}

func (s *fakeStore) Load(_ context.Context, provider catalog.ProviderCode) (*ingest.CredentialRecord, error) {
	record, ok := s.records[provider]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *fakeStore) Save(_ context.Context, record *ingest.CredentialRecord) error {
	copied := *record
	s.records[record.Provider] = &copied
	s.saves = append(s.saves, copied)
	return nil
}

type mockExchanger struct {
	mock.Mock
}

func (m *mockExchanger) Provider() catalog.ProviderCode {
	return catalog.ProviderApilo
}

func (m *mockExchanger) ExchangeAuthCode(ctx context.Context, authCode string) (*ingest.TokenPair, error) {
	args := m.Called(ctx, authCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.TokenPair), args.Error(1)
}

func (m *mockExchanger) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*ingest.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.TokenPair), args.Error(1)
}

type noopLock struct{}

func (noopLock) Acquire(context.Context, catalog.ProviderCode) (func(), error) {
	return func() {}, nil
}

func pair(access, refresh string) *ingest.TokenPair {
	return &ingest.TokenPair{AccessToken: access, RefreshToken: refresh, IssuedAt: time.Now()}
}

func newService(store *fakeStore, exchanger *mockExchanger) *Service {
	return NewService(store, []ingest.TokenExchanger{exchanger}, noopLock{}, zap.NewNop())
}

func TestBootstrapFromSentinel(t *testing.T) {
	store := newFakeStore()
	exchanger := &mockExchanger{}
	exchanger.On("ExchangeAuthCode", mock.Anything, "auth-code").Return(pair("acc-1", "ref-1"), nil)

	service := newService(store, exchanger)

	record, err := service.Bootstrap(context.Background(), catalog.ProviderApilo, "auth-code")
	require.NoError(t, err)

	assert.Equal(t, ingest.CredentialStateActive, record.State)
	assert.Equal(t, "acc-1", record.AccessToken)
	assert.Equal(t, "ref-1", record.RefreshToken)
	exchanger.AssertExpectations(t)
}

func TestBootstrapRejectedWhenActive(t *testing.T) {
	store := newFakeStore()
	exchanger := &mockExchanger{}
	exchanger.On("ExchangeAuthCode", mock.Anything, "code-1").Return(pair("acc-1", "ref-1"), nil).Once()

	service := newService(store, exchanger)
	_, err := service.Bootstrap(context.Background(), catalog.ProviderApilo, "code-1")
	require.NoError(t, err)

	_, err = service.Bootstrap(context.Background(), catalog.ProviderApilo, "code-2")
	assert.ErrorIs(t, err, ingest.ErrCredentialAlreadyActive)
}

func TestRefreshRotatesAtomically(t *testing.T) {
	store := newFakeStore()
	exchanger := &mockExchanger{}
	exchanger.On("ExchangeAuthCode", mock.Anything, "code").Return(pair("acc-1", "ref-1"), nil)
	exchanger.On("ExchangeRefreshToken", mock.Anything, "ref-1").Return(pair("acc-2", "ref-2"), nil)

	service := newService(store, exchanger)
	_, err := service.Bootstrap(context.Background(), catalog.ProviderApilo, "code")
	require.NoError(t, err)

	record, err := service.Refresh(context.Background(), catalog.ProviderApilo)
	require.NoError(t, err)
	assert.Equal(t, "acc-2", record.AccessToken)
	assert.Equal(t, "ref-2", record.RefreshToken)

	// No persisted snapshot may ever mix the old access token with the new
	// refresh token or vice versa.
	for _, saved := range store.saves {
		oldPair := saved.AccessToken == "acc-1" && saved.RefreshToken == "ref-1"
		newPair := saved.AccessToken == "acc-2" && saved.RefreshToken == "ref-2"
		sentinel := saved.AccessToken == ingest.SentinelToken
		assert.True(t, oldPair || newPair || sentinel, "mixed token pair persisted: %+v", saved)
	}
}

func TestRefreshRejectedTokenIsTerminal(t *testing.T) {
	store := newFakeStore()
	exchanger := &mockExchanger{}
	exchanger.On("ExchangeAuthCode", mock.Anything, "code").Return(pair("acc-1", "ref-1"), nil)
	rejection := ingest.NewCredentialError("invalid_grant", nil)
	exchanger.On("ExchangeRefreshToken", mock.Anything, "ref-1").Return(nil, rejection)

	service := newService(store, exchanger)
	_, err := service.Bootstrap(context.Background(), catalog.ProviderApilo, "code")
	require.NoError(t, err)

	_, err = service.Refresh(context.Background(), catalog.ProviderApilo)
	require.Error(t, err)

	record, err := service.Status(context.Background(), catalog.ProviderApilo)
	require.NoError(t, err)
	assert.Equal(t, ingest.CredentialStateFailed, record.State)

	// Every subsequent use is rejected until re-bootstrap.
	_, err = service.AccessToken(context.Background(), catalog.ProviderApilo)
	assert.Equal(t, ingest.ErrorKindCredential, ingest.KindOf(err))
	_, err = service.Refresh(context.Background(), catalog.ProviderApilo)
	assert.ErrorIs(t, err, ingest.ErrCredentialFailed)
}

func TestRefreshTransientFailureKeepsPending(t *testing.T) {
	store := newFakeStore()
	exchanger := &mockExchanger{}
	exchanger.On("ExchangeAuthCode", mock.Anything, "code").Return(pair("acc-1", "ref-1"), nil)
	exchanger.On("ExchangeRefreshToken", mock.Anything, "ref-1").Return(nil, errors.New("connection reset")).Once()
	exchanger.On("ExchangeRefreshToken", mock.Anything, "ref-1").Return(pair("acc-2", "ref-2"), nil).Once()

	service := newService(store, exchanger)
	_, err := service.Bootstrap(context.Background(), catalog.ProviderApilo, "code")
	require.NoError(t, err)

	_, err = service.Refresh(context.Background(), catalog.ProviderApilo)
	require.Error(t, err)

	record, err := service.Status(context.Background(), catalog.ProviderApilo)
	require.NoError(t, err)
	assert.Equal(t, ingest.CredentialStateRefreshPending, record.State)
	assert.Equal(t, "ref-1", record.RefreshToken, "stored pair untouched until exchange succeeds")

	// Crash-recovery outcome one: the exchange never happened on the
	// provider, so the stored refresh token still works.
	record, err = service.Refresh(context.Background(), catalog.ProviderApilo)
	require.NoError(t, err)
	assert.Equal(t, ingest.CredentialStateActive, record.State)
	assert.Equal(t, "acc-2", record.AccessToken)
}

func TestAccessTokenRecoversPendingRefresh(t *testing.T) {
	store := newFakeStore()
	exchanger := &mockExchanger{}
	exchanger.On("ExchangeAuthCode", mock.Anything, "code").Return(pair("acc-1", "ref-1"), nil)
	// Crash-recovery outcome two: the provider already rotated, the stored
	// refresh token is dead, and the machine lands in Failed.
	exchanger.On("ExchangeRefreshToken", mock.Anything, "ref-1").Return(nil, ingest.NewCredentialError("invalid_grant", nil))

	service := newService(store, exchanger)
	_, err := service.Bootstrap(context.Background(), catalog.ProviderApilo, "code")
	require.NoError(t, err)

	// Simulate the crash: persist RefreshPending by hand.
	record := store.records[catalog.ProviderApilo]
	record.State = ingest.CredentialStateRefreshPending
	store.records[catalog.ProviderApilo] = record

	_, err = service.AccessToken(context.Background(), catalog.ProviderApilo)
	require.Error(t, err)

	stored, err := service.Status(context.Background(), catalog.ProviderApilo)
	require.NoError(t, err)
	assert.Equal(t, ingest.CredentialStateFailed, stored.State)
}

func TestAccessTokenRequiresBootstrap(t *testing.T) {
	service := newService(newFakeStore(), &mockExchanger{})
	_, err := service.AccessToken(context.Background(), catalog.ProviderApilo)
	require.Error(t, err)
	assert.Equal(t, ingest.ErrorKindCredential, ingest.KindOf(err))
}
