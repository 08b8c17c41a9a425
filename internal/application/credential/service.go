package credential

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

var ErrNoExchanger = errors.New("credential: no token exchanger registered for provider")

// Service owns every write to the credential store. It serializes refreshes
// per provider through the lock and persists each token pair atomically:
// access and refresh token always land in one Save.
type Service struct {
	store      ingest.CredentialStore
	exchangers map[catalog.ProviderCode]ingest.TokenExchanger
	lock       ingest.RefreshLock
	logger     *zap.Logger
}

// NewService creates a credential service over the registered exchangers
func NewService(store ingest.CredentialStore, exchangers []ingest.TokenExchanger, lock ingest.RefreshLock, logger *zap.Logger) *Service {
	registry := make(map[catalog.ProviderCode]ingest.TokenExchanger, len(exchangers))
	for _, exchanger := range exchangers {
		registry[exchanger.Provider()] = exchanger
	}
	return &Service{
		store:      store,
		exchangers: registry,
		lock:       lock,
		logger:     logger,
	}
}

// Status returns the stored credential record, creating the sentinel record
// on first access
func (s *Service) Status(ctx context.Context, provider catalog.ProviderCode) (*ingest.CredentialRecord, error) {
	record, err := s.store.Load(ctx, provider)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = ingest.NewUninitializedCredential(provider)
		if err := s.store.Save(ctx, record); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// Bootstrap exchanges a one-time authorization code for the first token
// pair. Valid only from the sentinel state or from Failed, where it is the
// operator recovery path.
func (s *Service) Bootstrap(ctx context.Context, provider catalog.ProviderCode, authCode string) (*ingest.CredentialRecord, error) {
	exchanger, ok := s.exchangers[provider]
	if !ok {
		return nil, ErrNoExchanger
	}
	release, err := s.lock.Acquire(ctx, provider)
	if err != nil {
		return nil, err
	}
	defer release()

	record, err := s.Status(ctx, provider)
	if err != nil {
		return nil, err
	}
	if record.State == ingest.CredentialStateActive || record.State == ingest.CredentialStateRefreshPending {
		return nil, ingest.ErrCredentialAlreadyActive
	}

	pair, err := exchanger.ExchangeAuthCode(ctx, authCode)
	if err != nil {
		return nil, err
	}
	if err := record.Bootstrap(pair); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("provider credentials bootstrapped", zap.String("provider", provider.String()))
	return record, nil
}

// Refresh rotates the token pair. The provider invalidates the old pair on
// exchange, so the rotated pair is persisted before Refresh reports
// success. A rejected refresh token is terminal: the record moves to Failed
// and stays there until an operator re-bootstraps.
func (s *Service) Refresh(ctx context.Context, provider catalog.ProviderCode) (*ingest.CredentialRecord, error) {
	exchanger, ok := s.exchangers[provider]
	if !ok {
		return nil, ErrNoExchanger
	}
	release, err := s.lock.Acquire(ctx, provider)
	if err != nil {
		return nil, err
	}
	defer release()

	record, err := s.Status(ctx, provider)
	if err != nil {
		return nil, err
	}
	if err := record.BeginRefresh(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, record); err != nil {
		return nil, err
	}

	pair, err := exchanger.ExchangeRefreshToken(ctx, record.RefreshToken)
	if err != nil {
		if ingest.KindOf(err) == ingest.ErrorKindCredential {
			record.MarkFailed()
			if saveErr := s.store.Save(ctx, record); saveErr != nil {
				return nil, saveErr
			}
			s.logger.Error("refresh token rejected, credentials failed",
				zap.String("provider", provider.String()),
			)
			return nil, err
		}
		// Transient failure: the record stays RefreshPending and the next
		// refresh attempt recovers with the stored refresh token.
		return nil, err
	}

	if err := record.CompleteRefresh(pair); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("provider credentials rotated", zap.String("provider", provider.String()))
	return record, nil
}

// AccessToken returns a usable access token, recovering an interrupted
// refresh first. Callers get a CredentialError when the provider needs a
// bootstrap or re-bootstrap.
func (s *Service) AccessToken(ctx context.Context, provider catalog.ProviderCode) (string, error) {
	record, err := s.Status(ctx, provider)
	if err != nil {
		return "", err
	}
	switch record.State {
	case ingest.CredentialStateActive:
		return record.AccessToken, nil
	case ingest.CredentialStateRefreshPending:
		record, err = s.Refresh(ctx, provider)
		if err != nil {
			return "", err
		}
		return record.AccessToken, nil
	case ingest.CredentialStateFailed:
		return "", ingest.NewCredentialError("credentials failed, re-bootstrap required", ingest.ErrCredentialFailed)
	default:
		return "", ingest.NewCredentialError("credentials not bootstrapped", ingest.ErrCredentialNotBootstrapped)
	}
}
