package cache

import (
	"context"
	"sync"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// InMemoryRefreshLock serializes token refreshes per provider inside one
// process. Suitable for single-instance deployments and testing.
type InMemoryRefreshLock struct {
	mu   sync.Mutex
	held map[catalog.ProviderCode]bool
}

// NewInMemoryRefreshLock creates a new in-memory refresh lock
func NewInMemoryRefreshLock() *InMemoryRefreshLock {
	return &InMemoryRefreshLock{
		held: make(map[catalog.ProviderCode]bool),
	}
}

// Acquire takes the per-provider lock, failing immediately when held
func (l *InMemoryRefreshLock) Acquire(ctx context.Context, provider catalog.ProviderCode) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[provider] {
		return nil, ErrRefreshLockHeld
	}
	l.held[provider] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.held, provider)
		})
	}
	return release, nil
}

// Ensure InMemoryRefreshLock implements the refresh lock port
var _ ingest.RefreshLock = (*InMemoryRefreshLock)(nil)
