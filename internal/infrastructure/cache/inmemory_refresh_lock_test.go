package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/catalog"
)

func TestInMemoryRefreshLock_Acquire(t *testing.T) {
	t.Run("second acquire fails while held", func(t *testing.T) {
		lock := NewInMemoryRefreshLock()

		release, err := lock.Acquire(context.Background(), catalog.ProviderApilo)
		require.NoError(t, err)

		_, err = lock.Acquire(context.Background(), catalog.ProviderApilo)
		assert.ErrorIs(t, err, ErrRefreshLockHeld)

		release()

		release2, err := lock.Acquire(context.Background(), catalog.ProviderApilo)
		require.NoError(t, err)
		release2()
	})

	t.Run("providers lock independently", func(t *testing.T) {
		lock := NewInMemoryRefreshLock()

		releaseApilo, err := lock.Acquire(context.Background(), catalog.ProviderApilo)
		require.NoError(t, err)
		defer releaseApilo()

		releaseBaselinker, err := lock.Acquire(context.Background(), catalog.ProviderBaselinker)
		require.NoError(t, err)
		defer releaseBaselinker()
	})

	t.Run("double release is harmless", func(t *testing.T) {
		lock := NewInMemoryRefreshLock()

		release, err := lock.Acquire(context.Background(), catalog.ProviderApilo)
		require.NoError(t, err)
		release()
		release()

		release2, err := lock.Acquire(context.Background(), catalog.ProviderApilo)
		require.NoError(t, err)
		release2()
	})
}
