package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// ErrRefreshLockHeld is returned when another refresh holds the lock
var ErrRefreshLockHeld = errors.New("cache: token refresh lock already held")

// releaseScript deletes the lock only when the caller still owns it, so a
// slow holder cannot release a lease that already expired and was re-taken.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisRefreshLock serializes token refreshes per provider across instances.
// The lease expires on its own, so a crashed holder never wedges refreshes.
type RedisRefreshLock struct {
	client    *redis.Client
	keyPrefix string
	leaseTTL  time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisRefreshLock creates a new Redis-backed refresh lock
func NewRedisRefreshLock(cfg RedisConfig, leaseTTL time.Duration) (*RedisRefreshLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRefreshLockWithClient(client, leaseTTL), nil
}

// NewRedisRefreshLockWithClient creates a lock with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisRefreshLockWithClient(client *redis.Client, leaseTTL time.Duration) *RedisRefreshLock {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}
	return &RedisRefreshLock{
		client:    client,
		keyPrefix: "credential:refresh_lock:",
		leaseTTL:  leaseTTL,
	}
}

// Acquire takes the per-provider lease via SETNX. The returned release
// function is safe to call after the lease expired.
func (l *RedisRefreshLock) Acquire(ctx context.Context, provider catalog.ProviderCode) (func(), error) {
	key := l.keyPrefix + provider.String()
	holder := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, holder, l.leaseTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire refresh lock: %w", err)
	}
	if !acquired {
		return nil, ErrRefreshLockHeld
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, holder).Err()
	}
	return release, nil
}

// Close closes the Redis client
func (l *RedisRefreshLock) Close() error {
	return l.client.Close()
}

// Ensure RedisRefreshLock implements the refresh lock port
var _ ingest.RefreshLock = (*RedisRefreshLock)(nil)
