package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// CronTriggerConfig holds configuration for the periodic sync trigger
type CronTriggerConfig struct {
	// SyncInterval is how often product, order and offer syncs run.
	SyncInterval time.Duration
	// StockSnapshotHour is the local hour (0-23) the daily stock
	// snapshot is taken at.
	StockSnapshotHour int
	// OrderLookback is how far back each order pull reaches. Overlap with
	// the previous pull is fine because the pipeline upserts.
	OrderLookback time.Duration
	// Providers lists the providers the trigger schedules for.
	Providers []catalog.ProviderCode
}

// DefaultCronTriggerConfig returns default configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		SyncInterval:      15 * time.Minute,
		StockSnapshotHour: 6,
		OrderLookback:     24 * time.Hour,
		Providers:         []catalog.ProviderCode{catalog.ProviderBaselinker, catalog.ProviderApilo},
	}
}

// CronTrigger periodically feeds sync jobs into the scheduler
type CronTrigger struct {
	config    CronTriggerConfig
	scheduler *SyncScheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// lastSnapshot tracks which day already got its stock snapshot.
	lastSnapshot time.Time
}

// NewCronTrigger creates a new periodic trigger
func NewCronTrigger(config CronTriggerConfig, scheduler *SyncScheduler, logger *zap.Logger) *CronTrigger {
	return &CronTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start starts the trigger loop
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("sync cron trigger started",
		zap.Duration("sync_interval", c.config.SyncInterval),
		zap.Int("stock_snapshot_hour", c.config.StockSnapshotHour),
	)
	return nil
}

// Stop stops the trigger loop
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("sync cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.SyncInterval)
	defer ticker.Stop()

	// Run immediately on start.
	c.scheduleRound(time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.scheduleRound(now)
		}
	}
}

// scheduleRound queues the recurring jobs for every provider, plus the
// daily stock snapshot when its hour has come
func (c *CronTrigger) scheduleRound(now time.Time) {
	since := now.Add(-c.config.OrderLookback)
	for _, provider := range c.config.Providers {
		c.submit(NewSyncJob(provider, SyncJobKindProducts, since, now, 0))
		c.submit(NewSyncJob(provider, SyncJobKindOrders, since, now, 0))
		c.submit(NewSyncJob(provider, SyncJobKindOffers, since, now, 0))
	}

	day := now.Truncate(24 * time.Hour)
	if now.Hour() >= c.config.StockSnapshotHour && day.After(c.lastSnapshot) {
		for _, provider := range c.config.Providers {
			c.submit(NewSyncJob(provider, SyncJobKindStock, day, now, 0))
		}
		c.lastSnapshot = day
	}
}

func (c *CronTrigger) submit(job *SyncJob) {
	if err := c.scheduler.SubmitJob(job); err != nil {
		c.logger.Warn("failed to submit scheduled sync job",
			zap.String("provider", job.Provider.String()),
			zap.String("kind", string(job.Kind)),
			zap.Error(err),
		)
	}
}
