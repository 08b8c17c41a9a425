package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
	"github.com/marketsync/backend/internal/domain/shared"
)

var (
	ErrPipelineInvalidBatchSize   = errors.New("ingest: batch size must be positive")
	ErrPipelineInvalidConcurrency = errors.New("ingest: concurrency must be positive")
)

// ---------------------------------------------------------------------------
// Options and summary types
// ---------------------------------------------------------------------------

// PipelineOptions controls batching, concurrency and retry behavior
type PipelineOptions struct {
	// BatchSize is the number of records per transaction.
	BatchSize int
	// Concurrency is the number of batch workers.
	Concurrency int
	// MaxAttempts bounds retries of transiently failing batches.
	MaxAttempts int
	// RetryBaseDelay is the base delay for exponential backoff.
	RetryBaseDelay time.Duration
	// BatchTimeout bounds each batch transaction. A timeout counts as a
	// transient failure.
	BatchTimeout time.Duration
}

// DefaultPipelineOptions returns the default pipeline tuning
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		BatchSize:      100,
		Concurrency:    4,
		MaxAttempts:    3,
		RetryBaseDelay: 200 * time.Millisecond,
		BatchTimeout:   30 * time.Second,
	}
}

// Validate validates the pipeline options
func (o *PipelineOptions) Validate() error {
	if o.BatchSize <= 0 {
		return ErrPipelineInvalidBatchSize
	}
	if o.Concurrency <= 0 {
		return ErrPipelineInvalidConcurrency
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 200 * time.Millisecond
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 30 * time.Second
	}
	return nil
}

// FailureDetail enumerates one failed record in a run summary
type FailureDetail struct {
	Ref     ingest.EntityRef
	Kind    ingest.ErrorKind
	Message string
}

// SkipDetail enumerates one skipped record in a run summary
type SkipDetail struct {
	Ref    ingest.EntityRef
	Reason string
}

// RunSummary is the aggregate outcome of one pipeline run. A run always
// completes: per-record problems are enumerated here, never silently
// dropped and never fatal to the run.
type RunSummary struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Inserted   int
	Updated    int
	Skipped    int
	Failed     []FailureDetail
	Skips      []SkipDetail
}

// FailedCount returns the number of failed records
func (s *RunSummary) FailedCount() int {
	return len(s.Failed)
}

// Absorb folds another summary into this one, keeping the earliest start
// and the latest finish
func (s *RunSummary) Absorb(other *RunSummary) {
	if other == nil {
		return
	}
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Failed = append(s.Failed, other.Failed...)
	s.Skips = append(s.Skips, other.Skips...)
	if other.FinishedAt.After(s.FinishedAt) {
		s.FinishedAt = other.FinishedAt
	}
	if s.StartedAt.IsZero() || (!other.StartedAt.IsZero() && other.StartedAt.Before(s.StartedAt)) {
		s.StartedAt = other.StartedAt
	}
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Pipeline is the batched upsert engine. Records are split into contiguous
// batches, each batch runs in its own transaction on a bounded worker pool,
// and every batch either commits completely or rolls back completely.
type Pipeline struct {
	gateway    ingest.Gateway
	resolver   *ingest.Resolver
	ignoreList map[catalog.ProviderCode]map[int]struct{}
	logger     *zap.Logger
	opts       PipelineOptions
}

// NewPipeline creates a pipeline with per-provider order status ignore lists
func NewPipeline(gateway ingest.Gateway, resolver *ingest.Resolver, ignoreStatuses map[catalog.ProviderCode][]int, opts PipelineOptions, logger *zap.Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ignoreList := make(map[catalog.ProviderCode]map[int]struct{}, len(ignoreStatuses))
	for provider, codes := range ignoreStatuses {
		set := make(map[int]struct{}, len(codes))
		for _, code := range codes {
			set[code] = struct{}{}
		}
		ignoreList[provider] = set
	}
	return &Pipeline{
		gateway:    gateway,
		resolver:   resolver,
		ignoreList: ignoreList,
		logger:     logger,
		opts:       opts,
	}, nil
}

type batch struct {
	index   int
	records []ingest.Record
}

// batchResult collects counters inside a transaction; it is merged into the
// summary only after the transaction commits.
type batchResult struct {
	inserted int
	updated  int
	skips    []SkipDetail
}

// Run processes records and returns the run summary. Empty input returns a
// zero summary without touching storage. Context cancellation stops the
// dispatch of new batches; in-flight batches finish or roll back.
func (p *Pipeline) Run(ctx context.Context, records []ingest.Record) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}
	if len(records) == 0 {
		summary.FinishedAt = time.Now()
		return summary, nil
	}

	batches := make([]batch, 0, (len(records)+p.opts.BatchSize-1)/p.opts.BatchSize)
	for start := 0; start < len(records); start += p.opts.BatchSize {
		end := start + p.opts.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, batch{index: len(batches), records: records[start:end]})
	}

	jobs := make(chan batch)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := p.opts.Concurrency
	if workers > len(batches) {
		workers = len(batches)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				result, failures := p.processBatch(ctx, b)
				mu.Lock()
				if result != nil {
					summary.Inserted += result.inserted
					summary.Updated += result.updated
					summary.Skipped += len(result.skips)
					summary.Skips = append(summary.Skips, result.skips...)
				}
				summary.Failed = append(summary.Failed, failures...)
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, b := range batches {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- b:
		}
	}
	close(jobs)
	wg.Wait()

	summary.FinishedAt = time.Now()
	p.logger.Info("ingest run completed",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("records", len(records)),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", len(summary.Failed)),
	)
	return summary, nil
}

// processBatch runs one batch with retries. On success it returns the
// committed counters; on a non-retriable or exhausted failure it returns
// one FailureDetail per record that would have been written, keeping
// deterministic skips enumerated as skips.
func (p *Pipeline) processBatch(ctx context.Context, b batch) (*batchResult, []FailureDetail) {
	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		result := &batchResult{}
		batchCtx, cancel := context.WithTimeout(ctx, p.opts.BatchTimeout)
		err := p.gateway.WithinTx(batchCtx, func(tx ingest.Tx) error {
			for i := range b.records {
				if err := p.applyRecord(batchCtx, tx, &b.records[i], result); err != nil {
					return err
				}
			}
			return nil
		})
		cancel()

		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = ingest.NewTransientStorageError("batch transaction timed out", err)
		}
		if !ingest.IsTransient(lastErr) || attempt == p.opts.MaxAttempts {
			break
		}

		delay := p.opts.RetryBaseDelay * time.Duration(1<<(attempt-1))
		if delay > 5*time.Second {
			delay = 5 * time.Second
		}
		p.logger.Warn("retrying batch after transient failure",
			zap.Int("batch", b.index),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			lastErr = ingest.NewTransientStorageError("run cancelled", ctx.Err())
			attempt = p.opts.MaxAttempts
		case <-time.After(delay):
		}
	}

	// The rolled-back attempt's counters are discarded, but records the
	// batch would have skipped anyway are still skips, not casualties of
	// the storage error.
	kind := ingest.KindOf(lastErr)
	skipped := &batchResult{}
	failures := make([]FailureDetail, 0, len(b.records))
	for i := range b.records {
		if reason := p.staticSkipReason(&b.records[i]); reason != "" {
			skipped.skips = append(skipped.skips, SkipDetail{Ref: b.records[i].Ref(), Reason: reason})
			continue
		}
		failures = append(failures, FailureDetail{
			Ref:     b.records[i].Ref(),
			Kind:    kind,
			Message: lastErr.Error(),
		})
	}
	p.logger.Error("batch failed",
		zap.Int("batch", b.index),
		zap.String("kind", kind.String()),
		zap.Error(lastErr),
	)
	return skipped, failures
}

// staticSkipReason reports whether a record is skipped regardless of
// storage state: it is malformed or its order status is ignore-listed.
func (p *Pipeline) staticSkipReason(record *ingest.Record) string {
	if err := record.Validate(); err != nil {
		return err.Error()
	}
	if record.Kind == ingest.RecordKindOrder && p.isIgnored(record.Provider, record.Order.StatusCode) {
		return "order status is ignore-listed"
	}
	return ""
}

// applyRecord resolves, merges and persists one record inside the batch
// transaction. Validation problems and ignore-listed orders are recorded as
// skips and do not abort the batch.
func (p *Pipeline) applyRecord(ctx context.Context, tx ingest.Tx, record *ingest.Record, result *batchResult) error {
	if err := record.Validate(); err != nil {
		result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: err.Error()})
		return nil
	}

	switch record.Kind {
	case ingest.RecordKindProduct:
		return p.applyProduct(ctx, tx, record, result)
	case ingest.RecordKindMarketplace:
		return p.applyMarketplace(ctx, tx, record, result)
	case ingest.RecordKindOrder:
		return p.applyOrder(ctx, tx, record, result)
	case ingest.RecordKindOffer:
		return p.applyOffer(ctx, tx, record, result)
	case ingest.RecordKindStock:
		return p.applyStock(ctx, tx, record, result)
	default:
		result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: "unknown record kind"})
		return nil
	}
}

func (p *Pipeline) applyProduct(ctx context.Context, tx ingest.Tx, record *ingest.Record, result *batchResult) error {
	existing, err := tx.FindProductBySKU(ctx, catalog.NormalizeSKU(record.Product.SKU))
	if err != nil {
		return err
	}
	merged, err := ingest.MergeProduct(existing, record.Product, record.Provider)
	if err != nil {
		result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: err.Error()})
		return nil
	}
	if err := tx.SaveProduct(ctx, merged); err != nil {
		return err
	}
	p.count(existing == nil, result)
	return nil
}

func (p *Pipeline) applyMarketplace(ctx context.Context, tx ingest.Tx, record *ingest.Record, result *batchResult) error {
	existing, err := p.resolver.ResolveMarketplaceIn(ctx, tx, record.Provider, record.ExternalID, record.Marketplace.Name)
	if err != nil {
		return err
	}
	canonical := p.resolver.CanonicalName(record.Marketplace.Name)
	merged, err := ingest.MergeMarketplace(existing, record.Provider, record.ExternalID, record.Marketplace.Name, canonical)
	if err != nil {
		result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: err.Error()})
		return nil
	}
	if err := tx.SaveMarketplace(ctx, merged); err != nil {
		return err
	}
	p.count(existing == nil, result)
	return nil
}

func (p *Pipeline) applyOrder(ctx context.Context, tx ingest.Tx, record *ingest.Record, result *batchResult) error {
	if p.isIgnored(record.Provider, record.Order.StatusCode) {
		result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: "order status is ignore-listed"})
		return nil
	}

	marketplace, err := tx.FindMarketplace(ctx, record.Provider, record.Order.ExternalMarketplaceID)
	if err != nil {
		return err
	}
	if marketplace == nil {
		result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: "order references unknown marketplace " + record.Order.ExternalMarketplaceID})
		return nil
	}

	existing, err := tx.FindOrder(ctx, record.Provider, record.ExternalID)
	if err != nil {
		return err
	}

	items := make([]catalog.OrderItem, 0, len(record.Order.Items))
	for idx, line := range record.Order.Items {
		product, err := p.lineProduct(ctx, tx, record.Provider, line, result)
		if err != nil {
			return err
		}
		item := catalog.OrderItem{
			BaseEntity:   shared.NewBaseEntity(),
			ProductID:    product.ID,
			LineIndex:    idx,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			UnitPricePLN: line.UnitPricePLN,
			TaxRate:      line.TaxRate,
		}
		items = append(items, item)
	}

	merged := ingest.MergeOrder(existing, record.Order, record.Provider, record.ExternalID, items, record.Raw)
	merged.MarketplaceID = marketplace.ID
	if existing != nil {
		merged.MarketplaceID = existing.MarketplaceID
	}
	if err := tx.SaveOrder(ctx, merged); err != nil {
		return err
	}
	p.count(existing == nil, result)
	return nil
}

// lineProduct finds or creates the product an order line refers to. Lines
// for unseen SKUs create a minimal product so order history stays complete.
func (p *Pipeline) lineProduct(ctx context.Context, tx ingest.Tx, provider catalog.ProviderCode, line ingest.OrderItemPayload, result *batchResult) (*catalog.Product, error) {
	sku := catalog.NormalizeSKU(line.SKU)
	product, err := tx.FindProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if product != nil {
		return product, nil
	}
	name := line.Name
	if name == "" {
		name = sku
	}
	product, mergeErr := ingest.MergeProduct(nil, &ingest.ProductPayload{SKU: sku, Name: name}, provider)
	if mergeErr != nil {
		return nil, mergeErr
	}
	if err := tx.SaveProduct(ctx, product); err != nil {
		return nil, err
	}
	result.inserted++
	return product, nil
}

func (p *Pipeline) applyOffer(ctx context.Context, tx ingest.Tx, record *ingest.Record, result *batchResult) error {
	marketplace, err := tx.FindMarketplace(ctx, record.Provider, record.Offer.ExternalMarketplaceID)
	if err != nil {
		return err
	}
	if marketplace == nil {
		result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: "offer references unknown marketplace " + record.Offer.ExternalMarketplaceID})
		return nil
	}

	sku := catalog.NormalizeSKU(record.Offer.SKU)
	product, err := tx.FindProductBySKU(ctx, sku)
	if err != nil {
		return err
	}
	if product == nil {
		product, err = ingest.MergeProduct(nil, &ingest.ProductPayload{SKU: sku, Name: sku}, record.Provider)
		if err != nil {
			result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: err.Error()})
			return nil
		}
		if err := tx.SaveProduct(ctx, product); err != nil {
			return err
		}
		result.inserted++
	}

	existing, err := tx.FindOffer(ctx, record.Provider, record.ExternalID)
	if err != nil {
		return err
	}
	merged := ingest.MergeOffer(existing, record.Offer, record.Provider, record.ExternalID)
	merged.MarketplaceID = marketplace.ID
	merged.ProductID = product.ID
	if err := tx.SaveOffer(ctx, merged); err != nil {
		return err
	}
	if err := tx.EnsureLink(ctx, product.ID, marketplace.ID); err != nil {
		return err
	}
	if merged.Active && !record.Offer.PricePLN.IsZero() {
		entry := &catalog.PriceHistory{
			BaseEntity:    shared.NewBaseEntity(),
			ProductID:     product.ID,
			MarketplaceID: marketplace.ID,
			ObservedAt:    time.Now(),
			PricePLN:      record.Offer.PricePLN,
		}
		if err := tx.AppendPriceHistory(ctx, entry); err != nil {
			return err
		}
	}
	p.count(existing == nil, result)
	return nil
}

func (p *Pipeline) applyStock(ctx context.Context, tx ingest.Tx, record *ingest.Record, result *batchResult) error {
	marketplace, err := tx.FindMarketplace(ctx, record.Provider, record.Stock.ExternalMarketplaceID)
	if err != nil {
		return err
	}
	if marketplace == nil {
		result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: "stock references unknown marketplace " + record.Stock.ExternalMarketplaceID})
		return nil
	}

	sku := catalog.NormalizeSKU(record.Stock.SKU)
	product, err := tx.FindProductBySKU(ctx, sku)
	if err != nil {
		return err
	}
	if product == nil {
		product, err = ingest.MergeProduct(nil, &ingest.ProductPayload{SKU: sku, Name: sku}, record.Provider)
		if err != nil {
			result.skips = append(result.skips, SkipDetail{Ref: record.Ref(), Reason: err.Error()})
			return nil
		}
		if err := tx.SaveProduct(ctx, product); err != nil {
			return err
		}
		result.inserted++
	}

	snapshot := &catalog.StockHistory{
		BaseEntity:    shared.NewBaseEntity(),
		ProductID:     product.ID,
		MarketplaceID: marketplace.ID,
		ObservedDate:  record.Stock.ObservedDate.Truncate(24 * time.Hour),
		Quantity:      record.Stock.Quantity,
	}
	if err := tx.AppendStockHistory(ctx, snapshot); err != nil {
		return err
	}
	result.updated++
	return nil
}

func (p *Pipeline) isIgnored(provider catalog.ProviderCode, statusCode int) bool {
	set, ok := p.ignoreList[provider]
	if !ok {
		return false
	}
	_, ignored := set[statusCode]
	return ignored
}

func (p *Pipeline) count(isNew bool, result *batchResult) {
	if isNew {
		result.inserted++
	} else {
		result.updated++
	}
}
