package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// ---------------------------------------------------------------------------
// In-memory gateway fake with snapshot-based transactions
// ---------------------------------------------------------------------------

type memStore struct {
	products     map[string]*catalog.Product
	marketplaces []*catalog.Marketplace
	orders       map[string]*catalog.Order
	offers       map[string]*catalog.Offer
	links        map[string]struct{}
	stock        map[string]*catalog.StockHistory
	prices       []*catalog.PriceHistory
}

func newMemStore() *memStore {
	return &memStore{
		products: map[string]*catalog.Product{},
		orders:   map[string]*catalog.Order{},
		offers:   map[string]*catalog.Offer{},
		links:    map[string]struct{}{},
		stock:    map[string]*catalog.StockHistory{},
	}
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	for k, v := range s.products {
		p := *v
		c.products[k] = &p
	}
	for _, v := range s.marketplaces {
		m := *v
		c.marketplaces = append(c.marketplaces, &m)
	}
	for k, v := range s.orders {
		o := *v
		o.Items = append([]catalog.OrderItem(nil), v.Items...)
		c.orders[k] = &o
	}
	for k, v := range s.offers {
		o := *v
		c.offers[k] = &o
	}
	for k := range s.links {
		c.links[k] = struct{}{}
	}
	for k, v := range s.stock {
		h := *v
		c.stock[k] = &h
	}
	c.prices = append(c.prices, s.prices...)
	return c
}

// memGateway commits a transaction by swapping in the mutated clone, so a
// failed batch leaves the visible store untouched.
type memGateway struct {
	mu    sync.Mutex
	store *memStore

	// transientFailures makes the next N transactions fail before running.
	transientFailures int
	// saveOrderErr lets a test inject a failure for one external order ID.
	saveOrderErr map[string]error
	// saveProductRace simulates a lost insert race: the first save of the
	// SKU fails the way the real gateway classifies a unique violation,
	// and the winner's row becomes visible for the retry.
	saveProductRace map[string]*catalog.Product
	// txEntered/txRelease, when set, gate every transaction so a test can
	// hold a batch in flight.
	txEntered chan struct{}
	txRelease chan struct{}

	txStarted int
}

func newMemGateway() *memGateway {
	return &memGateway{
		store:           newMemStore(),
		saveOrderErr:    map[string]error{},
		saveProductRace: map[string]*catalog.Product{},
	}
}

func (g *memGateway) WithinTx(ctx context.Context, fn func(tx ingest.Tx) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.txStarted++
	if g.txEntered != nil {
		g.txEntered <- struct{}{}
		<-g.txRelease
	}
	if g.transientFailures > 0 {
		g.transientFailures--
		return ingest.NewTransientStorageError("deadlock detected", nil)
	}
	work := g.store.clone()
	if err := fn(&memTx{store: work, gateway: g}); err != nil {
		return err
	}
	g.store = work
	return nil
}

func (g *memGateway) FindProductBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return (&memTx{store: g.store}).FindProductBySKU(ctx, sku)
}

func (g *memGateway) FindMarketplace(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Marketplace, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return (&memTx{store: g.store}).FindMarketplace(ctx, provider, externalID)
}

func (g *memGateway) FindMarketplaceByName(ctx context.Context, name string) (*catalog.Marketplace, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return (&memTx{store: g.store}).FindMarketplaceByName(ctx, name)
}

func (g *memGateway) FindOrder(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return (&memTx{store: g.store}).FindOrder(ctx, provider, externalID)
}

func (g *memGateway) FindOffer(ctx context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Offer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return (&memTx{store: g.store}).FindOffer(ctx, provider, externalID)
}

type memTx struct {
	store   *memStore
	gateway *memGateway
}

func (t *memTx) FindProductBySKU(_ context.Context, sku string) (*catalog.Product, error) {
	return t.store.products[sku], nil
}

func (t *memTx) FindMarketplace(_ context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Marketplace, error) {
	for _, m := range t.store.marketplaces {
		if m.Provider == provider && m.ExternalID == externalID {
			return m, nil
		}
	}
	return nil, nil
}

func (t *memTx) FindMarketplaceByName(_ context.Context, name string) (*catalog.Marketplace, error) {
	for _, m := range t.store.marketplaces {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, nil
}

func (t *memTx) FindOrder(_ context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Order, error) {
	return t.store.orders[string(provider)+"/"+externalID], nil
}

func (t *memTx) FindOffer(_ context.Context, provider catalog.ProviderCode, externalID string) (*catalog.Offer, error) {
	return t.store.offers[string(provider)+"/"+externalID], nil
}

func (t *memTx) SaveProduct(_ context.Context, product *catalog.Product) error {
	if t.gateway != nil {
		if winner, ok := t.gateway.saveProductRace[product.SKU]; ok {
			delete(t.gateway.saveProductRace, product.SKU)
			t.gateway.store.products[winner.SKU] = winner
			return ingest.NewTransientStorageError("unique violation on concurrent insert", nil)
		}
	}
	t.store.products[product.SKU] = product
	return nil
}

func (t *memTx) SaveMarketplace(_ context.Context, marketplace *catalog.Marketplace) error {
	for i, m := range t.store.marketplaces {
		if m.ID == marketplace.ID {
			t.store.marketplaces[i] = marketplace
			return nil
		}
	}
	t.store.marketplaces = append(t.store.marketplaces, marketplace)
	return nil
}

func (t *memTx) SaveOrder(_ context.Context, order *catalog.Order) error {
	if t.gateway != nil {
		if err, ok := t.gateway.saveOrderErr[order.ExternalID]; ok {
			return err
		}
	}
	t.store.orders[string(order.Provider)+"/"+order.ExternalID] = order
	return nil
}

func (t *memTx) SaveOffer(_ context.Context, offer *catalog.Offer) error {
	t.store.offers[string(offer.Provider)+"/"+offer.ExternalID] = offer
	return nil
}

func (t *memTx) EnsureLink(_ context.Context, productID, marketplaceID uuid.UUID) error {
	t.store.links[productID.String()+"/"+marketplaceID.String()] = struct{}{}
	return nil
}

func (t *memTx) AppendStockHistory(_ context.Context, snapshot *catalog.StockHistory) error {
	key := snapshot.ProductID.String() + "/" + snapshot.MarketplaceID.String() + "/" + snapshot.ObservedDate.Format("2006-01-02")
	if _, exists := t.store.stock[key]; exists {
		return nil
	}
	t.store.stock[key] = snapshot
	return nil
}

func (t *memTx) AppendPriceHistory(_ context.Context, entry *catalog.PriceHistory) error {
	t.store.prices = append(t.store.prices, entry)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testPipeline(t *testing.T, gateway *memGateway, opts PipelineOptions) *Pipeline {
	t.Helper()
	resolver := ingest.NewResolver(gateway, map[string]string{
		"allegro_pl": "Allegro",
		"allegro-pl": "Allegro",
	})
	ignore := map[catalog.ProviderCode][]int{
		catalog.ProviderBaselinker: {196511},
		catalog.ProviderApilo:      {21},
	}
	pipeline, err := NewPipeline(gateway, resolver, ignore, opts, zap.NewNop())
	require.NoError(t, err)
	return pipeline
}

func smallOpts() PipelineOptions {
	return PipelineOptions{
		BatchSize:      2,
		Concurrency:    3,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		BatchTimeout:   5 * time.Second,
	}
}

func marketplaceRecord(provider catalog.ProviderCode, externalID, name string) ingest.Record {
	return ingest.Record{
		Kind:        ingest.RecordKindMarketplace,
		Provider:    provider,
		ExternalID:  externalID,
		Marketplace: &ingest.MarketplacePayload{Name: name},
	}
}

func productRecord(provider catalog.ProviderCode, sku, name string) ingest.Record {
	return ingest.Record{
		Kind:       ingest.RecordKindProduct,
		Provider:   provider,
		ExternalID: sku,
		Product:    &ingest.ProductPayload{SKU: sku, Name: name},
	}
}

func orderRecord(provider catalog.ProviderCode, externalID, marketplaceExt string, status int) ingest.Record {
	return ingest.Record{
		Kind:       ingest.RecordKindOrder,
		Provider:   provider,
		ExternalID: externalID,
		Raw:        "{}",
		Order: &ingest.OrderPayload{
			ExternalMarketplaceID: marketplaceExt,
			PlacedAt:              time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			Currency:              "PLN",
			TotalOriginal:         decimal.RequireFromString("50.00"),
			TotalPLN:              decimal.RequireFromString("50.00"),
			StatusCode:            status,
			Items: []ingest.OrderItemPayload{
				{SKU: "SKU-" + externalID, Name: "Line", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00"), UnitPricePLN: decimal.RequireFromString("50.00"), TaxRate: decimal.RequireFromString("23")},
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPipelineRun_EmptyInput(t *testing.T) {
	gateway := newMemGateway()
	pipeline := testPipeline(t, gateway, smallOpts())

	summary, err := pipeline.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Zero(t, summary.Inserted)
	assert.Zero(t, summary.Updated)
	assert.Zero(t, summary.Skipped)
	assert.Empty(t, summary.Failed)
	assert.Zero(t, gateway.txStarted, "empty input must not touch storage")
}

func TestPipelineRun_InsertThenIdempotentRerun(t *testing.T) {
	gateway := newMemGateway()
	// One batch so the marketplace commits before the orders resolve it.
	opts := smallOpts()
	opts.BatchSize = 3
	pipeline := testPipeline(t, gateway, opts)

	records := []ingest.Record{
		marketplaceRecord(catalog.ProviderBaselinker, "mp-1", "allegro_pl"),
		orderRecord(catalog.ProviderBaselinker, "o-1", "mp-1", 1),
		orderRecord(catalog.ProviderBaselinker, "o-2", "mp-1", 1),
	}

	first, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)
	// marketplace + 2 orders + 2 auto-created line products
	assert.Equal(t, 5, first.Inserted)
	assert.Zero(t, first.Updated)
	assert.Empty(t, first.Failed)

	second, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted, "re-running the same input must not create rows")
	assert.Equal(t, 3, second.Updated)
	assert.Len(t, gateway.store.orders, 2)
	assert.Len(t, gateway.store.products, 2)
}

func TestPipelineRun_IgnoreListedOrderSkipped(t *testing.T) {
	gateway := newMemGateway()
	pipeline := testPipeline(t, gateway, smallOpts())

	records := []ingest.Record{
		marketplaceRecord(catalog.ProviderBaselinker, "mp-1", "allegro_pl"),
		orderRecord(catalog.ProviderBaselinker, "o-cancelled", "mp-1", 196511),
		orderRecord(catalog.ProviderApilo, "o-cancelled-apilo", "mp-1", 21),
	}

	summary, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Skipped)
	assert.Empty(t, summary.Failed)
	assert.Empty(t, gateway.store.orders)
	require.Len(t, summary.Skips, 2)
	for _, skip := range summary.Skips {
		assert.Contains(t, skip.Reason, "ignore-listed")
	}
}

func TestPipelineRun_InvalidRecordSkippedNotFailed(t *testing.T) {
	gateway := newMemGateway()
	opts := smallOpts()
	opts.BatchSize = 3
	pipeline := testPipeline(t, gateway, opts)

	bad := orderRecord(catalog.ProviderBaselinker, "o-bad", "mp-1", 1)
	bad.Order.Currency = ""
	records := []ingest.Record{
		marketplaceRecord(catalog.ProviderBaselinker, "mp-1", "allegro_pl"),
		bad,
		orderRecord(catalog.ProviderBaselinker, "o-good", "mp-1", 1),
	}

	summary, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, summary.Failed)
	assert.Contains(t, gateway.store.orders, "BASELINKER/o-good")
	assert.NotContains(t, gateway.store.orders, "BASELINKER/o-bad")
}

func TestPipelineRun_BatchAtomicityOnIntegrityError(t *testing.T) {
	gateway := newMemGateway()
	// One batch holds both orders; the failing one must drag its batch
	// sibling down with it.
	opts := smallOpts()
	opts.BatchSize = 3
	pipeline := testPipeline(t, gateway, opts)

	gateway.saveOrderErr["o-poison"] = ingest.NewDataIntegrityError("insert violates foreign key constraint", nil)

	records := []ingest.Record{
		marketplaceRecord(catalog.ProviderBaselinker, "mp-1", "allegro_pl"),
		orderRecord(catalog.ProviderBaselinker, "o-poison", "mp-1", 1),
		orderRecord(catalog.ProviderBaselinker, "o-sibling", "mp-1", 1),
		// Second batch commits independently.
		orderRecord(catalog.ProviderBaselinker, "o-later", "mp-1", 1),
	}

	summary, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, summary.Failed, 3, "every record of the failed batch is enumerated")
	for _, failure := range summary.Failed {
		assert.Equal(t, ingest.ErrorKindDataIntegrity, failure.Kind)
	}
	assert.NotContains(t, gateway.store.orders, "BASELINKER/o-sibling", "failed batch must roll back completely")
	assert.NotContains(t, gateway.store.orders, "BASELINKER/o-poison")

	// Data errors are not retried.
	assert.Equal(t, 2, gateway.txStarted)
}

func TestPipelineRun_TransientErrorRetried(t *testing.T) {
	gateway := newMemGateway()
	opts := smallOpts()
	opts.BatchSize = 10
	opts.Concurrency = 1
	pipeline := testPipeline(t, gateway, opts)

	gateway.transientFailures = 2

	records := []ingest.Record{
		marketplaceRecord(catalog.ProviderBaselinker, "mp-1", "allegro_pl"),
		orderRecord(catalog.ProviderBaselinker, "o-1", "mp-1", 1),
	}

	summary, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Empty(t, summary.Failed)
	assert.Equal(t, 3, gateway.txStarted, "two transient failures then success")
	assert.Contains(t, gateway.store.orders, "BASELINKER/o-1")
}

func TestPipelineRun_TransientRetriesExhausted(t *testing.T) {
	gateway := newMemGateway()
	opts := smallOpts()
	opts.BatchSize = 10
	opts.Concurrency = 1
	opts.MaxAttempts = 2
	pipeline := testPipeline(t, gateway, opts)

	gateway.transientFailures = 5

	records := []ingest.Record{
		marketplaceRecord(catalog.ProviderBaselinker, "mp-1", "allegro_pl"),
	}

	summary, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, ingest.ErrorKindTransientStorage, summary.Failed[0].Kind)
	assert.Equal(t, 2, gateway.txStarted)
}

func TestPipelineRun_ConcurrentDuplicateSKUsConverge(t *testing.T) {
	gateway := newMemGateway()
	opts := smallOpts()
	opts.BatchSize = 5
	opts.Concurrency = 4
	pipeline := testPipeline(t, gateway, opts)

	// Many batches carrying the same SKUs from both providers.
	var records []ingest.Record
	for i := 0; i < 40; i++ {
		sku := fmt.Sprintf("SKU-%d", i%4)
		if i%2 == 0 {
			records = append(records, productRecord(catalog.ProviderBaselinker, sku, "Primary name"))
		} else {
			records = append(records, productRecord(catalog.ProviderApilo, sku, "Secondary name"))
		}
	}

	summary, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Empty(t, summary.Failed)
	assert.Len(t, gateway.store.products, 4, "one row per normalized SKU")
	for _, product := range gateway.store.products {
		assert.Equal(t, "Primary name", product.Name, "primary provider wins naming")
	}
	assert.Equal(t, 40, summary.Inserted+summary.Updated)
}

func TestPipelineRun_MarketplaceRenameCollapsesProviders(t *testing.T) {
	gateway := newMemGateway()
	opts := smallOpts()
	opts.Concurrency = 1
	pipeline := testPipeline(t, gateway, opts)

	// Both providers report the same storefront under their own external
	// IDs and raw names; the rename map points both at "Allegro".
	records := []ingest.Record{
		marketplaceRecord(catalog.ProviderBaselinker, "bl:105", "allegro_pl"),
		marketplaceRecord(catalog.ProviderApilo, "77", "allegro-pl"),
	}

	summary, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Empty(t, summary.Failed)
	require.Len(t, gateway.store.marketplaces, 1, "provider identifiers for one storefront collapse onto one row")
	assert.Equal(t, "Allegro", gateway.store.marketplaces[0].Name)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Updated)
}

func TestPipelineRun_LostInsertRaceRetriesToWinner(t *testing.T) {
	gateway := newMemGateway()
	opts := smallOpts()
	opts.Concurrency = 1
	pipeline := testPipeline(t, gateway, opts)

	winner, err := ingest.MergeProduct(nil, &ingest.ProductPayload{SKU: "SKU-R", Name: "Primary name"}, catalog.ProviderBaselinker)
	require.NoError(t, err)
	gateway.saveProductRace["SKU-R"] = winner

	summary, err := pipeline.Run(context.Background(), []ingest.Record{
		productRecord(catalog.ProviderApilo, "SKU-R", "Secondary name"),
	})
	require.NoError(t, err)

	assert.Empty(t, summary.Failed, "a lost insert race is retried, not reported")
	assert.Equal(t, 2, gateway.txStarted)
	require.Len(t, gateway.store.products, 1, "exactly one row per SKU regardless of batch completion order")
	assert.Equal(t, "Primary name", gateway.store.products["SKU-R"].Name, "the retry resolves the winner and merges by precedence")
	assert.Equal(t, 1, summary.Updated)
}

func TestPipelineRun_CancellationStopsDispatch(t *testing.T) {
	gateway := newMemGateway()
	gateway.txEntered = make(chan struct{}, 4)
	gateway.txRelease = make(chan struct{})
	opts := smallOpts()
	opts.BatchSize = 1
	opts.Concurrency = 1
	opts.MaxAttempts = 1
	pipeline := testPipeline(t, gateway, opts)

	records := []ingest.Record{
		productRecord(catalog.ProviderBaselinker, "SKU-0", "Zero"),
		productRecord(catalog.ProviderBaselinker, "SKU-1", "One"),
		productRecord(catalog.ProviderBaselinker, "SKU-2", "Two"),
		productRecord(catalog.ProviderBaselinker, "SKU-3", "Three"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *RunSummary, 1)
	go func() {
		summary, _ := pipeline.Run(ctx, records)
		done <- summary
	}()

	// Cancel while the first batch is held inside its transaction, then
	// let it finish.
	<-gateway.txEntered
	cancel()
	close(gateway.txRelease)
	summary := <-done

	assert.Equal(t, 1, gateway.txStarted, "undispatched batches never start")
	require.Len(t, gateway.store.products, 1, "the in-flight batch runs to completion")
	assert.Contains(t, gateway.store.products, "SKU-0")
	assert.Equal(t, 1, summary.Inserted)
	assert.Empty(t, summary.Failed)
}

func TestPipelineRun_FailedBatchKeepsSkipsAsSkips(t *testing.T) {
	gateway := newMemGateway()
	opts := smallOpts()
	opts.BatchSize = 4
	pipeline := testPipeline(t, gateway, opts)

	_, err := pipeline.Run(context.Background(), []ingest.Record{marketplaceRecord(catalog.ProviderBaselinker, "mp-1", "allegro_pl")})
	require.NoError(t, err)

	gateway.saveOrderErr["o-poison"] = ingest.NewDataIntegrityError("insert violates foreign key constraint", nil)

	bad := orderRecord(catalog.ProviderBaselinker, "o-bad", "mp-1", 1)
	bad.Order.Currency = ""
	records := []ingest.Record{
		orderRecord(catalog.ProviderBaselinker, "o-cancelled", "mp-1", 196511),
		bad,
		orderRecord(catalog.ProviderBaselinker, "o-poison", "mp-1", 1),
	}

	summary, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, summary.Failed, 1, "only records the storage error actually lost are failures")
	assert.Equal(t, "ORDER/BASELINKER/o-poison", summary.Failed[0].Ref.String())
	assert.Equal(t, 2, summary.Skipped)
	require.Len(t, summary.Skips, 2)
	for _, skip := range summary.Skips {
		assert.NotContains(t, skip.Reason, "foreign key", "skips must not inherit the batch's storage error")
	}
}

func TestPipelineRun_OfferDeactivationKeepsLink(t *testing.T) {
	gateway := newMemGateway()
	pipeline := testPipeline(t, gateway, smallOpts())

	offer := ingest.Record{
		Kind:       ingest.RecordKindOffer,
		Provider:   catalog.ProviderApilo,
		ExternalID: "of-1",
		Offer: &ingest.OfferPayload{
			ExternalMarketplaceID: "mp-1",
			SKU:                   "SKU-1",
			PriceWithTax:          decimal.RequireFromString("19.99"),
			PricePLN:              decimal.RequireFromString("19.99"),
			Active:                true,
			StockQuantity:         3,
		},
	}
	records := []ingest.Record{marketplaceRecord(catalog.ProviderApilo, "mp-1", "shop"), offer}

	_, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, gateway.store.links, 1)
	require.Len(t, gateway.store.prices, 1)

	deactivated := offer
	payload := *offer.Offer
	payload.Active = false
	payload.StockQuantity = 0
	deactivated.Offer = &payload

	_, err = pipeline.Run(context.Background(), []ingest.Record{marketplaceRecord(catalog.ProviderApilo, "mp-1", "shop"), deactivated})
	require.NoError(t, err)

	stored := gateway.store.offers["APILO/of-1"]
	require.NotNil(t, stored, "deactivation must not delete the offer")
	assert.False(t, stored.Active)
	assert.Len(t, gateway.store.links, 1, "deactivation must not remove the marketplace link")
	assert.Len(t, gateway.store.prices, 1, "inactive offers do not append price history")
}

func TestPipelineRun_StockSnapshotIdempotentPerDay(t *testing.T) {
	gateway := newMemGateway()
	pipeline := testPipeline(t, gateway, smallOpts())

	stock := ingest.Record{
		Kind:       ingest.RecordKindStock,
		Provider:   catalog.ProviderBaselinker,
		ExternalID: "SKU-1",
		Stock: &ingest.StockPayload{
			SKU:                   "SKU-1",
			ExternalMarketplaceID: "mp-1",
			ObservedDate:          time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			Quantity:              7,
		},
	}
	records := []ingest.Record{marketplaceRecord(catalog.ProviderBaselinker, "mp-1", "allegro_pl"), stock}

	_, err := pipeline.Run(context.Background(), records)
	require.NoError(t, err)
	_, err = pipeline.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Len(t, gateway.store.stock, 1, "one snapshot per product, marketplace and day")
}
