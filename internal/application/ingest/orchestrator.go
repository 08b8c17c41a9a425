package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

var ErrUnknownProvider = errors.New("ingest: no adapter registered for provider")

// Orchestrator drives full sync runs: it pulls records from a provider
// adapter, converts totals to PLN, and feeds everything through the
// pipeline. Marketplaces are always synced before records that reference
// them, so an order arriving ahead of its marketplace can only happen when
// the provider omits the marketplace entirely.
type Orchestrator struct {
	adapters   map[catalog.ProviderCode]ingest.ProviderAdapter
	pipeline   *Pipeline
	rateSource ingest.RateSource
	logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator over the registered adapters
func NewOrchestrator(adapters []ingest.ProviderAdapter, pipeline *Pipeline, rateSource ingest.RateSource, logger *zap.Logger) *Orchestrator {
	registry := make(map[catalog.ProviderCode]ingest.ProviderAdapter, len(adapters))
	for _, adapter := range adapters {
		registry[adapter.Provider()] = adapter
	}
	return &Orchestrator{
		adapters:   registry,
		pipeline:   pipeline,
		rateSource: rateSource,
		logger:     logger,
	}
}

// RunOrders syncs marketplaces and then orders for one provider
func (o *Orchestrator) RunOrders(ctx context.Context, provider catalog.ProviderCode, since, until time.Time) (*RunSummary, error) {
	adapter, err := o.adapter(provider)
	if err != nil {
		return nil, err
	}
	marketplaces, err := adapter.FetchMarketplaces(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := adapter.FetchOrders(ctx, since, until)
	if err != nil {
		return nil, err
	}
	if err := o.convertTotals(ctx, orders); err != nil {
		return nil, err
	}
	// Marketplaces commit before any order references them.
	summary, err := o.pipeline.Run(ctx, marketplaces)
	if err != nil {
		return nil, err
	}
	orderSummary, err := o.pipeline.Run(ctx, orders)
	if err != nil {
		return summary, err
	}
	summary.Absorb(orderSummary)
	return summary, nil
}

// RunProducts syncs the provider's product catalog
func (o *Orchestrator) RunProducts(ctx context.Context, provider catalog.ProviderCode) (*RunSummary, error) {
	adapter, err := o.adapter(provider)
	if err != nil {
		return nil, err
	}
	products, err := adapter.FetchProducts(ctx)
	if err != nil {
		return nil, err
	}
	return o.pipeline.Run(ctx, products)
}

// RunOffers syncs marketplaces and then offers for one provider
func (o *Orchestrator) RunOffers(ctx context.Context, provider catalog.ProviderCode) (*RunSummary, error) {
	adapter, err := o.adapter(provider)
	if err != nil {
		return nil, err
	}
	marketplaces, err := adapter.FetchMarketplaces(ctx)
	if err != nil {
		return nil, err
	}
	offers, err := adapter.FetchOffers(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := o.pipeline.Run(ctx, marketplaces)
	if err != nil {
		return nil, err
	}
	offerSummary, err := o.pipeline.Run(ctx, offers)
	if err != nil {
		return summary, err
	}
	summary.Absorb(offerSummary)
	return summary, nil
}

// RunStock records the daily stock snapshot for one provider
func (o *Orchestrator) RunStock(ctx context.Context, provider catalog.ProviderCode, date time.Time) (*RunSummary, error) {
	adapter, err := o.adapter(provider)
	if err != nil {
		return nil, err
	}
	marketplaces, err := adapter.FetchMarketplaces(ctx)
	if err != nil {
		return nil, err
	}
	stock, err := adapter.FetchStock(ctx, date)
	if err != nil {
		return nil, err
	}
	summary, err := o.pipeline.Run(ctx, marketplaces)
	if err != nil {
		return nil, err
	}
	stockSummary, err := o.pipeline.Run(ctx, stock)
	if err != nil {
		return summary, err
	}
	summary.Absorb(stockSummary)
	return summary, nil
}

func (o *Orchestrator) adapter(provider catalog.ProviderCode) (ingest.ProviderAdapter, error) {
	adapter, ok := o.adapters[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return adapter, nil
}

// convertTotals fills PLN amounts for orders priced in other currencies.
// Amounts already in PLN pass through; unknown currencies keep a zero PLN
// total and surface in reports rather than failing the run.
func (o *Orchestrator) convertTotals(ctx context.Context, records []ingest.Record) error {
	needsRates := false
	for i := range records {
		if records[i].Kind == ingest.RecordKindOrder && records[i].Order.Currency != "PLN" {
			needsRates = true
			break
		}
	}
	var rates map[string]decimal.Decimal
	if needsRates {
		var err error
		rates, err = o.rateSource.Rates(ctx)
		if err != nil {
			return err
		}
	}

	for i := range records {
		if records[i].Kind != ingest.RecordKindOrder {
			continue
		}
		order := records[i].Order
		if order.Currency == "PLN" {
			order.TotalPLN = order.TotalOriginal.Round(2)
			for j := range order.Items {
				order.Items[j].UnitPricePLN = order.Items[j].UnitPrice.Round(2)
			}
			continue
		}
		rate, ok := rates[order.Currency]
		if !ok {
			o.logger.Warn("no exchange rate for currency",
				zap.String("currency", order.Currency),
				zap.String("order", records[i].ExternalID),
			)
			continue
		}
		order.TotalPLN = order.TotalOriginal.Mul(rate).Round(2)
		for j := range order.Items {
			order.Items[j].UnitPricePLN = order.Items[j].UnitPrice.Mul(rate).Round(2)
		}
	}
	return nil
}
