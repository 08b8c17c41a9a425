package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

const (
	// maxResponseSize limits response bodies to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024

	// baselinkerOrderPageSize is the fixed page size of getOrders. A full
	// page means more orders may follow.
	baselinkerOrderPageSize = 100
)

// BaselinkerAdapter pulls catalog, order and stock data out of the
// BaseLinker connector API. BaseLinker is the primary provider: its product
// naming wins over anything the secondary reports.
type BaselinkerAdapter struct {
	config     *BaselinkerConfig
	httpClient *http.Client
}

// NewBaselinkerAdapter creates a new BaseLinker adapter with the given configuration
func NewBaselinkerAdapter(config *BaselinkerConfig) (*BaselinkerAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BaselinkerAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Provider returns the provider code this adapter handles
func (a *BaselinkerAdapter) Provider() catalog.ProviderCode {
	return catalog.ProviderBaselinker
}

// inventoryMarketplaceID is the synthetic marketplace the BaseLinker
// inventory stock is booked against.
func (a *BaselinkerAdapter) inventoryMarketplaceID() string {
	return "inventory:" + a.config.InventoryID
}

// FetchMarketplaces lists order sources plus the inventory itself
func (a *BaselinkerAdapter) FetchMarketplaces(ctx context.Context) ([]ingest.Record, error) {
	respBody, err := a.doRequest(ctx, "getOrderSources", map[string]any{})
	if err != nil {
		return nil, err
	}

	var resp BaselinkerOrderSourcesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("baselinker: failed to parse response: %w", err)
	}
	if err := connectorError(&resp.BaselinkerResponse); err != nil {
		return nil, err
	}

	records := []ingest.Record{{
		Kind:        ingest.RecordKindMarketplace,
		Provider:    catalog.ProviderBaselinker,
		ExternalID:  a.inventoryMarketplaceID(),
		Marketplace: &ingest.MarketplacePayload{Name: "BaseLinker Inventory"},
	}}

	// Sort groups for a stable record order across runs.
	groups := make([]string, 0, len(resp.Sources))
	for group := range resp.Sources {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	for _, group := range groups {
		sources := resp.Sources[group]
		ids := make([]string, 0, len(sources))
		for id := range sources {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			records = append(records, ingest.Record{
				Kind:        ingest.RecordKindMarketplace,
				Provider:    catalog.ProviderBaselinker,
				ExternalID:  group + ":" + id,
				Marketplace: &ingest.MarketplacePayload{Name: sources[id]},
			})
		}
	}
	return records, nil
}

// FetchProducts lists the configured inventory
func (a *BaselinkerAdapter) FetchProducts(ctx context.Context) ([]ingest.Record, error) {
	var records []ingest.Record
	for page := 1; ; page++ {
		respBody, err := a.doRequest(ctx, "getInventoryProductsList", map[string]any{
			"inventory_id": a.config.InventoryID,
			"page":         page,
		})
		if err != nil {
			return nil, err
		}

		var resp BaselinkerProductsResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("baselinker: failed to parse response: %w", err)
		}
		if err := connectorError(&resp.BaselinkerResponse); err != nil {
			return nil, err
		}
		if len(resp.Products) == 0 {
			break
		}

		ids := make([]string, 0, len(resp.Products))
		for id := range resp.Products {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			product := resp.Products[id]
			raw, _ := json.Marshal(product)
			records = append(records, ingest.Record{
				Kind:       ingest.RecordKindProduct,
				Provider:   catalog.ProviderBaselinker,
				ExternalID: id,
				Raw:        string(raw),
				Product: &ingest.ProductPayload{
					SKU:  product.SKU,
					Name: product.Name,
				},
			})
		}
	}
	return records, nil
}

// FetchOrders pulls orders confirmed inside [since, until]. The connector
// returns at most 100 orders per call; a full page is re-queried from one
// second past the last order's creation time.
func (a *BaselinkerAdapter) FetchOrders(ctx context.Context, since, until time.Time) ([]ingest.Record, error) {
	var records []ingest.Record
	from := since.Unix()

	for {
		respBody, err := a.doRequest(ctx, "getOrders", map[string]any{
			"date_confirmed_from":    from,
			"get_unconfirmed_orders": false,
		})
		if err != nil {
			return nil, err
		}

		var resp BaselinkerOrdersResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("baselinker: failed to parse response: %w", err)
		}
		if err := connectorError(&resp.BaselinkerResponse); err != nil {
			return nil, err
		}

		for _, order := range resp.Orders {
			placedAt := time.Unix(order.DateAdd, 0)
			if placedAt.After(until) {
				continue
			}
			records = append(records, a.convertOrder(&order, placedAt))
		}

		if len(resp.Orders) < baselinkerOrderPageSize {
			break
		}
		last := resp.Orders[len(resp.Orders)-1]
		if last.DateAdd+1 <= from {
			break
		}
		from = last.DateAdd + 1
		if from > until.Unix() {
			break
		}
	}
	return records, nil
}

// FetchOffers returns nothing: BaseLinker is the catalog source here and
// marketplace listings are synced from the fulfillment provider.
func (a *BaselinkerAdapter) FetchOffers(_ context.Context) ([]ingest.Record, error) {
	return nil, nil
}

// FetchStock snapshots inventory stock, summed across warehouses, against
// the synthetic inventory marketplace
func (a *BaselinkerAdapter) FetchStock(ctx context.Context, date time.Time) ([]ingest.Record, error) {
	respBody, err := a.doRequest(ctx, "getInventoryProductsStock", map[string]any{
		"inventory_id": a.config.InventoryID,
	})
	if err != nil {
		return nil, err
	}

	var resp BaselinkerStockResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("baselinker: failed to parse response: %w", err)
	}
	if err := connectorError(&resp.BaselinkerResponse); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Products))
	for id := range resp.Products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var records []ingest.Record
	for _, id := range ids {
		product := resp.Products[id]
		total := 0
		for _, quantity := range product.Stock {
			total += quantity
		}
		records = append(records, ingest.Record{
			Kind:       ingest.RecordKindStock,
			Provider:   catalog.ProviderBaselinker,
			ExternalID: id,
			Stock: &ingest.StockPayload{
				SKU:                   product.SKU,
				ExternalMarketplaceID: a.inventoryMarketplaceID(),
				ObservedDate:          date,
				Quantity:              total,
			},
		})
	}
	return records, nil
}

// convertOrder maps one connector order onto the normalized record shape.
// When payment_done is zero the total falls back to delivery cost plus the
// sum of gross line prices.
func (a *BaselinkerAdapter) convertOrder(order *BaselinkerOrder, placedAt time.Time) ingest.Record {
	deliveryCost := decimalFromNumber(order.DeliveryPrice)
	total := decimalFromNumber(order.PaymentDone)

	items := make([]ingest.OrderItemPayload, 0, len(order.Products))
	lineSum := decimal.Zero
	for _, line := range order.Products {
		unitPrice := decimalFromNumber(line.PriceBrutto)
		lineSum = lineSum.Add(unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, ingest.OrderItemPayload{
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
			TaxRate:   decimalFromNumber(line.TaxRate),
		})
	}
	if total.IsZero() {
		total = deliveryCost.Add(lineSum)
	}

	raw, _ := json.Marshal(order)
	return ingest.Record{
		Kind:       ingest.RecordKindOrder,
		Provider:   catalog.ProviderBaselinker,
		ExternalID: strconv.FormatInt(order.OrderID, 10),
		Raw:        string(raw),
		Order: &ingest.OrderPayload{
			ExternalMarketplaceID: fmt.Sprintf("%s:%d", order.OrderSource, order.OrderSourceID),
			PlacedAt:              placedAt,
			BuyerCountry:          order.DeliveryCountryCode,
			BuyerCity:             order.DeliveryCity,
			DeliveryMethod:        order.DeliveryMethod,
			DeliveryCost:          deliveryCost,
			Currency:              order.Currency,
			TotalOriginal:         total,
			StatusCode:            order.OrderStatusID,
			Items:                 items,
		},
	}
}

// doRequest performs one connector call. The connector takes a form-encoded
// method name plus a JSON parameter blob, authenticated by token header.
func (a *BaselinkerAdapter) doRequest(ctx context.Context, method string, params map[string]any) ([]byte, error) {
	paramJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("baselinker: failed to marshal params: %w", err)
	}

	form := url.Values{}
	form.Set("method", method)
	form.Set("parameters", string(paramJSON))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIBaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("baselinker: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-BLToken", a.config.Token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("baselinker: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("baselinker: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ingest.NewCredentialError(fmt.Sprintf("baselinker: HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("baselinker: HTTP %d", resp.StatusCode)
	}
	return body, nil
}

// connectorError maps the connector's in-band error envelope onto the
// domain taxonomy. Token rejections are credential errors.
func connectorError(resp *BaselinkerResponse) error {
	if resp.IsSuccess() {
		return nil
	}
	if strings.HasPrefix(resp.ErrorCode, "ERROR_AUTH") || resp.ErrorCode == "ERROR_UNAUTHORIZED" {
		return ingest.NewCredentialError(fmt.Sprintf("baselinker: %s - %s", resp.ErrorCode, resp.ErrorMessage), nil)
	}
	return fmt.Errorf("baselinker: %s - %s", resp.ErrorCode, resp.ErrorMessage)
}

// decimalFromNumber parses a JSON number leniently, treating absent or
// malformed values as zero
func decimalFromNumber(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return value
}

// Ensure BaselinkerAdapter implements the provider port
var _ ingest.ProviderAdapter = (*BaselinkerAdapter)(nil)
