package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// apiloPageSize is the page size used for every Apilo listing endpoint
const apiloPageSize = 512

// defaultTaxRate is applied when a line carries no tax information
var defaultTaxRate = decimal.NewFromInt(23)

// TokenSource supplies the current access token for a provider. The
// credential service implements it.
type TokenSource interface {
	AccessToken(ctx context.Context, provider catalog.ProviderCode) (string, error)
}

// ApiloAdapter pulls data out of the Apilo REST API and exchanges its
// rotating token pairs. Apilo is the secondary provider: it fills product
// fields the primary left empty and owns purchase costs and offers.
type ApiloAdapter struct {
	config     *ApiloConfig
	httpClient *http.Client
	tokens     TokenSource
}

// NewApiloAdapter creates a new Apilo adapter with the given configuration
func NewApiloAdapter(config *ApiloConfig, tokens TokenSource) (*ApiloAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ApiloAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		tokens: tokens,
	}, nil
}

// Provider returns the provider code this adapter handles
func (a *ApiloAdapter) Provider() catalog.ProviderCode {
	return catalog.ProviderApilo
}

// ---------------------------------------------------------------------------
// Token exchange
// ---------------------------------------------------------------------------

// ExchangeAuthCode trades a one-time authorization code for the first pair
func (a *ApiloAdapter) ExchangeAuthCode(ctx context.Context, authCode string) (*ingest.TokenPair, error) {
	return a.exchangeToken(ctx, "authorization_code", authCode)
}

// ExchangeRefreshToken rotates the pair. Apilo invalidates the old pair on
// success, so the caller must persist the result before using it.
func (a *ApiloAdapter) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*ingest.TokenPair, error) {
	return a.exchangeToken(ctx, "refresh_token", refreshToken)
}

func (a *ApiloAdapter) exchangeToken(ctx context.Context, grantType, token string) (*ingest.TokenPair, error) {
	payload, err := json.Marshal(map[string]string{
		"grantType": grantType,
		"token":     token,
	})
	if err != nil {
		return nil, fmt.Errorf("apilo: failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIBaseURL+"/rest/auth/token/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("apilo: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(a.config.ClientID, a.config.ClientSecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apilo: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("apilo: failed to read token response: %w", err)
	}

	// Apilo answers 201 on a successful grant. Any 4xx means the code or
	// refresh token was rejected and the pair is unusable.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, ingest.NewCredentialError(fmt.Sprintf("apilo: token exchange rejected with HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("apilo: token exchange failed with HTTP %d", resp.StatusCode)
	}

	var tokenResp ApiloTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("apilo: failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" || tokenResp.RefreshToken == "" {
		return nil, ingest.NewCredentialError("apilo: token response missing a token", nil)
	}

	return &ingest.TokenPair{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		IssuedAt:     time.Now(),
	}, nil
}

// ---------------------------------------------------------------------------
// Data pulls
// ---------------------------------------------------------------------------

// FetchMarketplaces lists the connected sales platforms
func (a *ApiloAdapter) FetchMarketplaces(ctx context.Context) ([]ingest.Record, error) {
	respBody, err := a.doGet(ctx, "/rest/api/sale/platform/", nil)
	if err != nil {
		return nil, err
	}

	var resp ApiloPlatformsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("apilo: failed to parse response: %w", err)
	}

	records := make([]ingest.Record, 0, len(resp.Platforms))
	for _, platform := range resp.Platforms {
		records = append(records, ingest.Record{
			Kind:        ingest.RecordKindMarketplace,
			Provider:    catalog.ProviderApilo,
			ExternalID:  strconv.FormatInt(platform.ID, 10),
			Marketplace: &ingest.MarketplacePayload{Name: platform.Name},
		})
	}
	return records, nil
}

// FetchProducts lists warehouse products, including purchase costs
func (a *ApiloAdapter) FetchProducts(ctx context.Context) ([]ingest.Record, error) {
	var records []ingest.Record
	for offset := 0; ; offset += apiloPageSize {
		respBody, err := a.doGet(ctx, "/rest/api/warehouse/product/", url.Values{
			"limit":  {strconv.Itoa(apiloPageSize)},
			"offset": {strconv.Itoa(offset)},
		})
		if err != nil {
			return nil, err
		}

		var resp ApiloProductsResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("apilo: failed to parse response: %w", err)
		}
		if len(resp.Products) == 0 {
			break
		}

		for _, product := range resp.Products {
			raw, _ := json.Marshal(product)
			payload := &ingest.ProductPayload{
				SKU:      product.SKU,
				Name:     product.Name,
				ImageURL: product.ImageURL,
				Kind:     product.Unit,
			}
			if cost := decimalFromNumber(product.PurchaseCost); !cost.IsZero() {
				payload.PurchaseCost = &cost
			}
			records = append(records, ingest.Record{
				Kind:       ingest.RecordKindProduct,
				Provider:   catalog.ProviderApilo,
				ExternalID: strconv.FormatInt(product.ID, 10),
				Raw:        string(raw),
				Product:    payload,
			})
		}

		if len(resp.Products) < apiloPageSize {
			break
		}
	}
	return records, nil
}

// FetchOrders pulls orders created inside [since, until]
func (a *ApiloAdapter) FetchOrders(ctx context.Context, since, until time.Time) ([]ingest.Record, error) {
	var records []ingest.Record
	for offset := 0; ; offset += apiloPageSize {
		respBody, err := a.doGet(ctx, "/rest/api/orders/", url.Values{
			"createdAfter": {since.Format(time.RFC3339)},
			"limit":        {strconv.Itoa(apiloPageSize)},
			"offset":       {strconv.Itoa(offset)},
		})
		if err != nil {
			return nil, err
		}

		var resp ApiloOrdersResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("apilo: failed to parse response: %w", err)
		}
		if len(resp.Orders) == 0 {
			break
		}

		for _, order := range resp.Orders {
			placedAt, err := time.Parse(time.RFC3339, order.CreatedAt)
			if err != nil || placedAt.After(until) {
				continue
			}
			records = append(records, a.convertOrder(&order, placedAt))
		}

		if len(resp.Orders) < apiloPageSize {
			break
		}
	}
	return records, nil
}

// FetchOffers lists live and ended marketplace offers
func (a *ApiloAdapter) FetchOffers(ctx context.Context) ([]ingest.Record, error) {
	var records []ingest.Record
	for offset := 0; ; offset += apiloPageSize {
		respBody, err := a.doGet(ctx, "/rest/api/sale/offer/", url.Values{
			"limit":  {strconv.Itoa(apiloPageSize)},
			"offset": {strconv.Itoa(offset)},
		})
		if err != nil {
			return nil, err
		}

		var resp ApiloOffersResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("apilo: failed to parse response: %w", err)
		}
		if len(resp.Offers) == 0 {
			break
		}

		for _, offer := range resp.Offers {
			raw, _ := json.Marshal(offer)
			records = append(records, ingest.Record{
				Kind:       ingest.RecordKindOffer,
				Provider:   catalog.ProviderApilo,
				ExternalID: strconv.FormatInt(offer.ID, 10),
				Raw:        string(raw),
				Offer: &ingest.OfferPayload{
					ExternalMarketplaceID: strconv.FormatInt(offer.PlatformID, 10),
					SKU:                   offer.SKU,
					PriceWithTax:          decimalFromNumber(offer.PriceWithTax),
					PricePLN:              decimalFromNumber(offer.PriceWithTax),
					Active:                offer.Status == 1,
					StockQuantity:         offer.Quantity,
					EAN:                   offer.EAN,
				},
			})
		}

		if len(resp.Offers) < apiloPageSize {
			break
		}
	}
	return records, nil
}

// FetchStock derives daily stock observations from the current offers
func (a *ApiloAdapter) FetchStock(ctx context.Context, date time.Time) ([]ingest.Record, error) {
	offers, err := a.FetchOffers(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]ingest.Record, 0, len(offers))
	for _, record := range offers {
		if record.Offer == nil || !record.Offer.Active {
			continue
		}
		records = append(records, ingest.Record{
			Kind:       ingest.RecordKindStock,
			Provider:   catalog.ProviderApilo,
			ExternalID: record.ExternalID,
			Stock: &ingest.StockPayload{
				SKU:                   record.Offer.SKU,
				ExternalMarketplaceID: record.Offer.ExternalMarketplaceID,
				ObservedDate:          date,
				Quantity:              record.Offer.StockQuantity,
			},
		})
	}
	return records, nil
}

func (a *ApiloAdapter) convertOrder(order *ApiloOrder, placedAt time.Time) ingest.Record {
	items := make([]ingest.OrderItemPayload, 0, len(order.Items))
	lineSum := decimal.Zero
	for _, line := range order.Items {
		unitPrice := decimalFromNumber(line.PriceWithTax)
		lineSum = lineSum.Add(unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		taxRate := decimalFromNumber(line.Tax)
		if taxRate.IsZero() {
			taxRate = defaultTaxRate
		}
		items = append(items, ingest.OrderItemPayload{
			SKU:       line.SKU,
			Name:      line.OriginalName,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
			TaxRate:   taxRate,
		})
	}

	total := decimalFromNumber(order.TotalWithTax)
	deliveryCost := decimalFromNumber(order.DeliveryCost)
	if total.IsZero() {
		total = deliveryCost.Add(lineSum)
	}

	raw, _ := json.Marshal(order)
	return ingest.Record{
		Kind:       ingest.RecordKindOrder,
		Provider:   catalog.ProviderApilo,
		ExternalID: order.ID,
		Raw:        string(raw),
		Order: &ingest.OrderPayload{
			ExternalMarketplaceID: strconv.FormatInt(order.PlatformID, 10),
			PlacedAt:              placedAt,
			BuyerCountry:          order.AddressDeliveryCountry,
			BuyerCity:             order.AddressDeliveryCity,
			DeliveryMethod:        order.DeliveryMethod,
			DeliveryCost:          deliveryCost,
			Currency:              order.Currency,
			TotalOriginal:         total,
			StatusCode:            order.Status,
			Items:                 items,
		},
	}
}

// doGet performs one authenticated GET against the Apilo REST API
func (a *ApiloAdapter) doGet(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, err := a.tokens.AccessToken(ctx, catalog.ProviderApilo)
	if err != nil {
		return nil, err
	}

	endpoint := a.config.APIBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("apilo: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apilo: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("apilo: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ingest.NewCredentialError(fmt.Sprintf("apilo: HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("apilo: HTTP %d", resp.StatusCode)
	}
	return body, nil
}

// Ensure ApiloAdapter implements the provider and token exchange ports
var (
	_ ingest.ProviderAdapter = (*ApiloAdapter)(nil)
	_ ingest.TokenExchanger  = (*ApiloAdapter)(nil)
)
