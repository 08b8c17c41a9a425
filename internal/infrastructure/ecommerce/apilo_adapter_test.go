package ecommerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// staticTokens satisfies TokenSource with a fixed access token
type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken(context.Context, catalog.ProviderCode) (string, error) {
	return s.token, s.err
}

func newApiloAdapter(t *testing.T, serverURL string) *ApiloAdapter {
	adapter, err := NewApiloAdapter(&ApiloConfig{
		APIBaseURL:   serverURL,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
	}, staticTokens{token: "acc-1"})
	require.NoError(t, err)
	return adapter
}

func TestApiloConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *ApiloConfig
		wantErr error
	}{
		{
			name:    "valid config",
			config:  &ApiloConfig{APIBaseURL: "https://shop.apilo.com", ClientID: "c", ClientSecret: "s"},
			wantErr: nil,
		},
		{
			name:    "missing base URL",
			config:  &ApiloConfig{ClientID: "c", ClientSecret: "s"},
			wantErr: ErrApiloConfigMissingBaseURL,
		},
		{
			name:    "missing client ID",
			config:  &ApiloConfig{APIBaseURL: "https://shop.apilo.com", ClientSecret: "s"},
			wantErr: ErrApiloConfigMissingClientID,
		},
		{
			name:    "missing client secret",
			config:  &ApiloConfig{APIBaseURL: "https://shop.apilo.com", ClientID: "c"},
			wantErr: ErrApiloConfigMissingClientSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.True(t, tt.config.TimeoutSeconds > 0)
			}
		})
	}
}

func TestApiloAdapter_ExchangeAuthCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/auth/token/", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-1", user)
		assert.Equal(t, "secret-1", pass)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "authorization_code", body["grantType"])
		assert.Equal(t, "auth-code", body["token"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"accessToken": "acc-1", "refreshToken": "ref-1"}`))
	}))
	defer server.Close()

	adapter := newApiloAdapter(t, server.URL)
	pair, err := adapter.ExchangeAuthCode(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", pair.AccessToken)
	assert.Equal(t, "ref-1", pair.RefreshToken)
	assert.False(t, pair.IssuedAt.IsZero())
}

func TestApiloAdapter_ExchangeRefreshToken_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := newApiloAdapter(t, server.URL)
	_, err := adapter.ExchangeRefreshToken(context.Background(), "dead-token")
	require.Error(t, err)
	assert.Equal(t, ingest.ErrorKindCredential, ingest.KindOf(err))
}

func TestApiloAdapter_FetchMarketplaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/sale/platform/", r.URL.Path)
		assert.Equal(t, "Bearer acc-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"platforms": [{"id": 21, "name": "allegro_pl"}]}`))
	}))
	defer server.Close()

	adapter := newApiloAdapter(t, server.URL)
	records, err := adapter.FetchMarketplaces(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "21", records[0].ExternalID)
	assert.Equal(t, "allegro_pl", records[0].Marketplace.Name)
	assert.NoError(t, records[0].Validate())
}

func TestApiloAdapter_FetchProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/warehouse/product/", r.URL.Path)
		if r.URL.Query().Get("offset") != "0" {
			_, _ = w.Write([]byte(`{"products": []}`))
			return
		}
		_, _ = w.Write([]byte(`{"products": [
			{"id": 7, "sku": "abc-1", "name": "Widget", "unitPurchaseCost": 12.50},
			{"id": 8, "sku": "def-2", "name": "Gadget"}
		]}`))
	}))
	defer server.Close()

	adapter := newApiloAdapter(t, server.URL)
	records, err := adapter.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NotNil(t, records[0].Product.PurchaseCost)
	assert.True(t, records[0].Product.PurchaseCost.Equal(decimal.RequireFromString("12.50")))
	assert.Nil(t, records[1].Product.PurchaseCost, "zero cost is treated as unreported")
}

func TestApiloAdapter_FetchOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/orders/", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("createdAfter"))
		if r.URL.Query().Get("offset") != "0" {
			_, _ = w.Write([]byte(`{"orders": []}`))
			return
		}
		_, _ = w.Write([]byte(`{"orders": [{
			"id": "AP-5001",
			"platformId": 21,
			"createdAt": "2025-01-02T10:30:00Z",
			"status": 7,
			"currency": "EUR",
			"totalWithTax": 40.00,
			"deliveryCost": 5.00,
			"addressDeliveryCity": "Berlin",
			"addressDeliveryCountry": "DE",
			"orderItems": [
				{"sku": "abc-1", "originalName": "Widget", "priceWithTax": 17.50, "quantity": 2}
			]
		}]}`))
	}))
	defer server.Close()

	adapter := newApiloAdapter(t, server.URL)
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	records, err := adapter.FetchOrders(context.Background(), since, since.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "AP-5001", record.ExternalID)
	assert.NoError(t, record.Validate())

	order := record.Order
	assert.Equal(t, "21", order.ExternalMarketplaceID)
	assert.Equal(t, "EUR", order.Currency)
	assert.Equal(t, 7, order.StatusCode)
	assert.Equal(t, "DE", order.BuyerCountry)
	require.Len(t, order.Items, 1)
	// No tax reported on the line, so the default rate applies.
	assert.True(t, order.Items[0].TaxRate.Equal(decimal.NewFromInt(23)))
}

func TestApiloAdapter_FetchStock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/sale/offer/", r.URL.Path)
		if r.URL.Query().Get("offset") != "0" {
			_, _ = w.Write([]byte(`{"offers": []}`))
			return
		}
		_, _ = w.Write([]byte(`{"offers": [
			{"id": 301, "sku": "abc-1", "platformId": 21, "priceWithTax": 49.99, "quantity": 14, "status": 1},
			{"id": 302, "sku": "def-2", "platformId": 21, "priceWithTax": 9.99, "quantity": 0, "status": 0}
		]}`))
	}))
	defer server.Close()

	adapter := newApiloAdapter(t, server.URL)
	date := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	records, err := adapter.FetchStock(context.Background(), date)
	require.NoError(t, err)

	// Only the live offer yields a stock observation.
	require.Len(t, records, 1)
	assert.Equal(t, "abc-1", records[0].Stock.SKU)
	assert.Equal(t, 14, records[0].Stock.Quantity)
	assert.Equal(t, date, records[0].Stock.ObservedDate)
}
