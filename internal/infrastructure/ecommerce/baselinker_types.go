package ecommerce

import "encoding/json"

// BaselinkerResponse is the envelope every connector method returns
type BaselinkerResponse struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// IsSuccess returns true when the connector accepted the call
func (r *BaselinkerResponse) IsSuccess() bool {
	return r.Status == "SUCCESS"
}

// BaselinkerOrderSourcesResponse is the getOrderSources response. Sources
// are grouped by channel, each group mapping source ID to display name.
type BaselinkerOrderSourcesResponse struct {
	BaselinkerResponse
	Sources map[string]map[string]string `json:"sources"`
}

// BaselinkerProductsResponse is the getInventoryProductsList response
type BaselinkerProductsResponse struct {
	BaselinkerResponse
	Products map[string]BaselinkerProduct `json:"products"`
}

// BaselinkerProduct is one inventory product row
type BaselinkerProduct struct {
	SKU  string `json:"sku"`
	EAN  string `json:"ean"`
	Name string `json:"name"`
}

// BaselinkerStockResponse is the getInventoryProductsStock response.
// Stock maps product ID to per-warehouse quantities.
type BaselinkerStockResponse struct {
	BaselinkerResponse
	Products map[string]BaselinkerProductStock `json:"products"`
}

// BaselinkerProductStock is the stock block for one product
type BaselinkerProductStock struct {
	SKU   string         `json:"sku"`
	Stock map[string]int `json:"stock"`
}

// BaselinkerOrdersResponse is the getOrders response
type BaselinkerOrdersResponse struct {
	BaselinkerResponse
	Orders []BaselinkerOrder `json:"orders"`
}

// BaselinkerOrder is one order as the connector reports it. Monetary values
// arrive as JSON numbers; timestamps are Unix seconds.
type BaselinkerOrder struct {
	OrderID             int64           `json:"order_id"`
	OrderSourceID       int64           `json:"order_source_id"`
	OrderSource         string          `json:"order_source"`
	DateAdd             int64           `json:"date_add"`
	OrderStatusID       int             `json:"order_status_id"`
	Currency            string          `json:"currency"`
	PaymentDone         json.Number     `json:"payment_done"`
	DeliveryMethod      string          `json:"delivery_method"`
	DeliveryPrice       json.Number     `json:"delivery_price"`
	DeliveryCountryCode string          `json:"delivery_country_code"`
	DeliveryCity        string          `json:"delivery_city"`
	Products            []BaselinkerOrderProduct `json:"products"`
}

// BaselinkerOrderProduct is one order line
type BaselinkerOrderProduct struct {
	SKU         string      `json:"sku"`
	Name        string      `json:"name"`
	PriceBrutto json.Number `json:"price_brutto"`
	TaxRate     json.Number `json:"tax_rate"`
	Quantity    int         `json:"quantity"`
}
