package ecommerce

import "encoding/json"

// ApiloTokenResponse is the POST /rest/auth/token/ response
type ApiloTokenResponse struct {
	AccessToken           string `json:"accessToken"`
	AccessTokenExpireAt   string `json:"accessTokenExpireAt"`
	RefreshToken          string `json:"refreshToken"`
	RefreshTokenExpireAt  string `json:"refreshTokenExpireAt"`
}

// ApiloPlatformsResponse is the GET /rest/api/sale/ platform listing
type ApiloPlatformsResponse struct {
	Platforms []ApiloPlatform `json:"platforms"`
}

// ApiloPlatform is one connected sales channel
type ApiloPlatform struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ApiloProductsResponse is the GET /rest/api/warehouse/product/ response
type ApiloProductsResponse struct {
	Products   []ApiloProduct `json:"products"`
	TotalCount int64          `json:"totalCount"`
}

// ApiloProduct is one warehouse product
type ApiloProduct struct {
	ID           int64       `json:"id"`
	SKU          string      `json:"sku"`
	EAN          string      `json:"ean"`
	Name         string      `json:"name"`
	ImageURL     string      `json:"imageUrl"`
	Unit         string      `json:"unit"`
	PriceWithTax json.Number `json:"priceWithTax"`
	// PurchaseCost is the net acquisition cost; BaseLinker never reports
	// this, so it is first-write-wins on the canonical product.
	PurchaseCost json.Number `json:"unitPurchaseCost"`
	Quantity     int         `json:"quantity"`
	Status       int         `json:"status"`
}

// ApiloOffersResponse is the GET /rest/api/sale/offer/ response
type ApiloOffersResponse struct {
	Offers     []ApiloOffer `json:"offers"`
	TotalCount int64        `json:"totalCount"`
}

// ApiloOffer is one marketplace listing
type ApiloOffer struct {
	ID           int64       `json:"id"`
	SKU          string      `json:"sku"`
	EAN          string      `json:"ean"`
	PlatformID   int64       `json:"platformId"`
	PriceWithTax json.Number `json:"priceWithTax"`
	Quantity     int         `json:"quantity"`
	// Status 1 means the offer is live on the marketplace.
	Status int `json:"status"`
}

// ApiloOrdersResponse is the GET /rest/api/orders/ response
type ApiloOrdersResponse struct {
	Orders     []ApiloOrder `json:"orders"`
	TotalCount int64        `json:"totalCount"`
}

// ApiloOrder is one order as Apilo reports it
type ApiloOrder struct {
	ID             string           `json:"id"`
	PlatformID     int64            `json:"platformId"`
	CreatedAt      string           `json:"createdAt"`
	Status         int              `json:"status"`
	Currency       string           `json:"currency"`
	TotalWithTax   json.Number      `json:"totalWithTax"`
	DeliveryMethod string           `json:"deliveryMethod"`
	DeliveryCost   json.Number      `json:"deliveryCost"`
	AddressDeliveryCity    string   `json:"addressDeliveryCity"`
	AddressDeliveryCountry string   `json:"addressDeliveryCountry"`
	Items          []ApiloOrderItem `json:"orderItems"`
}

// ApiloOrderItem is one order line
type ApiloOrderItem struct {
	SKU          string      `json:"sku"`
	OriginalName string      `json:"originalName"`
	PriceWithTax json.Number `json:"priceWithTax"`
	Tax          json.Number `json:"tax"`
	Quantity     int         `json:"quantity"`
}
