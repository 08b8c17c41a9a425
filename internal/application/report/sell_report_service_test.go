package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/shared"
)

type stubReader struct {
	orders       []catalog.Order
	marketplaces []catalog.Marketplace
}

func (s *stubReader) ListOrdersBetween(_ context.Context, _, _ time.Time) ([]catalog.Order, error) {
	return s.orders, nil
}

func (s *stubReader) ListMarketplaces(_ context.Context) ([]catalog.Marketplace, error) {
	return s.marketplaces, nil
}

func TestSellReport(t *testing.T) {
	allegro := catalog.Marketplace{BaseEntity: shared.NewBaseEntity(), Provider: catalog.ProviderBaselinker, ExternalID: "mp-1", Name: "Allegro", RawName: "allegro_pl"}
	shop := catalog.Marketplace{BaseEntity: shared.NewBaseEntity(), Provider: catalog.ProviderApilo, ExternalID: "mp-2", Name: "Shop", RawName: "shop"}

	reader := &stubReader{
		marketplaces: []catalog.Marketplace{allegro, shop},
		orders: []catalog.Order{
			{BaseEntity: shared.NewBaseEntity(), Provider: catalog.ProviderBaselinker, MarketplaceID: allegro.ID, StatusCode: 1, TotalPLN: decimal.RequireFromString("100.00")},
			{BaseEntity: shared.NewBaseEntity(), Provider: catalog.ProviderBaselinker, MarketplaceID: allegro.ID, StatusCode: 2, TotalPLN: decimal.RequireFromString("50.50")},
			{BaseEntity: shared.NewBaseEntity(), Provider: catalog.ProviderApilo, MarketplaceID: shop.ID, StatusCode: 5, TotalPLN: decimal.RequireFromString("25.00")},
			// Cancelled on the primary provider, excluded.
			{BaseEntity: shared.NewBaseEntity(), Provider: catalog.ProviderBaselinker, MarketplaceID: allegro.ID, StatusCode: 196511, TotalPLN: decimal.RequireFromString("999.00")},
		},
	}

	service := NewService(reader, map[catalog.ProviderCode][]int{
		catalog.ProviderBaselinker: {196511},
		catalog.ProviderApilo:      {21},
	}, zap.NewNop())

	report, err := service.SellReport(context.Background(), time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalOrders)
	assert.True(t, report.TotalPLN.Equal(decimal.RequireFromString("175.50")))
	require.Len(t, report.Marketplaces, 2)
	assert.Equal(t, "Allegro", report.Marketplaces[0].MarketplaceName)
	assert.Equal(t, 2, report.Marketplaces[0].OrderCount)
	assert.True(t, report.Marketplaces[0].RevenuePLN.Equal(decimal.RequireFromString("150.50")))
}

func TestSellReport_InvalidRange(t *testing.T) {
	service := NewService(&stubReader{}, nil, zap.NewNop())
	_, err := service.SellReport(context.Background(), time.Now(), time.Now().AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}
