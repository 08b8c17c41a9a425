package report

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

var ErrInvalidDateRange = errors.New("report: from must not be after to")

// MarketplaceSales aggregates sales for one marketplace over a window
type MarketplaceSales struct {
	MarketplaceID   string
	MarketplaceName string
	OrderCount      int
	RevenuePLN      decimal.Decimal
}

// SellReport is the per-marketplace sales summary for a date window
type SellReport struct {
	From         time.Time
	To           time.Time
	TotalOrders  int
	TotalPLN     decimal.Decimal
	Marketplaces []MarketplaceSales
}

// Service builds sell reports from synced orders. Orders whose status is
// ignore-listed for their provider are excluded even when they predate the
// current ignore list.
type Service struct {
	reader     ingest.OrderReader
	ignoreList map[catalog.ProviderCode]map[int]struct{}
	logger     *zap.Logger
}

// NewService creates a report service
func NewService(reader ingest.OrderReader, ignoreStatuses map[catalog.ProviderCode][]int, logger *zap.Logger) *Service {
	ignoreList := make(map[catalog.ProviderCode]map[int]struct{}, len(ignoreStatuses))
	for provider, codes := range ignoreStatuses {
		set := make(map[int]struct{}, len(codes))
		for _, code := range codes {
			set[code] = struct{}{}
		}
		ignoreList[provider] = set
	}
	return &Service{reader: reader, ignoreList: ignoreList, logger: logger}
}

// SellReport aggregates order count and PLN revenue per marketplace
func (s *Service) SellReport(ctx context.Context, from, to time.Time) (*SellReport, error) {
	if from.After(to) {
		return nil, ErrInvalidDateRange
	}

	orders, err := s.reader.ListOrdersBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	marketplaces, err := s.reader.ListMarketplaces(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(marketplaces))
	for _, m := range marketplaces {
		names[m.ID.String()] = m.Name
	}

	report := &SellReport{From: from, To: to, TotalPLN: decimal.Zero}
	byMarketplace := map[string]*MarketplaceSales{}
	for i := range orders {
		order := &orders[i]
		if s.isIgnored(order.Provider, order.StatusCode) {
			continue
		}
		key := order.MarketplaceID.String()
		sales, ok := byMarketplace[key]
		if !ok {
			sales = &MarketplaceSales{
				MarketplaceID:   key,
				MarketplaceName: names[key],
				RevenuePLN:      decimal.Zero,
			}
			byMarketplace[key] = sales
		}
		sales.OrderCount++
		sales.RevenuePLN = sales.RevenuePLN.Add(order.TotalPLN)
		report.TotalOrders++
		report.TotalPLN = report.TotalPLN.Add(order.TotalPLN)
	}

	report.Marketplaces = make([]MarketplaceSales, 0, len(byMarketplace))
	for _, sales := range byMarketplace {
		sales.RevenuePLN = sales.RevenuePLN.Round(2)
		report.Marketplaces = append(report.Marketplaces, *sales)
	}
	sort.Slice(report.Marketplaces, func(i, j int) bool {
		return report.Marketplaces[i].MarketplaceName < report.Marketplaces[j].MarketplaceName
	})
	report.TotalPLN = report.TotalPLN.Round(2)
	return report, nil
}

func (s *Service) isIgnored(provider catalog.ProviderCode, statusCode int) bool {
	set, ok := s.ignoreList[provider]
	if !ok {
		return false
	}
	_, ignored := set[statusCode]
	return ignored
}
