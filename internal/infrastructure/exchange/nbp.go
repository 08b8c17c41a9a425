package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/ingest"
)

const (
	// NBPProductionAPIURL is the National Bank of Poland rates API
	NBPProductionAPIURL = "https://api.nbp.pl"

	// maxResponseSize limits the response body size
	maxResponseSize = 1 * 1024 * 1024

	// cacheTTL is how long a fetched rate table is reused
	cacheTTL = time.Hour
)

// nbpTable is one entry of the /exchangerates/tables/A response
type nbpTable struct {
	Table         string    `json:"table"`
	EffectiveDate string    `json:"effectiveDate"`
	Rates         []nbpRate `json:"rates"`
}

// nbpRate is one currency row
type nbpRate struct {
	Currency string      `json:"currency"`
	Code     string      `json:"code"`
	Mid      json.Number `json:"mid"`
}

// NBPRateSource fetches PLN mid rates from the NBP table A, caching the
// result. When the API is unreachable the configured fallback rates keep
// conversions running with slightly stale numbers.
type NBPRateSource struct {
	baseURL    string
	httpClient *http.Client
	fallback   map[string]decimal.Decimal
	logger     *zap.Logger

	mu        sync.Mutex
	cached    map[string]decimal.Decimal
	fetchedAt time.Time
}

// NewNBPRateSource creates a rate source with the given fallback table
func NewNBPRateSource(baseURL string, timeout time.Duration, fallback map[string]decimal.Decimal, logger *zap.Logger) *NBPRateSource {
	if baseURL == "" {
		baseURL = NBPProductionAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NBPRateSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		fallback:   fallback,
		logger:     logger,
	}
}

// Rates returns mid rates keyed by ISO currency code. PLN always maps to 1.
func (s *NBPRateSource) Rates(ctx context.Context) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Since(s.fetchedAt) < cacheTTL {
		return s.cached, nil
	}

	rates, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("rate fetch failed, using fallback rates", zap.Error(err))
		rates = make(map[string]decimal.Decimal, len(s.fallback))
		for code, rate := range s.fallback {
			rates[code] = rate
		}
	}
	rates["PLN"] = decimal.NewFromInt(1)

	s.cached = rates
	s.fetchedAt = time.Now()
	return rates, nil
}

func (s *NBPRateSource) fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	url := s.baseURL + "/api/exchangerates/tables/A?format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("nbp: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nbp: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("nbp: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("nbp: HTTP %d", resp.StatusCode)
	}

	var tables []nbpTable
	if err := json.Unmarshal(body, &tables); err != nil {
		return nil, fmt.Errorf("nbp: failed to parse response: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("nbp: empty rate table")
	}

	rates := make(map[string]decimal.Decimal, len(tables[0].Rates))
	for _, rate := range tables[0].Rates {
		mid, err := decimal.NewFromString(rate.Mid.String())
		if err != nil {
			continue
		}
		rates[rate.Code] = mid
	}
	return rates, nil
}

// Ensure NBPRateSource implements the rate source port
var _ ingest.RateSource = (*NBPRateSource)(nil)
