package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/observability"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/resilience"
)

// DefaultCoinGeckoURL is the public API root
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// CoinGeckoConfig holds CoinGecko client configuration
type CoinGeckoConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RateLimitRPM   int
	MinRPM         int
	MaxRPM         int
	Burst          int
	RetryConfig    resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
	Logger         *observability.Logger
	Metrics        *observability.Metrics
}

// CoinGeckoClient reads listings, coin details, price history and global
// aggregates from a CoinGecko-compatible API. Prices are in USD.
type CoinGeckoClient struct {
	*restClient
}

// MarketsQuery selects a page of the market-cap-descending listing
type MarketsQuery struct {
	PerPage  int
	Page     int
	Category string
	IDs      []string
}

// NewCoinGeckoClient creates a new CoinGecko client
func NewCoinGeckoClient(cfg CoinGeckoConfig) *CoinGeckoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCoinGeckoURL
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = 30 // public tier
	}
	if cfg.MinRPM == 0 {
		cfg.MinRPM = 5
	}
	if cfg.MaxRPM == 0 {
		cfg.MaxRPM = 50
	}

	return &CoinGeckoClient{
		restClient: newRESTClient(restClientConfig{
			Name:           "coingecko",
			BaseURL:        cfg.BaseURL,
			Timeout:        cfg.Timeout,
			Limiter:        resilience.NewAdaptiveLimiterFromRPM(cfg.RateLimitRPM, cfg.MinRPM, cfg.MaxRPM, cfg.Burst),
			RetryConfig:    cfg.RetryConfig,
			CircuitBreaker: cfg.CircuitBreaker,
			Logger:         cfg.Logger,
			Metrics:        cfg.Metrics,
		}),
	}
}

// Name returns the provider name
func (c *CoinGeckoClient) Name() string {
	return "coingecko"
}

// Markets fetches one page of the listing sorted by market cap descending
func (c *CoinGeckoClient) Markets(ctx context.Context, q MarketsQuery) ([]MarketCoin, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = 100
	}

	params := map[string]string{
		"vs_currency": "usd",
		"order":       "market_cap_desc",
		"per_page":    strconv.Itoa(q.PerPage),
		"page":        strconv.Itoa(q.Page),
		"sparkline":   "false",
	}
	if q.Category != "" {
		params["category"] = q.Category
	}
	if len(q.IDs) > 0 {
		params["ids"] = strings.Join(q.IDs, ",")
	}

	var coins []MarketCoin
	if err := c.get(ctx, "markets", "/coins/markets", params, &coins); err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}
	return coins, nil
}

// Coin fetches the detail payload for one coin, including the embedded
// 7-day sparkline
func (c *CoinGeckoClient) Coin(ctx context.Context, id string) (*CoinDetail, error) {
	params := map[string]string{
		"localization":   "false",
		"tickers":        "false",
		"market_data":    "true",
		"community_data": "true",
		"developer_data": "false",
		"sparkline":      "true",
	}

	var detail CoinDetail
	if err := c.get(ctx, "coin", "/coins/"+url.PathEscape(id), params, &detail); err != nil {
		return nil, fmt.Errorf("failed to fetch coin %s: %w", id, err)
	}
	if detail.ID == "" {
		return nil, fmt.Errorf("coin %s: %w: missing id", id, ErrMalformedResponse)
	}
	return &detail, nil
}

// MarketChart fetches the USD price series of the last days days. Points are
// daily beyond 90 days, hourly otherwise.
func (c *CoinGeckoClient) MarketChart(ctx context.Context, id string, days int) ([]float64, error) {
	interval := "hourly"
	if days > 90 {
		interval = "daily"
	}

	params := map[string]string{
		"vs_currency": "usd",
		"days":        strconv.Itoa(days),
		"interval":    interval,
	}

	var chart marketChartResponse
	path := "/coins/" + url.PathEscape(id) + "/market_chart"
	if err := c.get(ctx, "market_chart", path, params, &chart); err != nil {
		return nil, fmt.Errorf("failed to fetch %dd chart for %s: %w", days, id, err)
	}

	prices := make([]float64, 0, len(chart.Prices))
	for _, point := range chart.Prices {
		if len(point) < 2 {
			return nil, fmt.Errorf("chart for %s: %w: short price point", id, ErrMalformedResponse)
		}
		prices = append(prices, point[1])
	}
	return prices, nil
}

// Global fetches the global market aggregates
func (c *CoinGeckoClient) Global(ctx context.Context) (*GlobalData, error) {
	var resp globalResponse
	if err := c.get(ctx, "global", "/global", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch global data: %w", err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("global: %w: missing data", ErrMalformedResponse)
	}
	return resp.Data, nil
}
