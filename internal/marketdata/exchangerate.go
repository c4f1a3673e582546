package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/observability"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/resilience"
)

// DefaultExchangeRateURL serves /{base} rate tables
const DefaultExchangeRateURL = "https://api.exchangerate-api.com/v4/latest"

// ExchangeRateConfig holds exchange rate client configuration
type ExchangeRateConfig struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig resilience.RetryConfig
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

// ExchangeRateClient fetches currency rate tables
type ExchangeRateClient struct {
	*restClient
}

// NewExchangeRateClient creates a new exchange rate client
func NewExchangeRateClient(cfg ExchangeRateConfig) *ExchangeRateClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultExchangeRateURL
	}

	return &ExchangeRateClient{
		restClient: newRESTClient(restClientConfig{
			Name:        "exchangerate",
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
			RetryConfig: cfg.RetryConfig,
			Logger:      cfg.Logger,
			Metrics:     cfg.Metrics,
		}),
	}
}

// Name returns the provider name
func (c *ExchangeRateClient) Name() string {
	return "exchangerate"
}

// Latest returns the multiplier from base to every currency the source knows
func (c *ExchangeRateClient) Latest(ctx context.Context, base string) (map[string]float64, error) {
	var resp exchangeRateResponse
	if err := c.get(ctx, "latest", "/"+url.PathEscape(base), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s rates: %w", base, err)
	}
	if len(resp.Rates) == 0 {
		return nil, fmt.Errorf("%s rates: %w: empty rate table", base, ErrMalformedResponse)
	}
	return resp.Rates, nil
}
