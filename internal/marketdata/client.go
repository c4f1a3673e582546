package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/observability"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/resilience"
)

// restClient is the transport shared by the upstream clients: rate limiting,
// circuit breaking, retries, health and metrics around a resty client.
type restClient struct {
	name     string
	http     *resty.Client
	limiter  *resilience.AdaptiveLimiter
	cb       *resilience.CircuitBreaker
	retryCfg resilience.RetryConfig
	logger   *observability.Logger
	metrics  *observability.Metrics

	healthMu sync.RWMutex
	health   ProviderHealth
}

type restClientConfig struct {
	Name           string
	BaseURL        string
	Timeout        time.Duration
	Limiter        *resilience.AdaptiveLimiter
	RetryConfig    resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
	Logger         *observability.Logger
	Metrics        *observability.Metrics
}

func newRESTClient(cfg restClientConfig) *restClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = resilience.DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}

	metrics := cfg.Metrics
	cb := cfg.CircuitBreaker
	if cb == nil {
		cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             cfg.Name,
			FailureThreshold: 5,
			Timeout:          60 * time.Second,
			IsFailure:        IsUpstreamFault,
			OnStateChange: func(from, to resilience.State) {
				metrics.SetCircuitBreakerState(context.Background(), cfg.Name, int64(to))
			},
		})
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &restClient{
		name:     cfg.Name,
		http:     client,
		limiter:  cfg.Limiter,
		cb:       cb,
		retryCfg: cfg.RetryConfig,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		health:   ProviderHealth{Provider: cfg.Name},
	}
}

// get issues GET path with params and decodes the JSON body into out
func (c *restClient) get(ctx context.Context, endpoint, path string, params map[string]string, out any) error {
	return c.cb.Execute(ctx, func(ctx context.Context) error {
		return resilience.RetryIf(ctx, c.retryCfg, IsRetryable, func(ctx context.Context) error {
			return c.do(ctx, endpoint, path, params, out)
		})
	})
}

func (c *restClient) do(ctx context.Context, endpoint, path string, params map[string]string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	duration := time.Since(start)

	err = c.decode(ctx, resp, err, out)

	c.recordHealth(err, duration)
	c.metrics.RecordAPICall(ctx, c.name, endpoint, callStatus(err), duration)

	if c.limiter != nil {
		switch {
		case err == nil:
			c.limiter.RecordSuccess()
		case errors.Is(err, ErrRateLimited):
			c.limiter.RecordRateLimitError()
		default:
			c.limiter.RecordError()
		}
	}

	if err != nil {
		c.logger.LogDebug(ctx, "upstream call failed",
			"provider", c.name, "endpoint", endpoint, "error", err, "duration_ms", duration.Milliseconds())
	}
	return err
}

// decode classifies the outcome of a request into the error taxonomy
func (c *restClient) decode(ctx context.Context, resp *resty.Response, err error, out any) error {
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	if code := resp.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		body := resp.String()
		if len(body) > 200 {
			body = body[:200]
		}
		return &StatusError{Code: code, Body: body}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}

// Health returns the current health status of the client.
func (c *restClient) Health() ProviderHealth {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()

	h := c.health
	h.CircuitState = c.cb.State().String()
	if c.limiter != nil {
		h.Throttled = c.limiter.IsThrottled()
		h.RateLimitHits = c.limiter.RateLimitHits()
	}
	return h
}

func (c *restClient) recordHealth(err error, duration time.Duration) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.LastDuration = duration
	if err == nil {
		c.health.LastSuccess = time.Now()
		c.health.LastError = ""
		c.health.ConsecutiveFailures = 0
		return
	}

	c.health.LastFailure = time.Now()
	c.health.LastError = err.Error()
	c.health.ConsecutiveFailures++
}
