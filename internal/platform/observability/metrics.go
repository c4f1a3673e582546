package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Metrics holds all application metrics
type Metrics struct {
	meter metric.Meter

	// Cache metrics
	CacheHits     metric.Int64Counter
	CacheMisses   metric.Int64Counter
	StaleServed   metric.Int64Counter
	StorageErrors metric.Int64Counter
	CacheClears   metric.Int64Counter

	// Upstream API metrics
	APICalls    metric.Int64Counter
	APIDuration metric.Float64Histogram

	// Category fallback activations
	CategoryFallbacks metric.Int64Counter

	// Exchange rate per currency
	ExchangeRate metric.Float64Gauge

	// Circuit breaker metrics
	CircuitBreakerState metric.Int64Gauge

	// Prometheus exporter for HTTP handler
	exporter *prometheus.Exporter
}

// NewMetrics creates a new Metrics instance. When disabled, instruments come
// from the otel noop meter so recording is always safe.
func NewMetrics(serviceName string, enabled bool) (*Metrics, error) {
	if !enabled {
		m := &Metrics{meter: noop.NewMeterProvider().Meter(serviceName)}
		if err := m.initMetrics(); err != nil {
			return nil, fmt.Errorf("failed to initialize noop metrics: %w", err)
		}
		return m, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	m := &Metrics{
		meter:    provider.Meter(serviceName),
		exporter: exporter,
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

// NewNopMetrics returns metrics backed by the noop meter
func NewNopMetrics() *Metrics {
	m, _ := NewMetrics("noop", false)
	return m
}

// initMetrics initializes all metric instruments
func (m *Metrics) initMetrics() error {
	var err error

	m.CacheHits, err = m.meter.Int64Counter(
		"tracker.cache.hits",
		metric.WithDescription("Total cache hits by tier"),
	)
	if err != nil {
		return err
	}

	m.CacheMisses, err = m.meter.Int64Counter(
		"tracker.cache.misses",
		metric.WithDescription("Total cache misses by tier"),
	)
	if err != nil {
		return err
	}

	m.StaleServed, err = m.meter.Int64Counter(
		"tracker.cache.stale_served",
		metric.WithDescription("Reads answered from expired cache entries after a failed fetch"),
	)
	if err != nil {
		return err
	}

	m.StorageErrors, err = m.meter.Int64Counter(
		"tracker.cache.storage_errors",
		metric.WithDescription("Failed cache tier writes by tier"),
	)
	if err != nil {
		return err
	}

	m.CacheClears, err = m.meter.Int64Counter(
		"tracker.cache.clears",
		metric.WithDescription("Explicit cache clears"),
	)
	if err != nil {
		return err
	}

	m.APICalls, err = m.meter.Int64Counter(
		"tracker.api.calls",
		metric.WithDescription("Total upstream API calls"),
	)
	if err != nil {
		return err
	}

	m.APIDuration, err = m.meter.Float64Histogram(
		"tracker.api.duration",
		metric.WithDescription("Upstream API call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.CategoryFallbacks, err = m.meter.Int64Counter(
		"tracker.category.fallbacks",
		metric.WithDescription("Category queries answered through the static fallback table"),
	)
	if err != nil {
		return err
	}

	m.ExchangeRate, err = m.meter.Float64Gauge(
		"tracker.exchange_rate",
		metric.WithDescription("Current USD exchange rate per currency"),
	)
	if err != nil {
		return err
	}

	m.CircuitBreakerState, err = m.meter.Int64Gauge(
		"tracker.circuit_breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordCacheHit records a cache hit for a tier
func (m *Metrics) RecordCacheHit(ctx context.Context, tier string) {
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordCacheMiss records a cache miss for a tier
func (m *Metrics) RecordCacheMiss(ctx context.Context, tier string) {
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordStaleServed records a degraded read
func (m *Metrics) RecordStaleServed(ctx context.Context, operation string) {
	m.StaleServed.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordStorageError records a failed tier write
func (m *Metrics) RecordStorageError(ctx context.Context, tier string) {
	m.StorageErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordCacheClear records an explicit clear
func (m *Metrics) RecordCacheClear(ctx context.Context) {
	m.CacheClears.Add(ctx, 1)
}

// RecordAPICall records an upstream call
func (m *Metrics) RecordAPICall(ctx context.Context, source, endpoint, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	)
	m.APICalls.Add(ctx, 1, attrs)
	m.APIDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordCategoryFallback records a fallback-table activation
func (m *Metrics) RecordCategoryFallback(ctx context.Context, category string) {
	m.CategoryFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

// RecordExchangeRate records the current rate of a currency
func (m *Metrics) RecordExchangeRate(ctx context.Context, currency string, rate float64) {
	m.ExchangeRate.Record(ctx, rate, metric.WithAttributes(attribute.String("currency", currency)))
}

// SetCircuitBreakerState records circuit breaker state
func (m *Metrics) SetCircuitBreakerState(ctx context.Context, service string, state int64) {
	m.CircuitBreakerState.Record(ctx, state, metric.WithAttributes(attribute.String("service", service)))
}

// Handler returns the HTTP handler for Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	// The otel Prometheus exporter registers with the default registry
	return promhttp.Handler()
}
