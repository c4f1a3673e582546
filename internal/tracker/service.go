package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/agatticelli/crypto-tray-feed/internal/marketdata"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/observability"
)

const (
	// DefaultDisplayLimit is the top listing size when none is requested
	DefaultDisplayLimit = 20

	// MaxTopLimit is the largest page the market source serves
	MaxTopLimit = 250

	categoryPageSize = 100
	fallbackPageSize = 50
)

// MarketSource reads listings, details, charts and aggregates in USD
type MarketSource interface {
	Markets(ctx context.Context, q marketdata.MarketsQuery) ([]marketdata.MarketCoin, error)
	Coin(ctx context.Context, id string) (*marketdata.CoinDetail, error)
	MarketChart(ctx context.Context, id string, days int) ([]float64, error)
	Global(ctx context.Context) (*marketdata.GlobalData, error)
}

// RateSource reads a currency rate table relative to base
type RateSource interface {
	Latest(ctx context.Context, base string) (map[string]float64, error)
}

// Cache is the tiered cache the service reads through
type Cache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	GetStale(ctx context.Context, key string) (json.RawMessage, bool)
	Set(ctx context.Context, key string, payload json.RawMessage)
	Clear(ctx context.Context) error
}

// CategoryTable maps a category to known asset ids
type CategoryTable interface {
	IDs(category string) []string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Market     MarketSource
	Rates      RateSource
	Cache      Cache
	Categories CategoryTable
	RateTable  *RateTable
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Tracer     trace.Tracer

	// SearchLimit is the size of the listing searches run against
	SearchLimit int

	// DisplayLimit is the listing size kept warm by Refresh
	DisplayLimit int

	Now func() time.Time
}

// Service answers market data queries from the cache, fetching on a miss and
// degrading to stale entries when the fetch fails. Read methods never return
// errors; they resolve to fresh data, stale data or an empty value.
type Service struct {
	market       MarketSource
	rateSource   RateSource
	cache        Cache
	categories   CategoryTable
	rates        *RateTable
	logger       *observability.Logger
	metrics      *observability.Metrics
	tracer       trace.Tracer
	searchLimit  int
	displayLimit int
	now          func() time.Time

	// coalesces concurrent fetches of the same cache key
	group singleflight.Group
}

// NewService creates a new Service
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Market == nil {
		return nil, fmt.Errorf("market source is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}

	if cfg.Categories == nil {
		cfg.Categories = emptyCategories{}
	}
	if cfg.RateTable == nil {
		cfg.RateTable = NewRateTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("crypto-tray-feed/tracker")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		market:       cfg.Market,
		rateSource:   cfg.Rates,
		cache:        cfg.Cache,
		categories:   cfg.Categories,
		rates:        cfg.RateTable,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
		searchLimit:  clampLimit(cfg.SearchLimit, MaxTopLimit),
		displayLimit: clampLimit(cfg.DisplayLimit, DefaultDisplayLimit),
		now:          cfg.Now,
	}, nil
}

type emptyCategories struct{}

func (emptyCategories) IDs(string) []string { return nil }

// Rates returns the exchange rate table used by the formatters
func (s *Service) Rates() *RateTable {
	return s.rates
}

// GetTopAssets returns the top limit assets by market cap. A non-positive
// limit means DefaultDisplayLimit; limits above MaxTopLimit are clamped.
func (s *Service) GetTopAssets(ctx context.Context, limit int) []Asset {
	assets, _ := s.topAssets(ctx, limit, false)
	return orEmpty(assets)
}

func (s *Service) topAssets(ctx context.Context, limit int, force bool) ([]Asset, error) {
	limit = clampLimit(limit, DefaultDisplayLimit)

	return resolve(ctx, s, "top_assets", fmt.Sprintf("top_%d", limit), force,
		func(ctx context.Context) ([]Asset, bool, error) {
			coins, err := s.market.Markets(ctx, marketdata.MarketsQuery{PerPage: limit, Page: 1})
			if err != nil {
				return nil, false, err
			}
			return normalizeMarkets(coins), true, nil
		})
}

// GetAssetDetail returns the detail view of one asset, or nil when neither
// upstream nor the cache has it. The 7-day, 30-day and 1-year charts are
// fetched concurrently; a failed chart only leaves its own series empty.
func (s *Service) GetAssetDetail(ctx context.Context, id string) *AssetDetail {
	if id == "" {
		return nil
	}

	detail, _ := resolve(ctx, s, "asset_detail", "details_"+id, false,
		func(ctx context.Context) (*AssetDetail, bool, error) {
			coin, err := s.market.Coin(ctx, id)
			if err != nil {
				return nil, false, err
			}
			return normalizeDetail(coin, s.fetchSeries(ctx, id)), true, nil
		})
	return detail
}

func (s *Service) fetchSeries(ctx context.Context, id string) historicalSeries {
	var series historicalSeries

	var g errgroup.Group
	for days, dst := range map[int]*[]float64{7: &series.week, 30: &series.month, 365: &series.year} {
		g.Go(func() error {
			prices, err := s.market.MarketChart(ctx, id, days)
			if err != nil {
				s.logger.LogWarn(ctx, "price history unavailable", "id", id, "days", days, "error", err)
				return nil
			}
			*dst = prices
			return nil
		})
	}
	_ = g.Wait()

	return series
}

// GetAssetByID returns the summary of one asset, ranked by the upstream
// market cap rank, or nil when unavailable.
func (s *Service) GetAssetByID(ctx context.Context, id string) *Asset {
	if id == "" {
		return nil
	}

	asset, _ := resolve(ctx, s, "asset", "crypto_"+id, false,
		func(ctx context.Context) (*Asset, bool, error) {
			coin, err := s.market.Coin(ctx, id)
			if err != nil {
				return nil, false, err
			}
			summary := normalizeCoin(coin)
			return &summary, true, nil
		})
	return asset
}

// GetCryptosByCategory returns the assets of a category. When the category
// query fails or comes back empty, the ids listed for the category in the
// fallback table are queried instead. Both paths share one cache key.
func (s *Service) GetCryptosByCategory(ctx context.Context, category string) []Asset {
	assets, _ := s.categoryAssets(ctx, category, false)
	return orEmpty(assets)
}

func (s *Service) categoryAssets(ctx context.Context, category string, force bool) ([]Asset, error) {
	return resolve(ctx, s, "category", "category_"+category, force,
		func(ctx context.Context) ([]Asset, bool, error) {
			coins, err := s.market.Markets(ctx, marketdata.MarketsQuery{
				PerPage:  categoryPageSize,
				Page:     1,
				Category: category,
			})
			if err == nil && len(coins) > 0 {
				return normalizeMarkets(coins), true, nil
			}
			if err != nil {
				s.logger.LogWarn(ctx, "category query failed", "category", category, "error", err)
			}

			ids := s.categories.IDs(category)
			if len(ids) == 0 {
				if err != nil {
					return nil, false, err
				}
				s.logger.LogDebug(ctx, "no fallback ids for category", "category", category)
				return []Asset{}, false, nil
			}

			s.metrics.RecordCategoryFallback(ctx, category)
			observability.AddSpanEvent(ctx, "category_fallback", map[string]string{"category": category})
			s.logger.LogWarn(ctx, "using category fallback table", "category", category, "ids", len(ids))

			coins, err = s.market.Markets(ctx, marketdata.MarketsQuery{
				PerPage: fallbackPageSize,
				Page:    1,
				IDs:     ids,
			})
			if err != nil {
				return nil, false, fmt.Errorf("category fallback query failed: %w", err)
			}
			return normalizeMarkets(coins), true, nil
		})
}

// SearchCrypto searches the top listing
func (s *Service) SearchCrypto(ctx context.Context, query string) []Asset {
	return Search(query, s.GetTopAssets(ctx, s.searchLimit))
}

// SearchCryptoInCategory searches the assets of one category
func (s *Service) SearchCryptoInCategory(ctx context.Context, query, category string) []Asset {
	return Search(query, s.GetCryptosByCategory(ctx, category))
}

// GetGlobalMarketData returns the global snapshot, or nil when unavailable
func (s *Service) GetGlobalMarketData(ctx context.Context) *GlobalMarketSnapshot {
	snapshot, _ := s.globalMarket(ctx, false)
	return snapshot
}

func (s *Service) globalMarket(ctx context.Context, force bool) (*GlobalMarketSnapshot, error) {
	return resolve(ctx, s, "global_market", "global_market", force,
		func(ctx context.Context) (*GlobalMarketSnapshot, bool, error) {
			data, err := s.market.Global(ctx)
			if err != nil {
				return nil, false, err
			}
			return normalizeGlobal(data), true, nil
		})
}

// UpdateExchangeRates refreshes the rate table. On failure the previous
// rates stay in place and the error is returned for reporting only.
func (s *Service) UpdateExchangeRates(ctx context.Context) error {
	if s.rateSource == nil {
		return nil
	}

	ctx, span := observability.StartSpanWithAttributes(ctx, s.tracer, "tracker.update_exchange_rates", nil)
	fetched, err := s.rateSource.Latest(ctx, string(USD))
	observability.EndSpanWithError(span, err)
	if err != nil {
		s.logger.LogWarn(ctx, "keeping previous exchange rates", "error", err)
		return fmt.Errorf("failed to update exchange rates: %w", err)
	}

	updated := s.rates.Apply(fetched, s.now())
	for currency, rate := range s.rates.Snapshot() {
		s.metrics.RecordExchangeRate(ctx, string(currency), rate)
	}
	s.logger.LogInfo(ctx, "exchange rates updated", "currencies", len(updated))

	return nil
}

// ClearCache empties the volatile tier and this cache's durable entries
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.LogError(ctx, "cache clear incomplete", err)
		return err
	}
	s.logger.LogInfo(ctx, "cache cleared")
	return nil
}

// Refresh fetches the display and search listings, the global snapshot and
// the exchange rates, bypassing fresh cache entries. Failed fetches keep
// serving stale data; their errors are joined into the result.
func (s *Service) Refresh(ctx context.Context) error {
	var errs []error

	for _, limit := range uniqueLimits(s.displayLimit, s.searchLimit) {
		if _, err := s.topAssets(ctx, limit, true); err != nil {
			errs = append(errs, fmt.Errorf("top %d: %w", limit, err))
		}
	}
	if _, err := s.globalMarket(ctx, true); err != nil {
		errs = append(errs, fmt.Errorf("global market: %w", err))
	}
	if err := s.UpdateExchangeRates(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// fetchFunc loads a value from upstream. cacheable reports whether the value
// is written through to the cache.
type fetchFunc[T any] func(ctx context.Context) (value T, cacheable bool, err error)

// resolve serves key from the cache, then from fetch, then from a stale
// entry. The fetch error is returned even when stale data is served; on a
// total miss the zero value is returned.
func resolve[T any](ctx context.Context, s *Service, op, key string, force bool, fetch fetchFunc[T]) (T, error) {
	ctx, span := observability.StartSpanWithAttributes(ctx, s.tracer, "tracker."+op, map[string]string{
		"cache.key": key,
		"force":     strconv.FormatBool(force),
	})

	if !force {
		if value, ok := decodeCached[T](ctx, s, key, s.cache.Get); ok {
			span.End()
			return value, nil
		}
	}

	// The shared fetch outlives any single caller so that waiters with live
	// contexts still get its result. The transport timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		value, cacheable, err := fetch(fetchCtx)
		if err != nil {
			return value, err
		}
		if cacheable {
			s.store(ctx, key, value)
		}
		return value, nil
	})
	observability.EndSpanWithError(span, err)
	if err == nil {
		return v.(T), nil
	}

	s.logger.LogWarn(ctx, "fetch failed", "operation", op, "key", key, "error", err)
	if value, ok := decodeCached[T](ctx, s, key, s.cache.GetStale); ok {
		s.metrics.RecordStaleServed(ctx, op)
		s.logger.LogWarn(ctx, "serving stale data", "operation", op, "key", key)
		return value, err
	}

	s.logger.LogWarn(ctx, "no cached data available", "operation", op, "key", key)
	var zero T
	return zero, err
}

func decodeCached[T any](ctx context.Context, s *Service, key string, read func(context.Context, string) (json.RawMessage, bool)) (T, bool) {
	var value T

	raw, ok := read(ctx, key)
	if !ok {
		return value, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		s.logger.LogWarn(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		return value, false
	}
	return value, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.LogError(ctx, "failed to encode cache payload", err, "key", key)
		return
	}
	s.cache.Set(ctx, key, payload)
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, MaxTopLimit)
}

func uniqueLimits(limits ...int) []int {
	out := make([]int, 0, len(limits))
	for _, l := range limits {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func orEmpty(assets []Asset) []Asset {
	if assets == nil {
		return []Asset{}
	}
	return assets
}
