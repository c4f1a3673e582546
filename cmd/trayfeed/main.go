package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/agatticelli/crypto-tray-feed/internal/marketdata"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/cache"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/config"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/kvstore"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/observability"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/resilience"
	"github.com/agatticelli/crypto-tray-feed/internal/tracker"
)

const serviceName = "crypto-tray-feed"

func main() {
	// Create root context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	log.Println("Loading configuration...")
	cfg := config.MustLoad(os.Getenv("TRACKER_CONFIG"))

	// Setup observability (foundational - must be first)
	log.Println("Setting up observability...")
	logger := observability.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	metrics, err := observability.NewMetrics(serviceName, cfg.Observability.Metrics.Enabled)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	tracer, err := observability.NewTracerProvider(ctx, serviceName, cfg.Observability.Tracing.Endpoint, cfg.Observability.Tracing.Enabled)
	if err != nil {
		log.Fatalf("Failed to create tracer: %v", err)
	}
	defer tracer.Shutdown(context.Background())

	logger.Info("observability setup complete")

	// Durable key-value store
	store, err := openStore(cfg)
	if err != nil {
		logger.LogError(ctx, "failed to open key-value store", err, "backend", cfg.Store.Backend)
		log.Fatalf("Failed to open key-value store: %v", err)
	}
	logger.Info("key-value store ready", "backend", cfg.Store.Backend)

	// Volatile + durable cache
	cacheManager := cache.NewTwoTier(cache.TwoTierConfig{
		Store:       store,
		Namespace:   cfg.Cache.Namespace,
		VolatileTTL: cfg.Cache.VolatileTTL,
		DurableTTL:  cfg.Cache.DurableTTL,
		MaxEntries:  cfg.Cache.L1MaxSize,
		Logger:      logger,
		Metrics:     metrics,
	})
	defer cacheManager.Close()

	// Category fallback table
	categories, err := config.LoadCategoryTable(cfg.Tracker.CategoriesFile)
	if err != nil {
		logger.LogError(ctx, "failed to load category table", err, "path", cfg.Tracker.CategoriesFile)
		log.Fatalf("Failed to load category table: %v", err)
	}
	known := categories.Categories()
	logger.Info("category fallback table loaded", "categories", len(known))
	for _, c := range cfg.Tracker.WarmCategories {
		if !slices.Contains(known, c) {
			logger.Warn("warm category has no fallback entry", "category", c)
		}
	}

	// Upstream clients
	retryCfg := resilience.RetryConfig{
		MaxAttempts: cfg.Market.Retry.MaxAttempts,
		BaseDelay:   cfg.Market.Retry.BaseDelay,
		MaxDelay:    cfg.Market.Retry.MaxDelay,
		Jitter:      0.1,
	}

	coingecko := marketdata.NewCoinGeckoClient(marketdata.CoinGeckoConfig{
		BaseURL:      cfg.Market.BaseURL,
		Timeout:      cfg.Market.Timeout,
		RateLimitRPM: cfg.Market.RateLimit.RequestsPerMinute,
		MinRPM:       cfg.Market.RateLimit.MinPerMinute,
		MaxRPM:       cfg.Market.RateLimit.MaxPerMinute,
		Burst:        cfg.Market.RateLimit.Burst,
		RetryConfig:  retryCfg,
		CircuitBreaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "coingecko",
			FailureThreshold: cfg.Market.Breaker.FailureThreshold,
			Timeout:          cfg.Market.Breaker.Timeout,
			IsFailure:        marketdata.IsUpstreamFault,
			OnStateChange: func(from, to resilience.State) {
				logger.Warn("circuit breaker state changed", "service", "coingecko", "from", from.String(), "to", to.String())
				metrics.SetCircuitBreakerState(context.Background(), "coingecko", int64(to))
			},
		}),
		Logger:  logger,
		Metrics: metrics,
	})

	exchangeRates := marketdata.NewExchangeRateClient(marketdata.ExchangeRateConfig{
		BaseURL:     cfg.ExchangeRates.URL,
		Timeout:     cfg.ExchangeRates.Timeout,
		RetryConfig: retryCfg,
		Logger:      logger,
		Metrics:     metrics,
	})

	// Tracker service
	svc, err := tracker.NewService(tracker.ServiceConfig{
		Market:       coingecko,
		Rates:        exchangeRates,
		Cache:        cacheManager,
		Categories:   categories,
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracer.Tracer(),
		SearchLimit:  cfg.Tracker.TopLimit,
		DisplayLimit: cfg.Tracker.DisplayLimit,
	})
	if err != nil {
		logger.LogError(ctx, "failed to create tracker service", err)
		log.Fatalf("Failed to create tracker service: %v", err)
	}

	// Start HTTP server for health checks and metrics
	logger.Info("starting HTTP server...")
	ready := make(chan struct{})
	server := newHTTPServer(cfg.HTTP.Port, metrics, ready, coingecko, exchangeRates)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError(context.Background(), "HTTP server error", err)
		}
	}()

	// Warm caches before the first refresh tick
	warmer := cache.NewWarmer(logger, cache.WarmupConfig{
		Timeout:         cfg.Tracker.Warmup.Timeout,
		ContinueOnError: true,
		Parallelism:     cfg.Tracker.Warmup.Parallelism,
	})
	for _, p := range svc.WarmupProviders(cfg.Tracker.WarmCategories) {
		warmer.RegisterProvider(p)
	}
	warmer.Warmup(ctx)
	close(ready)

	printTop(svc, svc.GetTopAssets(ctx, cfg.Tracker.DisplayLimit), svc.GetGlobalMarketData(ctx))

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("starting refresh loop", "interval", cfg.Tracker.RefreshInterval)
	go runRefresh(ctx, svc, cfg.Tracker.RefreshInterval, cfg.Tracker.DisplayLimit, logger)

	// Wait for shutdown signal
	<-sigCh
	logger.Info("shutdown signal received, gracefully stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError(shutdownCtx, "HTTP server shutdown failed", err)
	}

	logger.Info("application stopped")
}

// openStore opens the configured durable backend
func openStore(cfg *config.Config) (kvstore.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return kvstore.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Retention)
	case "memory":
		return kvstore.NewMemoryStore(cfg.Store.QuotaBytes), nil
	default:
		if err := config.EnsureDir(filepath.Dir(cfg.Store.SQLitePath)); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return kvstore.NewSQLiteStore(cfg.Store.SQLitePath)
	}
}

// runRefresh re-fetches listings, the global snapshot and rates on every tick
func runRefresh(ctx context.Context, svc *tracker.Service, interval time.Duration, displayLimit int, logger *observability.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()

			if err := svc.Refresh(ctx); err != nil {
				logger.LogWarn(ctx, "refresh degraded", "error", err)
			}

			printTop(svc, svc.GetTopAssets(ctx, displayLimit), svc.GetGlobalMarketData(ctx))

			logger.Info("refresh completed", "duration_ms", time.Since(start).Milliseconds())

		case <-ctx.Done():
			logger.Info("context cancelled, stopping refresh loop")
			return
		}
	}
}

// printTop writes the listing as a table to stdout
func printTop(svc *tracker.Service, assets []tracker.Asset, global *tracker.GlobalMarketSnapshot) {
	rates := svc.Rates()

	if global != nil {
		change := tracker.FormatChangePercent(fmt.Sprint(global.TotalMarketCapChange24h))
		fmt.Printf("Market cap %s (%s), %d coins\n",
			rates.FormatLargeNumber(fmt.Sprint(global.TotalMarketCap), tracker.USD), change.Text, global.ActiveCoins)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "#\tSymbol\tPrice\t24h\tMarket cap\tVolume\t")
	for _, a := range assets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			a.Rank,
			a.Symbol,
			rates.ConvertPrice(a.PriceUSD, tracker.USD),
			tracker.FormatChangePercent(a.ChangePercent24Hr).Text,
			rates.FormatLargeNumber(a.MarketCapUSD, tracker.USD),
			rates.ConvertLargeValue(a.VolumeUSD24Hr, tracker.USD),
		)
	}
	w.Flush()
}

// newHTTPServer serves health, readiness and metrics
func newHTTPServer(port int, metrics *observability.Metrics, ready <-chan struct{}, providers ...marketdata.HealthProvider) *http.Server {
	mux := http.NewServeMux()

	// Health check with per-provider state
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		health := make([]marketdata.ProviderHealth, 0, len(providers))
		for _, p := range providers {
			h := p.Health()
			if !h.Healthy() {
				status = "degraded"
			}
			health = append(health, h)
		}

		// Degraded upstreams still serve cached data, so this stays 200
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"providers": health,
		})
	})

	// Readiness check: ready once the cache warmup finished
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		select {
		case <-ready:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ready"}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"warming"}`))
		}
	})

	// Metrics endpoint
	mux.Handle("/metrics", metrics.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
