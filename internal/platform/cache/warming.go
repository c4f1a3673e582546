package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/observability"
)

// WarmupProvider populates the cache ahead of the first reader.
type WarmupProvider interface {
	// Name returns a human-readable name for logging purposes
	Name() string

	// Warmup fetches the provider's data and writes it to the cache.
	// It must be safe to call repeatedly.
	Warmup(ctx context.Context) error
}

// WarmupConfig configures the cache warming behavior.
type WarmupConfig struct {
	// Timeout bounds the whole warmup
	Timeout time.Duration

	// ContinueOnError keeps sequential warmup going after a failure
	ContinueOnError bool

	// Parallelism caps concurrent providers; 1 runs them sequentially
	Parallelism int
}

// DefaultWarmupConfig returns sensible defaults for cache warming.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Timeout:         30 * time.Second,
		ContinueOnError: true,
		Parallelism:     2,
	}
}

// WarmupResult contains the result of warming a single provider.
type WarmupResult struct {
	Provider string
	Duration time.Duration
	Err      error
}

// WarmupResults contains the aggregate results of cache warming.
type WarmupResults struct {
	Results   []WarmupResult
	TotalTime time.Duration
	Errors    int
}

// HasErrors returns true if any provider failed during warmup.
func (wr *WarmupResults) HasErrors() bool {
	return wr.Errors > 0
}

// Warmer runs registered warmup providers.
type Warmer struct {
	providers []WarmupProvider
	logger    *observability.Logger
	config    WarmupConfig
}

// NewWarmer creates a new cache warmer.
func NewWarmer(logger *observability.Logger, config WarmupConfig) *Warmer {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}

	return &Warmer{
		logger: logger,
		config: config,
	}
}

// RegisterProvider adds a warmup provider to the warmer.
func (w *Warmer) RegisterProvider(provider WarmupProvider) {
	w.providers = append(w.providers, provider)
}

// Warmup executes all registered providers. Results are in registration order.
func (w *Warmer) Warmup(ctx context.Context) *WarmupResults {
	start := time.Now()
	results := &WarmupResults{}

	if len(w.providers) == 0 {
		results.TotalTime = time.Since(start)
		return results
	}

	warmupCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	if w.config.Parallelism > 1 {
		results.Results = w.warmupParallel(warmupCtx)
	} else {
		results.Results = w.warmupSequential(warmupCtx)
	}

	for _, r := range results.Results {
		if r.Err != nil {
			results.Errors++
		}
	}

	results.TotalTime = time.Since(start)

	if results.Errors > 0 {
		w.logger.LogWarn(ctx, "cache warmup completed with errors",
			"failed", results.Errors, "providers", len(w.providers), "duration", results.TotalTime)
	} else {
		w.logger.LogInfo(ctx, "cache warmup completed",
			"providers", len(w.providers), "duration", results.TotalTime)
	}

	return results
}

// warmupParallel runs providers concurrently, at most Parallelism at a time.
func (w *Warmer) warmupParallel(ctx context.Context) []WarmupResult {
	sem := semaphore.NewWeighted(int64(w.config.Parallelism))
	results := make([]WarmupResult, len(w.providers))

	var wg sync.WaitGroup
	for i, provider := range w.providers {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = WarmupResult{Provider: provider.Name(), Err: err}
			continue
		}

		wg.Add(1)
		go func(i int, p WarmupProvider) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = w.warmupProvider(ctx, p)
		}(i, provider)
	}
	wg.Wait()

	return results
}

// warmupSequential warms providers one at a time.
func (w *Warmer) warmupSequential(ctx context.Context) []WarmupResult {
	results := make([]WarmupResult, 0, len(w.providers))

	for _, provider := range w.providers {
		result := w.warmupProvider(ctx, provider)
		results = append(results, result)

		if result.Err != nil && !w.config.ContinueOnError {
			break
		}
	}

	return results
}

func (w *Warmer) warmupProvider(ctx context.Context, provider WarmupProvider) WarmupResult {
	start := time.Now()
	name := provider.Name()

	w.logger.LogDebug(ctx, "warming cache", "provider", name)

	err := provider.Warmup(ctx)
	duration := time.Since(start)

	if err != nil {
		w.logger.LogWarn(ctx, "cache warmup failed", "provider", name, "error", err, "duration", duration)
	} else {
		w.logger.LogDebug(ctx, "cache warmup done", "provider", name, "duration", duration)
	}

	return WarmupResult{
		Provider: name,
		Duration: duration,
		Err:      err,
	}
}
