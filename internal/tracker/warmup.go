package tracker

import (
	"context"
	"strconv"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/cache"
)

type warmupProvider struct {
	name   string
	warmup func(ctx context.Context) error
}

func (p warmupProvider) Name() string { return p.name }

func (p warmupProvider) Warmup(ctx context.Context) error { return p.warmup(ctx) }

// WarmupProviders returns cache warmup providers for the display and search
// listings, the global snapshot, the exchange rates and each category given.
// Fresh cache entries are left alone.
func (s *Service) WarmupProviders(categories []string) []cache.WarmupProvider {
	providers := []cache.WarmupProvider{
		warmupProvider{name: "exchange_rates", warmup: s.UpdateExchangeRates},
		warmupProvider{name: "global_market", warmup: func(ctx context.Context) error {
			_, err := s.globalMarket(ctx, false)
			return err
		}},
	}

	for _, limit := range uniqueLimits(s.displayLimit, s.searchLimit) {
		providers = append(providers, warmupProvider{
			name: "top_" + strconv.Itoa(limit),
			warmup: func(ctx context.Context) error {
				_, err := s.topAssets(ctx, limit, false)
				return err
			},
		})
	}

	for _, category := range categories {
		providers = append(providers, warmupProvider{
			name: "category_" + category,
			warmup: func(ctx context.Context) error {
				_, err := s.categoryAssets(ctx, category, false)
				return err
			},
		})
	}

	return providers
}
