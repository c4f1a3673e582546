package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/kvstore"
	"github.com/agatticelli/crypto-tray-feed/internal/platform/observability"
)

// Layer pairs a tier with its freshness window
type Layer struct {
	Tier Tier
	TTL  time.Duration
}

// ManagerConfig configures a Manager
type ManagerConfig struct {
	// Layers are consulted in order; the first is the fastest
	Layers  []Layer
	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Now overrides the clock used to timestamp writes
	Now func() time.Time
}

// Manager reads through an ordered list of tiers (L1 → L2 → ... → miss)
// and writes through all of them.
type Manager struct {
	layers  []Layer
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewManager creates a Manager over the configured layers
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}

	layers := make([]Layer, 0, len(cfg.Layers))
	for _, l := range cfg.Layers {
		if l.Tier != nil {
			layers = append(layers, l)
		}
	}

	return &Manager{
		layers:  layers,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     clock(cfg.Now),
	}
}

// TwoTierConfig describes the standard volatile + durable arrangement
type TwoTierConfig struct {
	Store       kvstore.Store
	Namespace   string
	VolatileTTL time.Duration
	DurableTTL  time.Duration
	MaxEntries  int
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Now         func() time.Time
}

// NewTwoTier builds a Manager with a memory tier in front of a durable tier
func NewTwoTier(cfg TwoTierConfig) *Manager {
	if cfg.VolatileTTL <= 0 {
		cfg.VolatileTTL = 5 * time.Minute
	}
	if cfg.DurableTTL <= 0 {
		cfg.DurableTTL = time.Hour
	}

	layers := []Layer{{Tier: NewMemoryTier(cfg.MaxEntries, cfg.Now), TTL: cfg.VolatileTTL}}
	if cfg.Store != nil {
		layers = append(layers, Layer{Tier: NewDurableTier(cfg.Store, cfg.Namespace, cfg.Now), TTL: cfg.DurableTTL})
	}

	return NewManager(ManagerConfig{
		Layers:  layers,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
		Now:     cfg.Now,
	})
}

// Get returns the freshest payload for key. A hit in a lower tier is copied
// into every tier above it with its original timestamp.
func (m *Manager) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	for i, layer := range m.layers {
		entry, err := layer.Tier.Get(ctx, key, layer.TTL)
		if err != nil {
			m.metrics.RecordCacheMiss(ctx, layer.Tier.Name())
			if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrExpired) {
				m.logger.LogWarn(ctx, "cache tier read failed",
					"tier", layer.Tier.Name(), "key", key, "error", err)
			}
			continue
		}

		m.metrics.RecordCacheHit(ctx, layer.Tier.Name())
		m.logger.LogDebug(ctx, "cache hit", "tier", layer.Tier.Name(), "key", key)

		for _, upper := range m.layers[:i] {
			if err := upper.Tier.Set(ctx, key, entry); err != nil {
				m.storageError(ctx, upper.Tier.Name(), key, err)
			}
		}
		return entry.Payload, true
	}

	return nil, false
}

// GetStale returns the payload for key from the first tier holding it,
// ignoring expiry. Only meant as a fallback after a failed fetch.
func (m *Manager) GetStale(ctx context.Context, key string) (json.RawMessage, bool) {
	for _, layer := range m.layers {
		entry, err := layer.Tier.GetStale(ctx, key)
		if err == nil {
			return entry.Payload, true
		}
		if !errors.Is(err, ErrNotFound) {
			m.logger.LogWarn(ctx, "cache tier stale read failed",
				"tier", layer.Tier.Name(), "key", key, "error", err)
		}
	}
	return nil, false
}

// Set writes payload to every tier with the current time. Tier failures are
// logged and counted, never returned.
func (m *Manager) Set(ctx context.Context, key string, payload json.RawMessage) {
	entry := &Entry{Payload: payload, WrittenAt: m.now()}

	for _, layer := range m.layers {
		if err := layer.Tier.Set(ctx, key, entry); err != nil {
			m.storageError(ctx, layer.Tier.Name(), key, err)
		}
	}
}

// Clear empties every tier. Durable tiers only remove their own namespace.
func (m *Manager) Clear(ctx context.Context) error {
	m.metrics.RecordCacheClear(ctx)

	var errs []error
	for _, layer := range m.layers {
		if err := layer.Tier.Clear(ctx); err != nil {
			m.logger.LogWarn(ctx, "cache tier clear failed", "tier", layer.Tier.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every tier
func (m *Manager) Close() error {
	var errs []error
	for _, layer := range m.layers {
		if err := layer.Tier.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) storageError(ctx context.Context, tier, key string, err error) {
	m.metrics.RecordStorageError(ctx, tier)
	m.logger.LogWarn(ctx, "cache tier write failed", "tier", tier, "key", key, "error", err)
}
