package resilience

import (
	"context"
	"sync"
	"time"
)

// AdaptiveLimiter adjusts its rate from upstream responses. A rate limit
// response cuts the rate by BackoffFactor (compounded over consecutive hits);
// RecoveryWindow consecutive successes raise it by RecoveryFactor. The rate
// stays within [MinRate, MaxRate].
type AdaptiveLimiter struct {
	limiter *RateLimiter

	baseRate       float64
	minRate        float64
	maxRate        float64
	backoffFactor  float64
	recoveryFactor float64
	recoveryWindow int

	mu                  sync.Mutex
	currentRate         float64
	consecutiveSuccess  int
	consecutiveFailures int
	lastAdjustment      time.Time
	rateLimitHits       int64
}

// AdaptiveLimiterConfig configures the adaptive limiter.
type AdaptiveLimiterConfig struct {
	BaseRate       float64 // requests per second (default 1.0)
	MinRate        float64 // default 0.1
	MaxRate        float64 // default 10.0
	Burst          int
	BackoffFactor  float64 // default 0.5
	RecoveryFactor float64 // default 1.1
	RecoveryWindow int     // default 10
}

// NewAdaptiveLimiter creates a new adaptive rate limiter.
func NewAdaptiveLimiter(cfg AdaptiveLimiterConfig) *AdaptiveLimiter {
	if cfg.BaseRate <= 0 {
		cfg.BaseRate = 1.0
	}
	if cfg.MinRate <= 0 {
		cfg.MinRate = 0.1
	}
	if cfg.MaxRate <= 0 {
		cfg.MaxRate = 10.0
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.BaseRate * 2)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.BackoffFactor <= 0 || cfg.BackoffFactor >= 1 {
		cfg.BackoffFactor = 0.5
	}
	if cfg.RecoveryFactor <= 1 {
		cfg.RecoveryFactor = 1.1
	}
	if cfg.RecoveryWindow <= 0 {
		cfg.RecoveryWindow = 10
	}
	if cfg.MinRate > cfg.BaseRate {
		cfg.MinRate = cfg.BaseRate
	}
	if cfg.MaxRate < cfg.BaseRate {
		cfg.MaxRate = cfg.BaseRate
	}

	return &AdaptiveLimiter{
		limiter:        NewRateLimiter(cfg.BaseRate, cfg.Burst),
		baseRate:       cfg.BaseRate,
		minRate:        cfg.MinRate,
		maxRate:        cfg.MaxRate,
		backoffFactor:  cfg.BackoffFactor,
		recoveryFactor: cfg.RecoveryFactor,
		recoveryWindow: cfg.RecoveryWindow,
		currentRate:    cfg.BaseRate,
		lastAdjustment: time.Now(),
	}
}

// NewAdaptiveLimiterFromRPM creates an adaptive limiter from RPM values.
// A non-positive burst derives one from the base rate.
func NewAdaptiveLimiterFromRPM(baseRPM, minRPM, maxRPM, burst int) *AdaptiveLimiter {
	return NewAdaptiveLimiter(AdaptiveLimiterConfig{
		BaseRate: float64(baseRPM) / 60.0,
		MinRate:  float64(minRPM) / 60.0,
		MaxRate:  float64(maxRPM) / 60.0,
		Burst:    burst,
	})
}

// Wait blocks until a token is available
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// RecordSuccess records a successful call
func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.consecutiveFailures = 0
	a.consecutiveSuccess++
	if a.consecutiveSuccess < a.recoveryWindow {
		return
	}
	a.consecutiveSuccess = 0

	// At most one increase per second
	if a.currentRate >= a.maxRate || time.Since(a.lastAdjustment) < time.Second {
		return
	}

	a.setRate(min(a.currentRate*a.recoveryFactor, a.maxRate))
}

// RecordRateLimitError records a rate limit response and backs off
func (a *AdaptiveLimiter) RecordRateLimitError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rateLimitHits++
	a.consecutiveSuccess = 0
	a.consecutiveFailures++

	n := min(a.consecutiveFailures, 5)
	multiplier := 1.0
	for i := 0; i < n; i++ {
		multiplier *= a.backoffFactor
	}

	a.setRate(max(a.currentRate*multiplier, a.minRate))
}

// RecordError records a failure unrelated to rate limiting
func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveSuccess = 0
}

// setRate applies a new rate; caller holds the lock
func (a *AdaptiveLimiter) setRate(rate float64) {
	if rate == a.currentRate {
		return
	}
	a.currentRate = rate
	a.limiter.SetRate(rate)
	a.lastAdjustment = time.Now()
}

// CurrentRate returns the current rate in requests per second.
func (a *AdaptiveLimiter) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// IsThrottled reports whether the limiter runs below its base rate.
func (a *AdaptiveLimiter) IsThrottled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate < a.baseRate
}

// RateLimitHits returns how many rate limit responses were recorded
func (a *AdaptiveLimiter) RateLimitHits() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rateLimitHits
}
