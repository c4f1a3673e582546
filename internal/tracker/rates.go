package tracker

import (
	"maps"
	"sync"
	"time"
)

// Currency is an ISO 4217 code supported by the formatters
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
)

// SupportedCurrencies lists the currencies kept in a RateTable
var SupportedCurrencies = []Currency{USD, EUR, GBP, JPY, CAD, AUD}

// DefaultRates returns the USD multipliers used until the first refresh
func DefaultRates() map[Currency]float64 {
	return map[Currency]float64{
		USD: 1,
		EUR: 0.85,
		GBP: 0.73,
		JPY: 110,
		CAD: 1.25,
		AUD: 1.35,
	}
}

// RateTable holds one USD multiplier per supported currency. A refresh only
// replaces rates it received, so a failed or partial fetch never loses a
// known rate.
type RateTable struct {
	mu        sync.RWMutex
	rates     map[Currency]float64
	updatedAt time.Time
}

// NewRateTable creates a table seeded with DefaultRates
func NewRateTable() *RateTable {
	return &RateTable{rates: DefaultRates()}
}

// Rate returns the multiplier for c, or 1 for an unknown currency
func (t *RateTable) Rate(c Currency) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rate, ok := t.rates[c]; ok {
		return rate
	}
	return 1
}

// Snapshot returns a copy of the current rates
func (t *RateTable) Snapshot() map[Currency]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.rates)
}

// UpdatedAt returns when the table last applied fetched rates
func (t *RateTable) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// Apply merges a fetched rate table keyed by currency code and returns the
// currencies it changed. USD stays 1; missing or non-positive rates are
// ignored.
func (t *RateTable) Apply(fetched map[string]float64, at time.Time) []Currency {
	t.mu.Lock()
	defer t.mu.Unlock()

	var updated []Currency
	for _, c := range SupportedCurrencies {
		if c == USD {
			continue
		}
		rate, ok := fetched[string(c)]
		if !ok || rate <= 0 {
			continue
		}
		t.rates[c] = rate
		updated = append(updated, c)
	}
	t.updatedAt = at

	return updated
}
