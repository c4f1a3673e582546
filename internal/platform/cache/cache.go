// Package cache implements the tiered cache used by the tracker: an ordered
// list of tiers, each with its own freshness window, plus a stale read path
// that ignores expiry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is not present in a tier
	ErrNotFound = errors.New("cache: key not found")

	// ErrExpired is returned when a key is present but older than the TTL
	ErrExpired = errors.New("cache: entry expired")
)

// Entry is a cached payload with the time it was written. Entries are
// replaced wholesale, never mutated.
type Entry struct {
	Payload   json.RawMessage
	WrittenAt time.Time
}

// FreshAt reports whether the entry is younger than ttl at now.
// A non-positive ttl never expires.
func (e *Entry) FreshAt(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(e.WrittenAt) < ttl
}

// Tier is one level of the cache hierarchy
type Tier interface {
	// Name identifies the tier in logs and metrics
	Name() string

	// Get returns the entry for key if it is younger than ttl.
	// Returns ErrNotFound or ErrExpired otherwise.
	Get(ctx context.Context, key string, ttl time.Duration) (*Entry, error)

	// GetStale returns the entry for key regardless of age, or ErrNotFound
	GetStale(ctx context.Context, key string) (*Entry, error)

	// Set stores entry under key
	Set(ctx context.Context, key string, entry *Entry) error

	// Clear removes every entry owned by the tier
	Clear(ctx context.Context) error

	// Close releases the tier's resources
	Close() error
}

// clock defaults a nil clock to time.Now
func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
