// Package kvstore provides durable string-keyed storage backends used by the
// durable cache tier.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key does not exist
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrQuotaExceeded is returned when a write would exceed the store quota
	ErrQuotaExceeded = errors.New("kvstore: quota exceeded")
)

// Store is a durable string-keyed store
type Store interface {
	// Get returns the value for key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the underlying resources
	Close() error
}
