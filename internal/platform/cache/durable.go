package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/kvstore"
)

// DefaultNamespace prefixes every durable key
const DefaultNamespace = "crypto_cache"

// durableRecord is the stored JSON shape. Timestamp is in Unix milliseconds.
type durableRecord struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// DurableTier keeps entries in a kvstore.Store under "<namespace>_<key>"
type DurableTier struct {
	store     kvstore.Store
	namespace string
	now       func() time.Time
}

// NewDurableTier creates a durable tier over store. now may be nil.
func NewDurableTier(store kvstore.Store, namespace string, now func() time.Time) *DurableTier {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &DurableTier{
		store:     store,
		namespace: namespace,
		now:       clock(now),
	}
}

// Name returns the tier name
func (d *DurableTier) Name() string {
	return "durable"
}

func (d *DurableTier) prefix() string {
	return d.namespace + "_"
}

func (d *DurableTier) storeKey(key string) string {
	return d.prefix() + key
}

// Get returns the entry for key if it is fresh
func (d *DurableTier) Get(ctx context.Context, key string, ttl time.Duration) (*Entry, error) {
	entry, err := d.GetStale(ctx, key)
	if err != nil {
		return nil, err
	}
	if !entry.FreshAt(d.now(), ttl) {
		return nil, ErrExpired
	}
	return entry, nil
}

// GetStale returns the entry for key regardless of age. Undecodable records
// are reported as ErrNotFound.
func (d *DurableTier) GetStale(ctx context.Context, key string) (*Entry, error) {
	raw, err := d.store.Get(ctx, d.storeKey(key))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("durable read %s: %w", key, err)
	}

	var rec durableRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || len(rec.Data) == 0 {
		return nil, fmt.Errorf("%w: undecodable record for %s", ErrNotFound, key)
	}

	return &Entry{
		Payload:   rec.Data,
		WrittenAt: time.UnixMilli(rec.Timestamp),
	}, nil
}

// Set writes entry under the namespaced key
func (d *DurableTier) Set(ctx context.Context, key string, entry *Entry) error {
	raw, err := json.Marshal(durableRecord{
		Data:      entry.Payload,
		Timestamp: entry.WrittenAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	if err := d.store.Set(ctx, d.storeKey(key), string(raw)); err != nil {
		return fmt.Errorf("durable write %s: %w", key, err)
	}
	return nil
}

// Clear removes every key carrying the namespace prefix
func (d *DurableTier) Clear(ctx context.Context) error {
	keys, err := d.store.Keys(ctx, d.prefix())
	if err != nil {
		return fmt.Errorf("failed to list durable keys: %w", err)
	}

	var errs []error
	for _, k := range keys {
		// Stores may match more loosely than a literal prefix
		if !strings.HasPrefix(k, d.prefix()) {
			continue
		}
		if err := d.store.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes the underlying store
func (d *DurableTier) Close() error {
	return d.store.Close()
}
