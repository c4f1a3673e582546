package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	key   string
	entry *Entry
}

// MemoryTier is the volatile in-process tier: an LRU map bounded by maxSize.
// Expired entries are kept until evicted so they stay available to stale reads.
type MemoryTier struct {
	maxSize int
	now     func() time.Time

	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List
}

// NewMemoryTier creates a volatile tier. now may be nil.
func NewMemoryTier(maxSize int, now func() time.Time) *MemoryTier {
	if maxSize <= 0 {
		maxSize = 1000
	}

	return &MemoryTier{
		maxSize: maxSize,
		now:     clock(now),
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Name returns the tier name
func (c *MemoryTier) Name() string {
	return "memory"
}

// Get returns the entry for key if it is fresh
func (c *MemoryTier) Get(ctx context.Context, key string, ttl time.Duration) (*Entry, error) {
	entry, err := c.GetStale(ctx, key)
	if err != nil {
		return nil, err
	}
	if !entry.FreshAt(c.now(), ttl) {
		return nil, ErrExpired
	}
	return entry, nil
}

// GetStale returns the entry for key regardless of age
func (c *MemoryTier) GetStale(ctx context.Context, key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		return nil, ErrNotFound
	}

	c.lru.MoveToFront(element)
	return element.Value.(*memoryItem).entry, nil
}

// Set stores entry under key, evicting the least recently used entry when full
func (c *MemoryTier) Set(ctx context.Context, key string, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.items[key]; exists {
		element.Value.(*memoryItem).entry = entry
		c.lru.MoveToFront(element)
		return nil
	}

	c.items[key] = c.lru.PushFront(&memoryItem{key: key, entry: entry})

	if c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*memoryItem).key)
	}

	return nil
}

// Clear empties the tier
func (c *MemoryTier) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	return nil
}

// Close is a no-op
func (c *MemoryTier) Close() error {
	return nil
}

// Len returns the number of entries held
func (c *MemoryTier) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
