package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestMemoryTierEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	tier := NewMemoryTier(2, clk.Now)

	entry := &Entry{Payload: json.RawMessage(`1`), WrittenAt: clk.Now()}
	_ = tier.Set(ctx, "a", entry)
	_ = tier.Set(ctx, "b", entry)

	// Touch a so b becomes the oldest
	if _, err := tier.GetStale(ctx, "a"); err != nil {
		t.Fatalf("Expected a: %v", err)
	}
	_ = tier.Set(ctx, "c", entry)

	if tier.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", tier.Len())
	}
	if _, err := tier.GetStale(ctx, "b"); err == nil {
		t.Error("Expected b to be evicted")
	}
	if _, err := tier.GetStale(ctx, "a"); err != nil {
		t.Error("Expected a to survive")
	}

	t.Log("✓ LRU eviction removes the least recently used entry")
}

func TestMemoryTierKeepsExpiredForStaleReads(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	tier := NewMemoryTier(10, clk.Now)

	_ = tier.Set(ctx, "k", &Entry{Payload: json.RawMessage(`"v"`), WrittenAt: clk.Now()})
	clk.Advance(time.Hour)

	if _, err := tier.Get(ctx, "k", time.Minute); err == nil {
		t.Fatal("Expected expired read to fail")
	}
	entry, err := tier.GetStale(ctx, "k")
	if err != nil || string(entry.Payload) != `"v"` {
		t.Errorf("Expected stale entry to remain, got %v", err)
	}
}

func TestMemoryTierClear(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier(0, nil)

	_ = tier.Set(ctx, "k", &Entry{Payload: json.RawMessage(`1`), WrittenAt: time.Now()})
	if err := tier.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if tier.Len() != 0 {
		t.Errorf("Expected empty tier, got %d entries", tier.Len())
	}
}
