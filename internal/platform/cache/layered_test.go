package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/kvstore"
)

// testClock is a manually advanced clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStore rejects every write
type failingStore struct {
	*kvstore.MemoryStore
	setErr error
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	return f.setErr
}

func newTestManager(store kvstore.Store, clk *testClock) *Manager {
	return NewTwoTier(TwoTierConfig{
		Store:       store,
		Namespace:   DefaultNamespace,
		VolatileTTL: 5 * time.Minute,
		DurableTTL:  time.Hour,
		Now:         clk.Now,
	})
}

// seedDurable writes a record straight into the store, bypassing the manager
func seedDurable(t *testing.T, store kvstore.Store, key, data string, writtenAt time.Time) {
	t.Helper()
	raw, err := json.Marshal(durableRecord{Data: json.RawMessage(data), Timestamp: writtenAt.UnixMilli()})
	if err != nil {
		t.Fatalf("Failed to encode seed: %v", err)
	}
	if err := store.Set(context.Background(), DefaultNamespace+"_"+key, string(raw)); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
}

func TestSetThenGetReturnsPayload(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	m := newTestManager(kvstore.NewMemoryStore(0), clk)

	m.Set(ctx, "top_20", json.RawMessage(`[1,2,3]`))

	got, ok := m.Get(ctx, "top_20")
	if !ok {
		t.Fatal("Expected hit right after Set")
	}
	if string(got) != `[1,2,3]` {
		t.Errorf("Expected [1,2,3], got %s", got)
	}

	t.Log("✓ Set followed by Get returns the written payload")
}

func TestVolatileHitSkipsDurableTier(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	store := kvstore.NewMemoryStore(0)
	m := newTestManager(store, clk)

	m.Set(ctx, "global_market", json.RawMessage(`"fresh"`))
	seedDurable(t, store, "global_market", `"other"`, clk.Now())
	callsBefore := store.GetCalls()

	clk.Advance(4 * time.Minute)
	got, ok := m.Get(ctx, "global_market")
	if !ok || string(got) != `"fresh"` {
		t.Fatalf("Expected volatile value, got %s (hit=%v)", got, ok)
	}
	if store.GetCalls() != callsBefore {
		t.Errorf("Expected no durable reads, got %d", store.GetCalls()-callsBefore)
	}

	t.Log("✓ Fresh volatile entry wins without consulting the durable tier")
}

func TestDurableHitRehydratesVolatile(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	store := kvstore.NewMemoryStore(0)
	m := newTestManager(store, clk)

	writtenAt := clk.Now().Add(-time.Minute)
	seedDurable(t, store, "details_bitcoin", `{"id":"bitcoin"}`, writtenAt)

	got, ok := m.Get(ctx, "details_bitcoin")
	if !ok || string(got) != `{"id":"bitcoin"}` {
		t.Fatalf("Expected durable value, got %s (hit=%v)", got, ok)
	}

	callsBefore := store.GetCalls()
	got, ok = m.Get(ctx, "details_bitcoin")
	if !ok || string(got) != `{"id":"bitcoin"}` {
		t.Fatalf("Expected rehydrated value, got %s (hit=%v)", got, ok)
	}
	if store.GetCalls() != callsBefore {
		t.Errorf("Expected second read from volatile tier, got %d durable reads", store.GetCalls()-callsBefore)
	}

	// Rehydration keeps the original timestamp
	volatile := m.layers[0].Tier
	entry, err := volatile.GetStale(ctx, "details_bitcoin")
	if err != nil {
		t.Fatalf("Expected entry in volatile tier: %v", err)
	}
	if !entry.WrittenAt.Equal(writtenAt.Truncate(time.Millisecond)) {
		t.Errorf("Expected WrittenAt %v, got %v", writtenAt, entry.WrittenAt)
	}

	t.Log("✓ Durable hit rehydrates the volatile tier")
}

// An entry older than the volatile TTL but within the durable TTL keeps its
// age when rehydrated, so every read is answered by the durable tier.
func TestRehydratedEntryKeepsAge(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	store := kvstore.NewMemoryStore(0)
	m := newTestManager(store, clk)

	seedDurable(t, store, "top_20", `[{"id":"bitcoin"}]`, clk.Now().Add(-30*time.Minute))

	for i := 0; i < 2; i++ {
		callsBefore := store.GetCalls()
		got, ok := m.Get(ctx, "top_20")
		if !ok || string(got) != `[{"id":"bitcoin"}]` {
			t.Fatalf("Read %d: expected durable value, got %s (hit=%v)", i, got, ok)
		}
		if store.GetCalls() == callsBefore {
			t.Errorf("Read %d: expected the durable tier to answer", i)
		}
	}

	volatile := m.layers[0]
	if _, err := volatile.Tier.Get(ctx, "top_20", volatile.TTL); !errors.Is(err, ErrExpired) {
		t.Errorf("Expected rehydrated entry to be expired in the volatile tier, got %v", err)
	}

	t.Log("✓ Rehydration does not make old data look fresh")
}

func TestExpiryPerTier(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	store := kvstore.NewMemoryStore(0)
	m := newTestManager(store, clk)

	m.Set(ctx, "top_20", json.RawMessage(`"v"`))

	// Past the volatile window, still inside the durable one
	clk.Advance(10 * time.Minute)
	if _, ok := m.Get(ctx, "top_20"); !ok {
		t.Fatal("Expected durable hit after volatile expiry")
	}

	clk.Advance(time.Hour)
	if _, ok := m.Get(ctx, "top_20"); ok {
		t.Fatal("Expected miss after both tiers expired")
	}

	got, ok := m.GetStale(ctx, "top_20")
	if !ok || string(got) != `"v"` {
		t.Errorf("Expected stale read to return expired payload, got %s (hit=%v)", got, ok)
	}

	t.Log("✓ Each tier honors its own TTL; stale read ignores both")
}

func TestGetStaleOnEmptyCache(t *testing.T) {
	m := newTestManager(kvstore.NewMemoryStore(0), newTestClock())

	got, ok := m.GetStale(context.Background(), "top_20")
	if ok || got != nil {
		t.Errorf("Expected absent, got %s (hit=%v)", got, ok)
	}

	t.Log("✓ Stale read on an empty cache returns absent")
}

func TestGetStaleFallsBackToDurable(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	store := kvstore.NewMemoryStore(0)
	m := newTestManager(store, clk)

	seedDurable(t, store, "category_layer-1", `["old"]`, clk.Now().Add(-48*time.Hour))

	got, ok := m.GetStale(ctx, "category_layer-1")
	if !ok || string(got) != `["old"]` {
		t.Errorf("Expected durable stale payload, got %s (hit=%v)", got, ok)
	}
}

func TestDurableWriteFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	store := &failingStore{MemoryStore: kvstore.NewMemoryStore(0), setErr: kvstore.ErrQuotaExceeded}
	m := newTestManager(store, clk)

	m.Set(ctx, "top_250", json.RawMessage(`[]`))

	got, ok := m.Get(ctx, "top_250")
	if !ok || string(got) != `[]` {
		t.Errorf("Expected volatile tier to stay authoritative, got %s (hit=%v)", got, ok)
	}

	t.Log("✓ Durable write failure does not reach the caller")
}

func TestClearOnlyRemovesNamespace(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	store := kvstore.NewMemoryStore(0)
	m := newTestManager(store, clk)

	m.Set(ctx, "top_20", json.RawMessage(`[]`))
	m.Set(ctx, "global_market", json.RawMessage(`{}`))
	if err := store.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Failed to seed foreign key: %v", err)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, ok := m.GetStale(ctx, "top_20"); ok {
		t.Error("Expected namespaced entries to be gone")
	}
	keys, _ := store.Keys(ctx, DefaultNamespace+"_")
	if len(keys) != 0 {
		t.Errorf("Expected no namespaced keys, got %v", keys)
	}
	if val, err := store.Get(ctx, "theme"); err != nil || val != "dark" {
		t.Errorf("Expected foreign key to survive, got %q (%v)", val, err)
	}

	t.Log("✓ Clear leaves unrelated durable keys untouched")
}

func TestCorruptDurableRecordIsAMiss(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	m := newTestManager(store, newTestClock())

	if err := store.Set(ctx, DefaultNamespace+"_top_20", "{not json"); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	if _, ok := m.Get(ctx, "top_20"); ok {
		t.Error("Expected corrupt record to read as a miss")
	}
	if _, ok := m.GetStale(ctx, "top_20"); ok {
		t.Error("Expected corrupt record to be absent from stale reads")
	}
}

func TestManagerSkipsNilTiers(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	m := NewManager(ManagerConfig{
		Layers: []Layer{{Tier: nil}, {Tier: NewMemoryTier(10, clk.Now), TTL: time.Minute}},
		Now:    clk.Now,
	})

	m.Set(ctx, "k", json.RawMessage(`1`))
	if _, ok := m.Get(ctx, "k"); !ok {
		t.Error("Expected hit from the single configured tier")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestDurableRecordFormat(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	store := kvstore.NewMemoryStore(0)
	m := newTestManager(store, clk)

	m.Set(ctx, "top_5", json.RawMessage(`[{"id":"bitcoin"}]`))

	raw, err := store.Get(ctx, "crypto_cache_top_5")
	if err != nil {
		t.Fatalf("Expected namespaced key in store: %v", err)
	}

	var rec struct {
		Data      json.RawMessage `json:"data"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("Stored value is not JSON: %v", err)
	}
	if string(rec.Data) != `[{"id":"bitcoin"}]` {
		t.Errorf("Unexpected data %s", rec.Data)
	}
	if rec.Timestamp != clk.Now().UnixMilli() {
		t.Errorf("Expected timestamp %d, got %d", clk.Now().UnixMilli(), rec.Timestamp)
	}
}

func TestTierErrorsAreSentinels(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	tier := NewMemoryTier(10, clk.Now)

	if _, err := tier.Get(ctx, "missing", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_ = tier.Set(ctx, "k", &Entry{Payload: json.RawMessage(`1`), WrittenAt: clk.Now()})
	clk.Advance(2 * time.Minute)
	if _, err := tier.Get(ctx, "k", time.Minute); !errors.Is(err, ErrExpired) {
		t.Errorf("Expected ErrExpired, got %v", err)
	}
}
