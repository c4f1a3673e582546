package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/observability"
)

type stubProvider struct {
	name    string
	err     error
	delay   time.Duration
	calls   atomic.Int32
	running *atomic.Int32
	peak    *atomic.Int32
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Warmup(ctx context.Context) error {
	p.calls.Add(1)
	if p.running != nil {
		n := p.running.Add(1)
		defer p.running.Add(-1)
		for {
			old := p.peak.Load()
			if n <= old || p.peak.CompareAndSwap(old, n) {
				break
			}
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.err
}

func TestWarmerCollectsResultsInOrder(t *testing.T) {
	w := NewWarmer(observability.NewNopLogger(), WarmupConfig{Timeout: time.Second, Parallelism: 3})

	w.RegisterProvider(&stubProvider{name: "top"})
	w.RegisterProvider(&stubProvider{name: "global", err: errors.New("boom")})
	w.RegisterProvider(&stubProvider{name: "rates"})

	results := w.Warmup(context.Background())

	if !results.HasErrors() || results.Errors != 1 {
		t.Errorf("Expected 1 error, got %d", results.Errors)
	}
	want := []string{"top", "global", "rates"}
	for i, r := range results.Results {
		if r.Provider != want[i] {
			t.Errorf("Result %d: expected %s, got %s", i, want[i], r.Provider)
		}
	}

	t.Log("✓ Warmer reports per-provider results")
}

func TestWarmerBoundsParallelism(t *testing.T) {
	var running, peak atomic.Int32
	w := NewWarmer(observability.NewNopLogger(), WarmupConfig{Timeout: 5 * time.Second, Parallelism: 2})

	for i := 0; i < 6; i++ {
		w.RegisterProvider(&stubProvider{name: "p", delay: 20 * time.Millisecond, running: &running, peak: &peak})
	}

	results := w.Warmup(context.Background())

	if len(results.Results) != 6 || results.HasErrors() {
		t.Fatalf("Expected 6 clean results, got %d (%d errors)", len(results.Results), results.Errors)
	}
	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent providers, saw %d", peak.Load())
	}

	t.Log("✓ Warmer respects the parallelism cap")
}

func TestWarmerSequentialStopsOnError(t *testing.T) {
	w := NewWarmer(observability.NewNopLogger(), WarmupConfig{Timeout: time.Second, Parallelism: 1})

	first := &stubProvider{name: "first", err: errors.New("boom")}
	second := &stubProvider{name: "second"}
	w.RegisterProvider(first)
	w.RegisterProvider(second)

	results := w.Warmup(context.Background())

	if len(results.Results) != 1 {
		t.Errorf("Expected warmup to stop after first failure, got %d results", len(results.Results))
	}
	if second.calls.Load() != 0 {
		t.Error("Expected second provider to be skipped")
	}
}

func TestWarmerWithNoProviders(t *testing.T) {
	w := NewWarmer(observability.NewNopLogger(), DefaultWarmupConfig())
	results := w.Warmup(context.Background())
	if len(results.Results) != 0 || results.HasErrors() {
		t.Errorf("Expected empty results, got %+v", results)
	}
}
