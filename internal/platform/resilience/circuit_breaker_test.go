package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errUpstream = errors.New("upstream failure")

func failing(ctx context.Context) error { return errUpstream }
func succeeding(ctx context.Context) error { return nil }

// openBreaker trips cb with threshold failures
func openBreaker(t *testing.T, cb *CircuitBreaker, threshold int) {
	t.Helper()
	for i := 0; i < threshold; i++ {
		_ = cb.Execute(context.Background(), failing)
	}
	if cb.State() != StateOpen {
		t.Fatalf("Expected Open after %d failures, got %s", threshold, cb.State())
	}
}

// TestStateTransitions_ClosedToOpen verifies circuit opens after failure threshold
func TestStateTransitions_ClosedToOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "coingecko",
		FailureThreshold: 3,
		Timeout:          time.Minute,
	})

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), failing)
		if cb.State() != StateClosed {
			t.Errorf("Expected Closed after %d failures, got %s", i+1, cb.State())
		}
	}

	_ = cb.Execute(context.Background(), failing)
	if cb.State() != StateOpen {
		t.Fatalf("Expected Open after 3 failures, got %s", cb.State())
	}

	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Function must not run while the circuit is open")
	}

	t.Log("✓ State transition Closed → Open works correctly")
}

// TestStateTransitions_OpenToHalfOpenToClosed verifies recovery after the timeout
func TestStateTransitions_OpenToHalfOpenToClosed(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "coingecko",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		Now:              clock.Now,
	})
	openBreaker(t, cb, 1)

	clock.Advance(10 * time.Second)
	if err := cb.Execute(context.Background(), succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen before timeout, got %v", err)
	}

	clock.Advance(20 * time.Second)
	if err := cb.Execute(context.Background(), succeeding); err != nil {
		t.Fatalf("Expected probe to run after timeout, got %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected HalfOpen after one success, got %s", cb.State())
	}

	if err := cb.Execute(context.Background(), succeeding); err != nil {
		t.Fatalf("Second probe failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected Closed after 2 successes, got %s", cb.State())
	}

	t.Log("✓ State transition Open → HalfOpen → Closed works correctly")
}

// TestHalfOpenToOpenOnFailure verifies circuit returns to open on failure in half-open
func TestHalfOpenToOpenOnFailure(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "coingecko",
		FailureThreshold: 1,
		SuccessThreshold: 3,
		Timeout:          time.Second,
		Now:              clock.Now,
	})
	openBreaker(t, cb, 1)

	clock.Advance(2 * time.Second)
	_ = cb.Execute(context.Background(), failing)

	if cb.State() != StateOpen {
		t.Errorf("Expected Open after failure in half-open, got %s", cb.State())
	}
	if err := cb.Execute(context.Background(), succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen after half-open failure, got %v", err)
	}

	t.Log("✓ State transition HalfOpen → Open on failure works correctly")
}

// TestIgnoresContextCancellation verifies context errors don't affect state
func TestIgnoresContextCancellation(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "coingecko",
		FailureThreshold: 2,
	})

	for _, ctxErr := range []error{context.Canceled, context.DeadlineExceeded} {
		for i := 0; i < 5; i++ {
			_ = cb.Execute(context.Background(), func(ctx context.Context) error {
				return ctxErr
			})
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("Expected Closed after context errors, got %s", cb.State())
	}

	t.Log("✓ Context cancellation correctly ignored for state transitions")
}

// TestOnStateChangeCallback verifies callback is invoked on state transitions
func TestOnStateChangeCallback(t *testing.T) {
	clock := newFakeClock()
	var transitions []string

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "coingecko",
		FailureThreshold: 1,
		Timeout:          time.Second,
		Now:              clock.Now,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	openBreaker(t, cb, 1)
	clock.Advance(time.Second)
	_ = cb.Execute(context.Background(), succeeding)

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}

	t.Log("✓ OnStateChange callback invoked for every transition")
}

// TestSuccessResetsFailureCount verifies failures must be consecutive
func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "coingecko",
		FailureThreshold: 3,
	})

	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), succeeding)
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)

	if cb.State() != StateClosed {
		t.Errorf("Expected Closed, got %s", cb.State())
	}
	_, failures, _ := cb.Stats()
	if failures != 2 {
		t.Errorf("Expected 2 failures, got %d", failures)
	}

	t.Log("✓ Success resets the failure counter")
}

// TestIsFailureFilter verifies classified-out errors never trip the breaker
func TestIsFailureFilter(t *testing.T) {
	errNotFound := errors.New("not found")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "coingecko",
		FailureThreshold: 2,
		IsFailure:        func(err error) bool { return !errors.Is(err, errNotFound) },
	})

	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error { return errNotFound })
		if !errors.Is(err, errNotFound) {
			t.Fatalf("Expected the call error to pass through, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("Expected Closed after ignored errors, got %s", cb.State())
	}
	if _, failures, _ := cb.Stats(); failures != 0 {
		t.Errorf("Expected 0 counted failures, got %d", failures)
	}

	openBreaker(t, cb, 2)

	t.Log("✓ Only classified failures count against the circuit")
}

// TestCircuitBreakerConcurrentAccess exercises the breaker from many goroutines
func TestCircuitBreakerConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "coingecko", FailureThreshold: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = cb.Execute(context.Background(), failing)
			} else {
				_ = cb.Execute(context.Background(), succeeding)
			}
			_ = cb.State()
		}(i)
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("Expected Closed, got %s", cb.State())
	}

	t.Log("✓ Concurrent access is safe")
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
