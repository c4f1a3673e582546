package tracker

import (
	"testing"
	"time"
)

func TestRateTable_Defaults(t *testing.T) {
	table := NewRateTable()

	for c, want := range DefaultRates() {
		if got := table.Rate(c); got != want {
			t.Errorf("%s: expected %v, got %v", c, want, got)
		}
	}
	if got := table.Rate("CHF"); got != 1 {
		t.Errorf("Expected unknown currency rate 1, got %v", got)
	}
	if !table.UpdatedAt().IsZero() {
		t.Error("Expected no update time before the first refresh")
	}
}

func TestRateTable_ApplyPartial(t *testing.T) {
	table := NewRateTable()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	updated := table.Apply(map[string]float64{"USD": 2, "EUR": 0.92, "GBP": 0, "CHF": 0.88}, at)

	if len(updated) != 1 || updated[0] != EUR {
		t.Errorf("Expected only EUR updated, got %v", updated)
	}
	if table.Rate(USD) != 1 {
		t.Error("Expected USD pinned to 1")
	}
	if table.Rate(GBP) != 0.73 {
		t.Errorf("Expected GBP kept on non-positive rate, got %v", table.Rate(GBP))
	}
	if table.Rate(AUD) != 1.35 {
		t.Errorf("Expected AUD kept when missing, got %v", table.Rate(AUD))
	}
	if _, ok := table.Snapshot()["CHF"]; ok {
		t.Error("Expected unsupported currency ignored")
	}
	if !table.UpdatedAt().Equal(at) {
		t.Errorf("Expected update time %v, got %v", at, table.UpdatedAt())
	}

	t.Log("✓ Partial rate responses keep previous values")
}

func TestRateTable_SnapshotIsCopy(t *testing.T) {
	table := NewRateTable()

	snap := table.Snapshot()
	snap[EUR] = 99

	if table.Rate(EUR) != 0.85 {
		t.Error("Expected snapshot mutation not to leak")
	}
}
