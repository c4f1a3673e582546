package tracker

import (
	"testing"

	"github.com/agatticelli/crypto-tray-feed/internal/marketdata"
)

func TestDeriveOneDay(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		wantLen  int
		wantLast float64
	}{
		{"hourly week", 168, 24, 167},
		{"empty", 0, 0, 0},
		{"shorter than a week", 6, 0, 0},
		{"one point per day", 7, 1, 6},
		{"capped", 1000, 25, 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveOneDay(series(tt.length))

			if len(got) != tt.wantLen {
				t.Fatalf("Expected %d points, got %d", tt.wantLen, len(got))
			}
			if tt.wantLen == 0 {
				if got != nil {
					t.Errorf("Expected nil series, got %v", got)
				}
				return
			}
			if got[len(got)-1] != tt.wantLast {
				t.Errorf("Expected last point %v, got %v", tt.wantLast, got[len(got)-1])
			}
		})
	}
}

func TestFirstSentence(t *testing.T) {
	tests := map[string]string{
		"":                        "",
		"   ":                     "",
		"One. Two.":               "One.",
		"No terminator":           "No terminator.",
		"Version 2.0 is out. Yes": "Version 2.",
	}

	for in, want := range tests {
		if got := firstSentence(in); got != want {
			t.Errorf("firstSentence(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestNormalizeCoin_MissingMarketData(t *testing.T) {
	a := normalizeCoin(&marketdata.CoinDetail{ID: "x", Symbol: "x", Name: "X"})

	if a.Rank != "0" || a.PriceUSD != "0" || a.ChangePercent24Hr != "0" || a.MarketCapUSD != "0" || a.VolumeUSD24Hr != "0" {
		t.Errorf("Expected zero defaults, got %+v", a)
	}
}

func TestNormalizeDetail_NoSeries(t *testing.T) {
	d := normalizeDetail(&marketdata.CoinDetail{ID: "x"}, historicalSeries{})

	if d.Sparkline != nil || d.Sparkline1d != nil || d.Sparkline30d != nil || d.Sparkline1y != nil {
		t.Error("Expected every series absent")
	}
	if d.Description != "" || d.Homepage != "" || d.Image != "" {
		t.Errorf("Expected absent extras, got %+v", d)
	}

	t.Log("✓ Missing series and extras are not synthesized")
}
