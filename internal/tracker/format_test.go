package tracker

import "testing"

func TestConvertPrice(t *testing.T) {
	table := NewRateTable()

	tests := []struct {
		price    string
		currency Currency
		want     string
	}{
		{"64000.5", USD, "$64,000.50"},
		{"0.123456789", USD, "$0.123457"},
		{"0.5", USD, "$0.50"},
		{"100", EUR, "€85.00"},
		{"1", JPY, "¥110.00"},
		{"1000", CAD, "CA$1,250.00"},
		{"10", AUD, "A$13.50"},
		{"-2.5", USD, "-$2.50"},
		{"10", Currency("CHF"), "$10.00"},
		{"not a number", USD, "$0.00"},
	}

	for _, tt := range tests {
		if got := table.ConvertPrice(tt.price, tt.currency); got != tt.want {
			t.Errorf("ConvertPrice(%q, %s): expected %q, got %q", tt.price, tt.currency, tt.want, got)
		}
	}

	t.Log("✓ Prices convert with 2 decimals, 6 below one unit")
}

func TestConvertLargeValue(t *testing.T) {
	table := NewRateTable()

	tests := []struct {
		value    string
		currency Currency
		want     string
	}{
		{"1234567.89", USD, "$1,234,568"},
		{"1000", CAD, "CA$1,250"},
		{"999", USD, "$999"},
		{"0.4", GBP, "£0"},
	}

	for _, tt := range tests {
		if got := table.ConvertLargeValue(tt.value, tt.currency); got != tt.want {
			t.Errorf("ConvertLargeValue(%q, %s): expected %q, got %q", tt.value, tt.currency, tt.want, got)
		}
	}
}

func TestFormatLargeNumber(t *testing.T) {
	table := NewRateTable()

	tests := []struct {
		value    string
		currency Currency
		want     string
	}{
		{"2500000000", USD, "$2.50B"},
		{"2000000", GBP, "£1.46M"},
		{"1000", AUD, "A$1.35K"},
		{"999.1234", USD, "$999.123"},
		{"12.5", CAD, "C$15.625"},
		{"50", USD, "$50"},
		{"1000000000", JPY, "¥110.00B"},
	}

	for _, tt := range tests {
		if got := table.FormatLargeNumber(tt.value, tt.currency); got != tt.want {
			t.Errorf("FormatLargeNumber(%q, %s): expected %q, got %q", tt.value, tt.currency, tt.want, got)
		}
	}

	t.Log("✓ Large numbers abbreviate with B/M/K")
}

func TestFormatChangePercent(t *testing.T) {
	tests := []struct {
		change   string
		text     string
		positive bool
	}{
		{"2.3456", "+2.35%", true},
		{"-1.5", "-1.50%", false},
		{"0", "+0.00%", true},
		{"-0.001", "-0.00%", false},
		{"", "+0.00%", true},
	}

	for _, tt := range tests {
		got := FormatChangePercent(tt.change)
		if got.Text != tt.text || got.IsPositive != tt.positive {
			t.Errorf("FormatChangePercent(%q): expected %q/%v, got %q/%v", tt.change, tt.text, tt.positive, got.Text, got.IsPositive)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	tests := map[string]string{
		"1":       "1",
		"123":     "123",
		"1234":    "1,234",
		"123456":  "123,456",
		"1234567": "1,234,567",
	}

	for in, want := range tests {
		if got := groupThousands(in); got != want {
			t.Errorf("groupThousands(%q): expected %q, got %q", in, want, got)
		}
	}
}
