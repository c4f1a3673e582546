package tracker

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	priceSymbols = map[Currency]string{
		USD: "$", EUR: "€", GBP: "£", JPY: "¥", CAD: "CA$", AUD: "A$",
	}
	compactSymbols = map[Currency]string{
		USD: "$", EUR: "€", GBP: "£", JPY: "¥", CAD: "C$", AUD: "A$",
	}

	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// ChangePercent is a formatted percent change
type ChangePercent struct {
	Text       string `json:"text"`
	IsPositive bool   `json:"isPositive"`
}

// ConvertPrice converts a USD decimal string into c and formats it with two
// decimals, or up to six when the converted value is below 1.
func (t *RateTable) ConvertPrice(priceUSD string, c Currency) string {
	v := t.convert(priceUSD, c)

	maxDigits := int32(2)
	if v.LessThan(decimal.NewFromInt(1)) {
		maxDigits = 6
	}
	return withSymbol(symbolFor(priceSymbols, c), formatFixed(v, 2, maxDigits))
}

// ConvertLargeValue converts a USD decimal string into c without decimals
func (t *RateTable) ConvertLargeValue(valueUSD string, c Currency) string {
	return withSymbol(symbolFor(priceSymbols, c), formatFixed(t.convert(valueUSD, c), 0, 0))
}

// FormatLargeNumber converts a USD decimal string into c and abbreviates it
// with a B, M or K suffix.
func (t *RateTable) FormatLargeNumber(valueUSD string, c Currency) string {
	v := t.convert(valueUSD, c)
	symbol := symbolFor(compactSymbols, c)

	switch {
	case v.GreaterThanOrEqual(billion):
		return symbol + v.Div(billion).StringFixed(2) + "B"
	case v.GreaterThanOrEqual(million):
		return symbol + v.Div(million).StringFixed(2) + "M"
	case v.GreaterThanOrEqual(thousand):
		return symbol + v.Div(thousand).StringFixed(2) + "K"
	}
	return symbol + formatFixed(v, 0, 3)
}

// FormatChangePercent renders a percent change with an explicit sign. Zero
// counts as positive.
func FormatChangePercent(change string) ChangePercent {
	v := parseDecimal(change)
	positive := !v.IsNegative()

	text := v.StringFixed(2)
	switch {
	case positive:
		text = "+" + text
	case !strings.HasPrefix(text, "-"):
		text = "-" + text
	}

	return ChangePercent{Text: text + "%", IsPositive: positive}
}

func (t *RateTable) convert(valueUSD string, c Currency) decimal.Decimal {
	return parseDecimal(valueUSD).Mul(decimal.NewFromFloat(t.Rate(c)))
}

// parseDecimal treats unparsable input as zero
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func symbolFor(symbols map[Currency]string, c Currency) string {
	if s, ok := symbols[c]; ok {
		return s
	}
	return "$"
}

func withSymbol(symbol, amount string) string {
	if rest, ok := strings.CutPrefix(amount, "-"); ok {
		return "-" + symbol + rest
	}
	return symbol + amount
}

// formatFixed rounds v to maxDigits decimals, keeps at least minDigits and
// groups the integer part in thousands.
func formatFixed(v decimal.Decimal, minDigits, maxDigits int32) string {
	s := v.Round(maxDigits).StringFixed(maxDigits)

	sign := ""
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		sign, s = "-", rest
	}

	intPart, frac, _ := strings.Cut(s, ".")
	for int32(len(frac)) > minDigits && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}

	out := sign + groupThousands(intPart)
	if frac != "" {
		out += "." + frac
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
