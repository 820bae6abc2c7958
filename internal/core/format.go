package core

import (
	"fmt"
	"strconv"
	"strings"
)

// NumberFormat controls how FormatMinorWith renders an amount.
type NumberFormat struct {
	Group   string // thousands separator, empty for none
	Decimal string
}

var (
	SwissFormat   = NumberFormat{Group: "'", Decimal: "."}
	EnglishFormat = NumberFormat{Group: ",", Decimal: "."}
	GermanFormat  = NumberFormat{Group: ".", Decimal: ","}
	PlainFormat   = NumberFormat{Group: "", Decimal: "."}
)

var numberFormats = map[string]NumberFormat{
	"swiss":   SwissFormat,
	"english": EnglishFormat,
	"german":  GermanFormat,
	"plain":   PlainFormat,
}

// NumberFormatByName resolves a preset name (swiss, english, german, plain).
func NumberFormatByName(name string) (NumberFormat, error) {
	f, ok := numberFormats[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return NumberFormat{}, fmt.Errorf("unknown number format %q", name)
	}
	return f, nil
}

// FormatMinor renders amountMinor in major units with Swiss grouping, e.g. 1'234.56.
// The result is for display only and must never be parsed back into arithmetic.
func FormatMinor(amountMinor int64, currency Currency) string {
	return FormatMinorWith(amountMinor, currency, SwissFormat)
}

// FormatMinorWith renders amountMinor with exactly currency.Exponent fractional digits.
func FormatMinorWith(amountMinor int64, currency Currency, f NumberFormat) string {
	neg := amountMinor < 0
	// uint64 keeps math.MinInt64 representable.
	abs := uint64(amountMinor)
	if neg {
		abs = -abs
	}

	digits := strconv.FormatUint(abs, 10)
	exp := int(currency.Exponent)
	if len(digits) <= exp {
		digits = strings.Repeat("0", exp-len(digits)+1) + digits
	}
	intPart, fracPart := digits[:len(digits)-exp], digits[len(digits)-exp:]

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(group(intPart, f.Group))
	if exp > 0 {
		b.WriteString(f.Decimal)
		b.WriteString(fracPart)
	}
	return b.String()
}

func group(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
