package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency identifies an ISO 4217 currency and its minor-unit exponent
// (2 for CHF: 1 franc = 100 rappen).
type Currency struct {
	Code     string `json:"code"`
	Exponent int32  `json:"exponent"`
}

var (
	CHF = Currency{Code: "CHF", Exponent: 2}
	EUR = Currency{Code: "EUR", Exponent: 2}
	USD = Currency{Code: "USD", Exponent: 2}
	GBP = Currency{Code: "GBP", Exponent: 2}
	JPY = Currency{Code: "JPY", Exponent: 0}
)

var currencies = map[string]Currency{
	CHF.Code: CHF,
	EUR.Code: EUR,
	USD.Code: USD,
	GBP.Code: GBP,
	JPY.Code: JPY,
}

// LookupCurrency resolves a currency code, ignoring case and surrounding space.
func LookupCurrency(code string) (Currency, error) {
	c, ok := currencies[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return c, nil
}

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Fractional digits accepted for stored inputs. They match the NUMERIC scales
// of the invoice_items columns, so a stored row recomputes to its stored amounts.
const (
	quantityFraction  = 4
	percentFraction   = 4
	unitPriceFraction = 6
)

// Percentage is a decimal in the closed range [0, 100].
type Percentage struct {
	value decimal.Decimal
}

// TaxRate is a percentage applied on top of a tax-exclusive subtotal.
type TaxRate = Percentage

// NewPercentage validates d and wraps it. At most 4 fractional digits.
func NewPercentage(d decimal.Decimal) (Percentage, error) {
	if d.IsNegative() || d.GreaterThan(hundred) {
		return Percentage{}, invalid("percentage", d.String(), "must be between 0 and 100")
	}
	if !hasMaxFraction(d, percentFraction) {
		return Percentage{}, invalid("percentage", d.String(), "at most 4 fractional digits")
	}
	return Percentage{value: d}, nil
}

// ParsePercentage parses a decimal string such as "8.1".
func ParsePercentage(s string) (Percentage, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Percentage{}, invalid("percentage", s, "not a decimal number")
	}
	return NewPercentage(d)
}

// MustPercentage is ParsePercentage for constants; it panics on bad input.
func MustPercentage(s string) Percentage {
	p, err := ParsePercentage(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Percentage) Decimal() decimal.Decimal { return p.value }

func (p Percentage) IsZero() bool { return p.value.IsZero() }

func (p Percentage) String() string { return p.value.String() }

// Of returns round(minor × p / 100), rounding half away from zero.
func (p Percentage) Of(minor int64) (int64, error) {
	if p.value.IsZero() {
		return 0, nil
	}
	// Shift(-2) divides by 100 exactly; Div would go through DivisionPrecision.
	return toMinor(decimal.NewFromInt(minor).Mul(p.value).Shift(-2))
}

// Money is an integer amount of a currency's minor unit.
type Money struct {
	minor    int64
	currency Currency
}

func NewMoney(minor int64, currency Currency) Money {
	return Money{minor: minor, currency: currency}
}

func (m Money) Minor() int64 { return m.minor }

// Add returns m + other; both must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add %s to %s", other.currency.Code, m.currency.Code)
	}
	sum, err := addMinor(m.minor, other.minor)
	if err != nil {
		return Money{}, err
	}
	return Money{minor: sum, currency: m.currency}, nil
}

// Format renders m in its currency's exponent with the separators of f.
func (m Money) Format(f NumberFormat) string {
	return FormatMinorWith(m.minor, m.currency, f)
}

// ToMinor converts a major-unit decimal to minor units: round(amount × 10^exp).
func ToMinor(amount decimal.Decimal, currency Currency) (int64, error) {
	return toMinor(amount.Shift(currency.Exponent))
}

// toMinor rounds d to an integer, half away from zero, and checks the int64 range.
func toMinor(d decimal.Decimal) (int64, error) {
	r := d.Round(0)
	if r.GreaterThan(maxMinor) || r.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOverflow, d.String())
	}
	return r.IntPart(), nil
}

func hasMaxFraction(d decimal.Decimal, digits int32) bool {
	return d.Equal(d.Truncate(digits))
}

func addMinor(a, b int64) (int64, error) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, fmt.Errorf("%w: %d + %d", ErrAmountOverflow, a, b)
	}
	return s, nil
}
