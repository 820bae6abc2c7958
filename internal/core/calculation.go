package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineItemInput is one invoice line as entered by a user, in major units.
type LineItemInput struct {
	Name            string              `json:"name"`
	Quantity        decimal.Decimal     `json:"quantity"`
	UnitPrice       decimal.Decimal     `json:"unit_price"`
	TaxRatePercent  decimal.NullDecimal `json:"tax_rate_percent"` // invalid means "use the invoice fallback"
	DiscountPercent decimal.Decimal     `json:"discount_percent"`
}

// LineItemResult holds the derived minor-unit amounts of one line.
//
//	TotalMinor == SubtotalMinor + TaxAmountMinor
//	SubtotalMinor + DiscountAmountMinor == round(quantity × unitPriceMinor)
type LineItemResult struct {
	UnitPriceMinor      int64 `json:"unit_price_minor"`
	SubtotalMinor       int64 `json:"subtotal_minor"`
	DiscountAmountMinor int64 `json:"discount_amount_minor"`
	TaxAmountMinor      int64 `json:"tax_amount_minor"`
	TotalMinor          int64 `json:"total_minor"`
}

// CalculatedLine is a LineItemResult tagged with its position in the input slice.
type CalculatedLine struct {
	Index          int             `json:"index"`
	Name           string          `json:"name"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	LineItemResult
}

// TaxLine aggregates the lines taxed at one rate.
type TaxLine struct {
	RatePercent decimal.Decimal `json:"rate_percent"`
	BaseMinor   int64           `json:"base_minor"`
	TaxMinor    int64           `json:"tax_minor"`
}

// InvoiceTotals is the exact integer sum of the included lines.
type InvoiceTotals struct {
	Currency            Currency         `json:"currency"`
	SubtotalMinor       int64            `json:"subtotal_minor"`
	DiscountAmountMinor int64            `json:"discount_amount_minor"`
	TaxAmountMinor      int64            `json:"tax_amount_minor"`
	TotalMinor          int64            `json:"total_minor"`
	Lines               []CalculatedLine `json:"lines"`
	TaxBreakdown        []TaxLine        `json:"tax_breakdown"`
}

// CalculateLineItem computes one line. Rounding (half away from zero) happens
// at three points and in this order: unit price to minor units, discount, tax.
// A missing tax rate is treated as 0.
func CalculateLineItem(in LineItemInput, currency Currency) (LineItemResult, error) {
	rate := decimal.Zero
	if in.TaxRatePercent.Valid {
		rate = in.TaxRatePercent.Decimal
	}
	return calculateLine(in, rate, currency)
}

func calculateLine(in LineItemInput, rate decimal.Decimal, currency Currency) (LineItemResult, error) {
	if in.Quantity.IsNegative() {
		return LineItemResult{}, invalid("quantity", in.Quantity.String(), "must not be negative")
	}
	if !hasMaxFraction(in.Quantity, quantityFraction) {
		return LineItemResult{}, invalid("quantity", in.Quantity.String(), "at most 4 fractional digits")
	}
	if in.UnitPrice.IsNegative() {
		return LineItemResult{}, invalid("unit_price", in.UnitPrice.String(), "must not be negative")
	}
	if !hasMaxFraction(in.UnitPrice, unitPriceFraction) {
		return LineItemResult{}, invalid("unit_price", in.UnitPrice.String(), "at most 6 fractional digits")
	}
	taxRate, err := NewPercentage(rate)
	if err != nil {
		return LineItemResult{}, withField("tax_rate_percent", err)
	}
	discount, err := NewPercentage(in.DiscountPercent)
	if err != nil {
		return LineItemResult{}, withField("discount_percent", err)
	}

	unitPriceMinor, err := ToMinor(in.UnitPrice, currency)
	if err != nil {
		return LineItemResult{}, err
	}
	rawMinor, err := toMinor(in.Quantity.Mul(decimal.NewFromInt(unitPriceMinor)))
	if err != nil {
		return LineItemResult{}, err
	}
	discountMinor, err := discount.Of(rawMinor)
	if err != nil {
		return LineItemResult{}, err
	}
	subtotal := rawMinor - discountMinor
	taxMinor, err := taxRate.Of(subtotal)
	if err != nil {
		return LineItemResult{}, err
	}
	total, err := addMinor(subtotal, taxMinor)
	if err != nil {
		return LineItemResult{}, err
	}

	return LineItemResult{
		UnitPriceMinor:      unitPriceMinor,
		SubtotalMinor:       subtotal,
		DiscountAmountMinor: discountMinor,
		TaxAmountMinor:      taxMinor,
		TotalMinor:          total,
	}, nil
}

// CalculateInvoiceTotals recomputes every line and sums the results. Lines
// with a blank name are placeholder rows and are skipped without error. A
// line without its own tax rate uses fallbackTaxRate.
func CalculateInvoiceTotals(lines []LineItemInput, fallbackTaxRate TaxRate, currency Currency) (InvoiceTotals, error) {
	totals := InvoiceTotals{
		Currency:     currency,
		Lines:        []CalculatedLine{},
		TaxBreakdown: []TaxLine{},
	}
	byRate := map[string]*TaxLine{}

	for i, line := range lines {
		if isBlank(line.Name) {
			continue
		}
		rate := fallbackTaxRate.Decimal()
		if line.TaxRatePercent.Valid {
			rate = line.TaxRatePercent.Decimal
		}
		res, err := calculateLine(line, rate, currency)
		if err != nil {
			return InvoiceTotals{}, lineError(i, err)
		}

		if err := accumulate(&totals, res); err != nil {
			return InvoiceTotals{}, err
		}
		totals.Lines = append(totals.Lines, CalculatedLine{Index: i, Name: strings.TrimSpace(line.Name), TaxRatePercent: rate, LineItemResult: res})

		key := rate.String()
		tl, ok := byRate[key]
		if !ok {
			tl = &TaxLine{RatePercent: rate}
			byRate[key] = tl
		}
		tl.BaseMinor += res.SubtotalMinor
		tl.TaxMinor += res.TaxAmountMinor
	}

	for _, tl := range byRate {
		totals.TaxBreakdown = append(totals.TaxBreakdown, *tl)
	}
	sort.Slice(totals.TaxBreakdown, func(i, j int) bool {
		return totals.TaxBreakdown[i].RatePercent.LessThan(totals.TaxBreakdown[j].RatePercent)
	})
	return totals, nil
}

// accumulate adds r to the running totals in t.Currency.
func accumulate(t *InvoiceTotals, r LineItemResult) error {
	for _, f := range []struct {
		sum  *int64
		part int64
	}{
		{&t.SubtotalMinor, r.SubtotalMinor},
		{&t.DiscountAmountMinor, r.DiscountAmountMinor},
		{&t.TaxAmountMinor, r.TaxAmountMinor},
		{&t.TotalMinor, r.TotalMinor},
	} {
		m, err := NewMoney(*f.sum, t.Currency).Add(NewMoney(f.part, t.Currency))
		if err != nil {
			return err
		}
		*f.sum = m.Minor()
	}
	return nil
}

func lineError(index int, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		return &ValidationError{
			Field:   fmt.Sprintf("lines[%d].%s", index, ve.Field),
			Value:   ve.Value,
			Message: ve.Message,
		}
	}
	return err
}

// withField renames the field of a ValidationError and keeps its message.
func withField(field string, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		return &ValidationError{Field: field, Value: ve.Value, Message: ve.Message}
	}
	return err
}

func isBlank(name string) bool {
	return len(strings.TrimSpace(name)) == 0
}

// DueDate adds termDays calendar days to invoiceDate. No business-day logic.
func DueDate(invoiceDate time.Time, termDays int) time.Time {
	y, m, d := invoiceDate.Date()
	return time.Date(y, m, d+termDays, 0, 0, 0, 0, invoiceDate.Location())
}
