package core_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"invoice-engine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rate(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func TestCalculateLineItem_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		in   core.LineItemInput
		want core.LineItemResult
	}{
		{
			name: "two units with 8.1% tax",
			in:   core.LineItemInput{Name: "Consulting", Quantity: dec("2"), UnitPrice: dec("100.00"), TaxRatePercent: rate("8.1")},
			want: core.LineItemResult{UnitPriceMinor: 10000, SubtotalMinor: 20000, TaxAmountMinor: 1620, TotalMinor: 21620},
		},
		{
			name: "10% discount before tax",
			in: core.LineItemInput{Name: "Consulting", Quantity: dec("1"), UnitPrice: dec("100.00"),
				TaxRatePercent: rate("8.1"), DiscountPercent: dec("10")},
			want: core.LineItemResult{UnitPriceMinor: 10000, SubtotalMinor: 9000, DiscountAmountMinor: 1000, TaxAmountMinor: 729, TotalMinor: 9729},
		},
		{
			name: "fractional quantity rounds half away from zero",
			in:   core.LineItemInput{Name: "Stamp", Quantity: dec("1.5"), UnitPrice: dec("0.05")},
			want: core.LineItemResult{UnitPriceMinor: 5, SubtotalMinor: 8, TotalMinor: 8},
		},
		{
			name: "sub-cent unit price rounds first",
			in:   core.LineItemInput{Name: "Screw", Quantity: dec("1"), UnitPrice: dec("0.005")},
			want: core.LineItemResult{UnitPriceMinor: 1, SubtotalMinor: 1, TotalMinor: 1},
		},
		{
			name: "reduced rate",
			in:   core.LineItemInput{Name: "Books", Quantity: dec("3"), UnitPrice: dec("19.90"), TaxRatePercent: rate("2.6")},
			want: core.LineItemResult{UnitPriceMinor: 1990, SubtotalMinor: 5970, TaxAmountMinor: 155, TotalMinor: 6125},
		},
		{
			name: "four fractional quantity digits",
			in:   core.LineItemInput{Name: "Hours", Quantity: dec("0.3333"), UnitPrice: dec("10.00"), TaxRatePercent: rate("7.7")},
			want: core.LineItemResult{UnitPriceMinor: 1000, SubtotalMinor: 333, TaxAmountMinor: 26, TotalMinor: 359},
		},
		{
			name: "odd discount",
			in: core.LineItemInput{Name: "Licence", Quantity: dec("1"), UnitPrice: dec("10.00"),
				TaxRatePercent: rate("8.1"), DiscountPercent: dec("33.3333")},
			want: core.LineItemResult{UnitPriceMinor: 1000, SubtotalMinor: 667, DiscountAmountMinor: 333, TaxAmountMinor: 54, TotalMinor: 721},
		},
		{
			name: "missing tax rate is zero",
			in:   core.LineItemInput{Name: "Export", Quantity: dec("1"), UnitPrice: dec("50")},
			want: core.LineItemResult{UnitPriceMinor: 5000, SubtotalMinor: 5000, TotalMinor: 5000},
		},
		{
			name: "zero quantity",
			in:   core.LineItemInput{Name: "Placeholder", Quantity: dec("0"), UnitPrice: dec("99.99"), TaxRatePercent: rate("8.1")},
			want: core.LineItemResult{UnitPriceMinor: 9999},
		},
		{
			name: "full discount",
			in: core.LineItemInput{Name: "Gift", Quantity: dec("1"), UnitPrice: dec("20.00"),
				TaxRatePercent: rate("8.1"), DiscountPercent: dec("100")},
			want: core.LineItemResult{UnitPriceMinor: 2000, DiscountAmountMinor: 2000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := core.CalculateLineItem(tt.in, core.CHF)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateLineItem_JPYHasNoMinorUnits(t *testing.T) {
	got, err := core.CalculateLineItem(core.LineItemInput{
		Name: "Tea", Quantity: dec("3"), UnitPrice: dec("333.5"), TaxRatePercent: rate("10"),
	}, core.JPY)
	require.NoError(t, err)
	assert.Equal(t, int64(334), got.UnitPriceMinor)
	assert.Equal(t, int64(1002), got.SubtotalMinor)
	assert.Equal(t, int64(100), got.TaxAmountMinor)
	assert.Equal(t, int64(1102), got.TotalMinor)
}

func TestCalculateLineItem_Identities(t *testing.T) {
	quantities := []string{"0", "1", "1.5", "2", "0.3333", "7.25", "12", "999.9999"}
	prices := []string{"0", "0.01", "0.05", "0.005", "1", "19.90", "45.50", "99.99", "1234.5678"}
	rates := []string{"0", "2.6", "3.8", "7.7", "8.1", "19", "100"}
	discounts := []string{"0", "5", "10", "12.5", "33.3333", "100"}

	for _, q := range quantities {
		for _, p := range prices {
			for _, r := range rates {
				for _, d := range discounts {
					in := core.LineItemInput{Name: "x", Quantity: dec(q), UnitPrice: dec(p), TaxRatePercent: rate(r), DiscountPercent: dec(d)}
					res, err := core.CalculateLineItem(in, core.CHF)
					require.NoError(t, err)

					assert.Equal(t, res.SubtotalMinor+res.TaxAmountMinor, res.TotalMinor, "total identity for %+v", in)

					unitMinor := dec(p).Shift(2).Round(0)
					raw := dec(q).Mul(unitMinor).Round(0).IntPart()
					assert.Equal(t, raw, res.SubtotalMinor+res.DiscountAmountMinor, "discount identity for %+v", in)
					assert.GreaterOrEqual(t, res.SubtotalMinor, int64(0))
					assert.GreaterOrEqual(t, res.TaxAmountMinor, int64(0))
				}
			}
		}
	}
}

func TestCalculateLineItem_RejectsOutOfDomainInput(t *testing.T) {
	base := core.LineItemInput{Name: "x", Quantity: dec("1"), UnitPrice: dec("1")}

	tests := []struct {
		name  string
		mut   func(*core.LineItemInput)
		field string
	}{
		{"negative quantity", func(in *core.LineItemInput) { in.Quantity = dec("-1") }, "quantity"},
		{"five quantity decimals", func(in *core.LineItemInput) { in.Quantity = dec("1.00001") }, "quantity"},
		{"negative price", func(in *core.LineItemInput) { in.UnitPrice = dec("-0.01") }, "unit_price"},
		{"negative tax", func(in *core.LineItemInput) { in.TaxRatePercent = rate("-1") }, "tax_rate_percent"},
		{"tax above 100", func(in *core.LineItemInput) { in.TaxRatePercent = rate("100.01") }, "tax_rate_percent"},
		{"discount above 100", func(in *core.LineItemInput) { in.DiscountPercent = dec("101") }, "discount_percent"},
		{"negative discount", func(in *core.LineItemInput) { in.DiscountPercent = dec("-5") }, "discount_percent"},
		{"seven price decimals", func(in *core.LineItemInput) { in.UnitPrice = dec("0.0000001") }, "unit_price"},
		{"five tax decimals", func(in *core.LineItemInput) { in.TaxRatePercent = rate("8.10005") }, "tax_rate_percent"},
		{"five discount decimals", func(in *core.LineItemInput) { in.DiscountPercent = dec("10.00005") }, "discount_percent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mut(&in)
			_, err := core.CalculateLineItem(in, core.CHF)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidArgument)

			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

// Inputs are limited to the scales the invoice_items columns store, so a stored
// row recomputes to exactly its stored amounts.
func TestCalculateLineItem_AcceptsStoredScale(t *testing.T) {
	got, err := core.CalculateLineItem(core.LineItemInput{
		Name: "Retainer", Quantity: dec("1"), UnitPrice: dec("100000.000001"),
		TaxRatePercent: rate("8.1001"), DiscountPercent: dec("10.0001"),
	}, core.CHF)
	require.NoError(t, err)
	assert.Equal(t, core.LineItemResult{
		UnitPriceMinor:      10000000,
		SubtotalMinor:       8999990,
		DiscountAmountMinor: 1000010,
		TaxAmountMinor:      729008,
		TotalMinor:          9728998,
	}, got)
}

func TestParsePercentage_LimitsFraction(t *testing.T) {
	_, err := core.ParsePercentage("8.10005")
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "at most 4 fractional digits", verr.Message)

	p, err := core.ParsePercentage("8.1001")
	require.NoError(t, err)
	assert.Equal(t, "8.1001", p.String())
}

func TestCalculateLineItem_Overflow(t *testing.T) {
	_, err := core.CalculateLineItem(core.LineItemInput{
		Name: "x", Quantity: dec("1000000"), UnitPrice: dec("100000000000000000"),
	}, core.CHF)
	assert.ErrorIs(t, err, core.ErrAmountOverflow)
}

func TestCalculateInvoiceTotals_Additivity(t *testing.T) {
	lines := []core.LineItemInput{
		{Name: "Consulting", Quantity: dec("2"), UnitPrice: dec("100.00")},
		{Name: "Travel", Quantity: dec("1"), UnitPrice: dec("45.50"), DiscountPercent: dec("10")},
		{Name: "Books", Quantity: dec("3"), UnitPrice: dec("19.90"), TaxRatePercent: rate("2.6")},
		{Name: "Hours", Quantity: dec("0.3333"), UnitPrice: dec("10.00"), TaxRatePercent: rate("0")},
	}

	totals, err := core.CalculateInvoiceTotals(lines, core.MustPercentage("8.1"), core.CHF)
	require.NoError(t, err)
	require.Len(t, totals.Lines, 4)

	var sub, disc, tax, total int64
	for _, l := range totals.Lines {
		sub += l.SubtotalMinor
		disc += l.DiscountAmountMinor
		tax += l.TaxAmountMinor
		total += l.TotalMinor
	}
	assert.Equal(t, sub, totals.SubtotalMinor)
	assert.Equal(t, disc, totals.DiscountAmountMinor)
	assert.Equal(t, tax, totals.TaxAmountMinor)
	assert.Equal(t, total, totals.TotalMinor)
	assert.Equal(t, totals.SubtotalMinor+totals.TaxAmountMinor, totals.TotalMinor)

	// 20000 + 4095 + 5970 + 333
	assert.Equal(t, int64(30398), totals.SubtotalMinor)
	// 1620 + 332 + 155 + 0
	assert.Equal(t, int64(2107), totals.TaxAmountMinor)

	// Lines without their own rate use the fallback.
	assert.True(t, totals.Lines[0].TaxRatePercent.Equal(dec("8.1")))
	assert.True(t, totals.Lines[3].TaxRatePercent.IsZero())
}

func TestCalculateInvoiceTotals_TaxBreakdown(t *testing.T) {
	lines := []core.LineItemInput{
		{Name: "A", Quantity: dec("1"), UnitPrice: dec("100.00")},
		{Name: "B", Quantity: dec("3"), UnitPrice: dec("19.90"), TaxRatePercent: rate("2.6")},
		{Name: "C", Quantity: dec("2"), UnitPrice: dec("50.00"), TaxRatePercent: rate("8.10")},
	}
	totals, err := core.CalculateInvoiceTotals(lines, core.MustPercentage("8.1"), core.CHF)
	require.NoError(t, err)

	require.Len(t, totals.TaxBreakdown, 2)
	assert.True(t, totals.TaxBreakdown[0].RatePercent.Equal(dec("2.6")))
	assert.Equal(t, int64(5970), totals.TaxBreakdown[0].BaseMinor)
	assert.Equal(t, int64(155), totals.TaxBreakdown[0].TaxMinor)
	assert.True(t, totals.TaxBreakdown[1].RatePercent.Equal(dec("8.1")))
	assert.Equal(t, int64(20000), totals.TaxBreakdown[1].BaseMinor)
	assert.Equal(t, int64(1620), totals.TaxBreakdown[1].TaxMinor)
}

func TestCalculateInvoiceTotals_BlankRowsContributeNothing(t *testing.T) {
	valid := []core.LineItemInput{
		{Name: "Consulting", Quantity: dec("2"), UnitPrice: dec("100.00")},
	}
	withBlanks := []core.LineItemInput{
		{Name: "", Quantity: dec("5"), UnitPrice: dec("999.99"), TaxRatePercent: rate("8.1")},
		valid[0],
		{Name: "   ", Quantity: dec("1"), UnitPrice: dec("1")},
		// Invalid values on a blank row are ignored too.
		{Name: "\t", Quantity: dec("-3"), UnitPrice: dec("-1"), DiscountPercent: dec("500")},
	}

	want, err := core.CalculateInvoiceTotals(valid, core.MustPercentage("8.1"), core.CHF)
	require.NoError(t, err)
	got, err := core.CalculateInvoiceTotals(withBlanks, core.MustPercentage("8.1"), core.CHF)
	require.NoError(t, err)

	assert.Equal(t, want.SubtotalMinor, got.SubtotalMinor)
	assert.Equal(t, want.TaxAmountMinor, got.TaxAmountMinor)
	assert.Equal(t, want.TotalMinor, got.TotalMinor)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 1, got.Lines[0].Index)
}

func TestCalculateInvoiceTotals_Empty(t *testing.T) {
	totals, err := core.CalculateInvoiceTotals(nil, core.MustPercentage("8.1"), core.CHF)
	require.NoError(t, err)
	assert.Zero(t, totals.TotalMinor)
	assert.Empty(t, totals.Lines)
	assert.Empty(t, totals.TaxBreakdown)
}

func TestCalculateInvoiceTotals_ErrorNamesLine(t *testing.T) {
	lines := []core.LineItemInput{
		{Name: "ok", Quantity: dec("1"), UnitPrice: dec("1")},
		{Name: "bad", Quantity: dec("-1"), UnitPrice: dec("1")},
	}
	_, err := core.CalculateInvoiceTotals(lines, core.MustPercentage("0"), core.CHF)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "lines[1].quantity", verr.Field)
}

func TestCalculateInvoiceTotals_SumOverflow(t *testing.T) {
	huge := dec("90000000000000000") // 9e16 major units, 9e18 minor units
	lines := []core.LineItemInput{
		{Name: "a", Quantity: dec("1"), UnitPrice: huge},
		{Name: "b", Quantity: dec("1"), UnitPrice: huge},
	}
	_, err := core.CalculateInvoiceTotals(lines, core.MustPercentage("0"), core.CHF)
	assert.ErrorIs(t, err, core.ErrAmountOverflow)
}

func TestDueDate(t *testing.T) {
	tests := []struct {
		date string
		days int
		want string
	}{
		{"2024-01-15", 30, "2024-02-14"},
		{"2024-01-01", 60, "2024-03-01"},
		{"2024-01-31", 30, "2024-03-01"},
		{"2023-01-31", 30, "2023-03-02"},
		{"2024-12-15", 30, "2025-01-14"},
		{"2024-03-10", 0, "2024-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := time.Parse("2006-01-02", tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, core.DueDate(d, tt.days).Format("2006-01-02"))
		})
	}
}

func TestDueDate_DropsTimeOfDay(t *testing.T) {
	zurich, err := time.LoadLocation("Europe/Zurich")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// Crosses the spring DST switch; still whole calendar days.
	d := time.Date(2024, 3, 20, 23, 30, 0, 0, zurich)
	got := core.DueDate(d, 10)
	assert.Equal(t, time.Date(2024, 3, 30, 0, 0, 0, 0, zurich), got)
}

func TestPercentage_Of(t *testing.T) {
	p := core.MustPercentage("8.1")
	got, err := p.Of(20000)
	require.NoError(t, err)
	assert.Equal(t, int64(1620), got)

	got, err = core.MustPercentage("50").Of(-5)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got, "half away from zero")

	_, err = core.ParsePercentage("100.5")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = core.ParsePercentage("abc")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestMoney_Add(t *testing.T) {
	a := core.NewMoney(150, core.CHF)
	sum, err := a.Add(core.NewMoney(250, core.CHF))
	require.NoError(t, err)
	assert.Equal(t, int64(400), sum.Minor())
	assert.Equal(t, "4.00", sum.Format(core.SwissFormat))
	assert.Equal(t, "1'234,56", core.NewMoney(123456, core.EUR).Format(core.NumberFormat{Group: "'", Decimal: ","}))

	_, err = a.Add(core.NewMoney(1, core.EUR))
	assert.Error(t, err)

	_, err = core.NewMoney(math.MaxInt64, core.CHF).Add(core.NewMoney(1, core.CHF))
	assert.ErrorIs(t, err, core.ErrAmountOverflow)
}

func TestToMinor(t *testing.T) {
	got, err := core.ToMinor(dec("12.345"), core.CHF)
	require.NoError(t, err)
	assert.Equal(t, int64(1235), got)

	got, err = core.ToMinor(dec("-12.345"), core.CHF)
	require.NoError(t, err)
	assert.Equal(t, int64(-1235), got)

	got, err = core.ToMinor(dec("12.5"), core.JPY)
	require.NoError(t, err)
	assert.Equal(t, int64(13), got)
}

func TestLookupCurrency(t *testing.T) {
	c, err := core.LookupCurrency(" chf ")
	require.NoError(t, err)
	assert.Equal(t, core.CHF, c)

	_, err = core.LookupCurrency("XYZ")
	assert.ErrorIs(t, err, core.ErrUnknownCurrency)
}
