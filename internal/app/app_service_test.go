package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"invoice-engine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInvoiceService is a mock implementation of core.InvoiceService.
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateTenant(ctx context.Context, in core.TenantInput) (*core.Tenant, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Tenant), args.Error(1)
}

func (m *MockInvoiceService) GetTenant(ctx context.Context, tenantID int64) (*core.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Tenant), args.Error(1)
}

func (m *MockInvoiceService) ConfigureBanking(ctx context.Context, tenantID int64, iban string) (*core.Tenant, int, error) {
	args := m.Called(ctx, tenantID, iban)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).(*core.Tenant), args.Int(1), args.Error(2)
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, tenantID int64, draft core.InvoiceDraft) (*core.Invoice, error) {
	args := m.Called(ctx, tenantID, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ReplaceItems(ctx context.Context, tenantID, invoiceID int64, lines []core.LineItemInput) (*core.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceID, lines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*core.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, tenantID int64) ([]core.Invoice, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.Invoice), args.Error(1)
}

func (m *MockInvoiceService) DeleteInvoice(ctx context.Context, tenantID, invoiceID int64) error {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Error(0)
}

func (m *MockInvoiceService) FindByReference(ctx context.Context, reference string) (*core.Invoice, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Invoice), args.Error(1)
}

func testDefaults() Defaults {
	return Defaults{
		Currency:         core.CHF,
		NumberFormat:     core.SwissFormat,
		ReferenceLayout:  core.DefaultReferenceLayout,
		InvoicePrefix:    "INV",
		PaymentTermsDays: 30,
	}
}

func strPtr(s string) *string { return &s }

func TestCalculateLine(t *testing.T) {
	svc := NewAppService(nil, testDefaults())

	res, err := svc.CalculateLine(context.Background(), CalculateLineRequest{
		Line: LineRequest{Name: "Consulting", Quantity: "2", UnitPrice: "100.00", TaxRatePercent: strPtr("8.1")},
	})
	require.NoError(t, err)
	assert.Equal(t, "CHF", res.Currency)
	assert.Equal(t, int64(21620), res.Result.TotalMinor)
	assert.Equal(t, "200.00", res.Subtotal)
	assert.Equal(t, "16.20", res.Tax)
	assert.Equal(t, "216.20", res.Total)
}

func TestCalculateLine_ValidationErrors(t *testing.T) {
	svc := NewAppService(nil, testDefaults())
	ctx := context.Background()

	_, err := svc.CalculateLine(ctx, CalculateLineRequest{Line: LineRequest{Name: "x", Quantity: "two", UnitPrice: "1"}})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "line.quantity", ve.Field)

	_, err = svc.CalculateLine(ctx, CalculateLineRequest{Line: LineRequest{Name: "x", Quantity: "1", UnitPrice: "-1"}})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = svc.CalculateLine(ctx, CalculateLineRequest{Currency: "XXX", Line: LineRequest{Name: "x", Quantity: "1", UnitPrice: "1"}})
	assert.ErrorIs(t, err, core.ErrUnknownCurrency)
}

func TestCalculateTotals_SkipsBlankRowsAndUsesFallback(t *testing.T) {
	svc := NewAppService(nil, testDefaults())

	res, err := svc.CalculateTotals(context.Background(), CalculateTotalsRequest{
		FallbackTaxRate: "8.1",
		Lines: []LineRequest{
			{Name: "Consulting", Quantity: "2", UnitPrice: "100.00"},
			{Name: "  ", Quantity: "", UnitPrice: ""},
			{Name: "Books", Quantity: "3", UnitPrice: "19.90", TaxRatePercent: strPtr("2.6")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25970), res.Totals.SubtotalMinor)
	assert.Equal(t, int64(1775), res.Totals.TaxAmountMinor)
	assert.Equal(t, int64(27745), res.Totals.TotalMinor)
	assert.Equal(t, "277.45", res.Total)
	require.Len(t, res.Totals.Lines, 2)
	assert.Equal(t, 2, res.Totals.Lines[1].Index)
	require.Len(t, res.Totals.TaxBreakdown, 2)
}

func TestCalculateTotals_BlankRowIgnoresOtherFields(t *testing.T) {
	svc := NewAppService(nil, testDefaults())

	res, err := svc.CalculateTotals(context.Background(), CalculateTotalsRequest{
		Lines: []LineRequest{
			{Name: "Consulting", Quantity: "1", UnitPrice: "100.00"},
			{Name: "  ", Quantity: "n/a", UnitPrice: "??", DiscountPercent: "-5", TaxRatePercent: strPtr("abc")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), res.Totals.TotalMinor)
	assert.Len(t, res.Totals.Lines, 1)
}

func TestCalculateTotals_FormatsEveryAmountWithConfiguredStyle(t *testing.T) {
	d := testDefaults()
	d.NumberFormat = core.GermanFormat
	svc := NewAppService(nil, d)

	res, err := svc.CalculateTotals(context.Background(), CalculateTotalsRequest{
		FallbackTaxRate: "10",
		Lines:           []LineRequest{{Name: "Machine", Quantity: "1", UnitPrice: "1234.56"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, FormattedLine{Tax: "123,46", Total: "1.358,02"}, res.Lines[0])
	require.Len(t, res.TaxBreakdown, 1)
	assert.Equal(t, FormattedTaxLine{Base: "1.234,56", Tax: "123,46"}, res.TaxBreakdown[0])
	assert.Equal(t, "1.234,56", res.Subtotal)
}

func TestCalculateTotals_RejectsBadFallback(t *testing.T) {
	svc := NewAppService(nil, testDefaults())
	_, err := svc.CalculateTotals(context.Background(), CalculateTotalsRequest{FallbackTaxRate: "150"})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "fallback_tax_rate_percent", ve.Field)

	_, err = svc.CalculateTotals(context.Background(), CalculateTotalsRequest{FallbackTaxRate: "8.10005"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "fallback_tax_rate_percent", ve.Field)
	assert.Equal(t, "at most 4 fractional digits", ve.Message)
}

func TestFormatAmount(t *testing.T) {
	svc := NewAppService(nil, testDefaults())
	ctx := context.Background()

	res, err := svc.FormatAmount(ctx, FormatRequest{AmountMinor: 123456})
	require.NoError(t, err)
	assert.Equal(t, "1'234.56", res.Formatted)

	res, err = svc.FormatAmount(ctx, FormatRequest{AmountMinor: 123456, Currency: "EUR", Style: "german"})
	require.NoError(t, err)
	assert.Equal(t, "1.234,56", res.Formatted)

	_, err = svc.FormatAmount(ctx, FormatRequest{AmountMinor: 1, Style: "roman"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDueDate(t *testing.T) {
	svc := NewAppService(nil, testDefaults())
	ctx := context.Background()

	res, err := svc.DueDate(ctx, DueDateRequest{InvoiceDate: "2024-01-31", TermDays: 30})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", res.DueDate)

	_, err = svc.DueDate(ctx, DueDateRequest{InvoiceDate: "31.01.2024", TermDays: 30})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = svc.DueDate(ctx, DueDateRequest{InvoiceDate: "2024-01-31", TermDays: -1})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestReferences(t *testing.T) {
	svc := NewAppService(nil, testDefaults())
	ctx := context.Background()

	res, err := svc.GenerateReference(ctx, ReferenceRequest{TenantID: 42, InvoiceID: 1337})
	require.NoError(t, err)
	assert.Equal(t, "00004200000000000000013377", res.Reference)
	assert.Equal(t, "0 00042 00000 00000 00000 13377", res.Formatted)

	check := svc.ValidateReference(ctx, res.Formatted)
	assert.True(t, check.Valid)
	assert.Equal(t, res.Reference, check.Reference)

	assert.False(t, svc.ValidateReference(ctx, "00004200000000000000013378").Valid)
	assert.False(t, svc.ValidateReference(ctx, "not a reference").Valid)

	_, err = svc.GenerateReference(ctx, ReferenceRequest{TenantID: 1_000_000, InvoiceID: 1})
	assert.ErrorIs(t, err, core.ErrReferenceOverflow)
}

func TestNextInvoiceNumber(t *testing.T) {
	svc := NewAppService(nil, testDefaults())
	ctx := context.Background()

	res, err := svc.NextInvoiceNumber(ctx, InvoiceNumberRequest{TenantID: 1, Year: 2024, LastIssued: "INV2024-0041"})
	require.NoError(t, err)
	assert.Equal(t, "INV2024-0042", res.Number)

	res, err = svc.NextInvoiceNumber(ctx, InvoiceNumberRequest{TenantID: 1, Prefix: "RE", Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, "RE2025-0001", res.Number)
	assert.Empty(t, res.Numbers)
}

func TestNextInvoiceNumber_Batch(t *testing.T) {
	svc := NewAppService(nil, testDefaults())
	ctx := context.Background()

	res, err := svc.NextInvoiceNumber(ctx, InvoiceNumberRequest{TenantID: 1, Year: 2024, LastIssued: "INV2024-9998", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, "INV2024-9999", res.Number)
	assert.Equal(t, []string{"INV2024-9999", "INV2024-10000", "INV2024-10001"}, res.Numbers)

	_, err = svc.NextInvoiceNumber(ctx, InvoiceNumberRequest{TenantID: 1, Year: 2024, Count: 1001})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = svc.NextInvoiceNumber(ctx, InvoiceNumberRequest{TenantID: 1, Year: 2024, LastIssued: "INV2023-0001", Count: 2})
	assert.ErrorIs(t, err, core.ErrInvalidInvoiceNumber)
}

func TestPersistenceWithoutDatabase(t *testing.T) {
	svc := NewAppService(nil, testDefaults())
	ctx := context.Background()

	_, err := svc.CreateTenant(ctx, CreateTenantRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = svc.GetTenant(ctx, 1)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = svc.ConfigureBanking(ctx, 1, BankingRequest{IBAN: "CH93"})
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = svc.CreateInvoice(ctx, CreateInvoiceRequest{TenantID: 1})
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = svc.ReplaceInvoiceItems(ctx, ReplaceItemsRequest{TenantID: 1, InvoiceID: 1})
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = svc.GetInvoice(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = svc.ListInvoices(ctx, 1)
	assert.ErrorIs(t, err, ErrNoDatabase)
	assert.ErrorIs(t, svc.DeleteInvoice(ctx, 1, 1), ErrNoDatabase)
	_, err = svc.FindInvoiceByReference(ctx, "x")
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestCreateTenant_AppliesDefaults(t *testing.T) {
	m := new(MockInvoiceService)
	svc := NewAppService(m, testDefaults())

	want := core.TenantInput{
		Name:             "Muster AG",
		Currency:         "CHF",
		InvoicePrefix:    "INV",
		PaymentTermsDays: 30,
		DefaultTaxRate:   decimal.RequireFromString("8.1"),
	}
	m.On("CreateTenant", mock.Anything, mock.MatchedBy(func(in core.TenantInput) bool {
		return in.Name == want.Name && in.Currency == want.Currency && in.InvoicePrefix == want.InvoicePrefix &&
			in.PaymentTermsDays == want.PaymentTermsDays && in.DefaultTaxRate.Equal(want.DefaultTaxRate)
	})).Return(&core.Tenant{ID: 7, Name: "Muster AG", Currency: "CHF"}, nil)

	res, err := svc.CreateTenant(context.Background(), CreateTenantRequest{Name: "Muster AG", DefaultTaxRate: "8.1"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Tenant.ID)
	m.AssertExpectations(t)
}

func TestConfigureBanking_ReportsAssignedReferences(t *testing.T) {
	m := new(MockInvoiceService)
	svc := NewAppService(m, testDefaults())

	m.On("ConfigureBanking", mock.Anything, int64(3), "CH93 0076 2011 6238 5295 7").
		Return(&core.Tenant{ID: 3}, 4, nil)

	res, err := svc.ConfigureBanking(context.Background(), 3, BankingRequest{IBAN: "CH93 0076 2011 6238 5295 7"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.ReferencesAssigned)
	m.AssertExpectations(t)
}

func TestCreateInvoice_BuildsDraft(t *testing.T) {
	m := new(MockInvoiceService)
	s := NewAppService(m, testDefaults()).(*appService)
	s.now = func() time.Time { return time.Date(2024, 3, 5, 22, 30, 0, 0, time.FixedZone("CET", 3600)) }

	due := time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC)
	m.On("CreateInvoice", mock.Anything, int64(1), mock.MatchedBy(func(d core.InvoiceDraft) bool {
		return d.CustomerName == "Muster AG" &&
			d.InvoiceDate.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) &&
			d.TaxRatePercent.Valid && d.TaxRatePercent.Decimal.Equal(decimal.RequireFromString("8.1")) &&
			len(d.Lines) == 2 && !d.Lines[1].TaxRatePercent.Valid
	})).Return(&core.Invoice{ID: 9, Number: "INV2024-0001", Currency: "CHF", TotalMinor: 123456, DueDate: due}, nil)

	res, err := s.CreateInvoice(context.Background(), CreateInvoiceRequest{
		TenantID:       1,
		CustomerName:   "  Muster AG ",
		TaxRatePercent: strPtr("8.1"),
		Lines: []LineRequest{
			{Name: "A", Quantity: "1", UnitPrice: "10"},
			{Name: "", TaxRatePercent: strPtr("")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV2024-0001", res.Invoice.Number)
	assert.Equal(t, "1'234.56", res.Total)
	assert.Empty(t, res.ItemTotals)
	assert.Equal(t, "2024-04-04", res.DueDate)
	m.AssertExpectations(t)
}

func TestCreateInvoice_RejectsBadInputBeforeStorage(t *testing.T) {
	m := new(MockInvoiceService)
	svc := NewAppService(m, testDefaults())
	ctx := context.Background()

	_, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{TenantID: 1, InvoiceDate: "2024/01/01"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = svc.CreateInvoice(ctx, CreateInvoiceRequest{TenantID: 1, Lines: []LineRequest{{Name: "x", UnitPrice: "abc"}}})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "lines[0].unit_price", ve.Field)

	m.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetInvoice_FormatsItems(t *testing.T) {
	m := new(MockInvoiceService)
	d := testDefaults()
	d.NumberFormat = core.GermanFormat
	svc := NewAppService(m, d)

	m.On("GetInvoice", mock.Anything, int64(1), int64(2)).Return(&core.Invoice{
		ID: 2, Currency: "CHF", SubtotalMinor: 123456, TaxAmountMinor: 10000, TotalMinor: 133456,
		Items: []core.InvoiceItem{{Position: 1, TotalMinor: 133456}},
	}, nil)

	res, err := svc.GetInvoice(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "1.234,56", res.Subtotal)
	assert.Equal(t, "0,00", res.Discount)
	assert.Equal(t, "100,00", res.Tax)
	assert.Equal(t, []string{"1.334,56"}, res.ItemTotals)
	m.AssertExpectations(t)
}

func TestGetInvoice_PassesErrorsThrough(t *testing.T) {
	m := new(MockInvoiceService)
	svc := NewAppService(m, testDefaults())

	notFound := fmt.Errorf("invoice 2: %w", core.ErrNotFound)
	m.On("GetInvoice", mock.Anything, int64(1), int64(2)).Return(nil, notFound)

	_, err := svc.GetInvoice(context.Background(), 1, 2)
	assert.ErrorIs(t, err, core.ErrNotFound)
	m.AssertExpectations(t)
}

func TestListAndDelete(t *testing.T) {
	m := new(MockInvoiceService)
	svc := NewAppService(m, testDefaults())
	ctx := context.Background()

	m.On("ListInvoices", mock.Anything, int64(5)).Return([]core.Invoice{
		{ID: 1, Currency: "CHF", TotalMinor: 123456},
		{ID: 2, Currency: "XXX", TotalMinor: 99},
	}, nil)
	m.On("DeleteInvoice", mock.Anything, int64(5), int64(2)).Return(nil)

	list, err := svc.ListInvoices(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), list.TenantID)
	assert.Len(t, list.Invoices, 2)
	assert.Equal(t, []string{"1'234.56", "99"}, list.Totals)

	require.NoError(t, svc.DeleteInvoice(ctx, 5, 2))
	m.AssertExpectations(t)
}

func TestSchemas(t *testing.T) {
	names := SchemaNames()
	assert.Contains(t, names, "invoice")
	assert.Contains(t, names, "calculate-line")
	assert.IsIncreasing(t, names)

	for _, name := range names {
		s, err := RequestSchema(name)
		require.NoError(t, err, name)
		assert.NotNil(t, s.Properties, name)
	}

	s, err := RequestSchema("invoice")
	require.NoError(t, err)
	_, ok := s.Properties.Get("tenant_id")
	assert.False(t, ok, "path parameters are not part of the body")
	_, ok = s.Properties.Get("lines")
	assert.True(t, ok)

	_, err = RequestSchema("nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
