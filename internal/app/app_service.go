package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoice-engine/internal/core"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Defaults are the engine settings applied when a request leaves them out.
type Defaults struct {
	Currency         core.Currency
	NumberFormat     core.NumberFormat
	ReferenceLayout  core.ReferenceLayout
	InvoicePrefix    string
	PaymentTermsDays int
}

type appService struct {
	invoices core.InvoiceService
	defaults Defaults
	now      func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
// invoices may be nil; persistence operations then return ErrNoDatabase.
func NewAppService(invoices core.InvoiceService, defaults Defaults) ApplicationService {
	return &appService{invoices: invoices, defaults: defaults, now: time.Now}
}

func (s *appService) currency(code string) (core.Currency, error) {
	if strings.TrimSpace(code) == "" {
		return s.defaults.Currency, nil
	}
	return core.LookupCurrency(code)
}

func (s *appService) format(minor int64, c core.Currency) string {
	return core.NewMoney(minor, c).Format(s.defaults.NumberFormat)
}

// CalculateLine computes the minor-unit amounts of one line.
func (s *appService) CalculateLine(ctx context.Context, req CalculateLineRequest) (*LineResult, error) {
	cur, err := s.currency(req.Currency)
	if err != nil {
		return nil, err
	}
	in, err := parseLine("line", req.Line)
	if err != nil {
		return nil, err
	}
	res, err := core.CalculateLineItem(in, cur)
	if err != nil {
		return nil, err
	}
	return &LineResult{
		Currency: cur.Code,
		Result:   res,
		Subtotal: s.format(res.SubtotalMinor, cur),
		Discount: s.format(res.DiscountAmountMinor, cur),
		Tax:      s.format(res.TaxAmountMinor, cur),
		Total:    s.format(res.TotalMinor, cur),
	}, nil
}

// CalculateTotals computes every non-blank line and the invoice totals.
func (s *appService) CalculateTotals(ctx context.Context, req CalculateTotalsRequest) (*TotalsResult, error) {
	cur, err := s.currency(req.Currency)
	if err != nil {
		return nil, err
	}
	fallback, err := parsePercent("fallback_tax_rate_percent", req.FallbackTaxRate)
	if err != nil {
		return nil, err
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return nil, err
	}
	totals, err := core.CalculateInvoiceTotals(lines, fallback, cur)
	if err != nil {
		return nil, err
	}
	res := &TotalsResult{
		Totals:       totals,
		Subtotal:     s.format(totals.SubtotalMinor, cur),
		Discount:     s.format(totals.DiscountAmountMinor, cur),
		Tax:          s.format(totals.TaxAmountMinor, cur),
		Total:        s.format(totals.TotalMinor, cur),
		Lines:        make([]FormattedLine, 0, len(totals.Lines)),
		TaxBreakdown: make([]FormattedTaxLine, 0, len(totals.TaxBreakdown)),
	}
	for _, l := range totals.Lines {
		res.Lines = append(res.Lines, FormattedLine{Tax: s.format(l.TaxAmountMinor, cur), Total: s.format(l.TotalMinor, cur)})
	}
	for _, t := range totals.TaxBreakdown {
		res.TaxBreakdown = append(res.TaxBreakdown, FormattedTaxLine{Base: s.format(t.BaseMinor, cur), Tax: s.format(t.TaxMinor, cur)})
	}
	return res, nil
}

// FormatAmount renders a minor-unit amount for display.
func (s *appService) FormatAmount(ctx context.Context, req FormatRequest) (*FormatResult, error) {
	cur, err := s.currency(req.Currency)
	if err != nil {
		return nil, err
	}
	f := s.defaults.NumberFormat
	if strings.TrimSpace(req.Style) != "" {
		if f, err = core.NumberFormatByName(req.Style); err != nil {
			return nil, &core.ValidationError{Field: "style", Value: req.Style, Message: err.Error()}
		}
	}
	return &FormatResult{Formatted: core.FormatMinorWith(req.AmountMinor, cur, f)}, nil
}

// DueDate adds calendar days to an invoice date.
func (s *appService) DueDate(ctx context.Context, req DueDateRequest) (*DueDateResult, error) {
	date, err := parseDate("invoice_date", req.InvoiceDate)
	if err != nil {
		return nil, err
	}
	if req.TermDays < 0 {
		return nil, &core.ValidationError{Field: "term_days", Value: req.TermDays, Message: "must not be negative"}
	}
	return &DueDateResult{DueDate: core.DueDate(date, req.TermDays).Format(dateLayout)}, nil
}

// GenerateReference builds the payment reference of a tenant/invoice pair.
func (s *appService) GenerateReference(ctx context.Context, req ReferenceRequest) (*ReferenceResult, error) {
	ref, err := s.defaults.ReferenceLayout.Generate(req.TenantID, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	return &ReferenceResult{Reference: ref, Formatted: core.FormatReference(ref)}, nil
}

// ValidateReference checks an inbound payment reference.
func (s *appService) ValidateReference(ctx context.Context, reference string) *ReferenceCheckResult {
	ref := core.NormalizeReference(reference)
	return &ReferenceCheckResult{Reference: ref, Valid: s.defaults.ReferenceLayout.Validate(ref)}
}

// maxNumberBatch caps InvoiceNumberRequest.Count.
const maxNumberBatch = 1000

// NextInvoiceNumber returns the number following req.LastIssued, or the next
// req.Count numbers when Count > 1.
func (s *appService) NextInvoiceNumber(ctx context.Context, req InvoiceNumberRequest) (*InvoiceNumberResult, error) {
	prefix := req.Prefix
	if prefix == "" {
		prefix = s.defaults.InvoicePrefix
	}
	if req.Count < 0 || req.Count > maxNumberBatch {
		return nil, &core.ValidationError{Field: "count", Value: req.Count, Message: fmt.Sprintf("must be between 1 and %d", maxNumberBatch)}
	}
	if req.Count <= 1 {
		number, err := core.AllocateInvoiceNumber(req.TenantID, prefix, req.Year, req.LastIssued)
		if err != nil {
			return nil, err
		}
		return &InvoiceNumberResult{Number: number}, nil
	}

	alloc := core.NewMemoryNumberAllocator()
	alloc.Seed(req.TenantID, prefix, req.Year, req.LastIssued)
	numbers, err := nextNumbers(ctx, alloc, req.TenantID, prefix, req.Year, req.Count)
	if err != nil {
		return nil, err
	}
	return &InvoiceNumberResult{Number: numbers[0], Numbers: numbers}, nil
}

func nextNumbers(ctx context.Context, alloc core.NumberAllocator, tenantID int64, prefix string, year, count int) ([]string, error) {
	numbers := make([]string, 0, count)
	for range count {
		n, err := alloc.Next(ctx, tenantID, prefix, year)
		if err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// CreateTenant registers a tenant.
func (s *appService) CreateTenant(ctx context.Context, req CreateTenantRequest) (*TenantResult, error) {
	if s.invoices == nil {
		return nil, ErrNoDatabase
	}
	rate, err := parsePercent("default_tax_rate_percent", req.DefaultTaxRate)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if strings.TrimSpace(currency) == "" {
		currency = s.defaults.Currency.Code
	}
	prefix := strings.TrimSpace(req.InvoicePrefix)
	if prefix == "" {
		prefix = s.defaults.InvoicePrefix
	}
	terms := s.defaults.PaymentTermsDays
	if req.PaymentTermsDays != nil {
		terms = *req.PaymentTermsDays
	}

	t, err := s.invoices.CreateTenant(ctx, core.TenantInput{
		Name:             req.Name,
		Currency:         currency,
		InvoicePrefix:    prefix,
		PaymentTermsDays: terms,
		DefaultTaxRate:   rate.Decimal(),
	})
	if err != nil {
		return nil, err
	}
	return &TenantResult{Tenant: t}, nil
}

// GetTenant returns a tenant by id.
func (s *appService) GetTenant(ctx context.Context, tenantID int64) (*TenantResult, error) {
	if s.invoices == nil {
		return nil, ErrNoDatabase
	}
	t, err := s.invoices.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &TenantResult{Tenant: t}, nil
}

// ConfigureBanking confirms the tenant's IBAN.
func (s *appService) ConfigureBanking(ctx context.Context, tenantID int64, req BankingRequest) (*TenantResult, error) {
	if s.invoices == nil {
		return nil, ErrNoDatabase
	}
	t, assigned, err := s.invoices.ConfigureBanking(ctx, tenantID, req.IBAN)
	if err != nil {
		return nil, err
	}
	return &TenantResult{Tenant: t, ReferencesAssigned: assigned}, nil
}

// CreateInvoice allocates a number and persists a new invoice.
func (s *appService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error) {
	if s.invoices == nil {
		return nil, ErrNoDatabase
	}
	date := s.now()
	if strings.TrimSpace(req.InvoiceDate) != "" {
		var err error
		if date, err = parseDate("invoice_date", req.InvoiceDate); err != nil {
			return nil, err
		}
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var rate decimal.NullDecimal
	if req.TaxRatePercent != nil {
		p, err := parsePercent("tax_rate_percent", *req.TaxRatePercent)
		if err != nil {
			return nil, err
		}
		rate = decimal.NewNullDecimal(p.Decimal())
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return nil, err
	}

	inv, err := s.invoices.CreateInvoice(ctx, req.TenantID, core.InvoiceDraft{
		CustomerName:     strings.TrimSpace(req.CustomerName),
		InvoiceDate:      date,
		Currency:         req.Currency,
		TaxRatePercent:   rate,
		PaymentTermsDays: req.PaymentTermsDays,
		Notes:            req.Notes,
		Lines:            lines,
	})
	if err != nil {
		return nil, err
	}
	return s.invoiceResult(inv), nil
}

// ReplaceInvoiceItems replaces all items and recomputes the totals.
func (s *appService) ReplaceInvoiceItems(ctx context.Context, req ReplaceItemsRequest) (*InvoiceResult, error) {
	if s.invoices == nil {
		return nil, ErrNoDatabase
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoices.ReplaceItems(ctx, req.TenantID, req.InvoiceID, lines)
	if err != nil {
		return nil, err
	}
	return s.invoiceResult(inv), nil
}

// GetInvoice returns one invoice with its items.
func (s *appService) GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*InvoiceResult, error) {
	if s.invoices == nil {
		return nil, ErrNoDatabase
	}
	inv, err := s.invoices.GetInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.invoiceResult(inv), nil
}

// ListInvoices returns a tenant's invoices.
func (s *appService) ListInvoices(ctx context.Context, tenantID int64) (*InvoiceListResult, error) {
	if s.invoices == nil {
		return nil, ErrNoDatabase
	}
	invoices, err := s.invoices.ListInvoices(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	res := &InvoiceListResult{TenantID: tenantID, Invoices: invoices, Totals: make([]string, len(invoices))}
	for i, inv := range invoices {
		if cur, err := core.LookupCurrency(inv.Currency); err == nil {
			res.Totals[i] = s.format(inv.TotalMinor, cur)
		} else {
			res.Totals[i] = fmt.Sprintf("%d", inv.TotalMinor)
		}
	}
	return res, nil
}

// DeleteInvoice deletes an invoice.
func (s *appService) DeleteInvoice(ctx context.Context, tenantID, invoiceID int64) error {
	if s.invoices == nil {
		return ErrNoDatabase
	}
	return s.invoices.DeleteInvoice(ctx, tenantID, invoiceID)
}

// FindInvoiceByReference resolves a payment reference to its invoice.
func (s *appService) FindInvoiceByReference(ctx context.Context, reference string) (*InvoiceResult, error) {
	if s.invoices == nil {
		return nil, ErrNoDatabase
	}
	inv, err := s.invoices.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.invoiceResult(inv), nil
}

func (s *appService) invoiceResult(inv *core.Invoice) *InvoiceResult {
	res := &InvoiceResult{Invoice: inv, DueDate: inv.DueDate.Format(dateLayout), ItemTotals: make([]string, len(inv.Items))}
	cur, err := core.LookupCurrency(inv.Currency)
	if err != nil {
		return res
	}
	res.Subtotal = s.format(inv.SubtotalMinor, cur)
	res.Discount = s.format(inv.DiscountAmountMinor, cur)
	res.Tax = s.format(inv.TaxAmountMinor, cur)
	res.Total = s.format(inv.TotalMinor, cur)
	for i, it := range inv.Items {
		res.ItemTotals[i] = s.format(it.TotalMinor, cur)
	}
	return res
}

// ── Request parsing ──────────────────────────────────────────────────────────

func parseLines(reqs []LineRequest) ([]core.LineItemInput, error) {
	lines := make([]core.LineItemInput, 0, len(reqs))
	for i, l := range reqs {
		if strings.TrimSpace(l.Name) == "" {
			// Placeholder row: kept for its position, skipped by the engine unparsed.
			lines = append(lines, core.LineItemInput{Name: l.Name})
			continue
		}
		in, err := parseLine(fmt.Sprintf("lines[%d]", i), l)
		if err != nil {
			return nil, err
		}
		lines = append(lines, in)
	}
	return lines, nil
}

// parseLine converts a form line. Empty numeric fields read as zero.
func parseLine(field string, l LineRequest) (core.LineItemInput, error) {
	qty, err := parseDecimalOrZero(field+".quantity", l.Quantity)
	if err != nil {
		return core.LineItemInput{}, err
	}
	price, err := parseDecimalOrZero(field+".unit_price", l.UnitPrice)
	if err != nil {
		return core.LineItemInput{}, err
	}
	discount, err := parseDecimalOrZero(field+".discount_percent", l.DiscountPercent)
	if err != nil {
		return core.LineItemInput{}, err
	}
	in := core.LineItemInput{
		Name:            l.Name,
		Quantity:        qty,
		UnitPrice:       price,
		DiscountPercent: discount,
	}
	if l.TaxRatePercent != nil && strings.TrimSpace(*l.TaxRatePercent) != "" {
		rate, err := parseDecimalOrZero(field+".tax_rate_percent", *l.TaxRatePercent)
		if err != nil {
			return core.LineItemInput{}, err
		}
		in.TaxRatePercent = decimal.NewNullDecimal(rate)
	}
	return in, nil
}

func parseDecimalOrZero(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &core.ValidationError{Field: field, Value: s, Message: "not a decimal number"}
	}
	return d, nil
}

// parsePercent reads a 0..100 percentage with at most 4 decimals; empty input is zero.
func parsePercent(field, s string) (core.Percentage, error) {
	d, err := parseDecimalOrZero(field, s)
	if err != nil {
		return core.Percentage{}, err
	}
	p, err := core.NewPercentage(d)
	if err != nil {
		msg := err.Error()
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			msg = ve.Message
		}
		return core.Percentage{}, &core.ValidationError{Field: field, Value: s, Message: msg}
	}
	return p, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: field, Value: s, Message: "expected YYYY-MM-DD"}
	}
	return t, nil
}
