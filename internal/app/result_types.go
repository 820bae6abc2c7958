package app

import "invoice-engine/internal/core"

// LineResult is returned by CalculateLine.
type LineResult struct {
	Currency string              `json:"currency"`
	Result   core.LineItemResult `json:"result"`
	Subtotal string              `json:"subtotal"`
	Discount string              `json:"discount"`
	Tax      string              `json:"tax"`
	Total    string              `json:"total"`
}

// TotalsResult is returned by CalculateTotals. Lines and TaxBreakdown are
// parallel to Totals.Lines and Totals.TaxBreakdown.
type TotalsResult struct {
	Totals       core.InvoiceTotals `json:"totals"`
	Subtotal     string             `json:"subtotal"`
	Discount     string             `json:"discount"`
	Tax          string             `json:"tax"`
	Total        string             `json:"total"`
	Lines        []FormattedLine    `json:"lines"`
	TaxBreakdown []FormattedTaxLine `json:"tax_breakdown"`
}

// FormattedLine holds the display amounts of one calculated line.
type FormattedLine struct {
	Tax   string `json:"tax"`
	Total string `json:"total"`
}

// FormattedTaxLine holds the display amounts of one tax breakdown row.
type FormattedTaxLine struct {
	Base string `json:"base"`
	Tax  string `json:"tax"`
}

// FormatResult is returned by FormatAmount.
type FormatResult struct {
	Formatted string `json:"formatted"`
}

// DueDateResult is returned by DueDate.
type DueDateResult struct {
	DueDate string `json:"due_date"`
}

// ReferenceResult is returned by GenerateReference.
type ReferenceResult struct {
	Reference string `json:"reference"`
	Formatted string `json:"formatted"`
}

// ReferenceCheckResult is returned by ValidateReference.
type ReferenceCheckResult struct {
	Reference string `json:"reference"`
	Valid     bool   `json:"valid"`
}

// InvoiceNumberResult is returned by NextInvoiceNumber.
// Number is the first of Numbers.
type InvoiceNumberResult struct {
	Number  string   `json:"number"`
	Numbers []string `json:"numbers,omitempty"`
}

// TenantResult is returned by tenant operations.
type TenantResult struct {
	Tenant             *core.Tenant `json:"tenant"`
	ReferencesAssigned int          `json:"references_assigned,omitempty"`
}

// InvoiceResult is returned by single-invoice operations.
// ItemTotals is parallel to Invoice.Items. Amounts are empty when the stored
// currency is not registered.
type InvoiceResult struct {
	Invoice    *core.Invoice `json:"invoice"`
	Subtotal   string        `json:"subtotal"`
	Discount   string        `json:"discount"`
	Tax        string        `json:"tax"`
	Total      string        `json:"total"`
	ItemTotals []string      `json:"item_totals"`
	DueDate    string        `json:"due_date"`
}

// InvoiceListResult is returned by ListInvoices. Totals is parallel to Invoices.
type InvoiceListResult struct {
	TenantID int64          `json:"tenant_id"`
	Invoices []core.Invoice `json:"invoices"`
	Totals   []string       `json:"totals"`
}
