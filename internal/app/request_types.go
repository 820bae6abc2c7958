package app

// Amounts, quantities and percentages travel as decimal strings so no float
// ever touches a monetary value.

// LineRequest is one invoice line as entered in a form.
type LineRequest struct {
	Name            string  `json:"name" jsonschema_description:"Line description. A blank name marks a placeholder row that is ignored."`
	Quantity        string  `json:"quantity" jsonschema_description:"Non-negative decimal with at most 4 fractional digits, e.g. '2' or '1.5'"`
	UnitPrice       string  `json:"unit_price" jsonschema_description:"Non-negative unit price in major currency units, e.g. '100.00'"`
	TaxRatePercent  *string `json:"tax_rate_percent,omitempty" jsonschema_description:"Tax rate 0-100, e.g. '8.1'. Omit to use the invoice fallback rate."`
	DiscountPercent string  `json:"discount_percent,omitempty" jsonschema_description:"Discount 0-100, defaults to 0"`
}

// CalculateLineRequest is the input of CalculateLine.
type CalculateLineRequest struct {
	Currency string      `json:"currency,omitempty" jsonschema_description:"ISO currency code; defaults to the configured currency"`
	Line     LineRequest `json:"line"`
}

// CalculateTotalsRequest is the input of CalculateTotals.
type CalculateTotalsRequest struct {
	Currency        string        `json:"currency,omitempty" jsonschema_description:"ISO currency code; defaults to the configured currency"`
	FallbackTaxRate string        `json:"fallback_tax_rate_percent,omitempty" jsonschema_description:"Rate for lines without their own tax rate, defaults to 0"`
	Lines           []LineRequest `json:"lines"`
}

// FormatRequest is the input of FormatAmount.
type FormatRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency,omitempty"`
	Style       string `json:"style,omitempty" jsonschema:"enum=swiss,enum=english,enum=german,enum=plain" jsonschema_description:"Grouping style; defaults to the configured style"`
}

// DueDateRequest is the input of DueDate.
type DueDateRequest struct {
	InvoiceDate string `json:"invoice_date" jsonschema_description:"YYYY-MM-DD"`
	TermDays    int    `json:"term_days" jsonschema:"minimum=0"`
}

// ReferenceRequest is the input of GenerateReference.
type ReferenceRequest struct {
	TenantID  uint64 `json:"tenant_id"`
	InvoiceID uint64 `json:"invoice_id"`
}

// InvoiceNumberRequest is the input of NextInvoiceNumber.
type InvoiceNumberRequest struct {
	TenantID   int64  `json:"tenant_id"`
	Prefix     string `json:"prefix,omitempty" jsonschema_description:"Defaults to the configured prefix"`
	Year       int    `json:"year"`
	LastIssued string `json:"last_issued,omitempty" jsonschema_description:"Highest number issued so far in this tenant/prefix/year, empty if none"`
	Count      int    `json:"count,omitempty" jsonschema:"minimum=0,maximum=1000" jsonschema_description:"How many consecutive numbers to return, default 1"`
}

// CreateTenantRequest is the input of CreateTenant.
type CreateTenantRequest struct {
	Name             string `json:"name"`
	Currency         string `json:"currency,omitempty"`
	InvoicePrefix    string `json:"invoice_prefix,omitempty"`
	PaymentTermsDays *int   `json:"payment_terms_days,omitempty" jsonschema:"minimum=0"`
	DefaultTaxRate   string `json:"default_tax_rate_percent,omitempty"`
}

// BankingRequest is the input of ConfigureBanking.
type BankingRequest struct {
	IBAN string `json:"iban"`
}

// CreateInvoiceRequest is the input of CreateInvoice.
type CreateInvoiceRequest struct {
	TenantID         int64         `json:"-"`
	CustomerName     string        `json:"customer_name"`
	InvoiceDate      string        `json:"invoice_date,omitempty" jsonschema_description:"YYYY-MM-DD, defaults to today"`
	Currency         string        `json:"currency,omitempty" jsonschema_description:"Defaults to the tenant currency"`
	TaxRatePercent   *string       `json:"tax_rate_percent,omitempty" jsonschema_description:"Fallback rate for lines without their own; defaults to the tenant rate"`
	PaymentTermsDays *int          `json:"payment_terms_days,omitempty" jsonschema:"minimum=0"`
	Notes            string        `json:"notes,omitempty"`
	Lines            []LineRequest `json:"lines"`
}

// ReplaceItemsRequest is the input of ReplaceInvoiceItems.
type ReplaceItemsRequest struct {
	TenantID  int64         `json:"-"`
	InvoiceID int64         `json:"-"`
	Lines     []LineRequest `json:"lines"`
}
