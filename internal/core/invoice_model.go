package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant is one company issuing invoices. IBAN is nil until banking details
// are confirmed; only then do its invoices get payment references.
type Tenant struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Currency         string          `json:"currency"`
	InvoicePrefix    string          `json:"invoice_prefix"`
	PaymentTermsDays int             `json:"payment_terms_days"`
	DefaultTaxRate   decimal.Decimal `json:"default_tax_rate_percent"`
	IBAN             *string         `json:"iban,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TenantInput is used when creating a tenant.
type TenantInput struct {
	Name             string
	Currency         string
	InvoicePrefix    string
	PaymentTermsDays int
	DefaultTaxRate   decimal.Decimal
}

// Invoice is an invoice header with its derived totals.
// Number and PaymentReference are immutable once set.
type Invoice struct {
	ID                  int64           `json:"id"`
	TenantID            int64           `json:"tenant_id"`
	Number              string          `json:"number"`
	CustomerName        string          `json:"customer_name"`
	InvoiceDate         time.Time       `json:"invoice_date"`
	PaymentTermsDays    int             `json:"payment_terms_days"`
	DueDate             time.Time       `json:"due_date"`
	Currency            string          `json:"currency"`
	TaxRatePercent      decimal.Decimal `json:"tax_rate_percent"` // fallback for items without their own rate
	PaymentReference    *string         `json:"payment_reference,omitempty"`
	SubtotalMinor       int64           `json:"subtotal_minor"`
	DiscountAmountMinor int64           `json:"discount_amount_minor"`
	TaxAmountMinor      int64           `json:"tax_amount_minor"`
	TotalMinor          int64           `json:"total_minor"`
	Notes               string          `json:"notes"`
	Items               []InvoiceItem   `json:"items"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// InvoiceItem is a persisted line with the amounts computed for it.
type InvoiceItem struct {
	ID                  int64           `json:"id"`
	InvoiceID           int64           `json:"invoice_id"`
	Position            int             `json:"position"`
	Name                string          `json:"name"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	TaxRatePercent      decimal.Decimal `json:"tax_rate_percent"`
	DiscountPercent     decimal.Decimal `json:"discount_percent"`
	SubtotalMinor       int64           `json:"subtotal_minor"`
	DiscountAmountMinor int64           `json:"discount_amount_minor"`
	TaxAmountMinor      int64           `json:"tax_amount_minor"`
	TotalMinor          int64           `json:"total_minor"`
}

// InvoiceDraft is used when creating an invoice. Zero or invalid optional
// fields fall back to the tenant's defaults.
type InvoiceDraft struct {
	CustomerName     string
	InvoiceDate      time.Time
	Currency         string
	TaxRatePercent   decimal.NullDecimal
	PaymentTermsDays *int
	Notes            string
	Lines            []LineItemInput
}
