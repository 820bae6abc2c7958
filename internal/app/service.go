package app

import (
	"context"
	"errors"
)

// ErrNoDatabase is returned by persistence operations when the service was
// built without a database.
var ErrNoDatabase = errors.New("no database configured")

// ApplicationService is the single interface all adapters (CLI, Web) call.
// Implementations must contain no display logic of any kind.
type ApplicationService interface {
	// CalculateLine computes the minor-unit amounts of one line.
	CalculateLine(ctx context.Context, req CalculateLineRequest) (*LineResult, error)

	// CalculateTotals computes every non-blank line and the invoice totals.
	CalculateTotals(ctx context.Context, req CalculateTotalsRequest) (*TotalsResult, error)

	// FormatAmount renders a minor-unit amount for display.
	FormatAmount(ctx context.Context, req FormatRequest) (*FormatResult, error)

	// DueDate adds calendar days to an invoice date.
	DueDate(ctx context.Context, req DueDateRequest) (*DueDateResult, error)

	// GenerateReference builds the payment reference of a tenant/invoice pair.
	GenerateReference(ctx context.Context, req ReferenceRequest) (*ReferenceResult, error)

	// ValidateReference checks an inbound payment reference. Malformed input is
	// reported as invalid, never as an error.
	ValidateReference(ctx context.Context, reference string) *ReferenceCheckResult

	// NextInvoiceNumber returns the number following req.LastIssued. It does not
	// reserve anything; CreateInvoice allocates numbers under a row lock.
	NextInvoiceNumber(ctx context.Context, req InvoiceNumberRequest) (*InvoiceNumberResult, error)

	// CreateTenant registers a tenant.
	CreateTenant(ctx context.Context, req CreateTenantRequest) (*TenantResult, error)

	// GetTenant returns a tenant by id.
	GetTenant(ctx context.Context, tenantID int64) (*TenantResult, error)

	// ConfigureBanking confirms the tenant's IBAN and assigns payment
	// references to its invoices that have none yet.
	ConfigureBanking(ctx context.Context, tenantID int64, req BankingRequest) (*TenantResult, error)

	// CreateInvoice allocates a number and persists a new invoice.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error)

	// ReplaceInvoiceItems replaces all items and recomputes the totals.
	ReplaceInvoiceItems(ctx context.Context, req ReplaceItemsRequest) (*InvoiceResult, error)

	// GetInvoice returns one invoice with its items.
	GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*InvoiceResult, error)

	// ListInvoices returns a tenant's invoices, newest first, without items.
	ListInvoices(ctx context.Context, tenantID int64) (*InvoiceListResult, error)

	// DeleteInvoice deletes an invoice; its number is not reused.
	DeleteInvoice(ctx context.Context, tenantID, invoiceID int64) error

	// FindInvoiceByReference resolves a payment reference to its invoice.
	FindInvoiceByReference(ctx context.Context, reference string) (*InvoiceResult, error)
}
