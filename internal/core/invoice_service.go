package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceService persists tenants and invoices. All monetary fields are
// recomputed by the calculation engine before they are written.
type InvoiceService interface {
	CreateTenant(ctx context.Context, in TenantInput) (*Tenant, error)
	GetTenant(ctx context.Context, tenantID int64) (*Tenant, error)
	// ConfigureBanking stores the tenant's IBAN and gives every invoice that
	// has no payment reference yet its reference. Returns how many were assigned.
	ConfigureBanking(ctx context.Context, tenantID int64, iban string) (*Tenant, int, error)

	// CreateInvoice allocates the number, computes totals and due date, and
	// inserts header and items in one transaction.
	CreateInvoice(ctx context.Context, tenantID int64, draft InvoiceDraft) (*Invoice, error)
	// ReplaceItems swaps the full item set and recomputes every total.
	ReplaceItems(ctx context.Context, tenantID, invoiceID int64, lines []LineItemInput) (*Invoice, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*Invoice, error)
	ListInvoices(ctx context.Context, tenantID int64) ([]Invoice, error)
	// DeleteInvoice removes an invoice. Its number stays consumed.
	DeleteInvoice(ctx context.Context, tenantID, invoiceID int64) error
	// FindByReference resolves an inbound payment reference to its invoice.
	FindByReference(ctx context.Context, reference string) (*Invoice, error)
}

type invoiceService struct {
	pool      *pgxpool.Pool
	numbering NumberingService
	layout    ReferenceLayout
}

func NewInvoiceService(pool *pgxpool.Pool, numbering NumberingService, layout ReferenceLayout) InvoiceService {
	return &invoiceService{pool: pool, numbering: numbering, layout: layout}
}

// pgxRowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxRowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ── Tenants ──────────────────────────────────────────────────────────────────

const tenantColumns = `id, name, currency, invoice_prefix, payment_terms_days, default_tax_rate_percent, iban, created_at`

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Currency, &t.InvoicePrefix, &t.PaymentTermsDays, &t.DefaultTaxRate, &t.IBAN, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *invoiceService) CreateTenant(ctx context.Context, in TenantInput) (*Tenant, error) {
	if isBlank(in.Name) {
		return nil, invalid("name", in.Name, "must not be blank")
	}
	currency, err := LookupCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if _, err := NewPercentage(in.DefaultTaxRate); err != nil {
		return nil, withField("default_tax_rate_percent", err)
	}
	if in.PaymentTermsDays < 0 {
		return nil, invalid("payment_terms_days", in.PaymentTermsDays, "must not be negative")
	}

	t, err := scanTenant(s.pool.QueryRow(ctx, `
		INSERT INTO tenants (name, currency, invoice_prefix, payment_terms_days, default_tax_rate_percent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+tenantColumns,
		strings.TrimSpace(in.Name), currency.Code, in.InvoicePrefix, in.PaymentTermsDays, in.DefaultTaxRate,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return t, nil
}

func (s *invoiceService) GetTenant(ctx context.Context, tenantID int64) (*Tenant, error) {
	return getTenantQ(ctx, s.pool, tenantID, "")
}

func getTenantQ(ctx context.Context, q pgxRowQuerier, tenantID int64, lock string) (*Tenant, error) {
	t, err := scanTenant(q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1 `+lock, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tenant %d: %w", tenantID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch tenant %d: %w", tenantID, err)
	}
	return t, nil
}

func (s *invoiceService) ConfigureBanking(ctx context.Context, tenantID int64, iban string) (*Tenant, int, error) {
	iban = strings.ToUpper(NormalizeReference(iban))
	if iban == "" {
		return nil, 0, invalid("iban", iban, "must not be blank")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "UPDATE tenants SET iban = $1 WHERE id = $2", iban, tenantID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to store banking details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, 0, fmt.Errorf("tenant %d: %w", tenantID, ErrNotFound)
	}

	rows, err := tx.Query(ctx, `
		SELECT id FROM invoices
		WHERE tenant_id = $1 AND payment_reference IS NULL
		ORDER BY id
		FOR UPDATE
	`, tenantID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query invoices without reference: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan invoice ids: %w", err)
	}

	for _, id := range ids {
		if err := s.assignReferenceTx(ctx, tx, tenantID, id); err != nil {
			return nil, 0, err
		}
	}

	t, err := getTenantQ(ctx, tx, tenantID, "")
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("failed to commit banking details: %w", err)
	}
	return t, len(ids), nil
}

// assignReferenceTx sets the payment reference of an invoice that has none.
// An existing reference is left untouched.
func (s *invoiceService) assignReferenceTx(ctx context.Context, tx pgx.Tx, tenantID, invoiceID int64) error {
	ref, err := s.layout.Generate(uint64(tenantID), uint64(invoiceID))
	if err != nil {
		return fmt.Errorf("invoice %d: %w", invoiceID, err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE invoices SET payment_reference = $1
		WHERE id = $2 AND payment_reference IS NULL
	`, ref, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to store payment reference for invoice %d: %w", invoiceID, err)
	}
	return nil
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (s *invoiceService) CreateInvoice(ctx context.Context, tenantID int64, draft InvoiceDraft) (*Invoice, error) {
	if draft.InvoiceDate.IsZero() {
		return nil, invalid("invoice_date", "", "is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// FOR SHARE keeps banking details stable until this invoice is committed.
	tenant, err := getTenantQ(ctx, tx, tenantID, "FOR SHARE")
	if err != nil {
		return nil, err
	}

	code := draft.Currency
	if strings.TrimSpace(code) == "" {
		code = tenant.Currency
	}
	currency, err := LookupCurrency(code)
	if err != nil {
		return nil, err
	}

	fallback := tenant.DefaultTaxRate
	if draft.TaxRatePercent.Valid {
		fallback = draft.TaxRatePercent.Decimal
	}
	fallbackRate, err := NewPercentage(fallback)
	if err != nil {
		return nil, withField("tax_rate_percent", err)
	}

	terms := tenant.PaymentTermsDays
	if draft.PaymentTermsDays != nil {
		terms = *draft.PaymentTermsDays
	}
	if terms < 0 {
		return nil, invalid("payment_terms_days", terms, "must not be negative")
	}

	totals, err := CalculateInvoiceTotals(draft.Lines, fallbackRate, currency)
	if err != nil {
		return nil, err
	}

	number, err := s.numbering.AllocateTx(ctx, tx, tenantID, tenant.InvoicePrefix, draft.InvoiceDate.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate invoice number: %w", err)
	}

	var invoiceID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (tenant_id, number, customer_name, invoice_date, payment_terms_days, due_date,
			currency, tax_rate_percent, subtotal_minor, discount_amount_minor, tax_amount_minor, total_minor, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, tenantID, number, draft.CustomerName, draft.InvoiceDate, terms, DueDate(draft.InvoiceDate, terms),
		currency.Code, fallback, totals.SubtotalMinor, totals.DiscountAmountMinor, totals.TaxAmountMinor,
		totals.TotalMinor, draft.Notes,
	).Scan(&invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	if err := insertItemsTx(ctx, tx, invoiceID, draft.Lines, totals); err != nil {
		return nil, err
	}

	if tenant.IBAN != nil {
		if err := s.assignReferenceTx(ctx, tx, tenantID, invoiceID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice creation: %w", err)
	}
	return s.GetInvoice(ctx, tenantID, invoiceID)
}

func (s *invoiceService) ReplaceItems(ctx context.Context, tenantID, invoiceID int64, lines []LineItemInput) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var code string
	var inv Invoice
	err = tx.QueryRow(ctx, `
		SELECT currency, tax_rate_percent FROM invoices
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE
	`, invoiceID, tenantID).Scan(&code, &inv.TaxRatePercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock invoice %d: %w", invoiceID, err)
	}

	currency, err := LookupCurrency(code)
	if err != nil {
		return nil, err
	}
	fallbackRate, err := NewPercentage(inv.TaxRatePercent)
	if err != nil {
		return nil, err
	}
	totals, err := CalculateInvoiceTotals(lines, fallbackRate, currency)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM invoice_items WHERE invoice_id = $1", invoiceID); err != nil {
		return nil, fmt.Errorf("failed to clear items of invoice %d: %w", invoiceID, err)
	}
	if err := insertItemsTx(ctx, tx, invoiceID, lines, totals); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET subtotal_minor = $1, discount_amount_minor = $2, tax_amount_minor = $3, total_minor = $4, updated_at = NOW()
		WHERE id = $5
	`, totals.SubtotalMinor, totals.DiscountAmountMinor, totals.TaxAmountMinor, totals.TotalMinor, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to update totals of invoice %d: %w", invoiceID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit item replacement: %w", err)
	}
	return s.GetInvoice(ctx, tenantID, invoiceID)
}

// insertItemsTx writes the non-blank lines with the amounts computed for them.
func insertItemsTx(ctx context.Context, tx pgx.Tx, invoiceID int64, lines []LineItemInput, totals InvoiceTotals) error {
	for pos, cl := range totals.Lines {
		in := lines[cl.Index]
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_items (invoice_id, position, name, quantity, unit_price, tax_rate_percent, discount_percent,
				subtotal_minor, discount_amount_minor, tax_amount_minor, total_minor)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, invoiceID, pos+1, strings.TrimSpace(in.Name), in.Quantity, in.UnitPrice, cl.TaxRatePercent, in.DiscountPercent,
			cl.SubtotalMinor, cl.DiscountAmountMinor, cl.TaxAmountMinor, cl.TotalMinor)
		if err != nil {
			return fmt.Errorf("failed to insert item %d: %w", pos+1, err)
		}
	}
	return nil
}

const invoiceColumns = `id, tenant_id, number, customer_name, invoice_date, payment_terms_days, due_date, currency,
	tax_rate_percent, payment_reference, subtotal_minor, discount_amount_minor, tax_amount_minor, total_minor,
	notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.Number, &inv.CustomerName, &inv.InvoiceDate, &inv.PaymentTermsDays,
		&inv.DueDate, &inv.Currency, &inv.TaxRatePercent, &inv.PaymentReference, &inv.SubtotalMinor,
		&inv.DiscountAmountMinor, &inv.TaxAmountMinor, &inv.TotalMinor, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND tenant_id = $2`, invoiceID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	if inv.Items, err = fetchItemsQ(ctx, s.pool, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, tenantID int64) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 ORDER BY invoice_date DESC, id DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read invoices: %w", err)
	}
	return invoices, nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, tenantID, invoiceID int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM invoices WHERE id = $1 AND tenant_id = $2", invoiceID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete invoice %d: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
	}
	return nil
}

func (s *invoiceService) FindByReference(ctx context.Context, reference string) (*Invoice, error) {
	reference = NormalizeReference(reference)
	if !s.layout.Validate(reference) {
		return nil, fmt.Errorf("payment reference %q: %w", reference, ErrNotFound)
	}
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE payment_reference = $1`, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment reference %q: %w", reference, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up payment reference: %w", err)
	}
	if inv.Items, err = fetchItemsQ(ctx, s.pool, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func fetchItemsQ(ctx context.Context, q pgxRowQuerier, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, position, name, quantity, unit_price, tax_rate_percent, discount_percent,
			subtotal_minor, discount_amount_minor, tax_amount_minor, total_minor
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items of invoice %d: %w", invoiceID, err)
	}
	defer rows.Close()

	items := []InvoiceItem{}
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Position, &it.Name, &it.Quantity, &it.UnitPrice,
			&it.TaxRatePercent, &it.DiscountPercent, &it.SubtotalMinor, &it.DiscountAmountMinor,
			&it.TaxAmountMinor, &it.TotalMinor); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
