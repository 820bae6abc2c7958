package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NumberingService is the Postgres-backed NumberAllocator. Its Next allocates
// in its own transaction; use it for standalone calls.
type NumberingService interface {
	NumberAllocator
	// AllocateTx allocates inside the caller's transaction, so the number and
	// the invoice row that carries it commit or roll back together.
	AllocateTx(ctx context.Context, tx Querier, tenantID int64, prefix string, year int) (string, error)
}

type numberingService struct {
	pool *pgxpool.Pool
}

func NewNumberingService(pool *pgxpool.Pool) NumberingService {
	return &numberingService{pool: pool}
}

func (s *numberingService) Next(ctx context.Context, tenantID int64, prefix string, year int) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	number, err := s.AllocateTx(ctx, tx, tenantID, prefix, year)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return number, nil
}

func (s *numberingService) AllocateTx(ctx context.Context, tx Querier, tenantID int64, prefix string, year int) (string, error) {
	return allocateWithTx(ctx, tx, tenantID, prefix, year)
}

// allocateWithTx performs read-increment-write for one (tenant, prefix, year)
// under a row lock. The counter row is never decremented, so numbers of
// deleted invoices are not handed out again.
func allocateWithTx(ctx context.Context, tx Querier, tenantID int64, prefix string, year int) (string, error) {
	// Make sure the scope row exists so FOR UPDATE has something to lock,
	// including for the very first allocation of a year.
	_, err := tx.Exec(ctx, `
		INSERT INTO invoice_number_sequences (tenant_id, prefix, year, last_sequence)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (tenant_id, prefix, year) DO NOTHING
	`, tenantID, prefix, year)
	if err != nil {
		return "", fmt.Errorf("failed to initialise invoice sequence: %w", err)
	}

	var lastSequence int64
	err = tx.QueryRow(ctx, `
		SELECT last_sequence
		FROM invoice_number_sequences
		WHERE tenant_id = $1 AND prefix = $2 AND year = $3
		FOR UPDATE
	`, tenantID, prefix, year).Scan(&lastSequence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("invoice sequence for tenant %d %s%d: %w", tenantID, prefix, year, ErrNotFound)
		}
		return "", fmt.Errorf("failed to lock invoice sequence: %w", err)
	}

	lastIssued := ""
	if lastSequence > 0 {
		lastIssued = InvoiceNumber{Prefix: prefix, Year: year, Sequence: lastSequence}.String()
	}
	number, err := AllocateInvoiceNumber(tenantID, prefix, year, lastIssued)
	if err != nil {
		return "", err
	}
	allocated, err := ParseInvoiceNumber(number, prefix, year)
	if err != nil {
		return "", err
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoice_number_sequences
		SET last_sequence = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND prefix = $2 AND year = $3
	`, tenantID, prefix, year, allocated.Sequence)
	if err != nil {
		return "", fmt.Errorf("failed to advance invoice sequence: %w", err)
	}
	return number, nil
}
