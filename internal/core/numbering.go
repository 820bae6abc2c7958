package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// MaxInvoiceSequence bounds a sequence so it fits the store's integer column.
const MaxInvoiceSequence = math.MaxInt32

// sequenceDigits is the minimum zero-padded width. Longer sequences widen the
// field rather than wrap.
const sequenceDigits = 4

// InvoiceNumber is the parsed form of "<prefix><year>-<sequence>".
type InvoiceNumber struct {
	Prefix   string
	Year     int
	Sequence int64
}

func (n InvoiceNumber) String() string {
	return fmt.Sprintf("%s%04d-%0*d", n.Prefix, n.Year, sequenceDigits, n.Sequence)
}

// ParseInvoiceNumber parses s, which must belong to the given prefix and year.
func ParseInvoiceNumber(s, prefix string, year int) (InvoiceNumber, error) {
	scope := fmt.Sprintf("%s%04d-", prefix, year)
	suffix, ok := strings.CutPrefix(s, scope)
	if !ok {
		return InvoiceNumber{}, fmt.Errorf("%w: %q is not in scope %q", ErrInvalidInvoiceNumber, s, scope)
	}
	if len(suffix) < sequenceDigits {
		return InvoiceNumber{}, fmt.Errorf("%w: %q has a short sequence", ErrInvalidInvoiceNumber, s)
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return InvoiceNumber{}, fmt.Errorf("%w: %q has a non-numeric sequence", ErrInvalidInvoiceNumber, s)
		}
	}
	seq, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || seq > MaxInvoiceSequence {
		return InvoiceNumber{}, fmt.Errorf("%w: %q", ErrSequenceExhausted, s)
	}
	return InvoiceNumber{Prefix: prefix, Year: year, Sequence: seq}, nil
}

// AllocateInvoiceNumber returns the number following lastIssued within
// (tenant, prefix, year). An empty lastIssued starts the sequence at 1.
// It holds no state: the caller must serialize read-increment-write for one
// scope (see NumberingService.AllocateTx).
func AllocateInvoiceNumber(tenantID int64, prefix string, year int, lastIssued string) (string, error) {
	if year < 1 || year > 9999 {
		return "", invalid("year", year, "must have four digits")
	}
	if strings.ContainsAny(prefix, " \t\n") {
		return "", invalid("prefix", prefix, "must not contain whitespace")
	}

	next := InvoiceNumber{Prefix: prefix, Year: year, Sequence: 1}
	if strings.TrimSpace(lastIssued) != "" {
		last, err := ParseInvoiceNumber(strings.TrimSpace(lastIssued), prefix, year)
		if err != nil {
			return "", fmt.Errorf("tenant %d: %w", tenantID, err)
		}
		if last.Sequence >= MaxInvoiceSequence {
			return "", fmt.Errorf("tenant %d: %w after %s", tenantID, ErrSequenceExhausted, lastIssued)
		}
		next.Sequence = last.Sequence + 1
	}
	return next.String(), nil
}

// NumberAllocator hands out the next invoice number for a scope.
type NumberAllocator interface {
	Next(ctx context.Context, tenantID int64, prefix string, year int) (string, error)
}

type numberScope struct {
	tenantID int64
	prefix   string
	year     int
}

type scopeState struct {
	mu   sync.Mutex
	last string
}

// MemoryNumberAllocator is a single-writer-per-scope allocator kept in process
// memory. Scopes never block each other. It backs offline batch previews; it
// does not survive the process.
type MemoryNumberAllocator struct {
	scopes sync.Map // numberScope -> *scopeState
}

func NewMemoryNumberAllocator() *MemoryNumberAllocator {
	return &MemoryNumberAllocator{}
}

// Seed records lastIssued as the current maximum of a scope.
func (a *MemoryNumberAllocator) Seed(tenantID int64, prefix string, year int, lastIssued string) {
	v, _ := a.scopes.LoadOrStore(numberScope{tenantID, prefix, year}, &scopeState{})
	st := v.(*scopeState)
	st.mu.Lock()
	st.last = lastIssued
	st.mu.Unlock()
}

func (a *MemoryNumberAllocator) Next(ctx context.Context, tenantID int64, prefix string, year int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, _ := a.scopes.LoadOrStore(numberScope{tenantID, prefix, year}, &scopeState{})
	st := v.(*scopeState)

	st.mu.Lock()
	defer st.mu.Unlock()
	next, err := AllocateInvoiceNumber(tenantID, prefix, year, st.last)
	if err != nil {
		return "", err
	}
	st.last = next
	return next, nil
}
