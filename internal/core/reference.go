package core

import (
	"fmt"
	"strconv"
	"strings"
)

// mod10Table is the substitution table of the recursive modulo-10 checksum
// used by Swiss payment references. It must not change.
var mod10Table = [10]int{0, 9, 4, 6, 8, 2, 7, 1, 3, 5}

// Mod10Recursive returns the check digit for an arbitrary-length numeral.
func Mod10Recursive(digits string) (int, error) {
	carry := 0
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q at position %d", ErrNonNumeric, c, i)
		}
		carry = mod10Table[(carry+int(c-'0'))%10]
	}
	return (10 - carry) % 10, nil
}

// ReferenceLayout fixes the digit widths of a payment reference:
// zero-padded tenant id, zero-padded invoice id, one check digit.
type ReferenceLayout struct {
	TenantDigits  int
	InvoiceDigits int
}

var (
	// DefaultReferenceLayout yields 26-digit references (6 + 19 + 1).
	DefaultReferenceLayout = ReferenceLayout{TenantDigits: 6, InvoiceDigits: 19}
	// QRReferenceLayout yields the 27-digit QR-bill reference (6 + 20 + 1).
	QRReferenceLayout = ReferenceLayout{TenantDigits: 6, InvoiceDigits: 20}
)

// ReferenceLayoutByName resolves "default" or "qrr".
func ReferenceLayoutByName(name string) (ReferenceLayout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultReferenceLayout, nil
	case "qrr", "qr":
		return QRReferenceLayout, nil
	}
	return ReferenceLayout{}, fmt.Errorf("unknown reference layout %q", name)
}

// Length is the total number of digits including the check digit.
func (l ReferenceLayout) Length() int {
	return l.TenantDigits + l.InvoiceDigits + 1
}

// GenerateReference builds a reference in the default layout.
func GenerateReference(tenantID, invoiceID uint64) (string, error) {
	return DefaultReferenceLayout.Generate(tenantID, invoiceID)
}

// ValidateReference reports whether reference is a well-formed default-layout
// reference with a matching check digit. Malformed input is simply invalid.
func ValidateReference(reference string) bool {
	return DefaultReferenceLayout.Validate(reference)
}

// Generate zero-pads both ids into their fields and appends the check digit.
func (l ReferenceLayout) Generate(tenantID, invoiceID uint64) (string, error) {
	tenant, err := padField("tenant id", tenantID, l.TenantDigits)
	if err != nil {
		return "", err
	}
	invoice, err := padField("invoice id", invoiceID, l.InvoiceDigits)
	if err != nil {
		return "", err
	}
	base := tenant + invoice
	check, err := Mod10Recursive(base)
	if err != nil {
		return "", err
	}
	return base + strconv.Itoa(check), nil
}

// Validate checks length, digits and check digit.
func (l ReferenceLayout) Validate(reference string) bool {
	if len(reference) != l.Length() {
		return false
	}
	base, provided := reference[:len(reference)-1], reference[len(reference)-1]
	if provided < '0' || provided > '9' {
		return false
	}
	check, err := Mod10Recursive(base)
	if err != nil {
		return false
	}
	return check == int(provided-'0')
}

// Parse recovers the tenant and invoice ids from a valid reference.
func (l ReferenceLayout) Parse(reference string) (tenantID, invoiceID uint64, err error) {
	if !l.Validate(reference) {
		return 0, 0, fmt.Errorf("%w: payment reference %q", ErrInvalidArgument, reference)
	}
	tenantID, err = strconv.ParseUint(reference[:l.TenantDigits], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: tenant field of %q", ErrReferenceOverflow, reference)
	}
	invoiceID, err = strconv.ParseUint(reference[l.TenantDigits:l.TenantDigits+l.InvoiceDigits], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invoice field of %q", ErrReferenceOverflow, reference)
	}
	return tenantID, invoiceID, nil
}

func padField(name string, v uint64, width int) (string, error) {
	s := strconv.FormatUint(v, 10)
	if len(s) > width {
		return "", fmt.Errorf("%w: %s %d wider than %d digits", ErrReferenceOverflow, name, v, width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}

// NormalizeReference removes the spaces a reference picks up when it is
// printed in blocks or typed in by hand. It does not validate.
func NormalizeReference(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// FormatReference splits a reference into blocks of five digits counted from
// the right, the way it is printed on a payment slip.
func FormatReference(reference string) string {
	head := len(reference) % 5
	parts := make([]string, 0, len(reference)/5+1)
	if head > 0 {
		parts = append(parts, reference[:head])
	}
	for i := head; i < len(reference); i += 5 {
		parts = append(parts, reference[i:i+5])
	}
	return strings.Join(parts, " ")
}
