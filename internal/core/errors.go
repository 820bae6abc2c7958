package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for out-of-domain numeric input such as a
	// negative quantity or a tax rate above 100.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownCurrency is returned when a currency code is not registered.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrAmountOverflow is returned when a minor-unit amount does not fit in int64.
	ErrAmountOverflow = errors.New("amount exceeds int64 minor units")

	// ErrNonNumeric is returned when a checksum input contains anything but ASCII digits.
	ErrNonNumeric = errors.New("input is not a numeral")

	// ErrReferenceOverflow is returned when a tenant or invoice id is too wide
	// for its field in the payment reference.
	ErrReferenceOverflow = errors.New("id does not fit payment reference field")

	// ErrInvalidInvoiceNumber is returned when a previously issued number cannot
	// be parsed for the requested prefix and year.
	ErrInvalidInvoiceNumber = errors.New("invalid invoice number")

	// ErrSequenceExhausted is returned when an invoice sequence cannot be incremented further.
	ErrSequenceExhausted = errors.New("invoice sequence exhausted")

	// ErrNotFound is returned by the persistence services when a row does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets errors.Is(err, ErrInvalidArgument) match every ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

func invalid(field string, value any, message string) error {
	return &ValidationError{Field: field, Value: value, Message: message}
}
