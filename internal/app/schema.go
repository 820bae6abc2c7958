package app

import (
	"fmt"
	"sort"

	"invoice-engine/internal/core"

	"github.com/invopop/jsonschema"
)

// requestTypes lists the request bodies whose JSON Schema is published.
var requestTypes = map[string]func() any{
	"calculate-line":   func() any { return CalculateLineRequest{} },
	"calculate-totals": func() any { return CalculateTotalsRequest{} },
	"format":           func() any { return FormatRequest{} },
	"due-date":         func() any { return DueDateRequest{} },
	"reference":        func() any { return ReferenceRequest{} },
	"invoice-number":   func() any { return InvoiceNumberRequest{} },
	"tenant":           func() any { return CreateTenantRequest{} },
	"banking":          func() any { return BankingRequest{} },
	"invoice":          func() any { return CreateInvoiceRequest{} },
	"invoice-items":    func() any { return ReplaceItemsRequest{} },
}

// SchemaNames returns the names accepted by RequestSchema, sorted.
func SchemaNames() []string {
	names := make([]string, 0, len(requestTypes))
	for name := range requestTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequestSchema reflects the JSON Schema of a request body.
func RequestSchema(name string) (*jsonschema.Schema, error) {
	newValue, ok := requestTypes[name]
	if !ok {
		return nil, fmt.Errorf("schema %q: %w", name, core.ErrNotFound)
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(newValue()), nil
}
