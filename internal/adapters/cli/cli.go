package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"invoice-engine/internal/app"
	"invoice-engine/internal/logger"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

// NewRootCmd builds the command tree. Every command writes to cmd.OutOrStdout()
// and reads JSON input from cmd.InOrStdin().
func NewRootCmd(svc app.ApplicationService) *cobra.Command {
	root := &cobra.Command{
		Use:   "invoice",
		Short: "Invoice calculation, payment references and numbering",
		Long: `invoice computes line and invoice totals in integer minor units,
generates and checks Swiss payment references, and allocates sequential
invoice numbers.

Commands under "invoice" need DATABASE_URL; all others run offline.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "Print results as JSON")

	root.AddCommand(
		newCalcCmd(svc),
		newRefCmd(svc),
		newDueCmd(svc),
		newFormatCmd(svc),
		newNumberCmd(svc),
		newInvoiceCmd(svc),
		newSchemaCmd(),
	)
	return root
}

// Execute runs the root command and logs a failure.
func Execute(root *cobra.Command) error {
	log := logger.WithComponent("cli")
	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		return err
	}
	return nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func decodeInput(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	return nil
}

// ── calc ─────────────────────────────────────────────────────────────────────

func newCalcCmd(svc app.ApplicationService) *cobra.Command {
	calc := &cobra.Command{
		Use:   "calc",
		Short: "Calculate line items and invoice totals",
	}

	line := &cobra.Command{
		Use:   "line",
		Short: "Calculate one line item",
		Example: `  invoice calc line --qty 2 --price 100.00 --tax 8.1
  invoice calc line --qty 1.5 --price 19.90 --discount 10 --currency EUR`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.CalculateLineRequest{}
			req.Currency, _ = cmd.Flags().GetString("currency")
			req.Line.Name, _ = cmd.Flags().GetString("name")
			req.Line.Quantity, _ = cmd.Flags().GetString("qty")
			req.Line.UnitPrice, _ = cmd.Flags().GetString("price")
			req.Line.DiscountPercent, _ = cmd.Flags().GetString("discount")
			if cmd.Flags().Changed("tax") {
				tax, _ := cmd.Flags().GetString("tax")
				req.Line.TaxRatePercent = &tax
			}

			res, err := svc.CalculateLine(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printLineResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	line.Flags().String("name", "item", "Line description")
	line.Flags().String("qty", "1", "Quantity (up to 4 decimals)")
	line.Flags().String("price", "0", "Unit price in major units")
	line.Flags().String("tax", "", "Tax rate percent")
	line.Flags().String("discount", "0", "Discount percent")
	line.Flags().String("currency", "", "Currency code (default: configured currency)")

	totals := &cobra.Command{
		Use:   "totals",
		Short: "Calculate invoice totals from JSON on stdin",
		Long: `Reads a calculate-totals request from stdin, e.g.

  {"currency":"CHF","fallback_tax_rate_percent":"8.1",
   "lines":[{"name":"Consulting","quantity":"2","unit_price":"100.00"}]}

Run "invoice schema calculate-totals" for the full JSON schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req app.CalculateTotalsRequest
			if err := decodeInput(cmd.InOrStdin(), &req); err != nil {
				return err
			}
			res, err := svc.CalculateTotals(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printTotals(cmd.OutOrStdout(), res)
			return nil
		},
	}

	calc.AddCommand(line, totals)
	return calc
}

// ── ref ──────────────────────────────────────────────────────────────────────

func newRefCmd(svc app.ApplicationService) *cobra.Command {
	ref := &cobra.Command{
		Use:   "ref",
		Short: "Generate and check payment references",
	}

	gen := &cobra.Command{
		Use:     "gen <tenant-id> <invoice-id>",
		Short:   "Generate the payment reference for an invoice",
		Example: "  invoice ref gen 42 1337",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tenant id %q", args[0])
			}
			invoiceID, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid invoice id %q", args[1])
			}
			res, err := svc.GenerateReference(cmd.Context(), app.ReferenceRequest{TenantID: tenantID, InvoiceID: invoiceID})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Reference)
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check <reference>...",
		Short: "Check a payment reference",
		Long:  "Check a payment reference. Blocks separated by spaces are joined first.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := svc.ValidateReference(cmd.Context(), strings.Join(args, " "))
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if !res.Valid {
				return fmt.Errorf("reference %q is not valid", res.Reference)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}

	ref.AddCommand(gen, check)
	return ref
}

// ── due / format ─────────────────────────────────────────────────────────────

func newDueCmd(svc app.ApplicationService) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "due <invoice-date> <term-days>",
		Short:   "Compute the due date",
		Example: "  invoice due 2024-01-31 30",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid term days %q", args[1])
			}
			res, err := svc.DueDate(cmd.Context(), app.DueDateRequest{InvoiceDate: args[0], TermDays: days})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.DueDate)
			return nil
		},
	}
	return cmd
}

func newFormatCmd(svc app.ApplicationService) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "format <amount-minor>",
		Short:   "Format a minor-unit amount",
		Example: "  invoice format 123456789 --style swiss",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minor, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			currency, _ := cmd.Flags().GetString("currency")
			style, _ := cmd.Flags().GetString("style")
			res, err := svc.FormatAmount(cmd.Context(), app.FormatRequest{AmountMinor: minor, Currency: currency, Style: style})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Formatted)
			return nil
		},
	}
	cmd.Flags().String("currency", "", "Currency code (default: configured currency)")
	cmd.Flags().String("style", "", "swiss, english, german or plain")
	return cmd
}

// ── number ───────────────────────────────────────────────────────────────────

func newNumberCmd(svc app.ApplicationService) *cobra.Command {
	number := &cobra.Command{
		Use:   "number",
		Short: "Invoice numbering",
	}
	next := &cobra.Command{
		Use:   "next",
		Short: "Print the number following the last issued one",
		Example: `  invoice number next --year 2024
  invoice number next --year 2024 --last INV2024-0041
  invoice number next --year 2024 --count 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.InvoiceNumberRequest{}
			req.TenantID, _ = cmd.Flags().GetInt64("tenant")
			req.Prefix, _ = cmd.Flags().GetString("prefix")
			req.Year, _ = cmd.Flags().GetInt("year")
			req.LastIssued, _ = cmd.Flags().GetString("last")
			req.Count, _ = cmd.Flags().GetInt("count")
			res, err := svc.NextInvoiceNumber(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if len(res.Numbers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), res.Number)
				return nil
			}
			for _, n := range res.Numbers {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	next.Flags().Int64("tenant", 1, "Tenant id")
	next.Flags().String("prefix", "", "Number prefix (default: configured prefix)")
	next.Flags().Int("year", time.Now().Year(), "Invoice year")
	next.Flags().String("last", "", "Last issued number in this scope")
	next.Flags().Int("count", 1, "Print this many consecutive numbers")
	number.AddCommand(next)
	return number
}

// ── invoice (database) ───────────────────────────────────────────────────────

func newInvoiceCmd(svc app.ApplicationService) *cobra.Command {
	inv := &cobra.Command{
		Use:   "invoice",
		Short: "Create and inspect stored invoices",
	}

	create := &cobra.Command{
		Use:   "create <tenant-id>",
		Short: "Create an invoice from JSON on stdin",
		Long: `Reads a create-invoice request from stdin. Run "invoice schema invoice"
for the JSON schema.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID(args[0])
			if err != nil {
				return err
			}
			var req app.CreateInvoiceRequest
			if err := decodeInput(cmd.InOrStdin(), &req); err != nil {
				return err
			}
			req.TenantID = tenantID
			res, err := svc.CreateInvoice(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printInvoice(cmd.OutOrStdout(), res)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <tenant-id> <invoice-id>",
		Short: "Show one invoice with its items",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID(args[0])
			if err != nil {
				return err
			}
			invoiceID, err := parseID(args[1])
			if err != nil {
				return err
			}
			res, err := svc.GetInvoice(cmd.Context(), tenantID, invoiceID)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printInvoice(cmd.OutOrStdout(), res)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list <tenant-id>",
		Short: "List a tenant's invoices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := svc.ListInvoices(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printInvoiceList(cmd.OutOrStdout(), res)
			return nil
		},
	}

	inv.AddCommand(create, show, list)
	return inv
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// ── schema ───────────────────────────────────────────────────────────────────

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [name]",
		Short: "Print the JSON schema of a request type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range app.SchemaNames() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			s, err := app.RequestSchema(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
}
