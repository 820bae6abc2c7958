package cli

import (
	"fmt"
	"io"
	"strings"

	"invoice-engine/internal/app"
	"invoice-engine/internal/core"
)

func printLineResult(w io.Writer, res *app.LineResult) {
	fmt.Fprintf(w, "  %-10s %15s %s\n", "SUBTOTAL", res.Subtotal, res.Currency)
	fmt.Fprintf(w, "  %-10s %15s %s\n", "DISCOUNT", res.Discount, res.Currency)
	fmt.Fprintf(w, "  %-10s %15s %s\n", "TAX", res.Tax, res.Currency)
	fmt.Fprintf(w, "  %-10s %15s %s\n", "TOTAL", res.Total, res.Currency)
}

func printTotals(w io.Writer, res *app.TotalsResult) {
	cur := res.Totals.Currency
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  %-4s %-26s %8s %15s %15s\n", "#", "ITEM", "TAX %", "TAX", "TOTAL")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for i, l := range res.Totals.Lines {
		f := res.Lines[i]
		fmt.Fprintf(w, "  %-4d %-26s %8s %15s %15s\n",
			l.Index+1, truncate(l.Name, 26), l.TaxRatePercent.String(), f.Tax, f.Total)
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for i, t := range res.Totals.TaxBreakdown {
		f := res.TaxBreakdown[i]
		fmt.Fprintf(w, "  TAX %6s%% on %15s %36s\n", t.RatePercent.String(), f.Base, f.Tax)
	}
	fmt.Fprintf(w, "  %-20s %49s\n", "SUBTOTAL", res.Subtotal)
	fmt.Fprintf(w, "  %-20s %49s\n", "DISCOUNT", res.Discount)
	fmt.Fprintf(w, "  %-20s %49s\n", "TAX", res.Tax)
	fmt.Fprintf(w, "  %-20s %49s\n", "TOTAL "+cur.Code, res.Total)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func printInvoice(w io.Writer, res *app.InvoiceResult) {
	inv := res.Invoice
	ref := "-"
	if inv.PaymentReference != nil {
		ref = core.FormatReference(*inv.PaymentReference)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  INVOICE %s\n", inv.Number)
	fmt.Fprintf(w, "  Customer  : %s\n", inv.CustomerName)
	fmt.Fprintf(w, "  Date      : %s\n", inv.InvoiceDate.Format("2006-01-02"))
	fmt.Fprintf(w, "  Due       : %s (%d days)\n", res.DueDate, inv.PaymentTermsDays)
	fmt.Fprintf(w, "  Reference : %s\n", ref)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  %-4s %-28s %10s %8s %15s\n", "POS", "ITEM", "QTY", "TAX %", "TOTAL")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for i, it := range inv.Items {
		fmt.Fprintf(w, "  %-4d %-28s %10s %8s %15s\n",
			it.Position, truncate(it.Name, 28), it.Quantity.String(), it.TaxRatePercent.String(), res.ItemTotals[i])
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "  %-20s %49s\n", "SUBTOTAL", res.Subtotal)
	fmt.Fprintf(w, "  %-20s %49s\n", "DISCOUNT", res.Discount)
	fmt.Fprintf(w, "  %-20s %49s\n", "TAX", res.Tax)
	fmt.Fprintf(w, "  %-20s %49s\n", "TOTAL "+inv.Currency, res.Total)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func printInvoiceList(w io.Writer, res *app.InvoiceListResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  INVOICES for tenant %d\n", res.TenantID)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	if len(res.Invoices) == 0 {
		fmt.Fprintln(w, "  No invoices found.")
		fmt.Fprintln(w, strings.Repeat("=", 72))
		return
	}
	fmt.Fprintf(w, "  %-15s %-10s %-24s %15s %s\n", "NUMBER", "DATE", "CUSTOMER", "TOTAL", "CUR")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for i, inv := range res.Invoices {
		fmt.Fprintf(w, "  %-15s %-10s %-24s %15s %s\n",
			inv.Number, inv.InvoiceDate.Format("2006-01-02"), truncate(inv.CustomerName, 24), res.Totals[i], inv.Currency)
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
