// seed-demo creates a demo tenant with banking details and a few invoices so
// the API and CLI have something to show.
//
// Usage: go run ./cmd/seed-demo
package main

import (
	"context"
	"time"

	"invoice-engine/internal/config"
	"invoice-engine/internal/core"
	"invoice-engine/internal/db"
	"invoice-engine/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	_ = godotenv.Load()
	log := logger.WithComponent("seed-demo")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}
	log = logger.WithComponent("seed-demo")
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.PoolOptions("seed-demo"))
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer pool.Close()

	svc := core.NewInvoiceService(pool, core.NewNumberingService(pool), cfg.ReferenceLayout)

	tenant, err := svc.CreateTenant(ctx, core.TenantInput{
		Name:             "Demo Werkstatt GmbH",
		Currency:         cfg.DefaultCurrency.Code,
		InvoicePrefix:    cfg.InvoicePrefix,
		PaymentTermsDays: cfg.PaymentTermsDays,
		DefaultTaxRate:   decimal.RequireFromString("8.1"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create tenant")
	}
	log.Info().Int64("tenant_id", tenant.ID).Msg("tenant created")

	reduced := decimal.NewNullDecimal(decimal.RequireFromString("2.6"))
	drafts := []core.InvoiceDraft{
		{
			CustomerName: "Muster AG",
			InvoiceDate:  time.Now().UTC(),
			Lines: []core.LineItemInput{
				{Name: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("100.00")},
				{Name: "Travel", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("45.50"),
					DiscountPercent: decimal.NewFromInt(10)},
			},
		},
		{
			CustomerName: "Beispiel GmbH",
			InvoiceDate:  time.Now().UTC(),
			Lines: []core.LineItemInput{
				{Name: "Books", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("19.90"),
					TaxRatePercent: reduced},
				{Name: "", Quantity: decimal.Zero, UnitPrice: decimal.Zero},
			},
		},
	}
	for _, d := range drafts {
		inv, err := svc.CreateInvoice(ctx, tenant.ID, d)
		if err != nil {
			log.Fatal().Err(err).Str("customer", d.CustomerName).Msg("failed to create invoice")
		}
		log.Info().Str("number", inv.Number).Int64("total_minor", inv.TotalMinor).
			Str("total", core.FormatMinor(inv.TotalMinor, cfg.DefaultCurrency)).Msg("invoice created")
	}

	// Invoices created before banking is confirmed get their references now.
	_, assigned, err := svc.ConfigureBanking(ctx, tenant.ID, "CH93 0076 2011 6238 5295 7")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure banking")
	}
	log.Info().Int("references_assigned", assigned).Msg("demo data seeded")
}
