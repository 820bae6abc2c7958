package main

import (
	"context"
	"fmt"
	"os"

	"invoice-engine/internal/adapters/cli"
	"invoice-engine/internal/app"
	"invoice-engine/internal/config"
	"invoice-engine/internal/core"
	"invoice-engine/internal/db"
	"invoice-engine/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	ctx := context.Background()

	// The pool is opened only when configured so offline commands never
	// need a database.
	var invoices core.InvoiceService
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.PoolOptions("app"))
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		invoices = core.NewInvoiceService(pool, core.NewNumberingService(pool), cfg.ReferenceLayout)
	}

	svc := app.NewAppService(invoices, app.Defaults{
		Currency:         cfg.DefaultCurrency,
		NumberFormat:     cfg.NumberFormat,
		ReferenceLayout:  cfg.ReferenceLayout,
		InvoicePrefix:    cfg.InvoicePrefix,
		PaymentTermsDays: cfg.PaymentTermsDays,
	})

	root := cli.NewRootCmd(svc)
	root.SetContext(ctx)
	return cli.Execute(root)
}
