package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "invoice-engine/internal/adapters/web"
	"invoice-engine/internal/app"
	"invoice-engine/internal/config"
	"invoice-engine/internal/core"
	"invoice-engine/internal/db"
	"invoice-engine/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	log := logger.WithComponent("server")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}
	log = logger.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Without a database the stateless engine endpoints still work; tenant
	// and invoice endpoints answer 503.
	var invoices core.InvoiceService
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.PoolOptions("server"))
		if err != nil {
			log.Fatal().Err(err).Msg("database")
		}
		defer pool.Close()
		invoices = core.NewInvoiceService(pool, core.NewNumberingService(pool), cfg.ReferenceLayout)
	} else {
		log.Warn().Msg("DATABASE_URL is not set, tenant and invoice endpoints are disabled")
	}

	svc := app.NewAppService(invoices, app.Defaults{
		Currency:         cfg.DefaultCurrency,
		NumberFormat:     cfg.NumberFormat,
		ReferenceLayout:  cfg.ReferenceLayout,
		InvoicePrefix:    cfg.InvoicePrefix,
		PaymentTermsDays: cfg.PaymentTermsDays,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.ServerPort).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("server stopped")
}
