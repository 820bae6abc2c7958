// verify-db checks that every embedded migration is applied unmodified and
// that the invoicing tables exist. It changes nothing.
//
// Usage: go run ./cmd/verify-db
package main

import (
	"context"
	"os"

	"invoice-engine/internal/config"
	"invoice-engine/internal/db"
	"invoice-engine/internal/logger"
	"invoice-engine/migrations"

	"github.com/joho/godotenv"
)

var requiredTables = []string{"tenants", "invoice_number_sequences", "invoices", "invoice_items"}

func main() {
	_ = godotenv.Load()
	log := logger.WithComponent("verify-db")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}
	log = logger.WithComponent("verify-db")

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.PoolOptions("verify-db"))
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer pool.Close()

	ok := true

	statuses, err := migrations.Verify(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("verify migrations")
	}
	for _, s := range statuses {
		switch {
		case s.Modified:
			ok = false
			log.Error().Str("file", s.Filename).Msg("applied file was modified")
		case !s.Applied:
			ok = false
			log.Error().Str("file", s.Filename).Msg("not applied")
		default:
			log.Info().Str("file", s.Filename).Msg("ok")
		}
	}

	for _, table := range requiredTables {
		var exists bool
		if err := pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists); err != nil {
			log.Fatal().Err(err).Str("table", table).Msg("lookup failed")
		}
		if !exists {
			ok = false
			log.Error().Str("table", table).Msg("missing")
		}
	}

	if !ok {
		os.Exit(1)
	}
	log.Info().Msg("schema is up to date")
}
