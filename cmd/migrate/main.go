// migrate applies the embedded SQL migrations to DATABASE_URL.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"

	"invoice-engine/internal/config"
	"invoice-engine/internal/db"
	"invoice-engine/internal/logger"
	"invoice-engine/migrations"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	log := logger.WithComponent("migrate")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}
	log = logger.WithComponent("migrate")

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.PoolOptions("migrate"))
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer pool.Close()

	err = migrations.Apply(ctx, pool, func(name string, applied bool) {
		if applied {
			log.Info().Str("file", name).Msg("applied")
		} else {
			log.Info().Str("file", name).Msg("skipped")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("all migrations processed")
}
