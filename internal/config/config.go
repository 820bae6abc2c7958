package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"invoice-engine/internal/core"
	"invoice-engine/internal/db"
	"invoice-engine/internal/logger"
)

type Config struct {
	DatabaseURL    string
	DBMaxConns     int32
	ServerPort     string
	AllowedOrigins string

	// Engine defaults
	DefaultCurrency  core.Currency
	NumberFormat     core.NumberFormat
	ReferenceLayout  core.ReferenceLayout
	InvoicePrefix    string
	PaymentTermsDays int

	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the environment. Call godotenv.Load first to pick up a .env file.
// DATABASE_URL is optional here; commands that need it check for it.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		InvoicePrefix:  getEnv("INVOICE_PREFIX", "INV"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:  getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:      getEnv("LOG_OUTPUT", "stderr"),
	}

	var err error
	if cfg.DefaultCurrency, err = core.LookupCurrency(getEnv("DEFAULT_CURRENCY", "CHF")); err != nil {
		return nil, fmt.Errorf("DEFAULT_CURRENCY: %w", err)
	}
	if cfg.NumberFormat, err = core.NumberFormatByName(getEnv("NUMBER_FORMAT", "swiss")); err != nil {
		return nil, fmt.Errorf("NUMBER_FORMAT: %w", err)
	}
	if cfg.ReferenceLayout, err = core.ReferenceLayoutByName(getEnv("REFERENCE_LAYOUT", "default")); err != nil {
		return nil, fmt.Errorf("REFERENCE_LAYOUT: %w", err)
	}
	terms, err := strconv.Atoi(getEnv("PAYMENT_TERMS_DAYS", "30"))
	if err != nil || terms < 0 {
		return nil, fmt.Errorf("PAYMENT_TERMS_DAYS must be a non-negative integer")
	}
	cfg.PaymentTermsDays = terms

	maxConns, err := strconv.ParseInt(getEnv("DB_MAX_CONNS", "0"), 10, 32)
	if err != nil || maxConns < 0 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be a non-negative integer")
	}
	cfg.DBMaxConns = int32(maxConns)

	return cfg, nil
}

// RequireDatabase fails when no DATABASE_URL is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return nil
}

// PoolOptions returns the connection pool settings for the named command.
func (c *Config) PoolOptions(command string) db.PoolOptions {
	return db.PoolOptions{
		MaxConns:        c.DBMaxConns,
		MaxConnLifetime: time.Hour,
		ApplicationName: "invoice-engine/" + command,
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
