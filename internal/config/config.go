// Package config loads and validates the server configuration from the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8000"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	QuoteAPIBaseURL string        `env:"QUOTE_API_BASE_URL" default:"https://query1.finance.yahoo.com"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" default:"10s"`

	DefaultSymbols  string        `env:"DEFAULT_SYMBOLS" default:"^GSPC,^NDX"`
	DefaultInterval time.Duration `env:"DEFAULT_INTERVAL" default:"15s"`

	RedisURL        string        `env:"REDIS_URL"`
	HistoryCacheTTL time.Duration `env:"HISTORY_CACHE_TTL" default:"5m"`

	MaxConnections       int     `env:"MAX_CONNECTIONS" default:"10000"`
	HistoryRatePerSecond float64 `env:"HISTORY_RATE_PER_SECOND" default:"5"`
	HistoryRateBurst     int     `env:"HISTORY_RATE_BURST" default:"10"`

	StaticDir string `env:"STATIC_DIR" default:"web/static"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Symbols returns the default subscription symbols as a list.
func (c *Config) Symbols() []string {
	parts := strings.Split(c.DefaultSymbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func validate(cfg *Config) error {
	if cfg.QuoteAPIBaseURL == "" {
		return fmt.Errorf("QUOTE_API_BASE_URL is required")
	}
	if cfg.DefaultInterval <= 0 {
		return fmt.Errorf("DEFAULT_INTERVAL must be positive, got %v", cfg.DefaultInterval)
	}
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %v", cfg.FetchTimeout)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.HistoryCacheTTL <= 0 {
		return fmt.Errorf("HISTORY_CACHE_TTL must be positive, got %v", cfg.HistoryCacheTTL)
	}
	return nil
}
