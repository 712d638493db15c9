package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"^GSPC", "^NDX"}, cfg.Symbols())
	assert.Equal(t, 15*time.Second, cfg.DefaultInterval)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 5*time.Minute, cfg.HistoryCacheTTL)
	assert.Equal(t, 10000, cfg.MaxConnections)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DEFAULT_SYMBOLS", "AAPL, MSFT ,GOOG")
	t.Setenv("DEFAULT_INTERVAL", "5s")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, cfg.Symbols())
	assert.Equal(t, 5*time.Second, cfg.DefaultInterval)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_RejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("DEFAULT_INTERVAL", "0s")

	_, err := Load()
	assert.ErrorContains(t, err, "DEFAULT_INTERVAL")
}

func TestLoad_RejectsNonPositiveFetchTimeout(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "-1s")

	_, err := Load()
	assert.ErrorContains(t, err, "FETCH_TIMEOUT")
}

func TestLoad_RejectsNonPositiveMaxConnections(t *testing.T) {
	t.Setenv("MAX_CONNECTIONS", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "MAX_CONNECTIONS")
}

func TestSymbols_SkipsEmptyEntries(t *testing.T) {
	cfg := &Config{DefaultSymbols: "AAPL,,  ,MSFT"}
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Symbols())
}
