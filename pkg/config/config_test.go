package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, "300s", c.Brain.Interval)
	assert.Equal(t, 60*time.Second, c.Brain.Backoff)
	assert.Equal(t, []string{"RELIANCE.NS", "BTC-USD", "AAPL", "ETH-USD"}, c.Brain.Watchlist)
	assert.Equal(t, 3, c.Brain.HealErrorThreshold)
	assert.Len(t, c.Scanner.Watchlist, 12)
	assert.Equal(t, 2*time.Second, c.Scanner.SymbolDelay)
	assert.Equal(t, 30, c.Scanner.HistoryDays)
	assert.Equal(t, 24*time.Hour, c.Ledger.ValidationDelay)
	assert.Equal(t, 5*time.Minute, c.Cache.MemoryTTL)
	assert.Equal(t, 30*time.Minute, c.Cache.DurableTTL)
	assert.Equal(t, 30*time.Second, c.Observations.MinInterval)
	assert.Len(t, c.Movers.Symbols, 10)
	assert.True(t, c.AgentCommandAllowed())
}

func TestParse_OverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: demo
ledger:
  validation_delay: 60s
cache:
  durable: none
brain:
  interval: "@every 2m"
`))
	require.NoError(t, err)

	assert.Equal(t, "demo", c.Environment)
	assert.Equal(t, time.Minute, c.Ledger.ValidationDelay)
	assert.Equal(t, "none", c.Cache.Durable)
	assert.Equal(t, "@every 2m", c.Brain.Interval)
	// untouched sections keep defaults
	assert.Equal(t, 8080, c.Server.Port)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad environment", "environment: staging"},
		{"bad driver", "ledger:\n  driver: mysql"},
		{"bad durable", "cache:\n  durable: disk"},
		{"kafka source without kafka", "observations:\n  source: kafka"},
		{"finnhub source without key", "observations:\n  source: finnhub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observations:\n  source: finnhub\n"), 0o644))

	t.Setenv("FINNHUB_API_KEY", "secret")
	t.Setenv("VALIDATION_DELAY", "90s")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("LEDGER_DSN", "file::memory:")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", c.Finnhub.APIKey)
	assert.Equal(t, 90*time.Second, c.Ledger.ValidationDelay)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "file::memory:", c.Ledger.DSN)
}

func TestLoadWithEnv_BadDelay(t *testing.T) {
	t.Setenv("VALIDATION_DELAY", "soon")
	_, err := LoadWithEnv("")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
