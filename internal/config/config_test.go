package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menjava.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "menjava.sqlite3", cfg.Database.Path)
	assert.Equal(t, FormatText, cfg.Log.Format)
	assert.Equal(t, 10.0, cfg.Trade.MaxValueDiffPct)
	assert.Equal(t, 48*time.Hour, cfg.Trade.RequestTTL)
	assert.Equal(t, 10*time.Minute, cfg.Trade.SweepInterval)
	assert.Equal(t, 5, cfg.Room.ChatBurst)
	assert.Equal(t, 1024, cfg.Catalog.CacheSize)
	assert.Equal(t, "Admin", cfg.Admin.Username)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
log:
  level: debug
  format: json
trade:
  request_ttl: 24h
  max_value_diff_pct: 5
room:
  chat_rate: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, FormatJSON, cfg.Log.Format)
	assert.Equal(t, 24*time.Hour, cfg.Trade.RequestTTL)
	assert.Equal(t, 5.0, cfg.Trade.MaxValueDiffPct)
	assert.Equal(t, 0.5, cfg.Room.ChatRate)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10*time.Minute, cfg.Trade.SweepInterval)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database:\n  path: from-file.sqlite3\n")
	t.Setenv("MENJAVA_DATABASE_PATH", "from-env.sqlite3")
	t.Setenv("MENJAVA_TRADE_SWEEP_INTERVAL", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.sqlite3", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.Trade.SweepInterval)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"log level", "log:\n  level: loud\n"},
		{"log format", "log:\n  format: xml\n"},
		{"parity bound", "trade:\n  max_value_diff_pct: 0\n"},
		{"ttl", "trade:\n  request_ttl: -1h\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
