package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeYAML(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.SyncInterval())
	assert.Equal(t, 3*time.Second, cfg.CoalesceWindow())
	assert.Equal(t, 2500*time.Millisecond, cfg.DeltaLifetime())
	assert.Equal(t, 15*time.Minute, cfg.ClosingSoonWindow())
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 15*time.Second, cfg.APITimeout())
	assert.Equal(t, 5, cfg.Sync.SwingThreshold)
	assert.Equal(t, 100.0, cfg.Betting.LiquidityFloor)
	assert.Equal(t, "pariwager.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_YAMLValues(t *testing.T) {
	cfg, err := Load(writeYAML(t, `
api:
  base_url: "https://bets.example.com/api"
  timeout_seconds: 3
sync:
  interval_seconds: 2
  coalesce_ms: 500
betting:
  bettor: u-7
  liquidity_floor: 250
  check_balance: true
redis:
  addr: "localhost:6379"
`))
	require.NoError(t, err)

	assert.Equal(t, "https://bets.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.APITimeout())
	assert.Equal(t, 2*time.Second, cfg.SyncInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.CoalesceWindow())
	assert.Equal(t, "u-7", cfg.Betting.Bettor)
	assert.Equal(t, 250.0, cfg.Betting.LiquidityFloor)
	assert.True(t, cfg.Betting.CheckBalance)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PARIWAGER_API_TOKEN", "tok-123")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(writeYAML(t, "api:\n  token: from-yaml\nlog:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "tok-123", cfg.API.Token)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeYAML(t, "api: [unclosed\n"))
	assert.Error(t, err)
}
