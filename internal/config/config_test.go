package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "batch"
	cfg.Redis.Addr = ""
	cfg.Risk.DrawdownWarnPct = 30
	cfg.Risk.DrawdownCriticalPct = 20
	cfg.Notify.TelegramToken = "tok" // chat id missing

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "batch"`)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "drawdown_warn_pct")
	assert.Contains(t, err.Error(), "telegram_token and telegram_chat_id")
}

func TestArchiveJobRequiresS3(t *testing.T) {
	cfg := Defaults()
	cfg.Jobs.AlertArchive.Enabled = true
	cfg.S3.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alert_archive requires s3.enabled")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"
log_level = "debug"

[redis]
addr = "redis.internal:6380"

[monitor]
spread_threshold = 0.0005
rate_window = "2s"

[[monitor.symbols]]
symbol = "SOLUSDT"
enabled = true

[jobs.risk_check]
interval = "45s"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.InDelta(t, 0.0005, cfg.Monitor.SpreadThreshold, 1e-12)
	assert.Equal(t, 2*time.Second, cfg.Monitor.RateWindow.Duration)
	assert.Equal(t, 45*time.Second, cfg.Jobs.RiskCheck.Interval.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 20, cfg.Redis.PoolSize)

	// File-provided symbol list replaces the default one.
	require.Len(t, cfg.Monitor.Symbols, 1)
	assert.Equal(t, "SOLUSDT", cfg.Monitor.Symbols[0].Symbol)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[redis]
addr = "from-file:6379"
`), 0o644))

	t.Setenv("SENTINEL_REDIS_ADDR", "from-env:6379")
	t.Setenv("SENTINEL_RISK_STOP_LOSS_PCT", "12.5")
	t.Setenv("SENTINEL_FEED_SYMBOLS", "BTCUSDT, SOLUSDT")
	t.Setenv("SENTINEL_LOCK_TTL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env:6379", cfg.Redis.Addr)
	assert.InDelta(t, 12.5, cfg.Risk.StopLossPct, 1e-9)
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, cfg.Feed.Symbols)
	assert.Equal(t, 90*time.Second, cfg.Lock.TTL.Duration)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
