package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SENTINEL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SENTINEL_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SENTINEL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SENTINEL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SENTINEL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SENTINEL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SENTINEL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SENTINEL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SENTINEL_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SENTINEL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SENTINEL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SENTINEL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SENTINEL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SENTINEL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SENTINEL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SENTINEL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SENTINEL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SENTINEL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SENTINEL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SENTINEL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SENTINEL_S3_REGION")
	setStr(&cfg.S3.Bucket, "SENTINEL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SENTINEL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SENTINEL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SENTINEL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SENTINEL_S3_FORCE_PATH_STYLE")

	// ── Exchanges ──
	setBool(&cfg.Binance.Enabled, "SENTINEL_BINANCE_ENABLED")
	setStr(&cfg.Binance.BaseURL, "SENTINEL_BINANCE_BASE_URL")
	setStr(&cfg.Binance.ApiKey, "SENTINEL_BINANCE_API_KEY")
	setStr(&cfg.Binance.ApiSecret, "SENTINEL_BINANCE_API_SECRET")
	setBool(&cfg.Bybit.Enabled, "SENTINEL_BYBIT_ENABLED")
	setStr(&cfg.Bybit.BaseURL, "SENTINEL_BYBIT_BASE_URL")
	setStr(&cfg.Bybit.ApiKey, "SENTINEL_BYBIT_API_KEY")
	setStr(&cfg.Bybit.ApiSecret, "SENTINEL_BYBIT_API_SECRET")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "SENTINEL_FEED_ENABLED")
	setStr(&cfg.Feed.URL, "SENTINEL_FEED_URL")
	setStringSlice(&cfg.Feed.Symbols, "SENTINEL_FEED_SYMBOLS")
	setDuration(&cfg.Feed.InitialBackoff, "SENTINEL_FEED_INITIAL_BACKOFF")
	setDuration(&cfg.Feed.MaxBackoff, "SENTINEL_FEED_MAX_BACKOFF")
	setDuration(&cfg.Feed.ReadTimeout, "SENTINEL_FEED_READ_TIMEOUT")

	// ── Risk ──
	setFloat64(&cfg.Risk.StopLossPct, "SENTINEL_RISK_STOP_LOSS_PCT")
	setFloat64(&cfg.Risk.TakeProfitPct, "SENTINEL_RISK_TAKE_PROFIT_PCT")
	setFloat64(&cfg.Risk.DrawdownWarnPct, "SENTINEL_RISK_DRAWDOWN_WARN_PCT")
	setFloat64(&cfg.Risk.DrawdownCriticalPct, "SENTINEL_RISK_DRAWDOWN_CRITICAL_PCT")
	setInt(&cfg.Risk.MaxPositions, "SENTINEL_RISK_MAX_POSITIONS")
	setFloat64(&cfg.Risk.MaxExposure, "SENTINEL_RISK_MAX_EXPOSURE")

	// ── Monitor ──
	setFloat64(&cfg.Monitor.SpreadThreshold, "SENTINEL_MONITOR_SPREAD_THRESHOLD")
	setInt(&cfg.Monitor.MaxConcurrency, "SENTINEL_MONITOR_MAX_CONCURRENCY")
	setInt(&cfg.Monitor.RateLimit, "SENTINEL_MONITOR_RATE_LIMIT")
	setDuration(&cfg.Monitor.RateWindow, "SENTINEL_MONITOR_RATE_WINDOW")

	// ── Jobs ──
	setBool(&cfg.Jobs.RiskCheck.Enabled, "SENTINEL_JOBS_RISK_CHECK_ENABLED")
	setDuration(&cfg.Jobs.RiskCheck.Interval, "SENTINEL_JOBS_RISK_CHECK_INTERVAL")
	setBool(&cfg.Jobs.SpreadMonitor.Enabled, "SENTINEL_JOBS_SPREAD_MONITOR_ENABLED")
	setDuration(&cfg.Jobs.SpreadMonitor.Interval, "SENTINEL_JOBS_SPREAD_MONITOR_INTERVAL")
	setBool(&cfg.Jobs.PositionRefresh.Enabled, "SENTINEL_JOBS_POSITION_REFRESH_ENABLED")
	setDuration(&cfg.Jobs.PositionRefresh.Interval, "SENTINEL_JOBS_POSITION_REFRESH_INTERVAL")
	setBool(&cfg.Jobs.AlertArchive.Enabled, "SENTINEL_JOBS_ALERT_ARCHIVE_ENABLED")
	setDuration(&cfg.Jobs.AlertArchive.Interval, "SENTINEL_JOBS_ALERT_ARCHIVE_INTERVAL")
	setInt(&cfg.Jobs.ArchiveRetentionDays, "SENTINEL_JOBS_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Jobs.ArchiveBatchSize, "SENTINEL_JOBS_ARCHIVE_BATCH_SIZE")
	setStr(&cfg.Jobs.ArchivePrefix, "SENTINEL_JOBS_ARCHIVE_PREFIX")

	// ── Lock ──
	setDuration(&cfg.Lock.TTL, "SENTINEL_LOCK_TTL")
	setInt(&cfg.Lock.MaxRetries, "SENTINEL_LOCK_MAX_RETRIES")
	setDuration(&cfg.Lock.RetryDelay, "SENTINEL_LOCK_RETRY_DELAY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SENTINEL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SENTINEL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SENTINEL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.MinLevel, "SENTINEL_NOTIFY_MIN_LEVEL")

	// ── Top-level ──
	setStr(&cfg.Mode, "SENTINEL_MODE")
	setStr(&cfg.LogLevel, "SENTINEL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
