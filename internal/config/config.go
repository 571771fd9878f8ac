// Package config defines the top-level configuration for the sentinel
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SENTINEL_* environment
// variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Binance  BinanceConfig  `toml:"binance"`
	Bybit    BybitConfig    `toml:"bybit"`
	Feed     FeedConfig     `toml:"feed"`
	Risk     RiskConfig     `toml:"risk"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Jobs     JobsConfig     `toml:"jobs"`
	Lock     LockConfig     `toml:"lock"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for alert archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// BinanceConfig holds Binance futures API parameters.
type BinanceConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`
}

// BybitConfig holds Bybit v5 API parameters.
type BybitConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`
}

// FeedConfig holds the websocket mark-price stream parameters.
type FeedConfig struct {
	Enabled        bool     `toml:"enabled"`
	URL            string   `toml:"url"`
	Symbols        []string `toml:"symbols"`
	InitialBackoff duration `toml:"initial_backoff"`
	MaxBackoff     duration `toml:"max_backoff"`
	ReadTimeout    duration `toml:"read_timeout"`
}

// RiskConfig holds the risk engine thresholds. Percentages are positive
// numbers; stop_loss_pct 10 means alert at -10% PnL.
type RiskConfig struct {
	StopLossPct         float64 `toml:"stop_loss_pct"`
	TakeProfitPct       float64 `toml:"take_profit_pct"`
	DrawdownWarnPct     float64 `toml:"drawdown_warn_pct"`
	DrawdownCriticalPct float64 `toml:"drawdown_critical_pct"`
	MaxPositions        int     `toml:"max_positions"`
	MaxExposure         float64 `toml:"max_exposure"`
}

// MonitorSymbol is one tracked symbol entry in the monitor section.
type MonitorSymbol struct {
	Symbol  string `toml:"symbol"`
	Enabled bool   `toml:"enabled"`
}

// MonitorConfig holds the funding-rate spread monitor parameters.
type MonitorConfig struct {
	Symbols         []MonitorSymbol `toml:"symbols"`
	SpreadThreshold float64         `toml:"spread_threshold"`
	MaxConcurrency  int             `toml:"max_concurrency"`
	RateLimit       int             `toml:"rate_limit"`
	RateWindow      duration        `toml:"rate_window"`
}

// JobConfig holds one scheduled job's timing and retry policy.
type JobConfig struct {
	Enabled        bool     `toml:"enabled"`
	Interval       duration `toml:"interval"`
	RunImmediately bool     `toml:"run_immediately"`
	MaxRetries     int      `toml:"max_retries"`
	RetryDelay     duration `toml:"retry_delay"`
}

// JobsConfig holds the policies for every scheduled job.
type JobsConfig struct {
	RiskCheck       JobConfig `toml:"risk_check"`
	SpreadMonitor   JobConfig `toml:"spread_monitor"`
	PositionRefresh JobConfig `toml:"position_refresh"`
	AlertArchive    JobConfig `toml:"alert_archive"`

	ArchiveRetentionDays int    `toml:"archive_retention_days"`
	ArchiveBatchSize     int    `toml:"archive_batch_size"`
	ArchivePrefix        string `toml:"archive_prefix"`
}

// LockConfig holds the distributed lock policy for singleton jobs.
type LockConfig struct {
	TTL        duration `toml:"ttl"`
	MaxRetries int      `toml:"max_retries"`
	RetryDelay duration `toml:"retry_delay"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	MinLevel          string `toml:"min_level"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values from
// config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "sentinel",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "sentinel-archive",
			ForcePathStyle: true,
		},
		Binance: BinanceConfig{
			Enabled: true,
			BaseURL: "https://fapi.binance.com",
		},
		Bybit: BybitConfig{
			Enabled: true,
			BaseURL: "https://api.bybit.com",
		},
		Feed: FeedConfig{
			Enabled:        true,
			URL:            "wss://fstream.binance.com/stream",
			Symbols:        []string{"BTCUSDT", "ETHUSDT"},
			InitialBackoff: duration{2 * time.Second},
			MaxBackoff:     duration{30 * time.Second},
			ReadTimeout:    duration{90 * time.Second},
		},
		Risk: RiskConfig{
			StopLossPct:         10,
			TakeProfitPct:       20,
			DrawdownWarnPct:     10,
			DrawdownCriticalPct: 25,
			MaxPositions:        20,
			MaxExposure:         250_000,
		},
		Monitor: MonitorConfig{
			Symbols: []MonitorSymbol{
				{Symbol: "BTCUSDT", Enabled: true},
				{Symbol: "ETHUSDT", Enabled: true},
			},
			SpreadThreshold: 0.0001,
			MaxConcurrency:  4,
			RateLimit:       10,
			RateWindow:      duration{time.Second},
		},
		Jobs: JobsConfig{
			RiskCheck: JobConfig{
				Enabled:        true,
				Interval:       duration{30 * time.Second},
				RunImmediately: true,
				MaxRetries:     2,
				RetryDelay:     duration{2 * time.Second},
			},
			SpreadMonitor: JobConfig{
				Enabled:    true,
				Interval:   duration{time.Minute},
				MaxRetries: 1,
				RetryDelay: duration{5 * time.Second},
			},
			PositionRefresh: JobConfig{
				Enabled:        true,
				Interval:       duration{15 * time.Second},
				RunImmediately: true,
				MaxRetries:     2,
				RetryDelay:     duration{time.Second},
			},
			AlertArchive: JobConfig{
				Enabled:    false,
				Interval:   duration{6 * time.Hour},
				MaxRetries: 1,
				RetryDelay: duration{time.Minute},
			},
			ArchiveRetentionDays: 30,
			ArchiveBatchSize:     500,
			ArchivePrefix:        "alerts",
		},
		Lock: LockConfig{
			TTL:        duration{5 * time.Minute},
			MaxRetries: 3,
			RetryDelay: duration{100 * time.Millisecond},
		},
		Notify: NotifyConfig{
			MinLevel: "warning",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"risk":    true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validAlertLevels = map[string]bool{
	"":         true,
	"info":     true,
	"warning":  true,
	"critical": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: risk, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 only matters when archival is on.
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}
	if c.Jobs.AlertArchive.Enabled && !c.S3.Enabled {
		errs = append(errs, "jobs: alert_archive requires s3.enabled")
	}

	// Exchanges
	if !c.Binance.Enabled && !c.Bybit.Enabled {
		errs = append(errs, "exchanges: at least one of binance or bybit must be enabled")
	}
	if c.Binance.Enabled && c.Binance.BaseURL == "" {
		errs = append(errs, "binance: base_url must not be empty")
	}
	if c.Bybit.Enabled && c.Bybit.BaseURL == "" {
		errs = append(errs, "bybit: base_url must not be empty")
	}

	// Feed
	if c.Feed.Enabled && len(c.Feed.Symbols) == 0 {
		errs = append(errs, "feed: symbols must not be empty when enabled")
	}

	// Risk thresholds
	if c.Risk.StopLossPct < 0 {
		errs = append(errs, "risk: stop_loss_pct must be >= 0")
	}
	if c.Risk.TakeProfitPct < 0 {
		errs = append(errs, "risk: take_profit_pct must be >= 0")
	}
	if c.Risk.DrawdownCriticalPct > 0 && c.Risk.DrawdownWarnPct > c.Risk.DrawdownCriticalPct {
		errs = append(errs, "risk: drawdown_warn_pct must not exceed drawdown_critical_pct")
	}
	if c.Risk.MaxExposure < 0 {
		errs = append(errs, "risk: max_exposure must be >= 0")
	}

	// Monitor
	if c.Monitor.SpreadThreshold < 0 {
		errs = append(errs, "monitor: spread_threshold must be >= 0")
	}
	if c.Monitor.MaxConcurrency < 0 {
		errs = append(errs, "monitor: max_concurrency must be >= 0")
	}

	// Jobs
	for name, job := range map[string]JobConfig{
		"risk_check":       c.Jobs.RiskCheck,
		"spread_monitor":   c.Jobs.SpreadMonitor,
		"position_refresh": c.Jobs.PositionRefresh,
		"alert_archive":    c.Jobs.AlertArchive,
	} {
		if job.Enabled && job.Interval.Duration <= 0 {
			errs = append(errs, fmt.Sprintf("jobs: %s interval must be positive when enabled", name))
		}
		if job.MaxRetries < 0 {
			errs = append(errs, fmt.Sprintf("jobs: %s max_retries must be >= 0", name))
		}
	}
	if c.Jobs.ArchiveRetentionDays < 1 {
		errs = append(errs, "jobs: archive_retention_days must be >= 1")
	}

	// Lock
	if c.Lock.TTL.Duration <= 0 {
		errs = append(errs, "lock: ttl must be positive")
	}

	// Notify
	if !validAlertLevels[strings.ToLower(c.Notify.MinLevel)] {
		errs = append(errs, fmt.Sprintf("notify: unknown min_level %q (valid: info, warning, critical)", c.Notify.MinLevel))
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
