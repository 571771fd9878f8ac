package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/sentinel/internal/blob/s3"
	"github.com/alanyoungcy/sentinel/internal/cache/redis"
	"github.com/alanyoungcy/sentinel/internal/config"
	"github.com/alanyoungcy/sentinel/internal/domain"
	"github.com/alanyoungcy/sentinel/internal/exchange"
	"github.com/alanyoungcy/sentinel/internal/lock"
	"github.com/alanyoungcy/sentinel/internal/notify"
	"github.com/alanyoungcy/sentinel/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores (nil in monitor mode)
	PositionStore domain.PositionStore
	AlertStore    domain.AlertStore

	// Redis-backed
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager *lock.Manager

	// Exchange adapters
	Registry *exchange.Registry

	// Blob archival (nil unless s3.enabled)
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that persist positions and alerts.
func needsPostgres(mode string) bool {
	switch mode {
	case "risk", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.PositionStore = postgres.NewPositionStore(pool)
		deps.AlertStore = postgres.NewAlertStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = lock.NewManager(
		redis.NewLockStore(redisClient),
		lock.Config{
			MaxRetries: cfg.Lock.MaxRetries,
			RetryDelay: cfg.Lock.RetryDelay.Duration,
		},
		logger,
	)

	// --- Exchange adapters ---
	deps.Registry = exchange.NewRegistry()
	if cfg.Binance.Enabled {
		deps.Registry.Register(exchange.NewBinanceAdapter(
			cfg.Binance.BaseURL, cfg.Binance.ApiKey, cfg.Binance.ApiSecret,
		))
	}
	if cfg.Bybit.Enabled {
		deps.Registry.Register(exchange.NewBybitAdapter(
			cfg.Bybit.BaseURL, cfg.Bybit.ApiKey, cfg.Bybit.ApiSecret,
		))
	}

	// --- S3 alert archival ---
	if cfg.S3.Enabled && deps.AlertStore != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(deps.AlertStore, s3Client, s3blob.ArchiverConfig{
			Retention: time.Duration(cfg.Jobs.ArchiveRetentionDays) * 24 * time.Hour,
			BatchSize: cfg.Jobs.ArchiveBatchSize,
			Prefix:    cfg.Jobs.ArchivePrefix,
		}, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, domain.AlertLevel(cfg.Notify.MinLevel), logger)

	return deps, cleanup, nil
}
