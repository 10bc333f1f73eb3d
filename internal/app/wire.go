package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/auctiond/internal/blob/s3"
	"github.com/alanyoungcy/auctiond/internal/cache/memory"
	"github.com/alanyoungcy/auctiond/internal/cache/redis"
	"github.com/alanyoungcy/auctiond/internal/config"
	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/notify"
	"github.com/alanyoungcy/auctiond/internal/server/handler"
	"github.com/alanyoungcy/auctiond/internal/store/postgres"
)

// Dependencies bundles the infrastructure the modes run on. Store, cache and
// blob fields are nil in standalone mode.
type Dependencies struct {
	// Stores
	EventStore  domain.EventStore
	BidStore    domain.BidStore
	RTMStore    domain.RTMStore
	PlayerStore domain.PlayerStore
	TeamStore   domain.TeamStore
	AuditStore  domain.AuditStore
	SeedStore   domain.SeedSource

	// Caches
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	TeamCache   domain.TeamCache

	// memLimiter is set when RateLimiter is the in-process fallback; its
	// sweeper has to run alongside the server.
	memLimiter *memory.RateLimiter

	// Blob storage
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Checks feed the health endpoint.
	Checks map[string]handler.Check
}

// Wire constructs the concrete dependencies and returns them with a cleanup
// function that releases every connection. persistent selects the Postgres,
// Redis and S3 backends; without it only in-process pieces are built.
func Wire(ctx context.Context, cfg *config.Config, persistent bool, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	if persistent {
		// --- PostgreSQL ---
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
		deps.EventStore = postgres.NewEventStore(pool)
		deps.BidStore = postgres.NewBidStore(pool)
		deps.RTMStore = postgres.NewRTMStore(pool)
		deps.PlayerStore = postgres.NewPlayerStore(pool)
		deps.TeamStore = postgres.NewTeamStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.SeedStore = postgres.NewSeedStore(pool)
		deps.Checks["postgres"] = pgClient.Ping

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

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamLen)
		deps.TeamCache = redis.NewTeamCache(redisClient)
		deps.Checks["redis"] = redisClient.Ping

		// --- S3 blob storage ---
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

		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
		deps.Checks["s3"] = s3Client.Health
	} else {
		deps.memLimiter = memory.NewRateLimiter(max(time.Minute, 10*cfg.Server.BidRateWindow.Duration))
		deps.RateLimiter = deps.memLimiter
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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
