package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/config"
	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/server"
	"github.com/alanyoungcy/auctiond/internal/server/handler"
	"github.com/alanyoungcy/auctiond/internal/server/middleware"
	"github.com/alanyoungcy/auctiond/internal/server/ws"
	"github.com/alanyoungcy/auctiond/internal/service"
)

// shutdownTimeout bounds how long in-flight requests get on shutdown.
const shutdownTimeout = 10 * time.Second

// FullMode runs the engine behind the room lease with write-behind
// persistence to Postgres, the Redis signal bus and S3 archiving.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	lease := service.NewRoomLease(deps.LockManager, a.cfg.Redis.LeaseTTL.Duration, deps.Notifier, a.logger)
	if err := lease.Acquire(ctx); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	engine := auction.New(engineConfig(a.cfg.Auction), a.logger)
	if a.cfg.Postgres.SeedFromStore {
		if _, err := service.NewSeeder(engine, a.logger).Seed(ctx, deps.SeedStore); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return lease.Run(gctx)
	})

	// Subscriptions outlive gctx so the events committed before shutdown
	// still reach the stores; engine.Close ends them.
	recorder := service.NewRecorder(service.RecorderStores{
		Events:  deps.EventStore,
		Bids:    deps.BidStore,
		RTM:     deps.RTMStore,
		Players: deps.PlayerStore,
		Teams:   deps.TeamStore,
	}, deps.SignalBus, deps.TeamCache, service.DefaultRetryPolicy(), a.logger)
	recorded := engine.Subscribe(context.Background())
	g.Go(func() error {
		return recorder.Run(gctx, recorded)
	})

	var archives *service.ArchiveService
	if deps.Archiver != nil {
		archives = service.NewArchiveService(engine, deps.Archiver, deps.BlobReader, deps.BidStore, deps.RTMStore, a.logger)
		if a.cfg.Auction.ArchiveOnComplete {
			completed := engine.Subscribe(context.Background())
			g.Go(func() error {
				return archives.Run(gctx, completed)
			})
		}
	}

	a.runShared(gctx, g, engine, deps, archives)
	return g.Wait()
}

// StandaloneMode runs the engine alone: the roster comes from a JSON seed
// file and nothing outlives the process.
func (a *App) StandaloneMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting standalone mode",
		slog.String("seed_file", a.cfg.Auction.SeedFile),
	)

	engine := auction.New(engineConfig(a.cfg.Auction), a.logger)
	_, err := service.NewSeeder(engine, a.logger).Seed(ctx, service.FileSeed{Path: a.cfg.Auction.SeedFile})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		a.logger.WarnContext(ctx, "seed file not found, waiting for an import",
			slog.String("seed_file", a.cfg.Auction.SeedFile),
		)
	case err != nil:
		return fmt.Errorf("standalone mode: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if deps.memLimiter != nil {
		g.Go(func() error {
			return deps.memLimiter.Run(gctx, time.Minute)
		})
	}
	a.runShared(gctx, g, engine, deps, nil)
	return g.Wait()
}

// runShared starts the pieces both modes have: alerts, the WebSocket hub
// and the HTTP server. When ctx ends the server drains first, then the
// engine closes so every subscriber sees the final events.
func (a *App) runShared(ctx context.Context, g *errgroup.Group, engine *auction.Engine, deps *Dependencies, archives *service.ArchiveService) {
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		alerts := service.NewAlerts(deps.Notifier, engine, a.logger)
		alerted := engine.Subscribe(context.Background())
		g.Go(func() error {
			return alerts.Run(ctx, alerted)
		})
	}

	svc := service.NewAuctionService(engine, deps.AuditStore, a.cfg.Auction.SetSize, a.logger)

	hub := ws.NewHub(svc, a.cfg.Server.CORSOrigins, a.logger)
	broadcast := engine.Subscribe(ctx)
	g.Go(func() error {
		return hub.Run(ctx, broadcast)
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.cfg.Mode, deps.Checks, a.logger),
		Auction: handler.NewAuctionHandler(svc, a.logger),
		Teams:   handler.NewTeamHandler(svc, a.logger),
	}
	if archives != nil {
		handlers.Archives = handler.NewArchiveHandler(archives, a.logger)
	}
	if deps.EventStore != nil {
		handlers.Events = handler.NewEventHandler(service.NewEventLog(engine, deps.EventStore), a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:          a.cfg.Server.Port,
		CORSOrigins:   a.cfg.Server.CORSOrigins,
		BidRateLimit:  a.cfg.Server.BidRateLimit,
		BidRateWindow: a.cfg.Server.BidRateWindow.Duration,
	}, handlers, server.Deps{
		Auth:    middleware.NewAuthenticator(a.cfg.Auth.JWTSecret, a.cfg.Auth.JWTIssuer, apiKeys(a.cfg.Auth.APIKeys)),
		Limiter: deps.RateLimiter,
		Hub:     hub,
	}, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutCtx)
		engine.Close()
		return err
	})
}

// engineConfig maps the [auction] table onto the engine's tunables.
func engineConfig(c config.AuctionConfig) auction.Config {
	return auction.Config{
		Rules: domain.Rules{
			RTMEnabled:      c.RTMEnabled,
			DefaultRTMCards: c.DefaultRTMCards,
			DefaultPurse:    c.Purse(),
			MaxSquad:        c.MaxSquad,
			MaxOverseas:     c.MaxOverseas,
		},
		RTMWindow:     c.RTMWindow.Duration,
		AutoAdvance:   c.AutoAdvance,
		Seed:          c.Seed,
		HistoryWindow: c.BidHistoryWindow,
	}
}

func apiKeys(keys []config.APIKey) []middleware.APIKey {
	out := make([]middleware.APIKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, middleware.APIKey{
			Name:   k.Name,
			Hash:   k.Hash,
			Role:   domain.Role(k.Role),
			TeamID: k.TeamID,
		})
	}
	return out
}
