// Package server is the HTTP and WebSocket adapter in front of the auction
// service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/server/handler"
	"github.com/alanyoungcy/auctiond/internal/server/middleware"
	"github.com/alanyoungcy/auctiond/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port          int
	CORSOrigins   []string
	BidRateLimit  int
	BidRateWindow time.Duration
	// IdempotencyTTL is how long command responses are kept for replay.
	IdempotencyTTL time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Auction  *handler.AuctionHandler
	Teams    *handler.TeamHandler
	Archives *handler.ArchiveHandler // nil when archiving is off
	Events   *handler.EventHandler   // nil without an event store
}

// Deps are the cross-cutting collaborators of the middleware chain.
type Deps struct {
	Auth    *middleware.Authenticator
	Limiter domain.RateLimiter // nil disables bid throttling
	Hub     *ws.Hub            // nil disables /ws
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware
// chain: CORS, logging, identity. Commands additionally pass the
// idempotency guard; bids also pass the per-team rate limit.
func NewServer(cfg Config, h Handlers, deps Deps, logger *slog.Logger) *Server {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 10 * time.Minute
	}
	command := middleware.Idempotent(middleware.NewDedup(cfg.IdempotencyTTL))
	bidLimit := middleware.RateLimit(deps.Limiter, "bid", cfg.BidRateLimit, cfg.BidRateWindow, logger)

	mux := http.NewServeMux()
	cmd := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, command(fn))
	}

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	// Display reads.
	a := h.Auction
	mux.HandleFunc("GET /api/auction", a.Snapshot)
	mux.HandleFunc("GET /api/auction/bids", a.ListBids)
	mux.HandleFunc("GET /api/auction/sets", a.ListSets)
	mux.HandleFunc("GET /api/auction/rtm", a.ListRTM)
	mux.HandleFunc("GET /api/players", a.ListPlayers)
	mux.HandleFunc("GET /api/teams", h.Teams.ListTeams)
	mux.HandleFunc("GET /api/teams/{id}", h.Teams.GetTeam)

	// Team commands.
	mux.Handle("POST /api/auction/bids", bidLimit(command(http.HandlerFunc(a.PlaceBid))))
	cmd("PUT /api/auction/lots/{id}/opt-out", a.SetOptOut)
	cmd("POST /api/auction/rtm/accept", a.AcceptRTM)
	cmd("POST /api/auction/rtm/decline", a.DeclineRTM)

	// Floor commands.
	cmd("POST /api/auction/sets", a.GenerateSets)
	cmd("POST /api/auction/sets/pick", a.PickSet)
	cmd("POST /api/auction/draw", a.DrawLot)
	cmd("POST /api/auction/going-once", a.GoingOnce)
	cmd("POST /api/auction/going-twice", a.GoingTwice)
	cmd("POST /api/auction/sold", a.MarkSold)
	cmd("POST /api/auction/unsold", a.MarkUnsold)
	cmd("POST /api/auction/rtm/override", a.OverrideRTM)
	cmd("POST /api/auction/pause", a.Pause)
	cmd("POST /api/auction/resume", a.Resume)
	cmd("POST /api/auction/undo", a.Undo)

	// Administration.
	cmd("POST /api/auction/complete", a.Complete)
	cmd("POST /api/auction/start-new", a.StartNew)
	cmd("POST /api/auction/reset", a.Reset)
	cmd("PUT /api/auction/rules", a.UpdateRules)
	cmd("PUT /api/teams/{id}/config", h.Teams.ConfigureTeam)
	cmd("POST /api/import", a.Import)
	cmd("POST /api/players/{id}/retain", a.RetainPlayer)
	mux.HandleFunc("GET /api/audit", a.ListAudit)
	if h.Events != nil {
		mux.HandleFunc("GET /api/auction/events", h.Events.ListEvents)
	}
	if h.Archives != nil {
		mux.HandleFunc("GET /api/archives", h.Archives.ListArchives)
	}

	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	var root http.Handler = mux
	root = middleware.Auth(deps.Auth)(root)
	root = middleware.Logging(logger)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           root,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
