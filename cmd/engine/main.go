package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gator-chat/internal/config"
	"gator-chat/internal/database"
	"gator-chat/internal/engine"
	"gator-chat/internal/handlers"
	"gator-chat/internal/middleware"
	"gator-chat/internal/notify"
	"gator-chat/internal/utils"
	"gator-chat/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	registryWorkers = 8
	shutdownTimeout = 10 * time.Second
)

// Server holds all dependencies
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	system   *actor.ActorSystem
	db       database.DBAdapter
	engine   *engine.Engine
	registry *notify.Registry
	hub      *websocket.Hub
	http     *http.Server
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := utils.NewLogger(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := NewServer(ctx, cfg, logger, clockwork.NewRealClock())
	if err != nil {
		logger.Error("Failed to start", "error", err)
		os.Exit(1)
	}
	if err := server.Run(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

// NewServer opens the store and assembles the actor engine, subscription
// registry, websocket hub and HTTP router.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, clock clockwork.Clock) (*Server, error) {
	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Type, err)
	}

	system := actor.NewActorSystem(actor.WithLoggerFactory(func(*actor.ActorSystem) *slog.Logger {
		return logger.With("component", "protoactor")
	}))
	metrics := utils.NewMetricsCollector()

	eng := engine.NewEngine(system, engine.Options{
		DB:            db,
		Clock:         clock,
		Metrics:       metrics,
		Logger:        logger,
		Timeout:       cfg.RequestTimeout,
		TypingWindow:  cfg.Presence.TypingWindow,
		UserCacheSize: cfg.UserCacheSize,
		AvatarStyle:   cfg.AvatarStyle,
	})
	registry := notify.NewRegistry(eng, system.EventStream, clock, metrics, logger)
	hub := websocket.NewHub(eng, registry, metrics, logger)
	validator := middleware.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	handler := handlers.NewServer(eng, hub, registry, validator, metrics, logger)
	handler.CORS = middleware.DefaultCORSConfig(cfg.AllowedOrigins)
	handler.MetricsEnabled = cfg.Server.MetricsEnabled

	return &Server{
		cfg:      cfg,
		logger:   logger,
		system:   system,
		db:       db,
		engine:   eng,
		registry: registry,
		hub:      hub,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.registry.Run(gctx, registryWorkers) })
	g.Go(func() error { return s.hub.Run(gctx) })
	g.Go(func() error { return s.engine.RunTypingReaper(gctx, s.cfg.Presence.ReapInterval) })
	g.Go(func() error {
		s.logger.Info("Starting server", "addr", s.http.Addr, "store", s.cfg.Database.Type)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.logger.Info("Shutting down")
	return multierr.Append(err, s.Close())
}

// Close stops the actor system and releases the store.
func (s *Server) Close() error {
	s.system.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.db.Close(ctx); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
