// Ameotech site triage server.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ameotech/triage/internal/api"
	"github.com/ameotech/triage/internal/chatsocket"
	"github.com/ameotech/triage/internal/config"
	"github.com/ameotech/triage/internal/dialogue"
	"github.com/ameotech/triage/internal/identity"
	"github.com/ameotech/triage/internal/intent"
	"github.com/ameotech/triage/internal/middleware"
	"github.com/ameotech/triage/internal/notify"
	"github.com/ameotech/triage/internal/probe"
	"github.com/ameotech/triage/internal/session"
	"github.com/ameotech/triage/internal/store"
	"github.com/ameotech/triage/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

//nolint:gocyclo // Startup wiring is sequential to keep dependency setup explicit.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "env", cfg.Env, "session_backend", cfg.Session.Backend)

	// Repository.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	if cfg.ContentSeed != "" {
		if _, err := store.SeedContent(ctx, repo, cfg.ContentSeed); err != nil {
			return err
		}
	}

	// Session store.
	checks := map[string]api.Pinger{"database": repo}
	probeDeps := map[string]probe.Pinger{"database": repo}

	sessOpts := session.Options{MaxTurns: cfg.Session.MaxTurns, TTL: cfg.Session.TTL}
	var (
		sessions session.Store
		memStore *session.MemoryStore
	)
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		client, err := session.NewRedisClient(ctx, session.RedisConfig{
			URL:          cfg.Redis.URL,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			DialTimeout:  cfg.Redis.DialTimeout,
		})
		if err != nil {
			return err
		}
		defer closeRedis(client)
		rs := session.NewRedisStore(client, sessOpts)
		sessions = rs
		checks["redis"] = rs
		probeDeps["redis"] = rs
		slog.Info("Redis session store ready")
	default:
		memStore = session.NewMemoryStore(sessOpts)
		sessions = memStore
	}

	// Notifications.
	sinks := []notify.Sink{notify.NewRecorderSink(repo)}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
	} else {
		slog.Info("SALES_WEBHOOK_URL not set, notifications are logged only")
		sinks = append(sinks, notify.NewLogSink(logger))
	}
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		QueueSize: cfg.Notify.QueueSize,
		Timeout:   cfg.Notify.Timeout,
		Logger:    logger,
	}, sinks...)

	// Reasoning core.
	classifier, err := intent.Default()
	if err != nil {
		return err
	}
	mgr := dialogue.New(sessions, classifier, dispatcher, dialogue.Config{
		ClarifyThreshold: cfg.Dialogue.ClarifyThreshold,
		MaxClarifyLoops:  cfg.Dialogue.MaxClarifyLoops,
		ContactEmail:     cfg.Dialogue.ContactEmail,
		Logger:           logger,
	})

	// Handlers.
	chatHandler := api.NewChatHandler(mgr, repo, logger)
	labsHandler := api.NewLabsHandler(mgr)
	contentHandler := api.NewContentHandler(repo)
	notifyHandler := api.NewNotifyHandler(dispatcher)
	healthHandler := api.NewHealthHandler(checks).WithStats("notifications", dispatcher)
	sockets := chatsocket.NewRegistry()
	wsHandler := chatsocket.NewHandler(mgr, sockets, cfg.AllowedOrigins, cfg.IsDevelopment())

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	visitorKey := func(r *http.Request) string {
		if id := identity.VisitorIDFromContext(r.Context()); id != "" {
			return id
		}
		return identity.IPFromRequest(r)
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	contentHandler.RegisterRoutes(r)

	// Chat, lab and notification routes are rate limited per visitor.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, visitorKey))
		r.Use(chiMiddleware.Timeout(30 * time.Second))
		chatHandler.RegisterRoutes(r)
		labsHandler.RegisterRoutes(r)
		notifyHandler.RegisterRoutes(r)
	})

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long lived.
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		limiter.RunEviction(gctx)
		return nil
	})

	if memStore != nil {
		g.Go(func() error {
			memStore.RunSweeper(gctx, cfg.Session.SweepInterval)
			return nil
		})
	}

	if cfg.GRPCHealthAddr != "" {
		ps := probe.New(probe.Config{Addr: cfg.GRPCHealthAddr, Logger: logger}, probeDeps)
		g.Go(func() error {
			return ps.Run(gctx)
		})
	}

	// Shutdown watcher.
	g.Go(func() error {
		<-gctx.Done()
		stop()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sockets.CloseAll()
		err := srv.Shutdown(shutdownCtx)
		chatHandler.Wait()
		if closeErr := dispatcher.Close(shutdownCtx); closeErr != nil {
			slog.Warn("Notification queue not drained", "error", closeErr, "stats", dispatcher.Stats())
		}
		return err
	})

	return g.Wait()
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		slog.Error("Failed to close Redis client", "error", err)
	}
}
