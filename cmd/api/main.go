// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careerpilot/ledger-service/internal/admin"
	"github.com/careerpilot/ledger-service/internal/auth"
	"github.com/careerpilot/ledger-service/internal/config"
	"github.com/careerpilot/ledger-service/internal/core"
	"github.com/careerpilot/ledger-service/internal/generation"
	"github.com/careerpilot/ledger-service/internal/health"
	"github.com/careerpilot/ledger-service/internal/ledger"
	"github.com/careerpilot/ledger-service/internal/middleware"
	"github.com/careerpilot/ledger-service/internal/server"
	"github.com/careerpilot/ledger-service/internal/settings"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	// The JWT manager consults the auth service's blacklist and token
	// versions, and the auth service issues tokens through the manager.
	// The closures break the construction cycle: authSvc is assigned
	// before any request runs.
	var authSvc *auth.Service
	jwtManager, err := auth.NewJWTManager(cfg.JWT,
		func(ctx context.Context, jti string) (bool, error) {
			return authSvc.IsAccessTokenBlacklisted(ctx, jti)
		},
		func(ctx context.Context, userID string) (int, error) {
			return authSvc.CurrentTokenVersion(ctx, userID)
		},
	)
	if err != nil {
		return err
	}

	settingsSvc := settings.NewService(
		settings.NewRepository(db.DB),
		cfg.Settings.CacheTTL,
	)

	store := ledger.NewStore(db.DB)
	verifier := ledger.NewPaystackVerifier(cfg.Payment)
	ledgerSvc := ledger.NewService(
		store,
		verifier,
		settingsSvc,
		cfg.Payment.VerifyTimeout,
		cfg.Payment.FallbackRateMinor,
	)
	ledgerHandler := ledger.NewHandler(ledgerSvc)

	generator := generation.NewHTTPGenerator(cfg.Generator)
	generationSvc := generation.NewService(generator, ledgerSvc, settingsSvc)
	generationHandler := generation.NewHandler(generationSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc = auth.NewService(authRepo, jwtManager, ledgerSvc, redis.Client)
	authHandler := auth.NewHandler(authSvc)

	healthHandler := health.NewHandler()
	healthHandler.AddCheck("database", db)
	healthHandler.AddCheck("redis", redis)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Ledger:     ledgerSvc,
		Settings:   settingsSvc,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	authenticator := middleware.Authenticator(jwtManager)
	adminOnly := middleware.RequireAdmin

	maintenance := middleware.Maintenance(
		func(ctx context.Context) (bool, error) {
			current, err := settingsSvc.Current(ctx)
			if err != nil {
				return false, err
			}
			return current.Features.MaintenanceMode, nil
		},
	)

	// Ledger and generation traffic pauses during maintenance; auth stays
	// open so admins can sign in and users can log out, and the admin
	// surface stays open to flip the flag back.
	gated := func(next http.Handler) http.Handler {
		return authenticator(maintenance(next))
	}

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		ledgerHandler.RegisterRoutes(r, gated, adminOnly)
		generationHandler.RegisterRoutes(r, gated)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
