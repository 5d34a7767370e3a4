package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/archvault/archvault/internal/app"
	"github.com/archvault/archvault/internal/artifacts"
	"github.com/archvault/archvault/internal/auth"
	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/observability"
	"github.com/archvault/archvault/internal/platform/cache"
	"github.com/archvault/archvault/internal/platform/db"
	"github.com/archvault/archvault/internal/profiles"
	"github.com/archvault/archvault/internal/shared"
	"github.com/archvault/archvault/internal/users"
	"github.com/archvault/archvault/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "archvault_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool, logger)
	metrics := observability.NewMetrics()

	usersRepo := users.NewRepository(dbpool)

	roleCache, err := authz.NewRoleCache(usersRepo, redisClient, logger, cfg.RoleCacheSize)
	if err != nil {
		logger.Error("init role cache", slog.Any("error", err))
		os.Exit(1)
	}
	go roleCache.Subscribe(ctx)

	guard := authz.Middleware{Roles: roleCache, Logger: logger}

	mailClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mailClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	profilesRepo := profiles.NewRepository(dbpool)
	profilesService := profiles.NewService(profilesRepo)
	profilesHandler := profiles.NewHandler(logger, profilesService)

	usersService := users.NewService(usersRepo, roleCache, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, mailClient)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, profilesService, usersRepo)

	artifactsRepo := artifacts.NewRepository(dbpool)
	artifactsService := artifacts.NewService(artifactsRepo, auditLogger, logger)
	artifactsHandler := artifacts.NewHandler(logger, artifactsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Guard:            guard,
		AuthHandler:      authHandler,
		ProfileHandler:   profilesHandler,
		UsersHandler:     usersHandler,
		ArtifactsHandler: artifactsHandler,
		JobsHandler:      jobsHandler,
		Pool:             dbpool,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
