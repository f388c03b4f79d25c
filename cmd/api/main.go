package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/parla-labs/parla/internal/admin"
	"github.com/parla-labs/parla/internal/api"
	"github.com/parla-labs/parla/internal/auth"
	"github.com/parla-labs/parla/internal/config"
	"github.com/parla-labs/parla/internal/database"
	"github.com/parla-labs/parla/internal/events"
	"github.com/parla-labs/parla/internal/gateway"
	"github.com/parla-labs/parla/internal/middleware"
	"github.com/parla-labs/parla/internal/providers"
	"github.com/parla-labs/parla/internal/quota"
	iredis "github.com/parla-labs/parla/internal/redis"
	"github.com/parla-labs/parla/internal/server"
	"github.com/parla-labs/parla/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("validating config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS usage events (optional)
	var eventsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		eventsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		publisher = events.NewPublisher(eventsClient.JetStream())
	} else {
		slog.Info("NATS not configured, usage events disabled")
	}

	// Users
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo, cfg.Quota.DefaultMinutesLimit)

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient, userSvc)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Quota: ledger store, admission and recording
	ledgerStore := quota.NewStore(pool)
	quotaSvc := quota.NewService(ledgerStore, publisher, cfg.Quota.DefaultTTSDailyLimit)

	// Downstream providers
	chatClient := providers.NewChatClient(cfg.LLM)
	ttsClient := providers.NewTTSClient(cfg.TTS)

	// Metered gateway
	gatewaySvc := gateway.NewService(quotaSvc, chatClient, ttsClient, cfg.Quota.TTSMaxInputChars)
	gatewayHandler := gateway.NewHandler(gatewaySvc, quotaSvc, userSvc)

	// Admin
	adminHandler := admin.NewHandler(userSvc, quotaSvc)

	// Per-IP rate limit on the public auth endpoints
	authLimiter := middleware.NewRateLimiter(redisClient, 20, 60)

	// Router
	router := api.NewRouter(pool, eventsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Chat:  gatewayHandler.Chat,
		TTS:   gatewayHandler.TTS,
		Usage: gatewayHandler.Usage,

		SetAllowance: adminHandler.SetAllowance,
		SetTTSLimit:  adminHandler.SetTTSLimit,
		ResetLedger:  adminHandler.ResetLedger,
		GetUserUsage: adminHandler.GetUserUsage,
		ListUsers:    adminHandler.ListUsers,

		AuthMiddleware:  auth.Middleware(authSvc),
		AdminMiddleware: auth.RequireAdmin,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
