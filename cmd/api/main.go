package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wavecraftaudio/wavecraft-backend/api/routes"
	"github.com/wavecraftaudio/wavecraft-backend/internal/auth"
	"github.com/wavecraftaudio/wavecraft-backend/internal/customers"
	"github.com/wavecraftaudio/wavecraft-backend/internal/downloads"
	"github.com/wavecraftaudio/wavecraft-backend/internal/entitlements"
	"github.com/wavecraftaudio/wavecraft-backend/internal/machines"
	"github.com/wavecraftaudio/wavecraft-backend/internal/releases"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/auth/session"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/ghrelease"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/keygen"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/metrics"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/migrate"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/redis"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	keygenClient, err := keygen.NewClient(cfg.Keygen, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create keygen client", err)
		os.Exit(1)
	}

	releaseHost, err := ghrelease.NewClient(cfg.Releases, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create release host client", err)
		os.Exit(1)
	}

	customerRepo := customers.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		CustomerRepo:   customerRepo,
		SessionManager: sessionManager,
		Commerce:       squareClient,
		Logger:         logg,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	resolverMetrics := metrics.NewResolverMetrics(prometheus.DefaultRegisterer)
	resolver, err := entitlements.NewResolver(keygenClient, logg, resolverMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create license resolver", err)
		os.Exit(1)
	}
	entitlementService, err := entitlements.NewService(squareClient, resolver)
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement service", err)
		os.Exit(1)
	}

	catalog, err := releases.NewCatalog(releaseHost, redisClient, cfg.Releases, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create release catalog", err)
		os.Exit(1)
	}
	releaseService, err := releases.NewService(catalog, entitlementService)
	if err != nil {
		logg.Error(context.Background(), "failed to create release service", err)
		os.Exit(1)
	}

	signingSecret, secretSource, err := cfg.ResolveSigningSecret()
	if err != nil {
		logg.Error(context.Background(), "no download signing secret configured", err)
		os.Exit(1)
	}
	ctxSecret := logg.WithField(context.Background(), "secret_source", string(secretSource))
	logg.Info(ctxSecret, "download signing secret resolved")

	downloadMetrics := metrics.NewDownloadMetrics(prometheus.DefaultRegisterer)
	downloadService, err := downloads.NewService(catalog, entitlementService, releaseHost, signingSecret, cfg.Downloads, logg, downloadMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create download service", err)
		os.Exit(1)
	}

	machineService, err := machines.NewService(keygenClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create machine service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisClient,
			Sessions:     sessionManager,
			Customers:    customerRepo,
			AuthService:  authService,
			Entitlements: entitlementService,
			Releases:     releaseService,
			Downloads:    downloadService,
			Machines:     machineService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
