package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gpuforge/gpuforge-backend/api/routes"
	authsvc "github.com/gpuforge/gpuforge-backend/internal/auth"
	catalogsvc "github.com/gpuforge/gpuforge-backend/internal/catalog"
	mediasvc "github.com/gpuforge/gpuforge-backend/internal/media"
	"github.com/gpuforge/gpuforge-backend/internal/notifications"
	ordersvc "github.com/gpuforge/gpuforge-backend/internal/orders"
	"github.com/gpuforge/gpuforge-backend/internal/users"
	"github.com/gpuforge/gpuforge-backend/pkg/config"
	"github.com/gpuforge/gpuforge-backend/pkg/db"
	"github.com/gpuforge/gpuforge-backend/pkg/invoice"
	"github.com/gpuforge/gpuforge-backend/pkg/logger"
	"github.com/gpuforge/gpuforge-backend/pkg/mailer"
	"github.com/gpuforge/gpuforge-backend/pkg/metrics"
	"github.com/gpuforge/gpuforge-backend/pkg/migrate"
	"github.com/gpuforge/gpuforge-backend/pkg/outbox"
	"github.com/gpuforge/gpuforge-backend/pkg/redis"
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	dispatcherMetrics := metrics.NewDispatcherMetrics(registry)

	userRepo := users.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		DB:             dbClient,
		UserRepo:       userRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	catalogRepo := catalogsvc.NewRepository(dbClient.DB())
	catalogService, err := catalogsvc.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	mediaService, err := mediasvc.NewService(mediasvc.ServiceParams{
		Config:  cfg.Media,
		Catalog: catalogRepo,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create media service", err)
		os.Exit(1)
	}

	orderService, err := ordersvc.NewService(ordersvc.ServiceParams{
		DB:     dbClient,
		Repo:   ordersvc.NewRepository(dbClient.DB()),
		Users:  userRepo,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SMTP.Configured() {
		sender, err := mailer.New(cfg.SMTP)
		if err != nil {
			logg.Error(rootCtx, "failed to create mailer", err)
			os.Exit(1)
		}
		dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
			Config:  cfg.Outbox,
			Source:  outbox.NewRepository(dbClient.DB()),
			Sender:  sender,
			Invoice: invoice.NewRenderer(cfg.SMTP.SenderName),
			Metrics: dispatcherMetrics,
			Logger:  logg,
		})
		if err != nil {
			logg.Error(rootCtx, "failed to create outbox dispatcher", err)
			os.Exit(1)
		}
		go dispatcher.Run(rootCtx)
	} else {
		logg.Warn(rootCtx, "smtp not configured, outbox events will not be delivered")
	}

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(rootCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			HTTPMetrics: httpMetrics,
			Gatherer:    registry,
			Auth:        authService,
			Catalog:     catalogService,
			Media:       mediaService,
			Orders:      orderService,
		}),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-rootCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
