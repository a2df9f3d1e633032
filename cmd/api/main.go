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

	"github.com/nextcoretech/procurement-backend/api/routes"
	"github.com/nextcoretech/procurement-backend/internal/chain"
	"github.com/nextcoretech/procurement-backend/internal/comparison"
	"github.com/nextcoretech/procurement-backend/internal/documents"
	"github.com/nextcoretech/procurement-backend/internal/flows"
	"github.com/nextcoretech/procurement-backend/internal/qtyledger"
	"github.com/nextcoretech/procurement-backend/internal/rules"
	"github.com/nextcoretech/procurement-backend/pkg/config"
	"github.com/nextcoretech/procurement-backend/pkg/db"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
	"github.com/nextcoretech/procurement-backend/pkg/metrics"
	"github.com/nextcoretech/procurement-backend/pkg/migrate"
	"github.com/nextcoretech/procurement-backend/pkg/redis"
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

	// The availability cache is optional; the engine runs without it.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineMetrics := metrics.NewEngineMetrics(registry)

	conn := dbClient.DB()

	ledgerService, err := qtyledger.NewService(qtyledger.NewRepository(conn), engineMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	flowsService, err := flows.NewService(flows.NewRepository(conn), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create flows service", err)
		os.Exit(1)
	}
	rulesService, err := rules.NewService(rules.NewRepository(conn), engineMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create rules service", err)
		os.Exit(1)
	}
	chainService, err := chain.NewService(chain.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create chain service", err)
		os.Exit(1)
	}
	documentsService, err := documents.NewService(documents.Deps{
		Client:   dbClient,
		Repo:     documents.NewRepository(conn),
		Ledger:   ledgerService,
		Flows:    flowsService,
		Rules:    rulesService,
		Cache:    redisClient,
		CacheCfg: cfg.Cache,
		Metrics:  engineMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create documents service", err)
		os.Exit(1)
	}
	comparisonService, err := comparison.NewService(comparison.NewRepository(conn), documentsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create comparison service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient, registry,
			documentsService, chainService, rulesService, flowsService, comparisonService,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
