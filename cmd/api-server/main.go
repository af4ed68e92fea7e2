package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/dental-booking/internal/api"
	"github.com/hackgods/dental-booking/internal/audit"
	"github.com/hackgods/dental-booking/internal/config"
	"github.com/hackgods/dental-booking/internal/db"
	"github.com/hackgods/dental-booking/internal/gateway"
	"github.com/hackgods/dental-booking/internal/identity"
	"github.com/hackgods/dental-booking/internal/metrics"
	redisclient "github.com/hackgods/dental-booking/internal/redis"
	"github.com/hackgods/dental-booking/internal/session"
	"github.com/hackgods/dental-booking/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "clinic_api", cfg.APIBaseURL)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client := gateway.NewClient(cfg.APIBaseURL, logger,
		gateway.WithTimeout(cfg.APITimeout),
		gateway.WithMetrics(m),
	)

	factory := &session.Factory{
		Gateway: client,
		Metrics: m,
		Logger:  logger,
	}
	routerCfg := api.RouterConfig{
		Resolver: identity.NewResolver(cfg.JWTSecret),
		Logger:   logger,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Settle:   cfg.APITimeout,
		Upstream: api.PingFunc(func(ctx context.Context) error {
			_, err := client.GetSpecialties(ctx)
			return err
		}),
		Env:     cfg.Env,
		Version: version,
	}

	if cfg.AuditEnabled() {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = audit.NewPgRepository(pgPool).EnsureSchema(pgCtx)
			if err != nil {
				pgPool.Close()
			}
		}
		cancelPg()
		if err != nil {
			logger.Error("postgres connection error", "error", err)
			os.Exit(1)
		}
		defer pgPool.Close()
		logger.Info("connected to Postgres, audit log enabled")

		factory.Recorder = audit.NewRecorder(audit.NewPgRepository(pgPool), logger)
		routerCfg.Postgres = pgPool
	}

	if cfg.RedisEnabled() {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Error("redis connection error", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "error", err)
			}
		}()
		logger.Info("connected to Redis, catalog cache and submit guard enabled")

		factory.Catalog = redisclient.NewCatalogCache(client, rdb, cfg.CatalogCacheTTL, logger)
		factory.Guard = redisclient.NewSubmitGuard(rdb, cfg.SubmitLockTTL, logger)
		routerCfg.Redis = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	store := session.NewStore(factory, cfg.SessionTTL, logger, session.WithMetrics(m))
	defer store.Close()
	go store.Run(rootCtx, cfg.SessionSweepInterval)

	routerCfg.Sessions = store

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.APITimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("api-server stopped")
}
