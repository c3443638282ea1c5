package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pastebin/pkg/accounts"
	"github.com/platinummonkey/pastebin/pkg/api"
	"github.com/platinummonkey/pastebin/pkg/async"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/config"
	"github.com/platinummonkey/pastebin/pkg/middleware"
	"github.com/platinummonkey/pastebin/pkg/observability"
	"github.com/platinummonkey/pastebin/pkg/pastes"
	"github.com/platinummonkey/pastebin/pkg/storage"
	"github.com/platinummonkey/pastebin/pkg/storage/memory"
	"github.com/platinummonkey/pastebin/pkg/storage/postgres"
)

var version = "dev"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.SetLevel(logrusLevel(cfg.Observability.LogLevel))
	log.WithFields(logrus.Fields{
		"version": version,
		"storage": cfg.Storage.Type,
	}).Info("Starting pastebin")

	appLogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openStorage(ctx, cfg, appLogger, metrics)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Infof("Storage initialized (%s)", cfg.Storage.Type)

	pool := async.NewWorkerPool(ctx, cfg.Auth.HashWorkers, "password hashing", cfg.Auth.HashTimeout).WithLogger(appLogger)
	hasher := auth.NewHasher(pool, cfg.Auth.HashIterations, metrics)

	accountSvc := accounts.NewService(backend.store, hasher, cfg.Auth.Accounts(), appLogger, metrics, nil)
	pasteSvc := pastes.NewService(backend.store, backend.store, cfg.Pastes.Service(), nil, appLogger, metrics, nil)

	limiter, err := buildLimiter(ctx, cfg, backend.redis)
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}

	handler := api.NewServer(api.Dependencies{
		Accounts:      accountSvc,
		Pastes:        pasteSvc,
		Authenticator: auth.NewAuthenticator(backend.store, appLogger, metrics),
		Limiter:       limiter,
		Cookies:       cfg.Cookies(),
		Audit:         auth.NewAuditLogger(appLogger, nil),
		Logger:        appLogger,
		Metrics:       metrics,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(backend.db, backend.redis, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthMux,
		ReadTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(appLogger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc("storage", func(context.Context) error {
		return backend.store.Close()
	})
	shutdown.RegisterShutdownFunc("hash pool", func(context.Context) error {
		return pool.Shutdown(5 * time.Second)
	})
	if rl, ok := limiter.(*middleware.RateLimiter); ok {
		rl.StartCleanup(ctx)
	}

	sweeper, err := startSweeper(ctx, cfg.Auth.SweepSchedule, accountSvc, appLogger)
	if err != nil {
		log.Fatalf("Failed to schedule session sweep: %v", err)
	}
	if sweeper != nil {
		shutdown.RegisterShutdownFunc("session sweeper", func(ctx context.Context) error {
			select {
			case <-sweeper.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		log.Infof("Expired secure sessions swept on %q", cfg.Auth.SweepSchedule)
	}

	go serve(log, "API", apiServer)
	go serve(log, "health", healthServer)

	if err := shutdown.WaitForShutdown(ctx); err != nil {
		log.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
	log.Info("Pastebin stopped")
}

// backend is the opened store plus the connections the health checker and
// rate limiter share with it. db and redis may be nil.
type backend struct {
	store storage.Storage
	db    *sql.DB
	redis *redis.Client
}

func openStorage(ctx context.Context, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (*backend, error) {
	switch cfg.Storage.Type {
	case "postgres":
		store, err := postgres.New(ctx, cfg.Storage, logger, metrics)
		if err != nil {
			return nil, err
		}
		b := &backend{store: store, db: store.Connections().Primary()}
		if cache := store.Cache(); cache != nil {
			b.redis = cache.GetClient()
		}
		return b, nil

	case "memory":
		b := &backend{store: memory.New(nil, cfg.Storage)}
		if cfg.Storage.RedisURL != "" {
			client, err := postgres.NewRedisClient(cfg.Storage)
			if err != nil {
				return nil, err
			}
			b.redis = client.GetClient()
		}
		return b, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// buildLimiter returns nil when rate limiting is disabled
func buildLimiter(ctx context.Context, cfg *config.Config, client *redis.Client) (middleware.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	switch cfg.RateLimit.Backend {
	case "redis":
		if client == nil {
			return nil, errors.New("redis rate limiting needs a reachable redis")
		}
		rl := middleware.NewDistributedRateLimiter(client, cfg.RateLimit.Limits(), "ratelimit")
		if err := rl.HealthCheck(ctx); err != nil {
			return nil, err
		}
		return rl, nil
	default:
		return middleware.NewRateLimiter(cfg.RateLimit.Limits(), nil), nil
	}
}

// startSweeper schedules clearing of expired secure sessions. An empty
// schedule disables it and returns a nil cron.
func startSweeper(ctx context.Context, schedule string, svc *accounts.Service, logger *observability.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		async.SafeGo(ctx, logger, time.Minute, "secure session sweep", func(ctx context.Context) error {
			_, err := svc.SweepExpiredSessions(ctx)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func serve(log *logrus.Logger, name string, srv *http.Server) {
	log.Infof("%s server listening on %s", name, srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("%s server failed: %v", name, err)
	}
}

func logrusLevel(level observability.LogLevel) logrus.Level {
	switch level {
	case observability.DebugLevel:
		return logrus.DebugLevel
	case observability.WarnLevel:
		return logrus.WarnLevel
	case observability.ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
