// Package app wires storectl's infrastructure and dependency graph and
// runs either the admission API or the provisioning worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sujalmh/storectl/internal/audit"
	"github.com/sujalmh/storectl/internal/config"
	"github.com/sujalmh/storectl/internal/httpserver"
	"github.com/sujalmh/storectl/internal/platform"
	"github.com/sujalmh/storectl/internal/queue"
	"github.com/sujalmh/storectl/internal/telemetry"
	"github.com/sujalmh/storectl/pkg/admission"
	"github.com/sujalmh/storectl/pkg/credential"
	"github.com/sujalmh/storectl/pkg/helmdriver"
	"github.com/sujalmh/storectl/pkg/k8sdriver"
	"github.com/sujalmh/storectl/pkg/provisioner"
	"github.com/sujalmh/storectl/pkg/ratelimit"
	"github.com/sujalmh/storectl/pkg/values"
)

// Run loads infrastructure from cfg and starts the mode it selects: "api",
// "worker", or "migrate".
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	logger.Info("starting storectl", "mode", cfg.Mode)

	if cfg.Mode == "migrate" {
		if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("migrations applied")
		return nil
	}

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis client", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("APP_JWT_SECRET must be set")
	}
	tokens, err := credential.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTExpMinutes)*time.Minute, cfg.JWTAlgorithm)
	if err != nil {
		return fmt.Errorf("creating token manager: %w", err)
	}

	k8s, err := k8sdriver.NewFromKubeconfig(cfg.KubeconfigPath)
	if err != nil {
		return fmt.Errorf("creating kubernetes driver: %w", err)
	}

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	q := queue.New(rdb, cfg.QueueName)
	createLimiter := ratelimit.New(db, time.Duration(cfg.CreateStoreRateLimitWindowSeconds)*time.Second, cfg.CreateStoreRateLimitMaxRequests)

	svc := admission.NewService(db, tokens, q, k8s, admission.Config{
		PublicIP:          cfg.PublicIP,
		BaseDomain:        cfg.BaseDomain,
		DefaultStoreQuota: cfg.DefaultStoreQuota,
	}, logger)

	handler := admission.NewHandler(logger, auditWriter, svc, createLimiter)

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, tokens)
	srv.Router.Mount("/auth", handler.AuthRoutes())
	srv.APIRouter.Mount("/stores", handler.StoreRoutes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	k8s, err := k8sdriver.NewFromKubeconfig(cfg.KubeconfigPath)
	if err != nil {
		return fmt.Errorf("creating kubernetes driver: %w", err)
	}
	helm := helmdriver.New(cfg.HelmBinary, logger)

	prov := provisioner.New(db, helm, k8s, values.BuildConfig{
		ChartPath:        cfg.HelmChartPath,
		ValuesProfile:    cfg.ValuesProfile,
		IngressClassName: cfg.IngressClassName,
		TLSEnabled:       cfg.TLSEnabled,
	}, logger)

	q := queue.New(rdb, cfg.QueueName)
	worker := provisioner.NewWorker(q, prov, cfg.TaskMaxRetries, time.Duration(cfg.WorkerPollDelay)*time.Second, logger)

	logger.Info("worker started", "queue", cfg.QueueName)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
