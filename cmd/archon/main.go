package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/archon-labs/archon-authz/pkg/api"
	"github.com/archon-labs/archon-authz/pkg/audit"
	"github.com/archon-labs/archon-authz/pkg/config"
	"github.com/archon-labs/archon-authz/pkg/middleware"
	"github.com/archon-labs/archon-authz/pkg/observability"
	"github.com/archon-labs/archon-authz/pkg/session"
	"github.com/archon-labs/archon-authz/pkg/storage/postgres"
	"github.com/archon-labs/archon-authz/pkg/users"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := postgres.Connect(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = postgres.RunMigrations(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	sessions, err := session.NewStore(cfg.Session.StoreConfig())
	if err != nil {
		logger.WithError(err).Error("Failed to connect to redis")
		os.Exit(1)
	}
	defer sessions.Close()

	tokens, err := session.NewManager(cfg.Session.ManagerConfig(), sessions)
	if err != nil {
		logger.WithError(err).Error("Failed to create session manager")
		os.Exit(1)
	}

	userStore := users.NewStore(db)
	resourceStore := postgres.NewStore(db)
	userService := users.NewService(userStore, resourceStore, sessions, logger)

	auth, err := middleware.NewAuth(tokens, userStore, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create auth middleware")
		os.Exit(1)
	}

	auditLog := audit.NewDBLogger(db)

	// Redis-backed limiter so login attempts share one budget across
	// replicas.
	credLimiter := middleware.NewDistributedRateLimiter(
		sessions.Client(), middleware.CredentialRateLimitConfig(), "")

	server := api.NewServer(api.Options{
		Users:           userService,
		Resources:       resourceStore,
		Tokens:          tokens,
		Auth:            auth,
		Audit:           auditLog,
		Logger:          logger,
		AuditReader:     auditLog,
		CredentialLimit: middleware.DistributedRateLimit(credLimiter, logger),
		CORSOrigins:     cfg.Server.CORSOrigins,
	})

	var handler http.Handler = server

	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, sessions.Client())
	observability.RegisterHealthRoutes(healthMux, checker)

	statsDone := make(chan struct{})
	if cfg.Observability.MetricsEnabled {
		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)
		handler = observability.HTTPMetricsMiddleware(metrics)(handler)
		observability.RegisterMetricsEndpoint(healthMux, registry)

		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					metrics.UpdateDBStats(db.Stats())
				case <-statsDone:
					return
				}
			}
		}()
	}

	mainSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthSrv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", mainSrv.Addr).Info("API server listening")
		if err := mainSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.WithField("addr", healthSrv.Addr).Info("Health server listening")
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errCh:
		logger.WithError(err).Error("Server failed")
	}

	close(statsDone)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := mainSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("API server shutdown failed")
	}
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Health server shutdown failed")
	}
}
