package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nive-cms/userdb/pkg/config"
	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/invalidation"
	"github.com/nive-cms/userdb/pkg/metrics"
	"github.com/nive-cms/userdb/pkg/users"
)

const shutdownTimeout = 5 * time.Second

// runServe keeps the session cache of this process in sync until ctx is
// cancelled: it purges expired entries, listens on the invalidation bus and
// exposes the metrics endpoint.
func runServe(ctx context.Context, cfg *config.Config, logger interfaces.Logger) error {
	logger.Info("Starting userdb", map[string]interface{}{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})

	var m interfaces.Metrics = metrics.NewNoOpMetrics()
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		m = prom
		metricsServer = startMetricsServer(cfg.Metrics.Addr, prom, logger)
	}

	bus, err := invalidation.New(cfg.Bus, logger)
	if err != nil {
		return fmt.Errorf("failed to create invalidation bus: %w", err)
	}

	opts := []users.Option{users.WithSessionConfig(cfg.SessionUser)}
	if bus != nil {
		opts = append(opts, users.WithInvalidationBus(bus))
	}
	db, err := users.NewUserDB(ctx, cfg.UserDB, logger, m, opts...)
	if err != nil {
		if bus != nil {
			bus.Close()
		}
		return fmt.Errorf("failed to open user database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Failed to close user database", closeErr)
		}
	}()

	if *configFile != "" {
		watchTTL(ctx, *configFile, db, logger)
	}

	logger.Info("Session cache running", map[string]interface{}{
		"ttl":            cfg.SessionUser.TTL.String(),
		"purge_interval": cfg.SessionUser.PurgeInterval.String(),
		"bus":            cfg.Bus.Driver,
	})

	err = db.Module().Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("Failed to stop metrics server", shutdownErr)
		}
	}

	logger.Info("Shutting down userdb")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func startMetricsServer(addr string, prom *metrics.PrometheusMetrics, logger interfaces.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics endpoint listening", map[string]interface{}{"addr": addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", err)
		}
	}()
	return server
}

// watchTTL applies session_user.ttl changes from the config file to the
// running cache. Other settings need a restart.
func watchTTL(ctx context.Context, path string, db *users.UserDB, logger interfaces.Logger) {
	err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			logger.Warn("Ignoring invalid configuration change", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return
		}
		cache := db.UserCache()
		if cache == nil || cache.TTL() == cfg.SessionUser.TTL {
			return
		}
		cache.SetTTL(cfg.SessionUser.TTL)
		logger.Info("Session cache TTL reloaded", map[string]interface{}{
			"ttl": cfg.SessionUser.TTL.String(),
		})
	})
	if err != nil {
		logger.Warn("Configuration watch disabled", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
}
