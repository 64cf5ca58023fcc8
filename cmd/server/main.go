// Package main is the entry point of the riskcore server. It serves the risk
// API, runs the end-of-day batch analysis on a cron schedule and maintains the
// databases.
//
// The application follows the same layering as the rest of the module:
//   - Domain layer is pure (no infrastructure dependencies)
//   - Dependency injection via DI container
//   - Repository pattern for data access
//   - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/di"
	"github.com/aristath/riskcore/internal/server"
	"github.com/aristath/riskcore/internal/version"
	"github.com/aristath/riskcore/pkg/logger"
)

// main orchestrates the startup sequence:
//  1. Loads configuration from environment variables (.env supported)
//  2. Initializes logging
//  3. Wires all dependencies via the DI container (databases, repositories, services, jobs)
//  4. Starts the HTTP server and the scheduler
//  5. Waits for a shutdown signal and shuts down gracefully
//
// The application uses a 3-database architecture:
//   - history.db: daily prices the return series are derived from
//   - portfolio.db: current portfolio snapshots
//   - results.db: append-only analysis run history
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger so the configuration error is still reported
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("data_dir", cfg.DataDir).
		Msg("Starting riskcore")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// All databases must be closed so WAL checkpoints are written
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		DataDir:   cfg.DataDir,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	container.Scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Running jobs finish before the databases are closed
	container.Scheduler.Stop()

	// In-flight requests get up to 10 seconds
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
