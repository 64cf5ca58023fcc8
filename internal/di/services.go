// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/events"
	"github.com/aristath/riskcore/internal/modules/analysis"
	"github.com/aristath/riskcore/internal/reliability"
)

// InitializeServices creates the analysis pipeline, its metrics and the
// optional S3 report archive
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.Registry = prometheus.NewRegistry()
	container.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	container.Metrics = analysis.NewMetrics(container.Registry)

	riskConfigPath := cfg.RiskConfigPath
	container.LoadRiskConfig = func() (config.RiskConfig, error) {
		return config.LoadRiskConfig(riskConfigPath)
	}
	// Fail fast on a broken file instead of on the first scheduled run
	if _, err := container.LoadRiskConfig(); err != nil {
		return err
	}

	container.Events = events.NewBroadcaster(log)

	opts := []analysis.Option{
		analysis.WithResultStore(container.ResultRepo),
		analysis.WithMetrics(container.Metrics),
		analysis.WithEvents(container.Events),
	}

	if cfg.Archive.Enabled() {
		client, err := reliability.NewS3Client(ctx, cfg.Archive, log)
		if err != nil {
			return fmt.Errorf("failed to create archive client: %w", err)
		}
		container.S3Client = client
		container.BackupService = reliability.NewBackupService(client, container.Databases(), cfg.DataDir, log)
		opts = append(opts, analysis.WithArchiver(client))
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Report archive enabled")
	} else {
		log.Info().Msg("Report archive disabled (RISK_ARCHIVE_BUCKET not set)")
	}

	container.AnalysisService = analysis.NewService(container.PositionRepo, container.History, log, opts...)

	log.Info().Msg("Services initialized")
	return nil
}
