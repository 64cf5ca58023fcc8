package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultAnalysisTimeout bounds one scheduled batch
const DefaultAnalysisTimeout = 15 * time.Minute

// RiskAnalysisJob analyses the configured portfolios (all when none are
// configured) and stores the results
type RiskAnalysisJob struct {
	log          zerolog.Logger
	service      AnalysisServiceInterface
	loadConfig   RiskConfigLoader
	portfolioIDs []string
	timeout      time.Duration
}

// NewRiskAnalysisJob creates a new RiskAnalysisJob
func NewRiskAnalysisJob(service AnalysisServiceInterface, loadConfig RiskConfigLoader, portfolioIDs []string) *RiskAnalysisJob {
	return &RiskAnalysisJob{
		log:          zerolog.Nop(),
		service:      service,
		loadConfig:   loadConfig,
		portfolioIDs: portfolioIDs,
		timeout:      DefaultAnalysisTimeout,
	}
}

// SetLogger sets the logger for the job
func (j *RiskAnalysisJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *RiskAnalysisJob) Name() string {
	return "risk_analysis"
}

// Run executes the risk analysis job. The job fails when any portfolio
// fails; the others are still analysed and stored.
func (j *RiskAnalysisJob) Run() error {
	cfg, err := j.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load risk config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	batch, err := j.service.RunBatch(ctx, j.portfolioIDs, cfg)
	if err != nil {
		return err
	}

	for _, r := range batch.Results {
		j.log.Info().
			Str("portfolio_id", r.PortfolioID).
			Str("run_id", r.RunID).
			Float64("var", r.VaR.VaRAmount).
			Str("compliance", string(r.Compliance.Status)).
			Msg("Portfolio analysed")
	}

	j.log.Info().
		Int("succeeded", len(batch.Results)).
		Int("failed", len(batch.Errors)).
		Msg("Risk analysis completed")

	return batch.Err()
}
