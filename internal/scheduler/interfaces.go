package scheduler

import (
	"context"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/modules/analysis"
)

// AnalysisServiceInterface defines the contract for batch analysis
// Used by scheduler to enable testing with mocks
type AnalysisServiceInterface interface {
	RunBatch(ctx context.Context, portfolioIDs []string, cfg config.RiskConfig) (*analysis.BatchResult, error)
}

// RiskConfigLoader returns the risk configuration for the next run.
// The file is re-read on every run so edits apply without a restart.
type RiskConfigLoader func() (config.RiskConfig, error)
