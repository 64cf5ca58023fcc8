// Package analysis runs the full risk pipeline for stored portfolios and keeps
// a history of the results.
package analysis

import (
	"errors"
	"time"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/compliance"
	"github.com/aristath/riskcore/internal/modules/portfolio"
	"github.com/aristath/riskcore/internal/modules/risk"
	"github.com/aristath/riskcore/internal/modules/riskmodel"
)

// ErrRunNotFound is returned for unknown run ids
var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisResult is everything one run computed for one portfolio
type AnalysisResult struct {
	RunID         string            `json:"run_id" msgpack:"run_id"`
	PortfolioID   string            `json:"portfolio_id" msgpack:"portfolio_id"`
	PortfolioName string            `json:"portfolio_name" msgpack:"portfolio_name"`
	AsOf          time.Time         `json:"as_of" msgpack:"as_of"`
	CreatedAt     time.Time         `json:"created_at" msgpack:"created_at"`
	DurationMS    int64             `json:"duration_ms" msgpack:"duration_ms"`
	ReturnKind    domain.ReturnKind `json:"return_kind" msgpack:"return_kind"`

	VaR        domain.VaRResult      `json:"var" msgpack:"var"`
	Components []risk.Contribution   `json:"component_var,omitempty" msgpack:"component_var"`
	Stress     []domain.StressResult `json:"stress" msgpack:"stress"`
	// WorstScenario is the scenario with the largest loss, empty when none ran
	WorstScenario string `json:"worst_scenario,omitempty" msgpack:"worst_scenario"`

	Compliance       compliance.Assessment           `json:"compliance" msgpack:"compliance"`
	Concentration    portfolio.ConcentrationAnalysis `json:"concentration" msgpack:"concentration"`
	Statistics       Statistics                      `json:"statistics" msgpack:"statistics"`
	HighCorrelations []riskmodel.CorrelationPair     `json:"high_correlations" msgpack:"high_correlations"`
	// Beta is present when a benchmark is configured
	Beta *risk.BetaExposure `json:"beta,omitempty" msgpack:"beta,omitempty"`
}

// Statistics describe the historical behaviour of the current weights
type Statistics struct {
	Observations         int     `json:"observations" msgpack:"observations"`
	AnnualizedVolatility float64 `json:"annualized_volatility" msgpack:"annualized_volatility"`
	RecentVolatility     float64 `json:"recent_volatility" msgpack:"recent_volatility"`
	MaxDrawdown          float64 `json:"max_drawdown" msgpack:"max_drawdown"`
	ShrinkageIntensity   float64 `json:"shrinkage_intensity" msgpack:"shrinkage_intensity"`
	RegularizationShift  float64 `json:"regularization_shift" msgpack:"regularization_shift"`
}

// RunSummary is the indexed part of a stored run
type RunSummary struct {
	RunID             string           `json:"run_id"`
	PortfolioID       string           `json:"portfolio_id"`
	AsOf              time.Time        `json:"as_of"`
	CreatedAt         time.Time        `json:"created_at"`
	Method            domain.VaRMethod `json:"method"`
	VaRAmount         float64          `json:"var_amount"`
	ExpectedShortfall float64          `json:"expected_shortfall"`
	BreachCount       int              `json:"breach_count"`
}

// Summary returns the indexed part of the result
func (r *AnalysisResult) Summary() RunSummary {
	return RunSummary{
		RunID:             r.RunID,
		PortfolioID:       r.PortfolioID,
		AsOf:              r.AsOf,
		CreatedAt:         r.CreatedAt,
		Method:            r.VaR.Method,
		VaRAmount:         r.VaR.VaRAmount,
		ExpectedShortfall: r.VaR.ExpectedShortfall,
		BreachCount:       len(r.Compliance.Flags),
	}
}

// BatchResult holds the outcome of a batch run. Failed portfolios are absent
// from Results and present in Errors.
type BatchResult struct {
	Results []*AnalysisResult
	Errors  map[string]error
}
