package risk

import (
	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/riskmodel"
	"github.com/aristath/riskcore/pkg/formulas"
)

// historicalVaR revalues today's positions under every overlapping h-day
// window of the aligned history. Returns compound according to the series
// kind before being applied to market values.
func historicalVaR(exp exposure, dist *riskmodel.Distribution, cfg Config) (varAmount, shortfall float64, scenarios int, err error) {
	history := dist.History()
	h := cfg.HorizonDays
	scenarios = len(history) - h + 1
	if scenarios < 0 {
		scenarios = 0
	}

	required := formulas.MinScenarios(cfg.ConfidenceLevel)
	if scenarios < required {
		return 0, 0, scenarios, domain.NewInsufficientDataError("", required, scenarios,
			"historical scenarios for the requested confidence and horizon")
	}

	compound := formulas.CompoundSimple
	if dist.Kind() == domain.LogReturns {
		compound = formulas.CompoundLog
	}

	n := len(exp.values)
	losses := make([]float64, scenarios)
	window := make([]float64, h)
	for s := 0; s < scenarios; s++ {
		pnl := 0.0
		for i := 0; i < n; i++ {
			for k := 0; k < h; k++ {
				window[k] = history[s+k][i]
			}
			pnl += exp.values[i] * compound(window)
		}
		losses[s] = -pnl
	}

	varAmount, shortfall = formulas.TailLosses(losses, cfg.ConfidenceLevel)
	return varAmount, shortfall, scenarios, nil
}
