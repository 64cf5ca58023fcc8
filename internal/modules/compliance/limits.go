package compliance

import (
	"fmt"

	"github.com/aristath/riskcore/internal/domain"
)

type limitDef struct {
	name       string
	metric     domain.LimitMetric
	threshold  float64
	comparison domain.Comparison
	scope      domain.LimitScope
}

var defaultLimits = []limitDef{
	{"Max Position Value", domain.MetricMarketValue, 10_000_000, domain.AtMost, domain.LimitScopePosition},
	{"Max Sector Exposure", domain.MetricExposure, 0.25, domain.AtMost, domain.LimitScopeSector},
	{"Max Region Exposure", domain.MetricExposure, 0.40, domain.AtMost, domain.LimitScopeRegion},
	{"Max Concentration (HHI)", domain.MetricHHI, 0.25, domain.AtMost, domain.LimitScopePortfolio},
	{"Max Daily VaR", domain.MetricVaRPercentage, 0.05, domain.AtMost, domain.LimitScopePortfolio},
}

// DefaultLimits returns the house limit set. Group limits apply to every group.
func DefaultLimits() []domain.ComplianceLimit {
	out := make([]domain.ComplianceLimit, 0, len(defaultLimits))
	for _, d := range defaultLimits {
		l, err := domain.NewComplianceLimit(d.name, d.metric, d.threshold, d.comparison, d.scope, "")
		if err != nil {
			panic(fmt.Sprintf("invalid default limit %q: %v", d.name, err))
		}
		out = append(out, l)
	}
	return out
}
