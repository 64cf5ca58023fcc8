package compliance

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskcore/internal/domain"
	testingpkg "github.com/aristath/riskcore/internal/testing"
)

// fourEqual is four 250k positions: two Tech/US, one Health/EU, one Energy/EU
func fourEqual(t *testing.T) *domain.Portfolio {
	return testingpkg.NewPortfolio(t, "book",
		testingpkg.PositionSpec{ID: "A", Value: 250_000, Sector: "Tech", Region: "US"},
		testingpkg.PositionSpec{ID: "B", Value: 250_000, Sector: "Tech", Region: "US"},
		testingpkg.PositionSpec{ID: "C", Value: 250_000, Sector: "Health", Region: "EU"},
		testingpkg.PositionSpec{ID: "D", Value: 250_000, Sector: "Energy", Region: "EU"},
	)
}

func limit(t *testing.T, name string, metric domain.LimitMetric, threshold float64, cmp domain.Comparison, scope domain.LimitScope, key string) domain.ComplianceLimit {
	l, err := domain.NewComplianceLimit(name, metric, threshold, cmp, scope, key)
	require.NoError(t, err)
	return l
}

func newEvaluator() *Evaluator {
	return NewEvaluator(zerolog.Nop())
}

func TestEvaluate_HHIOfEqualWeights(t *testing.T) {
	pf := fourEqual(t)

	flags, err := newEvaluator().Evaluate(pf, nil, []domain.ComplianceLimit{
		limit(t, "hhi", domain.MetricHHI, 0.2, domain.AtMost, domain.LimitScopePortfolio, ""),
	})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.InDelta(t, 0.25, flags[0].ObservedValue, 1e-12)
	assert.Equal(t, domain.SeverityMajor, flags[0].Severity)
	assert.Empty(t, flags[0].Subject)
}

func TestEvaluate_ZeroAndOneFlag(t *testing.T) {
	pf := fourEqual(t)
	loose := []domain.ComplianceLimit{
		limit(t, "hhi", domain.MetricHHI, 0.3, domain.AtMost, domain.LimitScopePortfolio, ""),
		limit(t, "sector", domain.MetricExposure, 0.6, domain.AtMost, domain.LimitScopeSector, ""),
		limit(t, "position", domain.MetricMarketValue, 1_000_000, domain.AtMost, domain.LimitScopePosition, ""),
	}

	flags, err := newEvaluator().Evaluate(pf, nil, loose)
	require.NoError(t, err)
	assert.Empty(t, flags)
	assert.NotNil(t, flags)

	tight := append(loose, limit(t, "tech", domain.MetricExposure, 0.4, domain.AtMost, domain.LimitScopeSector, "tech"))
	flags, err = newEvaluator().Evaluate(pf, nil, tight)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "tech", flags[0].LimitName)
	assert.Equal(t, "Tech", flags[0].Subject)
	assert.InDelta(t, 0.5, flags[0].ObservedValue, 1e-12)
	assert.Equal(t, 0.4, flags[0].Threshold)
	assert.Equal(t, domain.SeverityMajor, flags[0].Severity)
}

func TestEvaluate_GroupScopeReportsWorstGroup(t *testing.T) {
	pf := fourEqual(t)

	flags, err := newEvaluator().Evaluate(pf, nil, []domain.ComplianceLimit{
		limit(t, "sector", domain.MetricExposure, 0.25, domain.AtMost, domain.LimitScopeSector, ""),
		limit(t, "min sector", domain.MetricExposure, 0.3, domain.AtLeast, domain.LimitScopeSector, ""),
	})
	require.NoError(t, err)
	require.Len(t, flags, 2)

	// 0.5 / 0.25 = 2 is critical; 0.3 / 0.25 = 1.2 is major
	assert.Equal(t, "sector", flags[0].LimitName)
	assert.Equal(t, "Tech", flags[0].Subject)
	assert.Equal(t, domain.SeverityCritical, flags[0].Severity)

	assert.Equal(t, "min sector", flags[1].LimitName)
	assert.Equal(t, "Energy", flags[1].Subject)
	assert.InDelta(t, 0.25, flags[1].ObservedValue, 1e-12)
	assert.Equal(t, domain.SeverityMajor, flags[1].Severity)
}

func TestEvaluate_PositionScopeKeepsIdsDistinct(t *testing.T) {
	pf := testingpkg.NewPortfolio(t, "book",
		testingpkg.PositionSpec{ID: "abc", Value: 60, Sector: "Tech", Region: "US"},
		testingpkg.PositionSpec{ID: "ABC", Value: 60, Sector: "tech", Region: "US"},
		testingpkg.PositionSpec{ID: "XYZ", Value: 80, Sector: "Energy", Region: "EU"},
	)

	flags, err := newEvaluator().Evaluate(pf, nil, []domain.ComplianceLimit{
		limit(t, "maxpos", domain.MetricMarketValue, 100, domain.AtMost, domain.LimitScopePosition, ""),
	})
	require.NoError(t, err)
	assert.Empty(t, flags)

	// sector tags still fold case: Tech and tech are one 120 group
	flags, err = newEvaluator().Evaluate(pf, nil, []domain.ComplianceLimit{
		limit(t, "maxsector", domain.MetricMarketValue, 100, domain.AtMost, domain.LimitScopeSector, ""),
	})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "Tech", flags[0].Subject)
	assert.InDelta(t, 120.0, flags[0].ObservedValue, 1e-9)
}

func TestEvaluate_SortsBySeverityThenName(t *testing.T) {
	pf := fourEqual(t)

	flags, err := newEvaluator().Evaluate(pf, nil, []domain.ComplianceLimit{
		limit(t, "Z sector", domain.MetricExposure, 0.25, domain.AtMost, domain.LimitScopeSector, ""),
		limit(t, "A position", domain.MetricMarketValue, 240_000, domain.AtMost, domain.LimitScopePosition, ""),
		limit(t, "B region", domain.MetricExposure, 0.3, domain.AtMost, domain.LimitScopeRegion, ""),
	})
	require.NoError(t, err)
	require.Len(t, flags, 3)

	assert.Equal(t, "B region", flags[0].LimitName)
	assert.Equal(t, domain.SeverityCritical, flags[0].Severity)
	assert.Equal(t, "Z sector", flags[1].LimitName)
	assert.Equal(t, domain.SeverityCritical, flags[1].Severity)
	assert.Equal(t, "A position", flags[2].LimitName)
	assert.Equal(t, domain.SeverityMinor, flags[2].Severity)
	assert.Equal(t, "A", flags[2].Subject)
}

func TestEvaluate_VaRLimits(t *testing.T) {
	pf := fourEqual(t)
	varLimits := []domain.ComplianceLimit{
		limit(t, "var", domain.MetricVaRPercentage, 0.05, domain.AtMost, domain.LimitScopePortfolio, ""),
		limit(t, "es", domain.MetricESPercentage, 0.10, domain.AtMost, domain.LimitScopePortfolio, ""),
	}

	_, err := newEvaluator().Evaluate(pf, nil, varLimits)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	result := &domain.VaRResult{
		VaRAmount:         60_000,
		VaRPercentage:     0.06,
		ExpectedShortfall: 70_000,
		PortfolioValue:    1_000_000,
	}
	flags, err := newEvaluator().Evaluate(pf, result, varLimits)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "var", flags[0].LimitName)
	assert.InDelta(t, 0.06, flags[0].ObservedValue, 1e-12)
	assert.Equal(t, domain.SeverityMajor, flags[0].Severity)
}

func TestEvaluate_RejectsInvalidInput(t *testing.T) {
	_, err := newEvaluator().Evaluate(nil, nil, DefaultLimits())
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = newEvaluator().Evaluate(fourEqual(t), nil, []domain.ComplianceLimit{
		{Name: "bad", Metric: domain.MetricHHI, Threshold: 0.1, Comparison: domain.AtMost, Scope: domain.LimitScopeSector},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		name       string
		observed   float64
		threshold  float64
		comparison domain.Comparison
		want       domain.Severity
	}{
		{"just over", 1.05, 1, domain.AtMost, domain.SeverityMinor},
		{"ten percent over", 1.1, 1, domain.AtMost, domain.SeverityMajor},
		{"forty percent over", 1.4, 1, domain.AtMost, domain.SeverityMajor},
		{"half over", 1.5, 1, domain.AtMost, domain.SeverityCritical},
		{"zero threshold", 0.01, 0, domain.AtMost, domain.SeverityCritical},
		{"slightly under floor", 0.95, 1, domain.AtLeast, domain.SeverityMinor},
		{"far under floor", 0.5, 1, domain.AtLeast, domain.SeverityCritical},
		{"nothing held", 0, 0.1, domain.AtLeast, domain.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, severity(tt.observed, tt.threshold, tt.comparison))
		})
	}
}

func TestAssess(t *testing.T) {
	pf := fourEqual(t)

	assessment, err := newEvaluator().Assess(pf, nil, []domain.ComplianceLimit{
		limit(t, "hhi", domain.MetricHHI, 0.3, domain.AtMost, domain.LimitScopePortfolio, ""),
		limit(t, "sector", domain.MetricExposure, 0.25, domain.AtMost, domain.LimitScopeSector, ""),
		limit(t, "position", domain.MetricMarketValue, 1_000_000, domain.AtMost, domain.LimitScopePosition, ""),
	})
	require.NoError(t, err)

	// one breach (sector) and one warning (hhi 0.25 >= 0.8 * 0.3)
	require.Len(t, assessment.Flags, 1)
	require.Len(t, assessment.Warnings, 1)
	assert.Equal(t, "hhi", assessment.Warnings[0].LimitName)
	assert.Equal(t, 85.0, assessment.Score)
	assert.Equal(t, LevelGood, assessment.Level)
	assert.Equal(t, StatusNonCompliant, assessment.Status)
	assert.Equal(t, 3, assessment.LimitsChecked)
}

func TestAssess_WarningRatio(t *testing.T) {
	pf := fourEqual(t)
	limits := []domain.ComplianceLimit{
		limit(t, "hhi", domain.MetricHHI, 0.3, domain.AtMost, domain.LimitScopePortfolio, ""),
	}

	assessment, err := NewEvaluator(zerolog.Nop(), WithWarningRatio(0.9)).Assess(pf, nil, limits)
	require.NoError(t, err)
	assert.Empty(t, assessment.Warnings)
	assert.Equal(t, 100.0, assessment.Score)
	assert.Equal(t, LevelExcellent, assessment.Level)
	assert.Equal(t, StatusCompliant, assessment.Status)

	assessment, err = newEvaluator().Assess(pf, nil, limits)
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, assessment.Status)
	assert.Equal(t, 95.0, assessment.Score)
}

func TestLevelForScore(t *testing.T) {
	assert.Equal(t, LevelExcellent, LevelForScore(100))
	assert.Equal(t, LevelGood, LevelForScore(85))
	assert.Equal(t, LevelSatisfactory, LevelForScore(80))
	assert.Equal(t, LevelNeedsImprovement, LevelForScore(65))
	assert.Equal(t, LevelNonCompliant, LevelForScore(0))
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()
	require.Len(t, limits, 5)

	pf := fourEqual(t)
	flags, err := newEvaluator().Evaluate(pf, &domain.VaRResult{VaRPercentage: 0.01, PortfolioValue: 1_000_000}, limits)
	require.NoError(t, err)

	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.LimitName
	}
	// Tech is 50% of the book and both regions hold 50%
	assert.ElementsMatch(t, []string{"Max Sector Exposure", "Max Region Exposure"}, names)
}
