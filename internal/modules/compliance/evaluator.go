// Package compliance checks a portfolio against concentration and risk limits.
package compliance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/pkg/formulas"
)

// Severity ratio bands
const (
	minorRatio = 1.1
	majorRatio = 1.5
)

// DefaultWarningRatio is the share of a threshold above which a passing limit is a warning
const DefaultWarningRatio = 0.8

// unclassified is the group of positions without a sector or region tag
const unclassified = "unclassified"

// Evaluator evaluates compliance limits. It holds no state between calls.
type Evaluator struct {
	log          zerolog.Logger
	warningRatio float64
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithWarningRatio overrides DefaultWarningRatio. Values outside (0, 1) are ignored.
func WithWarningRatio(ratio float64) Option {
	return func(e *Evaluator) {
		if ratio > 0 && ratio < 1 {
			e.warningRatio = ratio
		}
	}
}

// NewEvaluator creates a new compliance evaluator
func NewEvaluator(log zerolog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		log:          log.With().Str("component", "compliance_evaluator").Logger(),
		warningRatio: DefaultWarningRatio,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// measurement is the observed value of one limit
type measurement struct {
	limit    domain.ComplianceLimit
	observed float64
	subject  string
}

func (m measurement) breached() bool {
	return m.limit.Comparison.Breaches(m.observed, m.limit.Threshold)
}

// Evaluate returns one flag per breached limit, most severe first.
// varResult may be nil when no limit reads a VaR metric.
func (e *Evaluator) Evaluate(portfolio *domain.Portfolio, varResult *domain.VaRResult, limits []domain.ComplianceLimit) ([]domain.ComplianceFlag, error) {
	measurements, err := e.measure(portfolio, varResult, limits)
	if err != nil {
		return nil, err
	}
	return flagsOf(measurements), nil
}

func flagsOf(measurements []measurement) []domain.ComplianceFlag {
	flags := make([]domain.ComplianceFlag, 0)
	for _, m := range measurements {
		if !m.breached() {
			continue
		}
		flags = append(flags, domain.ComplianceFlag{
			LimitName:     m.limit.Name,
			ObservedValue: m.observed,
			Threshold:     m.limit.Threshold,
			Severity:      severity(m.observed, m.limit.Threshold, m.limit.Comparison),
			Subject:       m.subject,
		})
	}
	sort.SliceStable(flags, func(i, j int) bool {
		if flags[i].Severity != flags[j].Severity {
			return flags[i].Severity > flags[j].Severity
		}
		if flags[i].LimitName != flags[j].LimitName {
			return flags[i].LimitName < flags[j].LimitName
		}
		return flags[i].Subject < flags[j].Subject
	})
	return flags
}

func (e *Evaluator) measure(portfolio *domain.Portfolio, varResult *domain.VaRResult, limits []domain.ComplianceLimit) ([]measurement, error) {
	if portfolio == nil || portfolio.Len() == 0 {
		return nil, domain.NewInvalidConfigurationError("portfolio", "must contain at least one position")
	}

	out := make([]measurement, 0, len(limits))
	for _, l := range limits {
		limit, err := domain.NewComplianceLimit(l.Name, l.Metric, l.Threshold, l.Comparison, l.Scope, l.Key)
		if err != nil {
			return nil, err
		}
		if limit.Metric.RequiresVaR() && varResult == nil {
			return nil, domain.NewInvalidConfigurationError("limit",
				fmt.Sprintf("%q: metric %s needs a VaR result", limit.Name, limit.Metric))
		}

		m := measurement{limit: limit}
		switch limit.Scope {
		case domain.LimitScopePortfolio:
			m.observed = portfolioMetric(portfolio, varResult, limit.Metric)
		default:
			m.observed, m.subject = worstGroup(portfolio, limit)
		}
		out = append(out, m)

		if m.breached() {
			e.log.Debug().
				Str("limit", limit.Name).
				Str("subject", m.subject).
				Float64("observed", m.observed).
				Float64("threshold", limit.Threshold).
				Msg("Compliance limit breached")
		}
	}
	return out, nil
}

func portfolioMetric(portfolio *domain.Portfolio, varResult *domain.VaRResult, metric domain.LimitMetric) float64 {
	switch metric {
	case domain.MetricHHI:
		return formulas.HHI(portfolio.Weights())
	case domain.MetricVaRPercentage:
		return varResult.VaRPercentage
	case domain.MetricESPercentage:
		return varResult.ExpectedShortfallPercentage()
	}
	return 0
}

// worstGroup measures the limit for the group named by Key, or for every group
// when Key is empty and returns the one closest to (or furthest past) breaching
func worstGroup(portfolio *domain.Portfolio, limit domain.ComplianceLimit) (float64, string) {
	groups, names := groupValues(portfolio, limit.Scope)
	total := decimal.NewFromFloat(portfolio.TotalValue())

	value := func(name string) float64 {
		mv := groups[groupKey(limit.Scope, name)]
		if limit.Metric == domain.MetricMarketValue {
			return mv.InexactFloat64()
		}
		if !total.IsPositive() {
			return 0
		}
		return mv.Div(total).InexactFloat64()
	}

	if limit.Key != "" {
		subject := limit.Key
		if display, ok := names[groupKey(limit.Scope, limit.Key)]; ok {
			subject = display
		}
		return value(limit.Key), subject
	}

	keys := make([]string, 0, len(names))
	for _, display := range names {
		keys = append(keys, display)
	}
	sort.Strings(keys)

	worst, subject := 0.0, ""
	for i, name := range keys {
		v := value(name)
		if i == 0 ||
			(limit.Comparison == domain.AtMost && v > worst) ||
			(limit.Comparison == domain.AtLeast && v < worst) {
			worst, subject = v, name
		}
	}
	return worst, subject
}

// groupValues sums market values per group. Sector and region groups are
// case-insensitive with the first spelling seen kept for display; positions
// are keyed by their exact instrument id.
func groupValues(portfolio *domain.Portfolio, scope domain.LimitScope) (map[string]decimal.Decimal, map[string]string) {
	values := make(map[string]decimal.Decimal)
	names := make(map[string]string)
	for _, pos := range portfolio.Positions() {
		var name string
		switch scope {
		case domain.LimitScopeSector:
			name = pos.Sector
		case domain.LimitScopeRegion:
			name = pos.Region
		default:
			name = pos.InstrumentID
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = unclassified
		}
		key := groupKey(scope, name)
		if _, ok := names[key]; !ok {
			names[key] = name
		}
		values[key] = values[key].Add(decimal.NewFromFloat(pos.MarketValue))
	}
	return values, names
}

func groupKey(scope domain.LimitScope, name string) string {
	if scope == domain.LimitScopePosition {
		return name
	}
	return strings.ToLower(name)
}

// severity grades a breach by how far past the threshold the observed value is
func severity(observed, threshold float64, comparison domain.Comparison) domain.Severity {
	var ratio float64
	if comparison == domain.AtLeast {
		if observed <= 0 {
			return domain.SeverityCritical
		}
		ratio = threshold / observed
	} else {
		if threshold <= 0 {
			return domain.SeverityCritical
		}
		ratio = observed / threshold
	}

	switch {
	case math.IsNaN(ratio) || math.IsInf(ratio, 0):
		return domain.SeverityCritical
	case ratio < minorRatio:
		return domain.SeverityMinor
	case ratio < majorRatio:
		return domain.SeverityMajor
	}
	return domain.SeverityCritical
}
