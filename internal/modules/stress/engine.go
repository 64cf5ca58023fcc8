// Package stress applies scenario shocks to a portfolio snapshot.
//
// Shocks are fractional price changes: a position's P&L is its market value
// times the combined shock of every scenario key that matches it. Matching is
// case-insensitive against the classification named by the key's scope; a bare
// key matches instrument id, sector, region, currency or asset class, and "*"
// matches every position. Each shock is counted at most once per position.
package stress

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/riskcore/internal/domain"
)

// Engine applies stress scenarios. It holds no state between calls.
type Engine struct {
	log        zerolog.Logger
	strictKeys bool
}

// Option configures an Engine
type Option func(*Engine)

// WithStrictKeys rejects scenarios carrying any key that matches no position
func WithStrictKeys() Option {
	return func(e *Engine) {
		e.strictKeys = true
	}
}

// NewEngine creates a new stress engine
func NewEngine(log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		log: log.With().Str("component", "stress_engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply revalues the portfolio under one scenario
func (e *Engine) Apply(portfolio *domain.Portfolio, scenario domain.StressScenario) (domain.StressResult, error) {
	if portfolio == nil || portfolio.Len() == 0 {
		return domain.StressResult{}, domain.NewInvalidConfigurationError("portfolio", "must contain at least one position")
	}
	scenario, err := domain.NewStressScenarioFromShocks(scenario.Name, scenario.Description, scenario.Shocks, scenario.Combination)
	if err != nil {
		return domain.StressResult{}, err
	}

	result := domain.StressResult{
		ScenarioName: scenario.Name,
		PositionPnL:  make(map[string]float64, portfolio.Len()),
	}

	used := make([]bool, len(scenario.Shocks))
	total := decimal.Zero
	initial := decimal.Zero
	for _, pos := range portfolio.Positions() {
		var matched []float64
		for i, shock := range scenario.Shocks {
			if matches(shock, pos) {
				matched = append(matched, shock.Value)
				used[i] = true
			}
		}

		pnl := decimal.Zero
		if len(matched) > 0 {
			result.MatchedPositions++
			pnl = decimal.NewFromFloat(pos.MarketValue).Mul(decimal.NewFromFloat(combine(matched, scenario.Combination)))
		}
		result.PositionPnL[pos.InstrumentID] = pnl.InexactFloat64()
		total = total.Add(pnl)
		initial = initial.Add(decimal.NewFromFloat(pos.MarketValue))
	}

	var unmatched []string
	for i, ok := range used {
		if !ok {
			unmatched = append(unmatched, scenario.Shocks[i].String())
		}
	}
	if len(unmatched) > 0 {
		if e.strictKeys {
			return domain.StressResult{}, domain.NewInvalidConfigurationError("scenario",
				fmt.Sprintf("%q: no position matches keys [%s]", scenario.Name, strings.Join(unmatched, ", ")))
		}
		e.log.Debug().
			Str("scenario", scenario.Name).
			Strs("keys", unmatched).
			Msg("Shock keys matched no position")
	}

	result.PortfolioPnL = total.InexactFloat64()
	result.InitialValue = initial.InexactFloat64()
	result.StressedValue = initial.Add(total).InexactFloat64()
	if initial.IsPositive() {
		result.LossPercentage = total.Neg().Div(initial).InexactFloat64()
	}

	return result, nil
}

// ApplyAll applies every scenario in order. The first failing scenario aborts the run.
func (e *Engine) ApplyAll(portfolio *domain.Portfolio, scenarios []domain.StressScenario) ([]domain.StressResult, error) {
	results := make([]domain.StressResult, 0, len(scenarios))
	for _, s := range scenarios {
		r, err := e.Apply(portfolio, s)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// WorstCase returns the result with the largest loss, false when results is empty
func WorstCase(results []domain.StressResult) (domain.StressResult, bool) {
	if len(results) == 0 {
		return domain.StressResult{}, false
	}
	worst := results[0]
	for _, r := range results[1:] {
		if r.PortfolioPnL < worst.PortfolioPnL {
			worst = r
		}
	}
	return worst, true
}

func matches(shock domain.Shock, pos domain.Position) bool {
	switch shock.Scope {
	case domain.ScopePortfolio:
		return true
	case domain.ScopeInstrument:
		return tagEquals(pos.InstrumentID, shock.Key)
	case domain.ScopeSector:
		return tagEquals(pos.Sector, shock.Key)
	case domain.ScopeRegion:
		return tagEquals(pos.Region, shock.Key)
	case domain.ScopeCurrency:
		return tagEquals(string(pos.Currency), shock.Key)
	case domain.ScopeAssetClass:
		return tagEquals(pos.AssetClass, shock.Key)
	case domain.ScopeAny:
		return tagEquals(pos.InstrumentID, shock.Key) ||
			tagEquals(pos.Sector, shock.Key) ||
			tagEquals(pos.Region, shock.Key) ||
			tagEquals(string(pos.Currency), shock.Key) ||
			tagEquals(pos.AssetClass, shock.Key)
	}
	return false
}

func tagEquals(tag, key string) bool {
	tag = strings.TrimSpace(tag)
	return tag != "" && strings.EqualFold(tag, strings.TrimSpace(key))
}

// combine merges the shocks matching one position
func combine(shocks []float64, policy domain.ShockCombination) float64 {
	if policy == domain.CombineMultiplicative {
		growth := 1.0
		for _, s := range shocks {
			growth *= 1 + s
		}
		return growth - 1
	}
	sum := 0.0
	for _, s := range shocks {
		sum += s
	}
	return sum
}
