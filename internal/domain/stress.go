package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ShockScope selects which classification a shock key is matched against
type ShockScope string

const (
	// ScopeAny matches the key against instrument id, sector, region, currency and asset class
	ScopeAny        ShockScope = "any"
	ScopeInstrument ShockScope = "instrument"
	ScopeSector     ShockScope = "sector"
	ScopeRegion     ShockScope = "region"
	ScopeCurrency   ShockScope = "currency"
	ScopeAssetClass ShockScope = "asset_class"
	// ScopePortfolio matches every position
	ScopePortfolio ShockScope = "portfolio"
)

// ParseShockScope validates a textual shock scope
func ParseShockScope(s string) (ShockScope, error) {
	switch scope := ShockScope(strings.ToLower(strings.TrimSpace(s))); scope {
	case ScopeAny, ScopeInstrument, ScopeSector, ScopeRegion, ScopeCurrency, ScopeAssetClass, ScopePortfolio:
		return scope, nil
	case "":
		return ScopeAny, nil
	}
	return "", NewInvalidConfigurationError("shock_scope", fmt.Sprintf("unknown shock scope %q", s))
}

// Shock is a fractional price change applied to the positions matching Key
type Shock struct {
	Scope ShockScope `json:"scope" yaml:"scope" msgpack:"scope"`
	Key   string     `json:"key" yaml:"key" msgpack:"key"`
	Value float64    `json:"value" yaml:"value" msgpack:"value"`
}

// ParseShockKey splits "scope:key" into its parts. A bare key has ScopeAny and
// "*" is the whole portfolio.
func ParseShockKey(raw string) (ShockScope, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		return ScopePortfolio, "*", nil
	}
	scopePart, key, found := strings.Cut(raw, ":")
	if !found {
		if raw == "" {
			return "", "", NewInvalidConfigurationError("shock_key", "must not be empty")
		}
		return ScopeAny, raw, nil
	}

	scope, err := ParseShockScope(scopePart)
	if err != nil {
		return "", "", err
	}
	key = strings.TrimSpace(key)
	if scope == ScopePortfolio {
		return ScopePortfolio, "*", nil
	}
	if key == "" {
		return "", "", NewInvalidConfigurationError("shock_key", fmt.Sprintf("empty key in %q", raw))
	}
	return scope, key, nil
}

// String renders the shock key in "scope:key" form
func (s Shock) String() string {
	if s.Scope == ScopeAny {
		return s.Key
	}
	if s.Scope == ScopePortfolio {
		return "*"
	}
	return string(s.Scope) + ":" + s.Key
}

// ShockCombination is how several shocks matching one position are combined
type ShockCombination string

const (
	// CombineAdditive sums the matching shocks
	CombineAdditive ShockCombination = "additive"
	// CombineMultiplicative compounds the matching shocks: prod(1+s) - 1
	CombineMultiplicative ShockCombination = "multiplicative"
)

// ParseShockCombination validates a textual combination policy, defaulting to additive
func ParseShockCombination(s string) (ShockCombination, error) {
	switch c := ShockCombination(strings.ToLower(strings.TrimSpace(s))); c {
	case CombineAdditive, "":
		return CombineAdditive, nil
	case CombineMultiplicative:
		return c, nil
	}
	return "", NewInvalidConfigurationError("combination", fmt.Sprintf("unknown shock combination %q", s))
}

// StressScenario is a named set of shocks
type StressScenario struct {
	Name        string           `json:"name" msgpack:"name"`
	Description string           `json:"description,omitempty" msgpack:"description"`
	Shocks      []Shock          `json:"shocks" msgpack:"shocks"`
	Combination ShockCombination `json:"combination" msgpack:"combination"`
}

// NewStressScenario builds a scenario from a key -> shock mapping. Keys use
// the "scope:key" form; shocks are ordered by key.
func NewStressScenario(name, description string, shocks map[string]float64, combination ShockCombination) (StressScenario, error) {
	keys := make([]string, 0, len(shocks))
	for k := range shocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parsed := make([]Shock, 0, len(keys))
	for _, k := range keys {
		scope, key, err := ParseShockKey(k)
		if err != nil {
			return StressScenario{}, err
		}
		parsed = append(parsed, Shock{Scope: scope, Key: key, Value: shocks[k]})
	}

	return NewStressScenarioFromShocks(name, description, parsed, combination)
}

// NewStressScenarioFromShocks validates an explicit list of shocks
func NewStressScenarioFromShocks(name, description string, shocks []Shock, combination ShockCombination) (StressScenario, error) {
	if strings.TrimSpace(name) == "" {
		return StressScenario{}, NewInvalidConfigurationError("scenario", "name must not be empty")
	}
	if len(shocks) == 0 {
		return StressScenario{}, NewInvalidConfigurationError("scenario", fmt.Sprintf("%q has no shocks", name))
	}
	combination, err := ParseShockCombination(string(combination))
	if err != nil {
		return StressScenario{}, err
	}

	owned := make([]Shock, len(shocks))
	seen := make(map[string]bool, len(shocks))
	for i, s := range shocks {
		scope, err := ParseShockScope(string(s.Scope))
		if err != nil {
			return StressScenario{}, err
		}
		s.Scope = scope
		if scope == ScopePortfolio {
			s.Key = "*"
		}
		if strings.TrimSpace(s.Key) == "" {
			return StressScenario{}, NewInvalidConfigurationError("scenario", fmt.Sprintf("%q has a shock with an empty key", name))
		}
		if !isFinite(s.Value) || s.Value < -1 {
			return StressScenario{}, NewInvalidConfigurationError("scenario",
				fmt.Sprintf("%q: shock %s must be a finite fraction >= -1, got %g", name, s, s.Value))
		}
		id := strings.ToLower(s.String())
		if seen[id] {
			return StressScenario{}, NewInvalidConfigurationError("scenario", fmt.Sprintf("%q: duplicate shock key %s", name, s))
		}
		seen[id] = true
		owned[i] = s
	}

	return StressScenario{Name: name, Description: description, Shocks: owned, Combination: combination}, nil
}

// StressResult is the P&L of a portfolio under one scenario
type StressResult struct {
	ScenarioName     string             `json:"scenario_name" msgpack:"scenario_name"`
	PortfolioPnL     float64            `json:"portfolio_pnl" msgpack:"portfolio_pnl"`
	PositionPnL      map[string]float64 `json:"position_pnl" msgpack:"position_pnl"`
	InitialValue     float64            `json:"initial_value" msgpack:"initial_value"`
	StressedValue    float64            `json:"stressed_value" msgpack:"stressed_value"`
	LossPercentage   float64            `json:"loss_percentage" msgpack:"loss_percentage"`
	MatchedPositions int                `json:"matched_positions" msgpack:"matched_positions"`
}
