package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/compliance"
	"github.com/aristath/riskcore/internal/modules/risk"
	"github.com/aristath/riskcore/internal/modules/riskmodel"
)

// DefaultMonteCarloSeed is the seed of the built-in configuration. A loaded
// configuration file must name its own seed to run Monte Carlo.
const DefaultMonteCarloSeed uint64 = 42

// RiskConfig is the full set of parameters for one analysis run
type RiskConfig struct {
	ReturnKind domain.ReturnKind     `json:"return_kind" yaml:"return_kind"`
	Model      riskmodel.ModelConfig `json:"model" yaml:"model"`
	VaR        risk.Config           `json:"var" yaml:"var"`
	// ComponentVaR adds per-position VaR contributions (parametric only)
	ComponentVaR bool `json:"component_var" yaml:"component_var"`

	Stress StressConfig `json:"stress" yaml:"stress"`

	// Beta measures positions against a benchmark instrument when one is named
	Beta risk.BetaConfig `json:"beta" yaml:"beta"`

	Limits       []LimitConfig `json:"limits" yaml:"limits"`
	WarningRatio float64       `json:"warning_ratio" yaml:"warning_ratio"`
}

// StressConfig selects the scenarios applied in a run
type StressConfig struct {
	// IncludeLibrary applies the predefined scenarios as well as Scenarios
	IncludeLibrary bool             `json:"include_library" yaml:"include_library"`
	StrictKeys     bool             `json:"strict_keys" yaml:"strict_keys"`
	Scenarios      []ScenarioConfig `json:"scenarios" yaml:"scenarios"`
}

// ScenarioConfig is a custom stress scenario. Shock keys use the
// "scope:key" form, e.g. "sector:Financials" or "*".
type ScenarioConfig struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Combination string             `json:"combination,omitempty" yaml:"combination,omitempty"`
	Shocks      map[string]float64 `json:"shocks" yaml:"shocks"`
}

// LimitConfig is a compliance limit as written in configuration
type LimitConfig struct {
	Name       string  `json:"name" yaml:"name"`
	Metric     string  `json:"metric" yaml:"metric"`
	Threshold  float64 `json:"threshold" yaml:"threshold"`
	Comparison string  `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	Scope      string  `json:"scope" yaml:"scope"`
	Key        string  `json:"key,omitempty" yaml:"key,omitempty"`
}

// DefaultRiskConfig returns 1-day 99% parametric VaR over simple returns with
// the library scenarios and the default limit set
func DefaultRiskConfig() RiskConfig {
	limits := compliance.DefaultLimits()
	limitCfgs := make([]LimitConfig, len(limits))
	for i, l := range limits {
		limitCfgs[i] = LimitConfig{
			Name:       l.Name,
			Metric:     string(l.Metric),
			Threshold:  l.Threshold,
			Comparison: string(l.Comparison),
			Scope:      string(l.Scope),
			Key:        l.Key,
		}
	}

	return RiskConfig{
		ReturnKind:   domain.SimpleReturns,
		Model:        riskmodel.DefaultModelConfig(),
		VaR:          risk.DefaultConfig().WithSeed(DefaultMonteCarloSeed),
		ComponentVaR: true,
		Stress:       StressConfig{IncludeLibrary: true},
		Beta:         risk.DefaultBetaConfig(),
		Limits:       limitCfgs,
		WarningRatio: compliance.DefaultWarningRatio,
	}
}

// LoadRiskConfig loads a risk configuration file on top of the defaults.
// Files ending in .json are read as JSON, anything else as YAML. The file
// inherits every default except the Monte Carlo seed.
func LoadRiskConfig(path string) (RiskConfig, error) {
	cfg := DefaultRiskConfig()
	if path == "" {
		return cfg, nil
	}
	cfg.VaR.MonteCarlo.Seed = nil

	data, err := os.ReadFile(path)
	if err != nil {
		return RiskConfig{}, fmt.Errorf("read risk config: %w", err)
	}

	if isJSON(path) {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return RiskConfig{}, fmt.Errorf("parse risk config %s: %w", filepath.Base(path), err)
	}

	if err := cfg.normalize(); err != nil {
		return RiskConfig{}, fmt.Errorf("invalid risk config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RiskConfig{}, fmt.Errorf("invalid risk config: %w", err)
	}
	return cfg, nil
}

// normalize maps the accepted spellings of the VaR method and return kind
// onto their canonical values.
func (c *RiskConfig) normalize() error {
	method, err := domain.ParseVaRMethod(string(c.VaR.Method))
	if err != nil {
		return err
	}
	c.VaR.Method = method

	kind, err := domain.ParseReturnKind(string(c.ReturnKind))
	if err != nil {
		return err
	}
	c.ReturnKind = kind
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// SaveToFile writes the configuration as JSON for .json paths, YAML otherwise
func (c RiskConfig) SaveToFile(path string) error {
	var data []byte
	var err error
	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal risk config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write risk config: %w", err)
	}
	return nil
}

// Validate checks every section, returning an InvalidConfigurationError
func (c RiskConfig) Validate() error {
	if _, err := domain.ParseReturnKind(string(c.ReturnKind)); err != nil {
		return err
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if err := c.VaR.Validate(); err != nil {
		return err
	}
	if err := c.Beta.Validate(); err != nil {
		return err
	}
	if c.WarningRatio <= 0 || c.WarningRatio >= 1 {
		return domain.NewInvalidConfigurationError("warning_ratio",
			fmt.Sprintf("must be strictly between 0 and 1, got %g", c.WarningRatio))
	}
	if _, err := c.ComplianceLimits(); err != nil {
		return err
	}
	if _, err := c.CustomScenarios(); err != nil {
		return err
	}
	return nil
}

// Kind returns the configured return kind, defaulting to simple returns
func (c RiskConfig) Kind() domain.ReturnKind {
	kind, err := domain.ParseReturnKind(string(c.ReturnKind))
	if err != nil {
		return domain.SimpleReturns
	}
	return kind
}

// ComplianceLimits converts the configured limits
func (c RiskConfig) ComplianceLimits() ([]domain.ComplianceLimit, error) {
	out := make([]domain.ComplianceLimit, 0, len(c.Limits))
	seen := make(map[string]bool, len(c.Limits))
	for _, l := range c.Limits {
		if seen[l.Name] {
			return nil, domain.NewInvalidConfigurationError("limits", fmt.Sprintf("duplicate limit name %q", l.Name))
		}
		seen[l.Name] = true

		limit, err := domain.NewComplianceLimit(l.Name,
			domain.LimitMetric(l.Metric), l.Threshold, domain.Comparison(l.Comparison),
			domain.LimitScope(l.Scope), l.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, limit)
	}
	return out, nil
}

// CustomScenarios converts the configured scenarios
func (c RiskConfig) CustomScenarios() ([]domain.StressScenario, error) {
	out := make([]domain.StressScenario, 0, len(c.Stress.Scenarios))
	for _, s := range c.Stress.Scenarios {
		scenario, err := domain.NewStressScenario(s.Name, s.Description, s.Shocks, domain.ShockCombination(s.Combination))
		if err != nil {
			return nil, err
		}
		out = append(out, scenario)
	}
	return out, nil
}
