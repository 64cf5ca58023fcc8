// Package risk computes Value-at-Risk and Expected Shortfall for a portfolio
// from an estimated return distribution.
package risk

import (
	"fmt"
	"math"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/pkg/formulas"
)

// Defaults for VaR computation
const (
	DefaultConfidenceLevel   = 0.99
	DefaultHorizonDays       = 1
	DefaultMonteCarloSamples = 10000
)

// MonteCarloConfig controls simulation. Seed is required so runs are reproducible.
type MonteCarloConfig struct {
	Samples int     `json:"samples" yaml:"samples"`
	Seed    *uint64 `json:"seed,omitempty" yaml:"seed"`
	Workers int     `json:"workers" yaml:"workers"`
}

// Config selects the VaR method and its parameters
type Config struct {
	Method          domain.VaRMethod `json:"method" yaml:"method"`
	ConfidenceLevel float64          `json:"confidence_level" yaml:"confidence_level"`
	HorizonDays     int              `json:"horizon_days" yaml:"horizon_days"`
	MonteCarlo      MonteCarloConfig `json:"monte_carlo" yaml:"monte_carlo"`
}

// DefaultConfig returns 1-day 99% parametric VaR settings
func DefaultConfig() Config {
	return Config{
		Method:          domain.VaRParametric,
		ConfidenceLevel: DefaultConfidenceLevel,
		HorizonDays:     DefaultHorizonDays,
		MonteCarlo: MonteCarloConfig{
			Samples: DefaultMonteCarloSamples,
			Workers: 1,
		},
	}
}

// WithSeed returns a copy of c with the Monte Carlo seed set
func (c Config) WithSeed(seed uint64) Config {
	c.MonteCarlo.Seed = &seed
	return c
}

// Validate checks the configuration, returning an InvalidConfigurationError
func (c Config) Validate() error {
	switch c.Method {
	case domain.VaRParametric, domain.VaRHistorical, domain.VaRMonteCarlo:
	default:
		return domain.NewInvalidConfigurationError("method", fmt.Sprintf("unknown VaR method %q", c.Method))
	}
	if !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 1) || math.IsNaN(c.ConfidenceLevel) {
		return domain.NewInvalidConfigurationError("confidence_level",
			fmt.Sprintf("must be strictly between 0 and 1, got %g", c.ConfidenceLevel))
	}
	if c.HorizonDays < 1 {
		return domain.NewInvalidConfigurationError("horizon_days",
			fmt.Sprintf("must be at least 1, got %d", c.HorizonDays))
	}

	if c.Method == domain.VaRMonteCarlo {
		if minSamples := formulas.MinScenarios(c.ConfidenceLevel); c.MonteCarlo.Samples < minSamples {
			return domain.NewInvalidConfigurationError("monte_carlo.samples",
				fmt.Sprintf("need at least %d samples at %g confidence, got %d", minSamples, c.ConfidenceLevel, c.MonteCarlo.Samples))
		}
		if c.MonteCarlo.Seed == nil {
			return domain.NewInvalidConfigurationError("monte_carlo.seed", "a seed is required for reproducible simulation")
		}
		if c.MonteCarlo.Workers < 1 {
			return domain.NewInvalidConfigurationError("monte_carlo.workers",
				fmt.Sprintf("must be at least 1, got %d", c.MonteCarlo.Workers))
		}
	}
	return nil
}
