// Package riskmodel builds the return distribution (mean vector and covariance
// matrix) consumed by the VaR engine.
package riskmodel

import (
	"fmt"
	"math"

	"github.com/aristath/riskcore/internal/domain"
)

// Constants for risk model configuration
const (
	DefaultLookbackWindow    = 250  // ~1 year of trading days
	DefaultMinObservations   = 30   // fewer observations make the covariance meaningless
	DefaultShrinkageEpsilon  = 1e-8 // diagonal shift applied to near-singular matrices
	DefaultEigenTolerance    = 1e-10
	HighCorrelationThreshold = 0.80 // 80% correlation is considered "high"
)

// ModelConfig controls how the distribution is estimated
type ModelConfig struct {
	LookbackWindow   int     `json:"lookback_window" yaml:"lookback_window"`
	MinObservations  int     `json:"min_observations" yaml:"min_observations"`
	ShrinkageEpsilon float64 `json:"shrinkage_epsilon" yaml:"shrinkage_epsilon"`
	EigenTolerance   float64 `json:"eigen_tolerance" yaml:"eigen_tolerance"`
	// LedoitWolf shrinks the sample covariance towards a constant correlation target
	LedoitWolf bool `json:"ledoit_wolf" yaml:"ledoit_wolf"`
	// HalfLifeDays enables exponential time-decay weighting of observations (0 = equal weights)
	HalfLifeDays float64 `json:"half_life_days" yaml:"half_life_days"`
}

// DefaultModelConfig returns the default estimation settings
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		LookbackWindow:   DefaultLookbackWindow,
		MinObservations:  DefaultMinObservations,
		ShrinkageEpsilon: DefaultShrinkageEpsilon,
		EigenTolerance:   DefaultEigenTolerance,
	}
}

// Validate checks the configuration, returning an InvalidConfigurationError
func (c ModelConfig) Validate() error {
	if c.MinObservations < 2 {
		return domain.NewInvalidConfigurationError("min_observations",
			fmt.Sprintf("must be at least 2, got %d", c.MinObservations))
	}
	if c.LookbackWindow < c.MinObservations {
		return domain.NewInvalidConfigurationError("lookback_window",
			fmt.Sprintf("must be at least min_observations (%d), got %d", c.MinObservations, c.LookbackWindow))
	}
	if !(c.ShrinkageEpsilon > 0) || math.IsInf(c.ShrinkageEpsilon, 0) {
		return domain.NewInvalidConfigurationError("shrinkage_epsilon", "must be a positive number")
	}
	if c.EigenTolerance < 0 || math.IsNaN(c.EigenTolerance) || math.IsInf(c.EigenTolerance, 0) {
		return domain.NewInvalidConfigurationError("eigen_tolerance", "must be a non-negative number")
	}
	if c.HalfLifeDays < 0 || math.IsNaN(c.HalfLifeDays) || math.IsInf(c.HalfLifeDays, 0) {
		return domain.NewInvalidConfigurationError("half_life_days", "must be zero or a positive number")
	}
	return nil
}
