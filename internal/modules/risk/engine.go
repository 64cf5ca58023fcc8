package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/riskmodel"
)

// Engine computes VaR and Expected Shortfall. It holds no state between calls.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new VaR engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "var_engine").Logger(),
	}
}

// exposure is the portfolio projected onto the distribution's instrument order
type exposure struct {
	values  []float64
	weights []float64
	total   float64
}

// moments are the portfolio return mean and volatility per period
type moments struct {
	mean  float64
	sigma float64
}

// Compute runs the configured VaR method for the portfolio.
// The portfolio and distribution must cover exactly the same instruments.
func (e *Engine) Compute(portfolio *domain.Portfolio, dist *riskmodel.Distribution, cfg Config) (domain.VaRResult, error) {
	if err := cfg.Validate(); err != nil {
		return domain.VaRResult{}, err
	}

	exp, err := newExposure(portfolio, dist)
	if err != nil {
		return domain.VaRResult{}, err
	}
	mom := portfolioMoments(exp, dist)

	result := domain.VaRResult{
		Method:              cfg.Method,
		ConfidenceLevel:     cfg.ConfidenceLevel,
		HorizonDays:         cfg.HorizonDays,
		AsOfDate:            portfolio.AsOf,
		PortfolioValue:      exp.total,
		PortfolioMean:       mom.mean,
		PortfolioVolatility: mom.sigma,
	}

	var varAmount, shortfall float64
	switch cfg.Method {
	case domain.VaRParametric:
		varAmount, shortfall = parametricVaR(exp, mom, cfg)
		result.Observations = dist.Observations()
	case domain.VaRHistorical:
		varAmount, shortfall, result.Observations, err = historicalVaR(exp, dist, cfg)
	case domain.VaRMonteCarlo:
		varAmount, shortfall, err = monteCarloVaR(exp, dist, cfg)
		result.Observations = cfg.MonteCarlo.Samples
	}
	if err != nil {
		return domain.VaRResult{}, err
	}

	result.VaRAmount = math.Max(0, varAmount)
	result.ExpectedShortfall = math.Max(result.VaRAmount, shortfall)
	result.VaRPercentage = result.VaRAmount / exp.total

	e.log.Debug().
		Str("portfolio", portfolio.ID).
		Str("method", string(cfg.Method)).
		Float64("confidence", cfg.ConfidenceLevel).
		Int("horizon_days", cfg.HorizonDays).
		Float64("var", result.VaRAmount).
		Float64("expected_shortfall", result.ExpectedShortfall).
		Msg("Computed VaR")

	return result, nil
}

func newExposure(portfolio *domain.Portfolio, dist *riskmodel.Distribution) (exposure, error) {
	if portfolio == nil || portfolio.Len() == 0 {
		return exposure{}, domain.NewInvalidConfigurationError("portfolio", "must contain at least one position")
	}
	if dist == nil {
		return exposure{}, domain.NewInvalidConfigurationError("distribution", "must not be nil")
	}

	values := make([]float64, dist.Len())
	var missing []string
	for _, pos := range portfolio.Positions() {
		i, ok := dist.IndexOf(pos.InstrumentID)
		if !ok {
			missing = append(missing, pos.InstrumentID)
			continue
		}
		values[i] = pos.MarketValue
	}
	if len(missing) > 0 || portfolio.Len() != dist.Len() {
		return exposure{}, domain.NewDimensionMismatchError(portfolio.Len(), dist.Len(), missing,
			"portfolio and distribution instruments differ")
	}

	total := portfolio.TotalValue()
	if !(total > 0) {
		return exposure{}, domain.NewInvalidConfigurationError("portfolio",
			fmt.Sprintf("total market value must be positive, got %g", total))
	}

	weights := make([]float64, len(values))
	copy(weights, values)
	floats.Scale(1/total, weights)

	return exposure{values: values, weights: weights, total: total}, nil
}

// portfolioMoments computes mu_p = w'mu and sigma_p = sqrt(w' Sigma w)
func portfolioMoments(exp exposure, dist *riskmodel.Distribution) moments {
	w := mat.NewVecDense(len(exp.weights), exp.weights)
	variance := mat.Inner(w, dist.Covariance(), w)
	if variance < 0 {
		variance = 0
	}
	return moments{
		mean:  floats.Dot(exp.weights, dist.Mean()),
		sigma: math.Sqrt(variance),
	}
}
