package risk

import (
	"fmt"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/riskmodel"
)

// Beta exposure defaults
const (
	DefaultHighBeta            = 1.5
	DefaultLowBeta             = 0.5
	DefaultBetaMinObservations = 20
)

// BetaConfig names the benchmark betas are measured against. An empty
// Benchmark turns beta exposure off.
type BetaConfig struct {
	Benchmark       string  `json:"benchmark" yaml:"benchmark"`
	High            float64 `json:"high" yaml:"high"`
	Low             float64 `json:"low" yaml:"low"`
	MinObservations int     `json:"min_observations" yaml:"min_observations"`
}

func DefaultBetaConfig() BetaConfig {
	return BetaConfig{
		High:            DefaultHighBeta,
		Low:             DefaultLowBeta,
		MinObservations: DefaultBetaMinObservations,
	}
}

func (c BetaConfig) Enabled() bool {
	return c.Benchmark != ""
}

func (c BetaConfig) Validate() error {
	if !(c.Low < c.High) {
		return domain.NewInvalidConfigurationError("beta",
			fmt.Sprintf("low band %g must be below high band %g", c.Low, c.High))
	}
	if c.MinObservations < 2 {
		return domain.NewInvalidConfigurationError("beta.min_observations",
			fmt.Sprintf("must be at least 2, got %d", c.MinObservations))
	}
	return nil
}

// PositionBeta is one position's beta and its weighted share of portfolio beta
type PositionBeta struct {
	InstrumentID string  `json:"instrument_id" msgpack:"instrument_id"`
	MarketValue  float64 `json:"market_value" msgpack:"market_value"`
	Weight       float64 `json:"weight" msgpack:"weight"`
	Beta         float64 `json:"beta" msgpack:"beta"`
	Contribution float64 `json:"contribution" msgpack:"contribution"`
}

// BetaExposure is the portfolio's sensitivity to a benchmark. PortfolioBeta
// is the value-weighted mean of position betas, so contributions sum to it.
type BetaExposure struct {
	Benchmark     string         `json:"benchmark" msgpack:"benchmark"`
	Observations  int            `json:"observations" msgpack:"observations"`
	PortfolioBeta float64        `json:"portfolio_beta" msgpack:"portfolio_beta"`
	Positions     []PositionBeta `json:"positions" msgpack:"positions"`
	// HighBeta and LowBeta list instruments above High and below Low
	HighBeta []string `json:"high_beta" msgpack:"high_beta"`
	LowBeta  []string `json:"low_beta" msgpack:"low_beta"`
}

// BetaExposure measures every position against the benchmark series.
// Positions are returned in distribution order.
func (e *Engine) BetaExposure(portfolio *domain.Portfolio, dist *riskmodel.Distribution, benchmark domain.ReturnSeries, cfg BetaConfig) (*BetaExposure, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exp, err := newExposure(portfolio, dist)
	if err != nil {
		return nil, err
	}
	betas, n, err := dist.Betas(benchmark, cfg.MinObservations)
	if err != nil {
		return nil, err
	}

	out := &BetaExposure{
		Benchmark:    benchmark.InstrumentID,
		Observations: n,
		Positions:    make([]PositionBeta, 0, len(exp.weights)),
		HighBeta:     []string{},
		LowBeta:      []string{},
	}
	for i, id := range dist.Instruments() {
		b := betas[id]
		pb := PositionBeta{
			InstrumentID: id,
			MarketValue:  exp.values[i],
			Weight:       exp.weights[i],
			Beta:         b,
			Contribution: exp.weights[i] * b,
		}
		out.Positions = append(out.Positions, pb)
		out.PortfolioBeta += pb.Contribution

		switch {
		case b > cfg.High:
			out.HighBeta = append(out.HighBeta, id)
		case b < cfg.Low:
			out.LowBeta = append(out.LowBeta, id)
		}
	}

	e.log.Debug().
		Str("portfolio", portfolio.ID).
		Str("benchmark", benchmark.InstrumentID).
		Float64("beta", out.PortfolioBeta).
		Msg("Computed beta exposure")
	return out, nil
}
