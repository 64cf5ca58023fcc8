package risk

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/riskmodel"
)

// Contribution is one position's share of parametric portfolio VaR.
// MarginalVaR is dVaR/dw_i as a fraction of portfolio value; components sum
// to the zero-mean parametric VaR.
type Contribution struct {
	InstrumentID string  `json:"instrument_id" msgpack:"instrument_id"`
	Weight       float64 `json:"weight" msgpack:"weight"`
	MarginalVaR  float64 `json:"marginal_var" msgpack:"marginal_var"`
	ComponentVaR float64 `json:"component_var" msgpack:"component_var"`
	Share        float64 `json:"share" msgpack:"share"`
}

// ComponentVaR allocates the zero-mean parametric VaR to positions with the
// Euler decomposition: component_i = w_i * (Sigma w)_i / sigma_p * |z| * sqrt(h) * V.
// Contributions are returned in distribution order.
func (e *Engine) ComponentVaR(portfolio *domain.Portfolio, dist *riskmodel.Distribution, cfg Config) ([]Contribution, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exp, err := newExposure(portfolio, dist)
	if err != nil {
		return nil, err
	}
	mom := portfolioMoments(exp, dist)

	n := len(exp.weights)
	ids := dist.Instruments()
	out := make([]Contribution, n)
	for i := range out {
		out[i] = Contribution{InstrumentID: ids[i], Weight: exp.weights[i]}
	}
	if mom.sigma == 0 {
		return out, nil
	}

	w := mat.NewVecDense(n, exp.weights)
	var sigmaW mat.VecDense
	sigmaW.MulVec(dist.Covariance(), w)

	scale := -distuv.UnitNormal.Quantile(1-cfg.ConfidenceLevel) * sqrtDays(cfg.HorizonDays)
	total := 0.0
	for i := range out {
		out[i].MarginalVaR = sigmaW.AtVec(i) / mom.sigma * scale
		out[i].ComponentVaR = exp.weights[i] * out[i].MarginalVaR * exp.total
		total += out[i].ComponentVaR
	}
	if total != 0 {
		for i := range out {
			out[i].Share = out[i].ComponentVaR / total
		}
	}
	return out, nil
}
