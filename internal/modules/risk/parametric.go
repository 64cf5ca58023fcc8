package risk

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// parametricVaR is the variance-covariance estimate under normal returns:
//
//	VaR = -(mu_p*h + z*sigma_p*sqrt(h)) * V
//	ES  = (sigma_p*sqrt(h)*phi(z)/(1-c) - mu_p*h) * V
//
// where z is the (1-c) quantile of the standard normal.
func parametricVaR(exp exposure, mom moments, cfg Config) (varAmount, shortfall float64) {
	tail := 1 - cfg.ConfidenceLevel
	h := float64(cfg.HorizonDays)
	z := distuv.UnitNormal.Quantile(tail)

	scaledSigma := mom.sigma * math.Sqrt(h)
	varAmount = -(mom.mean*h + z*scaledSigma) * exp.total
	shortfall = (scaledSigma*distuv.UnitNormal.Prob(z)/tail - mom.mean*h) * exp.total
	return varAmount, shortfall
}

func sqrtDays(days int) float64 {
	return math.Sqrt(float64(days))
}
