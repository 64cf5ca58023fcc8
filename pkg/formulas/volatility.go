package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RollingVolatility returns the population standard deviation of returns over
// a trailing window, one value per input element. The first window-1 values
// are zero because the window is not yet full.
func RollingVolatility(returns []float64, window int) []float64 {
	if window < 2 || len(returns) < window {
		return make([]float64, len(returns))
	}

	// Use go-talib for the rolling standard deviation
	out := talib.StdDev(returns, window, 1.0)
	for i, v := range out {
		if math.IsNaN(v) || v < 0 {
			out[i] = 0
		}
	}
	return out
}

// LatestVolatility returns the most recent rolling volatility, or 0 when there
// is not enough data for one full window.
func LatestVolatility(returns []float64, window int) float64 {
	vols := RollingVolatility(returns, window)
	if len(vols) == 0 {
		return 0
	}
	return vols[len(vols)-1]
}
