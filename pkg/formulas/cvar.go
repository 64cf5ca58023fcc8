package formulas

import (
	"math"
	"sort"
)

// TailCount is the number of worst outcomes that make up the (1 - confidence)
// tail of n observations: ceil(n * (1 - confidence)), at least 1.
// A small epsilon absorbs floating point noise such as 100*(1-0.99) = 1.0000000000000009.
func TailCount(n int, confidence float64) int {
	k := int(math.Ceil(float64(n)*(1-confidence) - 1e-9))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// MinScenarios is the smallest sample able to resolve the confidence level:
// ceil(1 / (1 - confidence)).
func MinScenarios(confidence float64) int {
	return int(math.Ceil(1/(1-confidence) - 1e-9))
}

// TailLosses sorts losses in descending order (worst first) and returns the
// k-th largest loss and the mean of the k largest losses.
func TailLosses(losses []float64, confidence float64) (quantile, tailMean float64) {
	if len(losses) == 0 {
		return 0, 0
	}

	sorted := make([]float64, len(losses))
	copy(sorted, losses)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	k := TailCount(len(sorted), confidence)
	sum := 0.0
	for _, l := range sorted[:k] {
		sum += l
	}
	return sorted[k-1], sum / float64(k)
}

// CalculateCVaR calculates Conditional Value at Risk (CVaR) at the specified confidence level.
// CVaR is the average of the worst (1 - confidence) share of returns, negative for losses.
func CalculateCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	losses := make([]float64, len(returns))
	for i, r := range returns {
		losses[i] = -r
	}
	_, tail := TailLosses(losses, confidence)
	return -tail
}
