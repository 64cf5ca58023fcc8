package formulas

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// HHI calculates the Herfindahl-Hirschman index of portfolio weights
// Formula: sum(w_i^2). Equal weights over N positions give 1/N.
func HHI(weights []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	return floats.Dot(weights, weights)
}

// EffectiveN is the number of equally weighted positions with the same HHI
func EffectiveN(hhi float64) float64 {
	if hhi <= 0 {
		return 0
	}
	return 1 / hhi
}

// TopShare returns the combined weight of the n largest weights
func TopShare(weights []float64, n int) float64 {
	if n <= 0 || len(weights) == 0 {
		return 0
	}
	sorted := append([]float64(nil), weights...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if n > len(sorted) {
		n = len(sorted)
	}
	return floats.Sum(sorted[:n])
}
