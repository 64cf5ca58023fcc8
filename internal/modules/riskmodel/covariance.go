package riskmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/riskcore/internal/domain"
)

// sampleMoments returns the column means and the sample covariance (N-1 denominator)
// of a dates x instruments return matrix.
func sampleMoments(x *mat.Dense) ([]float64, *mat.SymDense) {
	_, n := x.Dims()
	mean := make([]float64, n)
	for j := 0; j < n; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)
	return mean, &cov
}

// timeDecayWeights returns normalized observation weights (oldest -> newest)
// decaying exponentially with the given half-life.
func timeDecayWeights(n int, halfLifeDays float64) ([]float64, error) {
	if n == 0 {
		return nil, fmt.Errorf("no observations")
	}
	if halfLifeDays <= 0 {
		return nil, fmt.Errorf("invalid halfLifeDays: %v", halfLifeDays)
	}

	lambda := math.Ln2 / halfLifeDays
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		age := float64((n - 1) - i) // 0 for newest
		weights[i] = math.Exp(-lambda * age)
	}

	sum := floats.Sum(weights)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("invalid weight sum: %v", sum)
	}
	floats.Scale(1/sum, weights)
	return weights, nil
}

// weightedMoments computes the weighted mean and covariance of a dates x
// instruments matrix. Uses the effective-sample correction: denom = 1 - sum(w^2).
func weightedMoments(x *mat.Dense, weights []float64) ([]float64, *mat.SymDense, error) {
	t, n := x.Dims()
	if len(weights) != t {
		return nil, nil, fmt.Errorf("weights length %d does not match %d observations", len(weights), t)
	}

	mu := make([]float64, n)
	for j := 0; j < n; j++ {
		mu[j] = floats.Dot(weights, mat.Col(nil, j, x))
	}

	denom := 1.0 - floats.Dot(weights, weights)
	if denom <= 0 {
		return nil, nil, fmt.Errorf("invalid effective-sample denominator: %v", denom)
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s := 0.0
			for k := 0; k < t; k++ {
				s += weights[k] * (x.At(k, i) - mu[i]) * (x.At(k, j) - mu[j])
			}
			cov.SetSym(i, j, s/denom)
		}
	}

	return mu, cov, nil
}

// applyLedoitWolfShrinkage shrinks a sample covariance matrix in place towards
// a constant correlation target and returns the shrinkage intensity used.
//
// Reference: Ledoit, O., & Wolf, M. (2004). "A well-conditioned estimator for large-dimensional covariance matrices"
func applyLedoitWolfShrinkage(cov *mat.SymDense) float64 {
	n := cov.SymmetricDim()
	if n < 2 {
		return 0
	}

	// Target = average variance on the diagonal, average covariance off it
	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += cov.At(i, i)
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += cov.At(i, j)
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))

	target := func(i, j int) float64 {
		if i == j {
			return avgVar
		}
		if avgVar > 0 {
			return avgCov
		}
		return 0
	}

	shrinkage := 0.2 // Default shrinkage (20% towards target)

	if n > 2 && avgVar > 0 {
		// Simplified estimator: spread of the sample elements against their distance to the target
		var sumSqDiff, sumSample, sumSqSample float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				val := cov.At(i, j)
				diff := val - target(i, j)
				sumSqDiff += diff * diff
				sumSample += val
				sumSqSample += val * val
			}
		}
		count := float64(n * n)
		meanSqDiff := sumSqDiff / count
		meanSample := sumSample / count
		varSample := sumSqSample/count - meanSample*meanSample

		if varSample > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0.0, varSample/(varSample+meanSqDiff)))
		}
	}

	// Σ_shrunk = (1-δ) * Σ_sample + δ * Σ_target
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, (1-shrinkage)*cov.At(i, j)+shrinkage*target(i, j))
		}
	}

	return shrinkage
}

// minEigenvalue returns the smallest eigenvalue of a symmetric matrix
func minEigenvalue(sym *mat.SymDense) (float64, error) {
	n := sym.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if !finite(sym.At(i, j)) {
				return math.NaN(), domain.NewNumericalInstabilityError(
					fmt.Sprintf("covariance entry (%d,%d) is not finite", i, j), math.NaN())
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return math.NaN(), domain.NewNumericalInstabilityError("eigendecomposition did not converge", math.NaN())
	}
	return floats.Min(eig.Values(nil)), nil
}

// regularize adds epsilon to the diagonal when the smallest eigenvalue is
// below tolerance, and returns the shift applied. A matrix that is still not
// positive definite afterwards is rejected.
func regularize(sym *mat.SymDense, tolerance, epsilon float64) (float64, error) {
	minEig, err := minEigenvalue(sym)
	if err != nil {
		return 0, err
	}
	if minEig >= tolerance {
		return 0, nil
	}

	n := sym.SymmetricDim()
	for i := 0; i < n; i++ {
		sym.SetSym(i, i, sym.At(i, i)+epsilon)
	}

	shifted, err := minEigenvalue(sym)
	if err != nil {
		return 0, err
	}
	if shifted <= 0 {
		return 0, domain.NewNumericalInstabilityError(
			fmt.Sprintf("covariance matrix is not positive definite after adding %g to the diagonal", epsilon), minEig)
	}
	return epsilon, nil
}
