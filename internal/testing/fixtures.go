package testing

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/riskcore/internal/domain"
)

// SeriesStart is the first date of generated series
var SeriesStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// Dates returns n consecutive daily dates starting at SeriesStart
func Dates(n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = SeriesStart.AddDate(0, 0, i)
	}
	return dates
}

// NewSeries wraps raw returns into a series dated from SeriesStart
func NewSeries(t *testing.T, instrumentID string, kind domain.ReturnKind, returns []float64) domain.ReturnSeries {
	t.Helper()
	dates := Dates(len(returns))
	obs := make([]domain.Observation, len(returns))
	for i, r := range returns {
		obs[i] = domain.Observation{Date: dates[i], Return: r}
	}
	s, err := domain.NewReturnSeries(instrumentID, kind, obs)
	if err != nil {
		t.Fatalf("Failed to build series %s: %v", instrumentID, err)
	}
	return s
}

// AlternatingReturns returns +a, -a, +a, ... of length n
func AlternatingReturns(n int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amplitude
		} else {
			out[i] = -amplitude
		}
	}
	return out
}

// GaussianReturns draws n normal returns with the given mean and volatility
func GaussianReturns(n int, mean, vol float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 0))
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + vol*rng.NormFloat64()
	}
	return out
}

// CorrelatedReturns draws n joint normal return vectors with the given means and
// covariance. Returns one slice per instrument.
func CorrelatedReturns(t *testing.T, n int, means []float64, cov [][]float64, seed uint64) [][]float64 {
	t.Helper()
	k := len(means)
	flat := make([]float64, 0, k*k)
	for _, row := range cov {
		flat = append(flat, row...)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(k, flat)); !ok {
		t.Fatalf("covariance is not positive definite")
	}
	var l mat.TriDense
	chol.LTo(&l)

	rng := rand.New(rand.NewPCG(seed, 0))
	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, n)
	}
	z := make([]float64, k)
	for s := 0; s < n; s++ {
		for i := range z {
			z[i] = rng.NormFloat64()
		}
		for i := 0; i < k; i++ {
			v := means[i]
			for j := 0; j <= i; j++ {
				v += l.At(i, j) * z[j]
			}
			out[i][s] = v
		}
	}
	return out
}

// PositionSpec describes a fixture position
type PositionSpec struct {
	ID         string
	Value      float64
	Sector     string
	Region     string
	Currency   domain.Currency
	AssetClass string
}

// NewPortfolio builds a portfolio of unit-priced positions whose market value equals Value
func NewPortfolio(t *testing.T, id string, specs ...PositionSpec) *domain.Portfolio {
	t.Helper()
	positions := make([]domain.Position, 0, len(specs))
	for _, s := range specs {
		p, err := domain.NewPosition(s.ID, s.Value, 1, domain.PositionTags{
			Sector:     s.Sector,
			Region:     s.Region,
			Currency:   s.Currency,
			AssetClass: s.AssetClass,
		})
		if err != nil {
			t.Fatalf("Failed to build position %s: %v", s.ID, err)
		}
		positions = append(positions, p)
	}
	pf, err := domain.NewPortfolio(id, id, SeriesStart, positions)
	if err != nil {
		t.Fatalf("Failed to build portfolio %s: %v", id, err)
	}
	return pf
}

// PricesFromReturns compounds simple returns into a price path starting at start
func PricesFromReturns(start float64, returns []float64) []float64 {
	prices := make([]float64, len(returns)+1)
	prices[0] = start
	for i, r := range returns {
		prices[i+1] = prices[i] * (1 + r)
	}
	return prices
}

// Round rounds v to the given number of decimals
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
