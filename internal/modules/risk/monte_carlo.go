package risk

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/internal/modules/riskmodel"
	"github.com/aristath/riskcore/pkg/formulas"
)

// monteCarloVaR simulates h-day returns x = mu*h + sqrt(h)*L*z with L the
// Cholesky factor of the covariance. Samples are split into contiguous chunks,
// one per worker, and worker w draws from PCG(seed, w), so the result depends
// only on (seed, workers).
func monteCarloVaR(exp exposure, dist *riskmodel.Distribution, cfg Config) (varAmount, shortfall float64, err error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(dist.Covariance()); !ok {
		return 0, 0, domain.NewNumericalInstabilityError("Cholesky factorisation of the covariance matrix failed", math.NaN())
	}
	var l mat.TriDense
	chol.LTo(&l)

	n := len(exp.values)
	lower := make([][]float64, n)
	for i := 0; i < n; i++ {
		lower[i] = make([]float64, i+1)
		for j := 0; j <= i; j++ {
			lower[i][j] = l.At(i, j)
		}
	}

	sim := simulation{
		values: exp.values,
		drift:  dist.Mean(),
		lower:  lower,
		h:      float64(cfg.HorizonDays),
		log:    dist.Kind() == domain.LogReturns,
	}
	for i := range sim.drift {
		sim.drift[i] *= sim.h
	}

	samples := cfg.MonteCarlo.Samples
	workers := min(cfg.MonteCarlo.Workers, samples)
	chunk := (samples + workers - 1) / workers
	seed := *cfg.MonteCarlo.Seed

	losses := make([]float64, samples)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, samples)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			sim.run(rand.New(rand.NewPCG(seed, uint64(worker))), losses[start:end])
		}(w, start, end)
	}
	wg.Wait()

	varAmount, shortfall = formulas.TailLosses(losses, cfg.ConfidenceLevel)
	return varAmount, shortfall, nil
}

type simulation struct {
	values []float64
	drift  []float64 // mu * h
	lower  [][]float64
	h      float64
	log    bool
}

// run fills out with simulated portfolio losses
func (s simulation) run(rng *rand.Rand, out []float64) {
	n := len(s.values)
	z := make([]float64, n)
	scale := math.Sqrt(s.h)

	for k := range out {
		for i := range z {
			z[i] = rng.NormFloat64()
		}
		pnl := 0.0
		for i := 0; i < n; i++ {
			shock := 0.0
			for j, lij := range s.lower[i] {
				shock += lij * z[j]
			}
			x := s.drift[i] + scale*shock
			if s.log {
				x = math.Expm1(x)
			}
			pnl += s.values[i] * x
		}
		out[k] = -pnl
	}
}
