package riskmodel

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/riskcore/internal/domain"
)

// Betas regresses every instrument's aligned history on a benchmark series:
// beta = cov(r_i, r_b) / var(r_b). Only dates present in both the aligned
// history and the benchmark are used; the number of such dates is returned
// with the betas.
func (d *Distribution) Betas(benchmark domain.ReturnSeries, minObservations int) (map[string]float64, int, error) {
	if benchmark.Kind != d.kind {
		return nil, 0, domain.NewInvalidConfigurationError("benchmark",
			fmt.Sprintf("%s holds %s returns, model uses %s", benchmark.InstrumentID, benchmark.Kind, d.kind))
	}

	byDate := make(map[time.Time]float64, benchmark.Len())
	for _, o := range benchmark.Observations {
		byDate[o.Date] = o.Return
	}

	var bench []float64
	var rows []int
	for t, date := range d.dates {
		if r, ok := byDate[date]; ok {
			bench = append(bench, r)
			rows = append(rows, t)
		}
	}
	if len(bench) < minObservations || len(bench) < 2 {
		return nil, len(bench), domain.NewInsufficientDataError(benchmark.InstrumentID, max(minObservations, 2), len(bench),
			"benchmark dates overlapping the model history")
	}

	variance := stat.Variance(bench, nil)
	if !(variance > 0) {
		return nil, len(bench), domain.NewNumericalInstabilityError(
			fmt.Sprintf("benchmark %s has zero variance", benchmark.InstrumentID), 0)
	}

	betas := make(map[string]float64, len(d.instruments))
	col := make([]float64, len(rows))
	for j, id := range d.instruments {
		for k, t := range rows {
			col[k] = d.history[t][j]
		}
		betas[id] = stat.Covariance(col, bench, nil) / variance
	}
	return betas, len(bench), nil
}
