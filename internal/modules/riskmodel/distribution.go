package riskmodel

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/pkg/formulas"
)

// symmetryTolerance is the relative asymmetry accepted in externally supplied covariances
const symmetryTolerance = 1e-9

// Distribution is the estimated joint distribution of instrument returns.
// It is immutable; every accessor returns a copy.
type Distribution struct {
	instruments []string
	index       map[string]int
	mean        []float64
	cov         *mat.SymDense
	kind        domain.ReturnKind

	// aligned history, oldest first, one row per date in instrument order
	dates   []time.Time
	history [][]float64

	shift     float64
	shrinkage float64
}

// CorrelationPair is a pair of instruments whose correlation exceeds a threshold
type CorrelationPair struct {
	InstrumentA string  `json:"instrument_a" msgpack:"instrument_a"`
	InstrumentB string  `json:"instrument_b" msgpack:"instrument_b"`
	Correlation float64 `json:"correlation" msgpack:"correlation"`
}

// NewDistribution builds a distribution from externally supplied moments.
// The covariance must be square, symmetric and match the instrument count; it
// is regularised with the default tolerance and epsilon like an estimated one.
// Such a distribution carries no history, so historical VaR cannot use it.
func NewDistribution(instruments []string, mean []float64, cov [][]float64, kind domain.ReturnKind) (*Distribution, error) {
	n := len(instruments)
	if n == 0 {
		return nil, domain.NewInvalidConfigurationError("instruments", "must not be empty")
	}
	if kind != domain.SimpleReturns && kind != domain.LogReturns {
		return nil, domain.NewInvalidConfigurationError("return_kind", fmt.Sprintf("unknown return kind %q", kind))
	}
	if len(mean) != n {
		return nil, domain.NewDimensionMismatchError(n, len(mean), nil, "mean vector length")
	}
	if len(cov) != n {
		return nil, domain.NewDimensionMismatchError(n, len(cov), nil, "covariance row count")
	}

	index := make(map[string]int, n)
	for i, id := range instruments {
		if _, dup := index[id]; dup {
			return nil, domain.NewInvalidConfigurationError("instruments", fmt.Sprintf("duplicate instrument %q", id))
		}
		index[id] = i
	}

	for i, row := range cov {
		if len(row) != n {
			return nil, domain.NewDimensionMismatchError(n, len(row), nil, fmt.Sprintf("covariance row %d length", i))
		}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if !finite(mean[i]) {
			return nil, domain.NewInvalidConfigurationError("mean", fmt.Sprintf("non-finite mean for %s", instruments[i]))
		}
		for j := 0; j < n; j++ {
			if !finite(cov[i][j]) {
				return nil, domain.NewInvalidConfigurationError("covariance", fmt.Sprintf("non-finite entry at (%d,%d)", i, j))
			}
		}
		for j := i; j < n; j++ {
			scale := math.Max(math.Abs(cov[i][j]), math.Abs(cov[j][i]))
			if math.Abs(cov[i][j]-cov[j][i]) > symmetryTolerance*math.Max(scale, 1e-12) {
				return nil, domain.NewInvalidConfigurationError("covariance",
					fmt.Sprintf("matrix is not symmetric at (%d,%d)", i, j))
			}
			sym.SetSym(i, j, cov[i][j])
		}
	}

	shift, err := regularize(sym, DefaultEigenTolerance, DefaultShrinkageEpsilon)
	if err != nil {
		return nil, err
	}

	ids := make([]string, n)
	copy(ids, instruments)
	mu := make([]float64, n)
	copy(mu, mean)

	return &Distribution{
		instruments: ids,
		index:       index,
		mean:        mu,
		cov:         sym,
		kind:        kind,
		shift:       shift,
	}, nil
}

// Instruments returns the instrument ids in matrix order
func (d *Distribution) Instruments() []string {
	out := make([]string, len(d.instruments))
	copy(out, d.instruments)
	return out
}

// Len returns the number of instruments
func (d *Distribution) Len() int {
	return len(d.instruments)
}

// IndexOf returns the matrix position of an instrument
func (d *Distribution) IndexOf(instrumentID string) (int, bool) {
	i, ok := d.index[instrumentID]
	return i, ok
}

// Kind returns the return kind the moments are expressed in
func (d *Distribution) Kind() domain.ReturnKind {
	return d.kind
}

// Mean returns the per-period mean return vector
func (d *Distribution) Mean() []float64 {
	out := make([]float64, len(d.mean))
	copy(out, d.mean)
	return out
}

// Covariance returns a copy of the (regularised) covariance matrix
func (d *Distribution) Covariance() *mat.SymDense {
	out := mat.NewSymDense(d.cov.SymmetricDim(), nil)
	out.CopySym(d.cov)
	return out
}

// CovarianceRows returns the covariance matrix as nested slices
func (d *Distribution) CovarianceRows() [][]float64 {
	n := d.cov.SymmetricDim()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rows[i][j] = d.cov.At(i, j)
		}
	}
	return rows
}

// Volatility returns the per-period standard deviation of one instrument
func (d *Distribution) Volatility(instrumentID string) (float64, bool) {
	i, ok := d.index[instrumentID]
	if !ok {
		return 0, false
	}
	return math.Sqrt(d.cov.At(i, i)), true
}

// Observations returns the number of aligned dates behind the estimate
func (d *Distribution) Observations() int {
	return len(d.history)
}

// Dates returns the aligned observation dates, oldest first
func (d *Distribution) Dates() []time.Time {
	out := make([]time.Time, len(d.dates))
	copy(out, d.dates)
	return out
}

// History returns the aligned return matrix, one row per date in instrument order
func (d *Distribution) History() [][]float64 {
	out := make([][]float64, len(d.history))
	for i, row := range d.history {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Column returns the aligned return history of one instrument
func (d *Distribution) Column(instrumentID string) ([]float64, bool) {
	j, ok := d.index[instrumentID]
	if !ok {
		return nil, false
	}
	col := make([]float64, len(d.history))
	for i, row := range d.history {
		col[i] = row[j]
	}
	return col, true
}

// RegularizationShift is the amount added to the diagonal, 0 when none was needed
func (d *Distribution) RegularizationShift() float64 {
	return d.shift
}

// ShrinkageIntensity is the Ledoit-Wolf intensity applied, 0 when disabled
func (d *Distribution) ShrinkageIntensity() float64 {
	return d.shrinkage
}

// CorrelationMatrix converts the covariance matrix to correlations.
// Instruments with zero variance get zero correlation off the diagonal.
func (d *Distribution) CorrelationMatrix() *mat.SymDense {
	n := d.cov.SymmetricDim()
	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			vi, vj := d.cov.At(i, i), d.cov.At(j, j)
			if vi > 0 && vj > 0 {
				corr.SetSym(i, j, d.cov.At(i, j)/math.Sqrt(vi*vj))
			}
		}
	}
	return corr
}

// Correlations extracts the instrument pairs whose absolute correlation is at
// least threshold.
func (d *Distribution) Correlations(threshold float64) []CorrelationPair {
	corr := d.CorrelationMatrix()
	n := corr.SymmetricDim()

	pairs := make([]CorrelationPair, 0)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := corr.At(i, j)
			if math.Abs(c) >= threshold {
				pairs = append(pairs, CorrelationPair{
					InstrumentA: d.instruments[i],
					InstrumentB: d.instruments[j],
					Correlation: c,
				})
			}
		}
	}
	return pairs
}

// RollingVolatility returns the trailing-window volatility of one instrument's
// aligned history.
func (d *Distribution) RollingVolatility(instrumentID string, window int) ([]float64, bool) {
	col, ok := d.Column(instrumentID)
	if !ok {
		return nil, false
	}
	return formulas.RollingVolatility(col, window), true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
