package riskmodel

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/riskcore/internal/domain"
	testingpkg "github.com/aristath/riskcore/internal/testing"
)

func twoAssetPortfolio(t *testing.T) *domain.Portfolio {
	return testingpkg.NewPortfolio(t, "pf",
		testingpkg.PositionSpec{ID: "AAA", Value: 600, Sector: "Tech"},
		testingpkg.PositionSpec{ID: "BBB", Value: 400, Sector: "Rates"},
	)
}

func correlatedSeries(t *testing.T, n int, seed uint64) map[string]domain.ReturnSeries {
	cols := testingpkg.CorrelatedReturns(t, n,
		[]float64{0.0005, 0.0002},
		[][]float64{{1e-4, 4.5e-5}, {4.5e-5, 2.25e-4}},
		seed)
	return map[string]domain.ReturnSeries{
		"AAA": testingpkg.NewSeries(t, "AAA", domain.SimpleReturns, cols[0]),
		"BBB": testingpkg.NewSeries(t, "BBB", domain.SimpleReturns, cols[1]),
	}
}

func TestBuild_SampleMoments(t *testing.T) {
	b := NewBuilder(zerolog.Nop())
	series := correlatedSeries(t, 250, 7)

	dist, err := b.Build(twoAssetPortfolio(t), series, DefaultModelConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, dist.Instruments())
	assert.Equal(t, 250, dist.Observations())
	assert.Equal(t, domain.SimpleReturns, dist.Kind())
	assert.Zero(t, dist.RegularizationShift())

	a, bb := series["AAA"].Returns(), series["BBB"].Returns()
	mean := dist.Mean()
	assert.InDelta(t, stat.Mean(a, nil), mean[0], 1e-15)
	assert.InDelta(t, stat.Mean(bb, nil), mean[1], 1e-15)

	cov := dist.Covariance()
	assert.InDelta(t, stat.Variance(a, nil), cov.At(0, 0), 1e-15)
	assert.InDelta(t, stat.Covariance(a, bb, nil), cov.At(0, 1), 1e-15)
	assert.Equal(t, cov.At(0, 1), cov.At(1, 0))

	vol, ok := dist.Volatility("BBB")
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(cov.At(1, 1)), vol, 1e-15)
}

func TestBuild_AccessorsReturnCopies(t *testing.T) {
	dist, err := NewBuilder(zerolog.Nop()).Build(twoAssetPortfolio(t), correlatedSeries(t, 60, 1), DefaultModelConfig())
	require.NoError(t, err)

	mean := dist.Mean()
	mean[0] = 42
	assert.NotEqual(t, 42.0, dist.Mean()[0])

	cov := dist.Covariance()
	cov.SetSym(0, 0, 42)
	assert.NotEqual(t, 42.0, dist.Covariance().At(0, 0))

	hist := dist.History()
	hist[0][0] = 42
	assert.NotEqual(t, 42.0, dist.History()[0][0])
}

func TestBuild_MissingSeries(t *testing.T) {
	series := correlatedSeries(t, 60, 1)
	delete(series, "BBB")

	_, err := NewBuilder(zerolog.Nop()).Build(twoAssetPortfolio(t), series, DefaultModelConfig())
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	var dimErr *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, []string{"BBB"}, dimErr.Missing)
}

func TestBuild_IgnoresExtraSeries(t *testing.T) {
	series := correlatedSeries(t, 60, 1)
	series["ZZZ"] = testingpkg.NewSeries(t, "ZZZ", domain.SimpleReturns, testingpkg.GaussianReturns(60, 0, 0.01, 3))

	dist, err := NewBuilder(zerolog.Nop()).Build(twoAssetPortfolio(t), series, DefaultModelConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, dist.Len())
	_, ok := dist.IndexOf("ZZZ")
	assert.False(t, ok)
}

func TestBuild_MixedReturnKinds(t *testing.T) {
	series := correlatedSeries(t, 60, 1)
	series["BBB"] = testingpkg.NewSeries(t, "BBB", domain.LogReturns, series["BBB"].Returns())

	_, err := NewBuilder(zerolog.Nop()).Build(twoAssetPortfolio(t), series, DefaultModelConfig())
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestBuild_InsufficientData(t *testing.T) {
	b := NewBuilder(zerolog.Nop())

	_, err := b.Build(twoAssetPortfolio(t), correlatedSeries(t, 10, 1), DefaultModelConfig())
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	// one instrument short inside an otherwise long window
	series := correlatedSeries(t, 100, 1)
	series["BBB"] = testingpkg.NewSeries(t, "BBB", domain.SimpleReturns, series["BBB"].Returns()[:20])
	_, err = b.Build(twoAssetPortfolio(t), series, DefaultModelConfig())
	require.ErrorIs(t, err, domain.ErrInsufficientData)

	var dataErr *domain.InsufficientDataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "BBB", dataErr.InstrumentID)
	assert.Equal(t, 20, dataErr.Available)
}

func TestBuild_ZeroFillsGaps(t *testing.T) {
	n := 60
	a := testingpkg.GaussianReturns(n, 0, 0.01, 1)
	dates := testingpkg.Dates(n)

	var obs []domain.Observation
	for i := 0; i < n; i++ {
		if i%3 != 0 {
			obs = append(obs, domain.Observation{Date: dates[i], Return: 0.02})
		}
	}
	bSeries, err := domain.NewReturnSeries("BBB", domain.SimpleReturns, obs)
	require.NoError(t, err)

	series := map[string]domain.ReturnSeries{
		"AAA": testingpkg.NewSeries(t, "AAA", domain.SimpleReturns, a),
		"BBB": bSeries,
	}
	dist, err := NewBuilder(zerolog.Nop()).Build(twoAssetPortfolio(t), series, DefaultModelConfig())
	require.NoError(t, err)

	col, ok := dist.Column("BBB")
	require.True(t, ok)
	require.Len(t, col, n)
	for i, v := range col {
		if i%3 == 0 {
			assert.Equal(t, 0.0, v, "date %d", i)
		} else {
			assert.Equal(t, 0.02, v, "date %d", i)
		}
	}
}

func TestBuild_TrimsToLookback(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.LookbackWindow = 100

	dist, err := NewBuilder(zerolog.Nop()).Build(twoAssetPortfolio(t), correlatedSeries(t, 300, 1), cfg)
	require.NoError(t, err)

	assert.Equal(t, 100, dist.Observations())
	assert.Equal(t, testingpkg.Dates(300)[200], dist.Dates()[0])
}

func TestBuild_RegularisesCollinearSeries(t *testing.T) {
	a := testingpkg.GaussianReturns(60, 0, 0.01, 5)
	b := make([]float64, len(a))
	for i, r := range a {
		b[i] = 2 * r
	}
	series := map[string]domain.ReturnSeries{
		"AAA": testingpkg.NewSeries(t, "AAA", domain.SimpleReturns, a),
		"BBB": testingpkg.NewSeries(t, "BBB", domain.SimpleReturns, b),
	}

	dist, err := NewBuilder(zerolog.Nop()).Build(twoAssetPortfolio(t), series, DefaultModelConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultShrinkageEpsilon, dist.RegularizationShift())

	minEig, err := minEigenvalue(dist.Covariance())
	require.NoError(t, err)
	assert.Greater(t, minEig, 0.0)
}

func TestBuild_LedoitWolf(t *testing.T) {
	pf := testingpkg.NewPortfolio(t, "pf",
		testingpkg.PositionSpec{ID: "AAA", Value: 1},
		testingpkg.PositionSpec{ID: "BBB", Value: 1},
		testingpkg.PositionSpec{ID: "CCC", Value: 1},
	)
	cols := testingpkg.CorrelatedReturns(t, 120, []float64{0, 0, 0},
		[][]float64{{1e-4, 5e-5, 1e-5}, {5e-5, 2e-4, 2e-5}, {1e-5, 2e-5, 3e-4}}, 9)
	series := map[string]domain.ReturnSeries{
		"AAA": testingpkg.NewSeries(t, "AAA", domain.SimpleReturns, cols[0]),
		"BBB": testingpkg.NewSeries(t, "BBB", domain.SimpleReturns, cols[1]),
		"CCC": testingpkg.NewSeries(t, "CCC", domain.SimpleReturns, cols[2]),
	}

	cfg := DefaultModelConfig()
	plain, err := NewBuilder(zerolog.Nop()).Build(pf, series, cfg)
	require.NoError(t, err)

	cfg.LedoitWolf = true
	shrunk, err := NewBuilder(zerolog.Nop()).Build(pf, series, cfg)
	require.NoError(t, err)

	delta := shrunk.ShrinkageIntensity()
	assert.GreaterOrEqual(t, delta, 0.0)
	assert.LessOrEqual(t, delta, 0.5)

	// the diagonal moves towards the average variance
	p, s := plain.Covariance(), shrunk.Covariance()
	avgVar := (p.At(0, 0) + p.At(1, 1) + p.At(2, 2)) / 3
	assert.InDelta(t, (1-delta)*p.At(0, 0)+delta*avgVar, s.At(0, 0), 1e-15)
}

func TestBuild_TimeDecayWeighting(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.HalfLifeDays = 20

	dist, err := NewBuilder(zerolog.Nop()).Build(twoAssetPortfolio(t), correlatedSeries(t, 120, 2), cfg)
	require.NoError(t, err)
	assert.Greater(t, dist.Covariance().At(0, 0), 0.0)
}

func TestTimeDecayWeights(t *testing.T) {
	w, err := timeDecayWeights(21, 10)
	require.NoError(t, err)

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.InDelta(t, 2.0, w[20]/w[10], 1e-12)

	_, err = timeDecayWeights(0, 10)
	assert.Error(t, err)
	_, err = timeDecayWeights(5, 0)
	assert.Error(t, err)
}

func TestModelConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelConfig)
	}{
		{"min observations below 2", func(c *ModelConfig) { c.MinObservations = 1 }},
		{"lookback below min", func(c *ModelConfig) { c.LookbackWindow = 10 }},
		{"zero epsilon", func(c *ModelConfig) { c.ShrinkageEpsilon = 0 }},
		{"negative tolerance", func(c *ModelConfig) { c.EigenTolerance = -1 }},
		{"negative half life", func(c *ModelConfig) { c.HalfLifeDays = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultModelConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfiguration)

			_, err := NewBuilder(zerolog.Nop()).Build(twoAssetPortfolio(t), correlatedSeries(t, 60, 1), cfg)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
	assert.NoError(t, DefaultModelConfig().Validate())
}
