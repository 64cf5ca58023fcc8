package stress

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskcore/internal/domain"
	testingpkg "github.com/aristath/riskcore/internal/testing"
)

func book(t *testing.T) *domain.Portfolio {
	return testingpkg.NewPortfolio(t, "book",
		testingpkg.PositionSpec{ID: "AAPL", Value: 5_000, Sector: "Tech", Region: "US", Currency: domain.CurrencyUSD, AssetClass: AssetClassEquity},
		testingpkg.PositionSpec{ID: "BUND", Value: 3_000, Sector: "Rates", Region: "EU", Currency: domain.CurrencyEUR, AssetClass: AssetClassFixedIncome},
		testingpkg.PositionSpec{ID: "UST", Value: 2_000, Sector: "Rates", Region: "US", Currency: domain.CurrencyUSD, AssetClass: AssetClassFixedIncome},
	)
}

func scenario(t *testing.T, name string, shocks map[string]float64, comb domain.ShockCombination) domain.StressScenario {
	s, err := domain.NewStressScenario(name, "", shocks, comb)
	require.NoError(t, err)
	return s
}

func TestApply_SectorShockHitsOnlyMatchingPositions(t *testing.T) {
	pf := book(t)
	s := scenario(t, "rates down", map[string]float64{"rates": -0.05}, domain.CombineAdditive)

	result, err := NewEngine(zerolog.Nop()).Apply(pf, s)
	require.NoError(t, err)

	assert.InDelta(t, -0.05*(3_000+2_000), result.PortfolioPnL, 1e-9)
	assert.InDelta(t, -150.0, result.PositionPnL["BUND"], 1e-9)
	assert.InDelta(t, -100.0, result.PositionPnL["UST"], 1e-9)
	assert.Equal(t, 0.0, result.PositionPnL["AAPL"])
	assert.Len(t, result.PositionPnL, 3)
	assert.Equal(t, 2, result.MatchedPositions)

	assert.InDelta(t, 10_000.0, result.InitialValue, 1e-9)
	assert.InDelta(t, 9_750.0, result.StressedValue, 1e-9)
	assert.InDelta(t, 0.025, result.LossPercentage, 1e-12)
}

func TestApply_PositionPnLSumsToPortfolioPnL(t *testing.T) {
	pf := book(t)
	s := scenario(t, "mixed", map[string]float64{
		"sector:Tech":    -0.2,
		"region:US":      -0.03,
		"currency:EUR":   0.01,
		"instrument:UST": -0.07,
	}, domain.CombineAdditive)

	result, err := NewEngine(zerolog.Nop()).Apply(pf, s)
	require.NoError(t, err)

	sum := 0.0
	for _, pnl := range result.PositionPnL {
		sum += pnl
	}
	assert.InDelta(t, result.PortfolioPnL, sum, 1e-9)
	// AAPL: tech + US, BUND: EUR, UST: US + instrument
	assert.InDelta(t, 5_000*(-0.23), result.PositionPnL["AAPL"], 1e-9)
	assert.InDelta(t, 3_000*0.01, result.PositionPnL["BUND"], 1e-9)
	assert.InDelta(t, 2_000*(-0.10), result.PositionPnL["UST"], 1e-9)
}

func TestApply_MultiplicativeCombination(t *testing.T) {
	pf := book(t)
	shocks := map[string]float64{"sector:Tech": -0.2, "region:US": -0.1}

	additive, err := NewEngine(zerolog.Nop()).Apply(pf, scenario(t, "add", shocks, domain.CombineAdditive))
	require.NoError(t, err)
	multiplicative, err := NewEngine(zerolog.Nop()).Apply(pf, scenario(t, "mul", shocks, domain.CombineMultiplicative))
	require.NoError(t, err)

	assert.InDelta(t, 5_000*(-0.3), additive.PositionPnL["AAPL"], 1e-9)
	assert.InDelta(t, 5_000*(0.8*0.9-1), multiplicative.PositionPnL["AAPL"], 1e-9)
	// single matching shock is the same under both policies
	assert.InDelta(t, additive.PositionPnL["UST"], multiplicative.PositionPnL["UST"], 1e-9)
}

func TestApply_MatchingIsCaseInsensitive(t *testing.T) {
	pf := book(t)
	s := scenario(t, "case", map[string]float64{"SECTOR:rAtEs": -0.1}, domain.CombineAdditive)

	result, err := NewEngine(zerolog.Nop()).Apply(pf, s)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MatchedPositions)
	assert.InDelta(t, -500.0, result.PortfolioPnL, 1e-9)
}

func TestApply_ScopeRestrictsMatching(t *testing.T) {
	pf := book(t)

	// "US" is a region, not a sector
	result, err := NewEngine(zerolog.Nop()).Apply(pf, scenario(t, "sector us", map[string]float64{"sector:US": -0.1}, domain.CombineAdditive))
	require.NoError(t, err)
	assert.Equal(t, 0, result.MatchedPositions)
	assert.Equal(t, 0.0, result.PortfolioPnL)

	result, err = NewEngine(zerolog.Nop()).Apply(pf, scenario(t, "bare us", map[string]float64{"US": -0.1}, domain.CombineAdditive))
	require.NoError(t, err)
	assert.Equal(t, 2, result.MatchedPositions)
	assert.InDelta(t, -700.0, result.PortfolioPnL, 1e-9)
}

func TestApply_WildcardHitsWholePortfolio(t *testing.T) {
	pf := book(t)
	result, err := NewEngine(zerolog.Nop()).Apply(pf, scenario(t, "parallel", map[string]float64{"*": -0.1}, domain.CombineAdditive))
	require.NoError(t, err)

	assert.Equal(t, 3, result.MatchedPositions)
	assert.InDelta(t, -1_000.0, result.PortfolioPnL, 1e-9)
	assert.InDelta(t, 0.1, result.LossPercentage, 1e-12)
}

func TestApply_UnmatchedKeys(t *testing.T) {
	pf := book(t)
	s := scenario(t, "nothing", map[string]float64{"sector:Energy": -0.3}, domain.CombineAdditive)

	result, err := NewEngine(zerolog.Nop()).Apply(pf, s)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.PortfolioPnL)
	assert.InDelta(t, result.InitialValue, result.StressedValue, 1e-9)

	_, err = NewEngine(zerolog.Nop(), WithStrictKeys()).Apply(pf, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))
}

func TestApply_StrictKeysRejectsPartialMatch(t *testing.T) {
	pf := book(t)
	s := scenario(t, "typo", map[string]float64{
		"sector:Rates":     -0.05,
		"sector:Finacials": -0.20,
	}, domain.CombineAdditive)

	result, err := NewEngine(zerolog.Nop()).Apply(pf, s)
	require.NoError(t, err)
	assert.InDelta(t, -250.0, result.PortfolioPnL, 1e-9)
	assert.Equal(t, 2, result.MatchedPositions)

	_, err = NewEngine(zerolog.Nop(), WithStrictKeys()).Apply(pf, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))
	assert.Contains(t, err.Error(), "Finacials")
	assert.NotContains(t, err.Error(), "Rates")
}

func TestApply_RejectsInvalidInput(t *testing.T) {
	pf := book(t)
	engine := NewEngine(zerolog.Nop())

	_, err := engine.Apply(nil, scenario(t, "x", map[string]float64{"*": -0.1}, domain.CombineAdditive))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = engine.Apply(pf, domain.StressScenario{Name: "empty"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = engine.Apply(pf, domain.StressScenario{
		Name:   "wipeout",
		Shocks: []domain.Shock{{Scope: domain.ScopeAny, Key: "Tech", Value: -1.5}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestApplyAll_AndWorstCase(t *testing.T) {
	pf := book(t)
	scenarios := []domain.StressScenario{
		scenario(t, "mild", map[string]float64{"*": -0.01}, domain.CombineAdditive),
		scenario(t, "severe", map[string]float64{"sector:Tech": -0.5}, domain.CombineAdditive),
		scenario(t, "rally", map[string]float64{"*": 0.05}, domain.CombineAdditive),
	}

	results, err := NewEngine(zerolog.Nop()).ApplyAll(pf, scenarios)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "mild", results[0].ScenarioName)
	assert.Equal(t, "rally", results[2].ScenarioName)

	worst, ok := WorstCase(results)
	require.True(t, ok)
	assert.Equal(t, "severe", worst.ScenarioName)
	assert.InDelta(t, -2_500.0, worst.PortfolioPnL, 1e-9)

	_, ok = WorstCase(nil)
	assert.False(t, ok)
}

func TestApplyAll_WrapsScenarioName(t *testing.T) {
	pf := book(t)
	scenarios := []domain.StressScenario{
		scenario(t, "fine", map[string]float64{"*": -0.01}, domain.CombineAdditive),
		{Name: "broken"},
	}

	_, err := NewEngine(zerolog.Nop()).ApplyAll(pf, scenarios)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario "broken"`)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestLibrary(t *testing.T) {
	names := ScenarioNames()
	assert.Contains(t, names, "2008 Financial Crisis")
	assert.Contains(t, names, "COVID-19 Market Crash")
	assert.Len(t, Library(), len(names))

	s, ok := LookupScenario("2008 financial crisis")
	require.True(t, ok)
	assert.Equal(t, "2008 Financial Crisis", s.Name)

	_, ok = LookupScenario("Alien Invasion")
	assert.False(t, ok)

	// callers cannot mutate the library
	s.Shocks[0].Value = 0.99
	again, _ := LookupScenario("2008 Financial Crisis")
	assert.NotEqual(t, 0.99, again.Shocks[0].Value)
}

func TestLibrary_CrisisHitsEquityHardest(t *testing.T) {
	pf := book(t)
	s, ok := LookupScenario("2008 Financial Crisis")
	require.True(t, ok)

	result, err := NewEngine(zerolog.Nop()).Apply(pf, s)
	require.NoError(t, err)
	assert.InDelta(t, 5_000*(-0.40), result.PositionPnL["AAPL"], 1e-9)
	assert.InDelta(t, 3_000*(-0.02), result.PositionPnL["BUND"], 1e-9)
}

func TestResolve_CustomOverridesByName(t *testing.T) {
	custom := []domain.StressScenario{
		scenario(t, "covid-19 market crash", map[string]float64{"*": -0.5}, domain.CombineAdditive),
		scenario(t, "House View", map[string]float64{"sector:Tech": -0.1}, domain.CombineAdditive),
	}

	all := Resolve(custom)
	assert.Len(t, all, len(Library())+1)

	var covid domain.StressScenario
	for _, s := range all {
		if s.Name == "covid-19 market crash" {
			covid = s
		}
	}
	require.Len(t, covid.Shocks, 1)
	assert.Equal(t, -0.5, covid.Shocks[0].Value)
	assert.Equal(t, "House View", all[len(all)-1].Name)
}
