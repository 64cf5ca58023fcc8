package stress

import (
	"fmt"
	"strings"

	"github.com/aristath/riskcore/internal/domain"
)

// Asset class tags used by the predefined scenarios
const (
	AssetClassEquity      = "equity"
	AssetClassFixedIncome = "fixed_income"
	AssetClassCredit      = "credit"
	AssetClassCommodity   = "commodity"
	AssetClassRealEstate  = "real_estate"
)

type scenarioDef struct {
	name        string
	description string
	shocks      map[string]float64
}

// Rate and spread moves are expressed as price changes of the affected asset
// classes; all scenarios combine additively.
var predefined = []scenarioDef{
	{
		name:        "2008 Financial Crisis",
		description: "Equity crash with credit spreads blowing out and a flight from risk assets",
		shocks: map[string]float64{
			"asset_class:" + AssetClassEquity:      -0.40,
			"asset_class:" + AssetClassCredit:      -0.15,
			"asset_class:" + AssetClassFixedIncome: -0.02,
			"asset_class:" + AssetClassCommodity:   -0.30,
			"asset_class:" + AssetClassRealEstate:  -0.45,
		},
	},
	{
		name:        "COVID-19 Market Crash",
		description: "Sharp equity sell-off with falling rates and wider credit spreads",
		shocks: map[string]float64{
			"asset_class:" + AssetClassEquity:      -0.30,
			"asset_class:" + AssetClassCredit:      -0.03,
			"asset_class:" + AssetClassFixedIncome: 0.01,
			"asset_class:" + AssetClassCommodity:   -0.25,
			"asset_class:" + AssetClassRealEstate:  -0.25,
		},
	},
	{
		name:        "Interest Rate Spike",
		description: "Rates jump and hit duration-sensitive assets and equity valuations",
		shocks: map[string]float64{
			"asset_class:" + AssetClassEquity:      -0.15,
			"asset_class:" + AssetClassCredit:      -0.02,
			"asset_class:" + AssetClassFixedIncome: -0.05,
			"asset_class:" + AssetClassRealEstate:  -0.10,
		},
	},
	{
		name:        "Rate Shock +200bp",
		description: "Parallel 200bp rise in yields applied with a five year duration",
		shocks: map[string]float64{
			"asset_class:" + AssetClassFixedIncome: -0.10,
			"asset_class:" + AssetClassCredit:      -0.10,
			"sector:Utilities":                     -0.05,
			"sector:Real Estate":                   -0.08,
		},
	},
	{
		name:        "Credit Spread Widening",
		description: "Spreads widen sharply while government bonds rally",
		shocks: map[string]float64{
			"asset_class:" + AssetClassCredit:      -0.08,
			"asset_class:" + AssetClassFixedIncome: 0.02,
			"sector:Financials":                    -0.12,
		},
	},
}

var library = mustBuildLibrary()

func mustBuildLibrary() []domain.StressScenario {
	out := make([]domain.StressScenario, 0, len(predefined))
	for _, def := range predefined {
		s, err := domain.NewStressScenario(def.name, def.description, def.shocks, domain.CombineAdditive)
		if err != nil {
			panic(fmt.Sprintf("invalid predefined scenario %q: %v", def.name, err))
		}
		out = append(out, s)
	}
	return out
}

// Library returns the predefined scenarios
func Library() []domain.StressScenario {
	out := make([]domain.StressScenario, len(library))
	for i, s := range library {
		out[i] = copyScenario(s)
	}
	return out
}

// LookupScenario finds a predefined scenario by name, case-insensitively
func LookupScenario(name string) (domain.StressScenario, bool) {
	for _, s := range library {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return copyScenario(s), true
		}
	}
	return domain.StressScenario{}, false
}

// ScenarioNames returns the names of the predefined scenarios
func ScenarioNames() []string {
	names := make([]string, len(library))
	for i, s := range library {
		names[i] = s.Name
	}
	return names
}

// Resolve merges the library with custom scenarios. A custom scenario with the
// name of a predefined one replaces it.
func Resolve(custom []domain.StressScenario) []domain.StressScenario {
	all := Library()
	for _, c := range custom {
		replaced := false
		for i := range all {
			if strings.EqualFold(all[i].Name, c.Name) {
				all[i] = copyScenario(c)
				replaced = true
				break
			}
		}
		if !replaced {
			all = append(all, copyScenario(c))
		}
	}
	return all
}

func copyScenario(s domain.StressScenario) domain.StressScenario {
	s.Shocks = append([]domain.Shock(nil), s.Shocks...)
	return s
}
