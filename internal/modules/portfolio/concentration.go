package portfolio

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/pkg/formulas"
)

// ConcentrationLevel classifies a Herfindahl-Hirschman index
type ConcentrationLevel string

const (
	WellDiversified       ConcentrationLevel = "Well Diversified"
	ModeratelyDiversified ConcentrationLevel = "Moderately Diversified"
	Concentrated          ConcentrationLevel = "Concentrated"
	HighlyConcentrated    ConcentrationLevel = "Highly Concentrated"
)

// Position size bucket bounds
const (
	LargePositionValue  = 1_000_000.0
	MediumPositionValue = 100_000.0
)

// Exposure is the share of the portfolio held in one group
type Exposure struct {
	Name          string  `json:"name" msgpack:"name"`
	MarketValue   float64 `json:"market_value" msgpack:"market_value"`
	Weight        float64 `json:"weight" msgpack:"weight"`
	PositionCount int     `json:"position_count" msgpack:"position_count"`
}

// SizeBuckets counts positions by market value
type SizeBuckets struct {
	Large  int `json:"large" msgpack:"large"`
	Medium int `json:"medium" msgpack:"medium"`
	Small  int `json:"small" msgpack:"small"`
}

// ConcentrationAnalysis describes how concentrated a portfolio is
type ConcentrationAnalysis struct {
	TotalValue           float64            `json:"total_value" msgpack:"total_value"`
	PositionCount        int                `json:"position_count" msgpack:"position_count"`
	HerfindahlIndex      float64            `json:"herfindahl_index" msgpack:"herfindahl_index"`
	Level                ConcentrationLevel `json:"concentration_level" msgpack:"concentration_level"`
	EffectivePositions   float64            `json:"effective_number_of_positions" msgpack:"effective_number_of_positions"`
	DiversificationScore float64            `json:"diversification_score" msgpack:"diversification_score"`
	Top5Weight           float64            `json:"top_5_weight" msgpack:"top_5_weight"`
	Top10Weight          float64            `json:"top_10_weight" msgpack:"top_10_weight"`
	LargestPosition      string             `json:"largest_position" msgpack:"largest_position"`
	Sectors              []Exposure         `json:"sectors" msgpack:"sectors"`
	Regions              []Exposure         `json:"regions" msgpack:"regions"`
	Currencies           []Exposure         `json:"currencies" msgpack:"currencies"`
	Sizes                SizeBuckets        `json:"sizes" msgpack:"sizes"`
}

// Analyze computes the concentration analysis of a portfolio
func Analyze(pf *domain.Portfolio) ConcentrationAnalysis {
	if pf == nil || pf.Len() == 0 {
		return ConcentrationAnalysis{}
	}

	weights := pf.Weights()
	hhi := formulas.HHI(weights)

	a := ConcentrationAnalysis{
		TotalValue:           pf.TotalValue(),
		PositionCount:        pf.Len(),
		HerfindahlIndex:      hhi,
		Level:                ClassifyConcentration(hhi),
		EffectivePositions:   formulas.EffectiveN(hhi),
		DiversificationScore: round(math.Max(0, 100*(1-hhi)), 2),
		Top5Weight:           formulas.TopShare(weights, 5),
		Top10Weight:          formulas.TopShare(weights, 10),
	}

	largest := -1.0
	positions := pf.Positions()
	for _, pos := range positions {
		if pos.MarketValue > largest {
			largest = pos.MarketValue
			a.LargestPosition = pos.InstrumentID
		}
		switch {
		case pos.MarketValue > LargePositionValue:
			a.Sizes.Large++
		case pos.MarketValue > MediumPositionValue:
			a.Sizes.Medium++
		default:
			a.Sizes.Small++
		}
	}

	a.Sectors = exposures(positions, a.TotalValue, func(p domain.Position) string { return p.Sector })
	a.Regions = exposures(positions, a.TotalValue, func(p domain.Position) string { return p.Region })
	a.Currencies = exposures(positions, a.TotalValue, func(p domain.Position) string { return string(p.Currency) })

	return a
}

// ClassifyConcentration maps an HHI to its level
func ClassifyConcentration(hhi float64) ConcentrationLevel {
	switch {
	case hhi < 0.15:
		return WellDiversified
	case hhi < 0.25:
		return ModeratelyDiversified
	case hhi < 0.50:
		return Concentrated
	}
	return HighlyConcentrated
}

// exposures groups positions by key, largest weight first then by name
func exposures(positions []domain.Position, total float64, key func(domain.Position) string) []Exposure {
	values := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for _, pos := range positions {
		name := strings.TrimSpace(key(pos))
		if name == "" {
			name = "Unknown"
		}
		values[name] = values[name].Add(decimal.NewFromFloat(pos.MarketValue))
		counts[name]++
	}

	out := make([]Exposure, 0, len(values))
	for name, v := range values {
		e := Exposure{Name: name, MarketValue: v.InexactFloat64(), PositionCount: counts[name]}
		if total > 0 {
			e.Weight = e.MarketValue / total
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketValue != out[j].MarketValue {
			return out[i].MarketValue > out[j].MarketValue
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func round(val float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(val*multiplier) / multiplier
}
