// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// marketValuePlaces is the precision market values are rounded to
const marketValuePlaces = 8

// Currency represents a currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
)

// Position is a holding of one instrument inside a portfolio snapshot.
// Values are copied in and out of a Portfolio, never shared.
type Position struct {
	InstrumentID string   `json:"instrument_id" msgpack:"instrument_id"`
	Quantity     float64  `json:"quantity" msgpack:"quantity"`
	Price        float64  `json:"price" msgpack:"price"`
	MarketValue  float64  `json:"market_value" msgpack:"market_value"`
	Sector       string   `json:"sector,omitempty" msgpack:"sector"`
	Region       string   `json:"region,omitempty" msgpack:"region"`
	Currency     Currency `json:"currency,omitempty" msgpack:"currency"`
	AssetClass   string   `json:"asset_class,omitempty" msgpack:"asset_class"`
}

// PositionTags are the classification tags attached to a position
type PositionTags struct {
	Sector     string
	Region     string
	Currency   Currency
	AssetClass string
}

// NewPosition creates a position and computes its market value as quantity x price
func NewPosition(instrumentID string, quantity, price float64, tags PositionTags) (Position, error) {
	if strings.TrimSpace(instrumentID) == "" {
		return Position{}, NewInvalidConfigurationError("instrument_id", "must not be empty")
	}
	if !isFinite(quantity) || !isFinite(price) {
		return Position{}, NewInvalidConfigurationError("position",
			fmt.Sprintf("%s: quantity and price must be finite", instrumentID))
	}
	if price < 0 {
		return Position{}, NewInvalidConfigurationError("price",
			fmt.Sprintf("%s: price must not be negative", instrumentID))
	}

	mv := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).Round(marketValuePlaces)

	return Position{
		InstrumentID: instrumentID,
		Quantity:     quantity,
		Price:        price,
		MarketValue:  mv.InexactFloat64(),
		Sector:       tags.Sector,
		Region:       tags.Region,
		Currency:     tags.Currency,
		AssetClass:   tags.AssetClass,
	}, nil
}

// Tags returns the classification tags of the position
func (p Position) Tags() PositionTags {
	return PositionTags{Sector: p.Sector, Region: p.Region, Currency: p.Currency, AssetClass: p.AssetClass}
}

// Portfolio is an immutable snapshot of positions
type Portfolio struct {
	ID        string
	Name      string
	AsOf      time.Time
	positions []Position
	index     map[string]int
}

// NewPortfolio creates a portfolio snapshot owning a private copy of positions.
// Duplicate instrument ids are rejected.
func NewPortfolio(id, name string, asOf time.Time, positions []Position) (*Portfolio, error) {
	if len(positions) == 0 {
		return nil, NewInvalidConfigurationError("positions", fmt.Sprintf("portfolio %q has no positions", id))
	}

	owned := make([]Position, len(positions))
	copy(owned, positions)

	index := make(map[string]int, len(owned))
	for i, p := range owned {
		if _, exists := index[p.InstrumentID]; exists {
			return nil, NewInvalidConfigurationError("positions",
				fmt.Sprintf("duplicate instrument %q in portfolio %q", p.InstrumentID, id))
		}
		index[p.InstrumentID] = i
	}

	return &Portfolio{ID: id, Name: name, AsOf: asOf, positions: owned, index: index}, nil
}

// Positions returns a copy of the positions in portfolio order
func (p *Portfolio) Positions() []Position {
	out := make([]Position, len(p.positions))
	copy(out, p.positions)
	return out
}

// Len returns the number of positions
func (p *Portfolio) Len() int {
	return len(p.positions)
}

// Position looks up a position by instrument id
func (p *Portfolio) Position(instrumentID string) (Position, bool) {
	i, ok := p.index[instrumentID]
	if !ok {
		return Position{}, false
	}
	return p.positions[i], true
}

// InstrumentIDs returns instrument ids in portfolio order
func (p *Portfolio) InstrumentIDs() []string {
	ids := make([]string, len(p.positions))
	for i, pos := range p.positions {
		ids[i] = pos.InstrumentID
	}
	return ids
}

// TotalValue returns the exact sum of market values
func (p *Portfolio) TotalValue() float64 {
	total := decimal.Zero
	for _, pos := range p.positions {
		total = total.Add(decimal.NewFromFloat(pos.MarketValue))
	}
	return total.Round(marketValuePlaces).InexactFloat64()
}

// MarketValues returns market values in portfolio order
func (p *Portfolio) MarketValues() []float64 {
	values := make([]float64, len(p.positions))
	for i, pos := range p.positions {
		values[i] = pos.MarketValue
	}
	return values
}

// Weights returns market value / total value in portfolio order.
// All weights are zero when the total is zero.
func (p *Portfolio) Weights() []float64 {
	weights := make([]float64, len(p.positions))
	total := p.TotalValue()
	if total == 0 {
		return weights
	}
	for i, pos := range p.positions {
		weights[i] = pos.MarketValue / total
	}
	return weights
}

// ReturnKind tells how the returns of a series compound
type ReturnKind string

const (
	SimpleReturns ReturnKind = "simple"
	LogReturns    ReturnKind = "log"
)

// ParseReturnKind validates a textual return kind
func ParseReturnKind(s string) (ReturnKind, error) {
	switch ReturnKind(strings.ToLower(strings.TrimSpace(s))) {
	case SimpleReturns, "":
		return SimpleReturns, nil
	case LogReturns:
		return LogReturns, nil
	}
	return "", NewInvalidConfigurationError("return_kind", fmt.Sprintf("unknown return kind %q", s))
}

// Observation is one dated return
type Observation struct {
	Date   time.Time `json:"date" msgpack:"date"`
	Return float64   `json:"return" msgpack:"return"`
}

// ReturnSeries is an ordered return history for one instrument
type ReturnSeries struct {
	InstrumentID string
	Kind         ReturnKind
	Observations []Observation
}

// NewReturnSeries validates and copies observations. Dates must be strictly
// increasing and returns finite.
func NewReturnSeries(instrumentID string, kind ReturnKind, observations []Observation) (ReturnSeries, error) {
	if kind != SimpleReturns && kind != LogReturns {
		return ReturnSeries{}, NewInvalidConfigurationError("return_kind",
			fmt.Sprintf("%s: unknown return kind %q", instrumentID, kind))
	}

	owned := make([]Observation, len(observations))
	for i, obs := range observations {
		if !isFinite(obs.Return) {
			return ReturnSeries{}, NewInvalidConfigurationError("returns",
				fmt.Sprintf("%s: non-finite return on %s", instrumentID, obs.Date.Format("2006-01-02")))
		}
		if i > 0 && !obs.Date.After(observations[i-1].Date) {
			return ReturnSeries{}, NewInvalidConfigurationError("returns",
				fmt.Sprintf("%s: dates must be strictly increasing at %s", instrumentID, obs.Date.Format("2006-01-02")))
		}
		owned[i] = obs
	}

	return ReturnSeries{InstrumentID: instrumentID, Kind: kind, Observations: owned}, nil
}

// Len returns the number of observations
func (s ReturnSeries) Len() int {
	return len(s.Observations)
}

// Returns returns the return values in date order
func (s ReturnSeries) Returns() []float64 {
	out := make([]float64, len(s.Observations))
	for i, obs := range s.Observations {
		out[i] = obs.Return
	}
	return out
}

// VaRMethod selects the VaR estimation method
type VaRMethod string

const (
	VaRParametric VaRMethod = "parametric"
	VaRHistorical VaRMethod = "historical"
	VaRMonteCarlo VaRMethod = "monte_carlo"
)

// ParseVaRMethod validates a textual VaR method
func ParseVaRMethod(s string) (VaRMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "parametric", "variance_covariance":
		return VaRParametric, nil
	case "historical":
		return VaRHistorical, nil
	case "monte_carlo", "montecarlo", "monte-carlo":
		return VaRMonteCarlo, nil
	}
	return "", NewInvalidConfigurationError("method", fmt.Sprintf("unknown VaR method %q", s))
}

// VaRResult is the output of one VaR computation. VaRAmount is a loss
// magnitude and never negative.
type VaRResult struct {
	Method              VaRMethod `json:"method" msgpack:"method"`
	ConfidenceLevel     float64   `json:"confidence_level" msgpack:"confidence_level"`
	HorizonDays         int       `json:"horizon_days" msgpack:"horizon_days"`
	VaRAmount           float64   `json:"var_amount" msgpack:"var_amount"`
	VaRPercentage       float64   `json:"var_percentage" msgpack:"var_percentage"`
	ExpectedShortfall   float64   `json:"expected_shortfall" msgpack:"expected_shortfall"`
	AsOfDate            time.Time `json:"as_of_date" msgpack:"as_of_date"`
	PortfolioValue      float64   `json:"portfolio_value" msgpack:"portfolio_value"`
	PortfolioMean       float64   `json:"portfolio_mean" msgpack:"portfolio_mean"`
	PortfolioVolatility float64   `json:"portfolio_volatility" msgpack:"portfolio_volatility"`
	Observations        int       `json:"observations" msgpack:"observations"`
}

// ExpectedShortfallPercentage returns ES relative to the portfolio value
func (r VaRResult) ExpectedShortfallPercentage() float64 {
	if r.PortfolioValue == 0 {
		return 0
	}
	return r.ExpectedShortfall / r.PortfolioValue
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
