package universe

import (
	"math"

	"github.com/rs/zerolog"
)

const (
	// Validation thresholds
	maxPriceChangePercent = 1000.0 // >1000% change is a spike
	minPriceChangePercent = -90.0  // <-90% change is a crash
)

// RejectedPrice records a price dropped by the validator
type RejectedPrice struct {
	Date   string
	Close  float64
	Reason string
}

// PriceValidator rejects prices that would poison a return series
type PriceValidator struct {
	log zerolog.Logger
}

// NewPriceValidator creates a new price validator
func NewPriceValidator(log zerolog.Logger) *PriceValidator {
	return &PriceValidator{
		log: log.With().Str("component", "price_validator").Logger(),
	}
}

// ValidatePrice checks one price against the previous accepted close (0 when none).
// Returns (isValid, reason)
func (v *PriceValidator) ValidatePrice(price DailyPrice, prevClose float64) (bool, string) {
	if math.IsNaN(price.Close) || math.IsInf(price.Close, 0) {
		return false, "non_finite_close"
	}
	if price.Close <= 0 {
		return false, "non_positive_close"
	}

	// OHLC consistency only when the bar is complete
	if price.Open > 0 && price.High > 0 && price.Low > 0 {
		if price.High < price.Low {
			return false, "high_below_low"
		}
		if price.High < price.Close || price.High < price.Open {
			return false, "high_below_body"
		}
		if price.Low > price.Close || price.Low > price.Open {
			return false, "low_above_body"
		}
	}

	if prevClose > 0 {
		changePercent := ((price.Close - prevClose) / prevClose) * 100.0
		if changePercent > maxPriceChangePercent {
			return false, "spike_detected"
		}
		if changePercent < minPriceChangePercent {
			return false, "crash_detected"
		}
	}

	return true, ""
}

// Filter validates prices in date order and returns the accepted ones.
// A rejected price is not used as the reference for the next one.
func (v *PriceValidator) Filter(instrumentID string, prices []DailyPrice) ([]DailyPrice, []RejectedPrice) {
	accepted := make([]DailyPrice, 0, len(prices))
	var rejected []RejectedPrice

	prevClose := 0.0
	for _, p := range prices {
		ok, reason := v.ValidatePrice(p, prevClose)
		if !ok {
			rejected = append(rejected, RejectedPrice{Date: p.Date.Format(dateLayout), Close: p.Close, Reason: reason})
			v.log.Warn().
				Str("instrument_id", instrumentID).
				Str("date", p.Date.Format(dateLayout)).
				Float64("close", p.Close).
				Str("reason", reason).
				Msg("Rejected abnormal price")
			continue
		}
		accepted = append(accepted, p)
		prevClose = p.Close
	}
	return accepted, rejected
}
