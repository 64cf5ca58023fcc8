package universe

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestValidatePrice(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())

	tests := []struct {
		name      string
		price     DailyPrice
		prevClose float64
		reason    string
	}{
		{"valid close only", DailyPrice{Close: 100}, 0, ""},
		{"valid bar", DailyPrice{Open: 99, High: 102, Low: 98, Close: 101}, 100, ""},
		{"zero close", DailyPrice{Close: 0}, 0, "non_positive_close"},
		{"nan close", DailyPrice{Close: math.NaN()}, 0, "non_finite_close"},
		{"high below low", DailyPrice{Open: 100, High: 90, Low: 95, Close: 92}, 0, "high_below_low"},
		{"close above high", DailyPrice{Open: 100, High: 101, Low: 95, Close: 105}, 0, "high_below_body"},
		{"open below low", DailyPrice{Open: 90, High: 101, Low: 95, Close: 96}, 0, "low_above_body"},
		{"spike", DailyPrice{Close: 1200}, 100, "spike_detected"},
		{"crash", DailyPrice{Close: 9}, 100, "crash_detected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := v.ValidatePrice(tt.price, tt.prevClose)
			assert.Equal(t, tt.reason == "", ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestFilter_UsesLastAcceptedClose(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())

	accepted, rejected := v.Filter("AAA", closes(100, 5000, 110))
	assert.Len(t, accepted, 2)
	assert.Equal(t, 110.0, accepted[1].Close)
	if assert.Len(t, rejected, 1) {
		assert.Equal(t, "spike_detected", rejected[0].Reason)
		assert.Equal(t, "2024-01-02", rejected[0].Date)
	}
}
