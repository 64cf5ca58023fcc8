package universe

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskcore/internal/domain"
	testingpkg "github.com/aristath/riskcore/internal/testing"
)

func newHistoryDB(t *testing.T) *HistoryDB {
	db, cleanup := testingpkg.NewTestDB(t, "history")
	t.Cleanup(cleanup)
	return NewHistoryDB(db.Conn(), zerolog.Nop())
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func closes(values ...float64) []DailyPrice {
	prices := make([]DailyPrice, len(values))
	for i, v := range values {
		prices[i] = DailyPrice{Date: day(i), Close: v}
	}
	return prices
}

func TestHistoryDB_SaveAndGetDailyPrices(t *testing.T) {
	h := newHistoryDB(t)
	ctx := context.Background()

	n, err := h.SavePrices(ctx, "AAA", closes(100, 101, 102, 103))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	prices, err := h.GetDailyPrices(ctx, "AAA", day(2), 0)
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.Equal(t, day(0), prices[0].Date)
	assert.Equal(t, 102.0, prices[2].Close)

	prices, err = h.GetDailyPrices(ctx, "AAA", day(10), 2)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, 102.0, prices[0].Close)
	assert.Equal(t, 103.0, prices[1].Close)

	latest, ok, err := h.LatestDate(ctx, "AAA")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(3), latest)

	_, ok, err = h.LatestDate(ctx, "ZZZ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryDB_SavePricesRejectsAbnormal(t *testing.T) {
	h := newHistoryDB(t)
	ctx := context.Background()

	// 5 is a >90% crash from 100 and is dropped; 0 is never a valid close
	n, err := h.SavePrices(ctx, "AAA", closes(100, 5, 0, 99))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	prices, err := h.GetDailyPrices(ctx, "AAA", day(10), 0)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, day(3), prices[1].Date)
}

func TestHistoryDB_GetReturnSeries(t *testing.T) {
	h := newHistoryDB(t)
	ctx := context.Background()

	_, err := h.SavePrices(ctx, "AAA", closes(100, 110, 99, 99))
	require.NoError(t, err)
	_, err = h.SavePrices(ctx, "BBB", closes(50))
	require.NoError(t, err)

	series, err := h.GetReturnSeries(ctx, []string{"AAA", "BBB", "CCC"}, domain.SimpleReturns, day(3), 10)
	require.NoError(t, err)
	require.Contains(t, series, "AAA")
	require.Contains(t, series, "BBB")
	assert.NotContains(t, series, "CCC")

	aaa := series["AAA"]
	assert.Equal(t, domain.SimpleReturns, aaa.Kind)
	assert.InDeltaSlice(t, []float64{0.1, -0.1, 0}, aaa.Returns(), 1e-12)
	assert.Equal(t, day(1), aaa.Observations[0].Date)
	assert.Equal(t, 0, series["BBB"].Len())

	// lookback trims to the most recent returns
	series, err = h.GetReturnSeries(ctx, []string{"AAA"}, domain.LogReturns, day(3), 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{math.Log(0.9), 0}, series["AAA"].Returns(), 1e-12)

	_, err = h.GetReturnSeries(ctx, []string{"AAA"}, domain.SimpleReturns, day(3), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestHistoryDB_GetReturnSeriesSkipsZeroCloses(t *testing.T) {
	h := newHistoryDB(t)
	ctx := context.Background()

	_, err := h.SavePrices(ctx, "AAA", closes(100, 110, 99, 99))
	require.NoError(t, err)
	// rows written by another tool bypass the validator
	_, err = h.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO daily_prices (instrument_id, date, close) VALUES (?, ?, ?)",
		"AAA", day(2).Unix(), 0.0)
	require.NoError(t, err)

	series, err := h.GetReturnSeries(ctx, []string{"AAA"}, domain.SimpleReturns, day(3), 10)
	require.NoError(t, err)
	aaa := series["AAA"]
	assert.InDeltaSlice(t, []float64{0.1, -0.1}, aaa.Returns(), 1e-12)
	assert.Equal(t, day(3), aaa.Observations[1].Date)

	_, err = h.db.ExecContext(ctx, "UPDATE daily_prices SET close = 0 WHERE instrument_id = ?", "AAA")
	require.NoError(t, err)
	series, err = h.GetReturnSeries(ctx, []string{"AAA"}, domain.SimpleReturns, day(3), 10)
	require.NoError(t, err)
	assert.NotContains(t, series, "AAA")
}

func TestHistoryDB_ImportCSV(t *testing.T) {
	h := newHistoryDB(t)
	ctx := context.Background()

	csv := `instrument_id,date,open,high,low,close,volume
BBB,2024-01-02,10,11,9,10.5,1000
AAA,2024-01-01,,,,100,
AAA,2024-01-02,,,,101,
`
	summary, err := h.ImportCSV(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 3, summary.Saved)
	assert.Equal(t, map[string]int{"AAA": 2, "BBB": 1}, summary.Instruments)

	ids, err := h.InstrumentIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, ids)

	prices, err := h.GetDailyPrices(ctx, "BBB", day(5), 0)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 11.0, prices[0].High)
	require.NotNil(t, prices[0].Volume)
	assert.Equal(t, int64(1000), *prices[0].Volume)
}

func TestHistoryDB_ImportCSVErrors(t *testing.T) {
	h := newHistoryDB(t)
	ctx := context.Background()

	_, err := h.ImportCSV(ctx, strings.NewReader("instrument_id,close\nAAA,1\n"))
	assert.ErrorContains(t, err, `"date"`)

	_, err = h.ImportCSV(ctx, strings.NewReader("instrument_id,date,close\nAAA,01/02/2024,1\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = h.ImportCSV(ctx, strings.NewReader("instrument_id,date,close\nAAA,2024-01-02,abc\n"))
	assert.ErrorContains(t, err, "invalid close")
}
