package universe

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/database"
	"github.com/aristath/riskcore/internal/domain"
	"github.com/aristath/riskcore/pkg/formulas"
)

const dateLayout = "2006-01-02"

// HistoryDB provides access to historical price data and serves return series
// built from it. It implements domain.ReturnSeriesProvider.
type HistoryDB struct {
	db        *sql.DB
	validator *PriceValidator
	log       zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:        db,
		validator: NewPriceValidator(log),
		log:       log.With().Str("component", "history_db").Logger(),
	}
}

// DailyPrice represents a daily OHLCV price point
type DailyPrice struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume *int64    `json:"volume,omitempty"`
}

// Day truncates t to UTC midnight
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GetDailyPrices returns up to limit prices on or before asOf, oldest first.
// limit <= 0 returns the full history.
func (h *HistoryDB) GetDailyPrices(ctx context.Context, instrumentID string, asOf time.Time, limit int) ([]DailyPrice, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT date, open, high, low, close, volume
		FROM daily_prices
		WHERE instrument_id = ? AND date <= ?
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := h.db.QueryContext(ctx, query, instrumentID, Day(asOf).Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var dateUnix int64
		var open, high, low sql.NullFloat64
		var volume sql.NullInt64

		if err := rows.Scan(&dateUnix, &open, &high, &low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		p.Date = time.Unix(dateUnix, 0).UTC()
		p.Open = open.Float64
		p.High = high.Float64
		p.Low = low.Float64
		if volume.Valid {
			p.Volume = &volume.Int64
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	// Oldest first
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}
	return prices, nil
}

// SavePrices validates prices and inserts or replaces them in a single transaction.
// Returns the number of prices written.
func (h *HistoryDB) SavePrices(ctx context.Context, instrumentID string, prices []DailyPrice) (int, error) {
	instrumentID = strings.TrimSpace(instrumentID)
	if instrumentID == "" {
		return 0, fmt.Errorf("instrument id is required")
	}

	sorted := make([]DailyPrice, len(prices))
	for i, p := range prices {
		p.Date = Day(p.Date)
		sorted[i] = p
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	accepted, rejected := h.validator.Filter(instrumentID, sorted)

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices
			(instrument_id, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, price := range accepted {
			volume := sql.NullInt64{}
			if price.Volume != nil {
				volume.Int64 = *price.Volume
				volume.Valid = true
			}

			_, err = stmt.ExecContext(ctx,
				instrumentID,
				price.Date.Unix(),
				nullFloat64(price.Open),
				nullFloat64(price.High),
				nullFloat64(price.Low),
				price.Close,
				volume,
			)
			if err != nil {
				return fmt.Errorf("failed to insert daily price for %s: %w", price.Date.Format(dateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	h.log.Info().
		Str("instrument_id", instrumentID).
		Int("count", len(accepted)).
		Int("rejected", len(rejected)).
		Msg("Saved historical prices")

	return len(accepted), nil
}

// GetReturnSeries implements domain.ReturnSeriesProvider. Returns are computed
// from the lookback+1 closes on or before asOf; instruments without any price
// are left out of the result. Stored rows with a non-positive or non-finite
// close are skipped, so the next return spans the gap.
func (h *HistoryDB) GetReturnSeries(ctx context.Context, instrumentIDs []string, kind domain.ReturnKind, asOf time.Time, lookback int) (map[string]domain.ReturnSeries, error) {
	if lookback <= 0 {
		return nil, domain.NewInvalidConfigurationError("lookback", "must be positive")
	}

	out := make(map[string]domain.ReturnSeries, len(instrumentIDs))
	for _, id := range instrumentIDs {
		prices, err := h.GetDailyPrices(ctx, id, asOf, lookback+1)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", id, err)
		}
		if len(prices) == 0 {
			h.log.Debug().Str("instrument_id", id).Msg("No price history")
			continue
		}

		stored := len(prices)
		prices = usableCloses(prices)
		if skipped := stored - len(prices); skipped > 0 {
			h.log.Warn().Str("instrument_id", id).Int("skipped", skipped).Msg("Skipped unusable stored closes")
		}
		if len(prices) == 0 {
			continue
		}

		closes := make([]float64, len(prices))
		for i, p := range prices {
			closes[i] = p.Close
		}

		var returns []float64
		if kind == domain.LogReturns {
			returns = formulas.CalculateLogReturns(closes)
		} else {
			returns = formulas.CalculateReturns(closes)
		}

		obs := make([]domain.Observation, len(returns))
		for i, r := range returns {
			obs[i] = domain.Observation{Date: prices[i+1].Date, Return: r}
		}

		series, err := domain.NewReturnSeries(id, kind, obs)
		if err != nil {
			return nil, err
		}
		out[id] = series
	}
	return out, nil
}

func usableCloses(prices []DailyPrice) []DailyPrice {
	out := prices[:0]
	for _, p := range prices {
		if p.Close > 0 && !math.IsInf(p.Close, 0) && !math.IsNaN(p.Close) {
			out = append(out, p)
		}
	}
	return out
}

// InstrumentIDs returns every instrument with stored prices
func (h *HistoryDB) InstrumentIDs(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT DISTINCT instrument_id FROM daily_prices ORDER BY instrument_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LatestDate returns the most recent price date of an instrument, false when it has none
func (h *HistoryDB) LatestDate(ctx context.Context, instrumentID string) (time.Time, bool, error) {
	var dateUnix sql.NullInt64
	err := h.db.QueryRowContext(ctx,
		"SELECT MAX(date) FROM daily_prices WHERE instrument_id = ?", instrumentID,
	).Scan(&dateUnix)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest date: %w", err)
	}
	if !dateUnix.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(dateUnix.Int64, 0).UTC(), true, nil
}

func nullFloat64(v float64) sql.NullFloat64 {
	if v == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
