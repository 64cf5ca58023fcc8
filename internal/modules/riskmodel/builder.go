package riskmodel

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/riskcore/internal/domain"
)

// Builder estimates return distributions from historical return series
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a new distribution builder
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{
		log: log.With().Str("component", "risk_model").Logger(),
	}
}

// Build aligns the return series of every portfolio instrument and estimates
// their mean vector and covariance matrix.
//
// Series are aligned on the union of their dates, trimmed to the last
// LookbackWindow dates; an instrument without an observation on a date gets a
// zero return for it. Every instrument needs at least MinObservations of its
// own observations inside the window.
func (b *Builder) Build(portfolio *domain.Portfolio, series map[string]domain.ReturnSeries, cfg ModelConfig) (*Distribution, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if portfolio == nil || portfolio.Len() == 0 {
		return nil, domain.NewInvalidConfigurationError("portfolio", "must contain at least one position")
	}

	instruments := portfolio.InstrumentIDs()
	kind, err := b.checkSeries(instruments, series)
	if err != nil {
		return nil, err
	}

	dates := unionDates(instruments, series)
	if len(dates) > cfg.LookbackWindow {
		dates = dates[len(dates)-cfg.LookbackWindow:]
	}
	if len(dates) < cfg.MinObservations {
		return nil, domain.NewInsufficientDataError("", cfg.MinObservations, len(dates), "aligned dates in lookback window")
	}

	history, err := align(instruments, series, dates, cfg.MinObservations)
	if err != nil {
		return nil, err
	}

	t, n := len(dates), len(instruments)
	flat := make([]float64, 0, t*n)
	for _, row := range history {
		flat = append(flat, row...)
	}
	x := mat.NewDense(t, n, flat)

	var (
		mean []float64
		cov  *mat.SymDense
	)
	if cfg.HalfLifeDays > 0 {
		weights, err := timeDecayWeights(t, cfg.HalfLifeDays)
		if err != nil {
			return nil, domain.NewInvalidConfigurationError("half_life_days", err.Error())
		}
		mean, cov, err = weightedMoments(x, weights)
		if err != nil {
			return nil, domain.NewInsufficientDataError("", cfg.MinObservations, t, err.Error())
		}
	} else {
		mean, cov = sampleMoments(x)
	}

	shrinkage := 0.0
	if cfg.LedoitWolf {
		shrinkage = applyLedoitWolfShrinkage(cov)
	}

	shift, err := regularize(cov, cfg.EigenTolerance, cfg.ShrinkageEpsilon)
	if err != nil {
		return nil, err
	}
	if shift > 0 {
		b.log.Debug().
			Str("portfolio", portfolio.ID).
			Float64("shift", shift).
			Msg("Covariance matrix regularised")
	}

	index := make(map[string]int, n)
	for i, id := range instruments {
		index[id] = i
	}

	b.log.Debug().
		Str("portfolio", portfolio.ID).
		Int("instruments", n).
		Int("observations", t).
		Float64("shrinkage", shrinkage).
		Msg("Built return distribution")

	return &Distribution{
		instruments: instruments,
		index:       index,
		mean:        mean,
		cov:         cov,
		kind:        kind,
		dates:       dates,
		history:     history,
		shift:       shift,
		shrinkage:   shrinkage,
	}, nil
}

// checkSeries verifies every instrument has a series and all series share a return kind
func (b *Builder) checkSeries(instruments []string, series map[string]domain.ReturnSeries) (domain.ReturnKind, error) {
	wanted := make(map[string]bool, len(instruments))
	var missing []string
	for _, id := range instruments {
		wanted[id] = true
		if _, ok := series[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return "", domain.NewDimensionMismatchError(len(instruments), len(instruments)-len(missing), missing,
			"no return series for portfolio instruments")
	}

	for id := range series {
		if !wanted[id] {
			b.log.Debug().Str("instrument", id).Msg("Ignoring return series not held in portfolio")
		}
	}

	kind := series[instruments[0]].Kind
	for _, id := range instruments {
		s := series[id]
		if s.Kind != kind {
			return "", domain.NewInvalidConfigurationError("return_kind",
				fmt.Sprintf("%s uses %s returns, %s uses %s", instruments[0], kind, id, s.Kind))
		}
		for i, obs := range s.Observations {
			if !finite(obs.Return) || (i > 0 && !obs.Date.After(s.Observations[i-1].Date)) {
				return "", domain.NewInvalidConfigurationError("returns",
					fmt.Sprintf("%s: series must be strictly increasing in date with finite returns", id))
			}
		}
	}
	return kind, nil
}

// unionDates collects the dates observed by any instrument, oldest first
func unionDates(instruments []string, series map[string]domain.ReturnSeries) []time.Time {
	seen := make(map[int64]time.Time)
	for _, id := range instruments {
		for _, obs := range series[id].Observations {
			seen[obs.Date.UnixNano()] = obs.Date
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// align builds the dates x instruments matrix with zero-filled gaps
func align(instruments []string, series map[string]domain.ReturnSeries, dates []time.Time, minObservations int) ([][]float64, error) {
	dateIndex := make(map[int64]int, len(dates))
	for i, d := range dates {
		dateIndex[d.UnixNano()] = i
	}

	history := make([][]float64, len(dates))
	for i := range history {
		history[i] = make([]float64, len(instruments))
	}

	for j, id := range instruments {
		own := 0
		for _, obs := range series[id].Observations {
			if i, ok := dateIndex[obs.Date.UnixNano()]; ok {
				history[i][j] = obs.Return
				own++
			}
		}
		if own < minObservations {
			return nil, domain.NewInsufficientDataError(id, minObservations, own, "observations in lookback window")
		}
	}

	return history, nil
}
