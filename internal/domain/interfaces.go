package domain

import (
	"context"
	"time"
)

// ReturnSeriesProvider supplies return histories for instruments.
// Implementations own all I/O; the risk core only consumes the returned values.
type ReturnSeriesProvider interface {
	// GetReturnSeries returns one series per requested instrument that has data,
	// keyed by instrument id, covering observations up to and including asOf.
	GetReturnSeries(ctx context.Context, instrumentIDs []string, kind ReturnKind, asOf time.Time, lookback int) (map[string]ReturnSeries, error)
}

// PortfolioProvider supplies portfolio snapshots
type PortfolioProvider interface {
	// GetPortfolio returns the snapshot of the given portfolio.
	// Returns an error wrapping ErrPortfolioNotFound when it does not exist.
	GetPortfolio(ctx context.Context, portfolioID string) (*Portfolio, error)

	// ListPortfolioIDs returns every known portfolio id
	ListPortfolioIDs(ctx context.Context) ([]string, error)
}
