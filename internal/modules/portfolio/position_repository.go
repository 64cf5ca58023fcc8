// Package portfolio stores portfolio snapshots and analyses their concentration.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/database"
	"github.com/aristath/riskcore/internal/domain"
)

// PositionRepository handles portfolio and position database operations.
// It implements domain.PortfolioProvider over portfolio.db.
type PositionRepository struct {
	portfolioDB *sql.DB
	log         zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(portfolioDB *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "position").Logger(),
	}
}

// GetPortfolio loads the snapshot of one portfolio
func (r *PositionRepository) GetPortfolio(ctx context.Context, portfolioID string) (*domain.Portfolio, error) {
	var name string
	var asOfUnix int64
	err := r.portfolioDB.QueryRowContext(ctx,
		"SELECT name, as_of FROM portfolios WHERE id = ?", portfolioID,
	).Scan(&name, &asOfUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("portfolio %s: %w", portfolioID, domain.ErrPortfolioNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio %s: %w", portfolioID, err)
	}

	rows, err := r.portfolioDB.QueryContext(ctx, `SELECT instrument_id, quantity, price, sector, region, currency, asset_class
		FROM positions WHERE portfolio_id = ? ORDER BY instrument_id`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		pos, err := r.scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return domain.NewPortfolio(portfolioID, name, time.Unix(asOfUnix, 0).UTC(), positions)
}

// ListPortfolioIDs returns every stored portfolio id in ascending order
func (r *PositionRepository) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	rows, err := r.portfolioDB.QueryContext(ctx, "SELECT id FROM portfolios ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}
	return ids, nil
}

// Save replaces the stored snapshot of the portfolio with pf
func (r *PositionRepository) Save(ctx context.Context, pf *domain.Portfolio) error {
	if pf == nil {
		return fmt.Errorf("portfolio is nil")
	}
	now := time.Now().Unix()

	err := database.WithTransaction(r.portfolioDB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO portfolios (id, name, as_of, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, as_of = excluded.as_of, updated_at = excluded.updated_at
		`, pf.ID, pf.Name, pf.AsOf.Unix(), now); err != nil {
			return fmt.Errorf("failed to upsert portfolio: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM positions WHERE portfolio_id = ?", pf.ID); err != nil {
			return fmt.Errorf("failed to clear positions: %w", err)
		}

		for _, pos := range pf.Positions() {
			if err := insertPosition(ctx, tx, pf.ID, pos); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("portfolio_id", pf.ID).
		Int("positions", pf.Len()).
		Msg("Saved portfolio snapshot")
	return nil
}

// Upsert inserts or updates one position of an existing portfolio
func (r *PositionRepository) Upsert(ctx context.Context, portfolioID string, pos domain.Position) error {
	return database.WithTransaction(r.portfolioDB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE portfolios SET updated_at = ? WHERE id = ?", time.Now().Unix(), portfolioID)
		if err != nil {
			return fmt.Errorf("failed to touch portfolio: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("portfolio %s: %w", portfolioID, domain.ErrPortfolioNotFound)
		}
		return insertPosition(ctx, tx, portfolioID, pos)
	})
}

// Delete removes a portfolio and its positions
func (r *PositionRepository) Delete(ctx context.Context, portfolioID string) error {
	res, err := r.portfolioDB.ExecContext(ctx, "DELETE FROM portfolios WHERE id = ?", portfolioID)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("portfolio %s: %w", portfolioID, domain.ErrPortfolioNotFound)
	}
	return nil
}

// GetCount returns the number of positions in a portfolio
func (r *PositionRepository) GetCount(ctx context.Context, portfolioID string) (int, error) {
	var count int
	err := r.portfolioDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM positions WHERE portfolio_id = ?", portfolioID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get position count: %w", err)
	}
	return count, nil
}

func insertPosition(ctx context.Context, tx *sql.Tx, portfolioID string, pos domain.Position) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO positions
		(portfolio_id, instrument_id, quantity, price, sector, region, currency, asset_class)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		portfolioID,
		pos.InstrumentID,
		pos.Quantity,
		pos.Price,
		pos.Sector,
		pos.Region,
		string(pos.Currency),
		pos.AssetClass,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", pos.InstrumentID, err)
	}
	return nil
}

// scanPosition scans a database row into a domain position.
// Market value is recomputed from quantity and price.
func (r *PositionRepository) scanPosition(rows *sql.Rows) (domain.Position, error) {
	var (
		instrumentID string
		quantity     float64
		price        float64
		tags         domain.PositionTags
		currency     string
	)
	if err := rows.Scan(&instrumentID, &quantity, &price, &tags.Sector, &tags.Region, &currency, &tags.AssetClass); err != nil {
		return domain.Position{}, err
	}
	tags.Currency = domain.Currency(strings.ToUpper(strings.TrimSpace(currency)))

	return domain.NewPosition(instrumentID, quantity, price, tags)
}
