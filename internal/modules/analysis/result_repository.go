package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/riskcore/internal/domain"
)

// ResultRepository stores analysis runs in results.db. The full result is kept
// as a msgpack payload next to a few indexed summary columns.
type ResultRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sql.DB, log zerolog.Logger) *ResultRepository {
	return &ResultRepository{
		db:  db,
		log: log.With().Str("repo", "analysis_runs").Logger(),
	}
}

// Save stores a result. Run ids are unique; saving the same run twice fails.
func (r *ResultRepository) Save(ctx context.Context, result *AnalysisResult) error {
	payload, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", result.RunID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_runs
		(run_id, portfolio_id, as_of, created_at, method, var_amount, expected_shortfall, breach_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID,
		result.PortfolioID,
		result.AsOf.Unix(),
		result.CreatedAt.UnixMilli(),
		string(result.VaR.Method),
		result.VaR.VaRAmount,
		result.VaR.ExpectedShortfall,
		len(result.Compliance.Flags),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}

	r.log.Debug().
		Str("run_id", result.RunID).
		Str("portfolio_id", result.PortfolioID).
		Int("payload_bytes", len(payload)).
		Msg("Stored analysis run")
	return nil
}

// Get loads a stored result
func (r *ResultRepository) Get(ctx context.Context, runID string) (*AnalysisResult, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, "SELECT payload FROM analysis_runs WHERE run_id = ?", runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	var result AnalysisResult
	if err := msgpack.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &result, nil
}

// List returns the most recent runs of a portfolio, newest first. An empty
// portfolioID lists runs of every portfolio.
func (r *ResultRepository) List(ctx context.Context, portfolioID string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT run_id, portfolio_id, as_of, created_at, method, var_amount, expected_shortfall, breach_count
		FROM analysis_runs`
	args := []interface{}{}
	if portfolioID != "" {
		query += " WHERE portfolio_id = ?"
		args = append(args, portfolioID)
	}
	query += " ORDER BY created_at DESC, run_id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		var asOfUnix, createdAtMilli int64
		var method string
		if err := rows.Scan(&s.RunID, &s.PortfolioID, &asOfUnix, &createdAtMilli, &method,
			&s.VaRAmount, &s.ExpectedShortfall, &s.BreachCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.AsOf = time.Unix(asOfUnix, 0).UTC()
		s.CreatedAt = time.UnixMilli(createdAtMilli).UTC()
		s.Method = domain.VaRMethod(method)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return summaries, nil
}

// DeleteOlderThan removes runs created before cutoff and returns how many were removed
func (r *ResultRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM analysis_runs WHERE created_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted runs: %w", err)
	}
	return n, nil
}
