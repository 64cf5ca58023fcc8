// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/database"
)

// InitializeDatabases opens the three databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	specs := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		// history.db - daily prices the return series are derived from
		{database.NameHistory, database.ProfileStandard, &container.HistoryDB},
		// portfolio.db - current portfolio snapshots
		{database.NamePortfolio, database.ProfileStandard, &container.PortfolioDB},
		// results.db - append-only analysis run history
		{database.NameResults, database.ProfileLedger, &container.ResultsDB},
	}

	for _, spec := range specs {
		db, err := database.New(database.Config{
			Path:    cfg.DatabasePath(spec.name),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}
		*spec.target = db
	}

	// Apply schemas to all databases (single source of truth)
	for _, db := range []*database.DB{container.HistoryDB, container.PortfolioDB, container.ResultsDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
