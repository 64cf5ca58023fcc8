// Package di provides dependency injection for repositories.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/modules/analysis"
	"github.com/aristath/riskcore/internal/modules/portfolio"
	"github.com/aristath/riskcore/internal/modules/universe"
)

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.History = universe.NewHistoryDB(container.HistoryDB.Conn(), log)
	container.PositionRepo = portfolio.NewPositionRepository(container.PortfolioDB.Conn(), log)
	container.ResultRepo = analysis.NewResultRepository(container.ResultsDB.Conn(), log)

	log.Info().Msg("Repositories initialized")
	return nil
}
