// Package di provides dependency injection type definitions.
//
// The Container is the single source of truth for all service instances and
// is passed to the server for access to services.
package di

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/database"
	"github.com/aristath/riskcore/internal/events"
	"github.com/aristath/riskcore/internal/modules/analysis"
	"github.com/aristath/riskcore/internal/modules/portfolio"
	"github.com/aristath/riskcore/internal/modules/universe"
	"github.com/aristath/riskcore/internal/reliability"
	"github.com/aristath/riskcore/internal/scheduler"
)

// Container holds all dependencies for the application.
//
// Architecture:
//   - Databases: history (daily prices), portfolio (snapshots), results (analysis runs)
//   - Repositories: data access over the databases
//   - Services: the analysis pipeline, metrics and the optional report archive
//   - Scheduler: cron jobs for the batch run and database maintenance
type Container struct {
	// Databases
	HistoryDB   *database.DB
	PortfolioDB *database.DB
	ResultsDB   *database.DB

	// Repositories
	History      *universe.HistoryDB
	PositionRepo *portfolio.PositionRepository
	ResultRepo   *analysis.ResultRepository

	// Services
	Registry        *prometheus.Registry
	Metrics         *analysis.Metrics
	AnalysisService *analysis.Service
	Events          *events.Broadcaster
	S3Client        *reliability.S3Client      // nil when no archive bucket is configured
	BackupService   *reliability.BackupService // nil when no archive bucket is configured

	// LoadRiskConfig re-reads the risk configuration file on every call
	LoadRiskConfig func() (config.RiskConfig, error)

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering via API
type JobInstances struct {
	RiskAnalysis        *scheduler.RiskAnalysisJob // nil when no schedule is configured
	DailyMaintenance    *reliability.DailyMaintenanceJob
	WeeklyMaintenance   *reliability.WeeklyMaintenanceJob
	CheckCoreDatabases  *scheduler.CheckCoreDatabasesJob
	CheckWALCheckpoints *scheduler.CheckWALCheckpointsJob
}

// Databases returns the open databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	out := make(map[string]*database.DB, 3)
	for _, db := range []*database.DB{c.HistoryDB, c.PortfolioDB, c.ResultsDB} {
		if db != nil {
			out[db.Name()] = db
		}
	}
	return out
}

// Close closes every open database
func (c *Container) Close() {
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
