// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/config"
	"github.com/aristath/riskcore/internal/reliability"
	"github.com/aristath/riskcore/internal/scheduler"
)

// Maintenance schedules, evaluated in the configured time zone
const (
	dailyMaintenanceSchedule  = "0 3 * * *" // 03:00 every day
	weeklyMaintenanceSchedule = "0 4 * * 0" // 04:00 on Sundays
	coreDatabasesSchedule     = "*/15 * * * *"
	walCheckpointsSchedule    = "0 * * * *"
)

// RegisterJobs creates the scheduler and registers all jobs with it.
// Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(cfg.Location(), log)
	container.Scheduler = sched
	instances := &JobInstances{}
	databases := container.Databases()

	// End-of-day batch analysis
	if cfg.Schedule != "" {
		job := scheduler.NewRiskAnalysisJob(container.AnalysisService, container.LoadRiskConfig, cfg.Portfolios)
		job.SetLogger(log.With().Str("job", "risk_analysis").Logger())
		if err := sched.AddJob(cfg.Schedule, job); err != nil {
			return nil, fmt.Errorf("failed to register risk_analysis job: %w", err)
		}
		instances.RiskAnalysis = job
	} else {
		log.Info().Msg("Batch analysis disabled (RISK_SCHEDULE empty)")
	}

	retention := time.Duration(cfg.RunRetentionDays) * 24 * time.Hour
	instances.DailyMaintenance = reliability.NewDailyMaintenanceJob(databases, container.ResultRepo, retention, cfg.DataDir, log)
	if err := sched.AddJob(dailyMaintenanceSchedule, instances.DailyMaintenance); err != nil {
		return nil, fmt.Errorf("failed to register daily_maintenance job: %w", err)
	}

	instances.WeeklyMaintenance = reliability.NewWeeklyMaintenanceJob(databases, container.BackupService, cfg.BackupRetentionDays, log)
	if err := sched.AddJob(weeklyMaintenanceSchedule, instances.WeeklyMaintenance); err != nil {
		return nil, fmt.Errorf("failed to register weekly_maintenance job: %w", err)
	}

	instances.CheckCoreDatabases = scheduler.NewCheckCoreDatabasesJob(databases)
	instances.CheckCoreDatabases.SetLogger(log.With().Str("job", "check_core_databases").Logger())
	if err := sched.AddJob(coreDatabasesSchedule, instances.CheckCoreDatabases); err != nil {
		return nil, fmt.Errorf("failed to register check_core_databases job: %w", err)
	}

	instances.CheckWALCheckpoints = scheduler.NewCheckWALCheckpointsJob(databases)
	instances.CheckWALCheckpoints.SetLogger(log.With().Str("job", "check_wal_checkpoints").Logger())
	if err := sched.AddJob(walCheckpointsSchedule, instances.CheckWALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register check_wal_checkpoints job: %w", err)
	}

	log.Info().Int("jobs", len(sched.Status())).Msg("Jobs registered")
	return instances, nil
}
