package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/riskcore/internal/database"
)

// Disk space thresholds in GB
const (
	criticalFreeGB = 0.5
	lowFreeGB      = 5.0
)

// RunPruner deletes stored analysis runs older than a cutoff
type RunPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DailyMaintenanceJob checks database integrity, truncates WAL files, checks
// free disk space and prunes old analysis runs
type DailyMaintenanceJob struct {
	databases map[string]*database.DB
	runs      RunPruner
	retention time.Duration
	dataDir   string
	now       func() time.Time
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job. A zero retention
// keeps every run.
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	runs RunPruner,
	retention time.Duration,
	dataDir string,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		runs:      runs,
		retention: retention,
		dataDir:   dataDir,
		now:       time.Now,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()
	ctx := context.Background()

	for _, name := range sortedNames(j.databases) {
		db := j.databases[name]
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("CRITICAL: Database integrity check failed")
			return fmt.Errorf("database %s failed integrity check: %w", name, err)
		}

		// A failed checkpoint is retried tomorrow
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if j.runs != nil && j.retention > 0 {
		deleted, err := j.runs.DeleteOlderThan(ctx, j.now().Add(-j.retention))
		if err != nil {
			j.log.Error().Err(err).Msg("Failed to prune old analysis runs")
		} else if deleted > 0 {
			j.log.Info().Int64("deleted", deleted).Msg("Pruned old analysis runs")
		}
	}

	j.logDatabaseSizes()

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")
	return nil
}

// checkDiskSpace fails when the data directory is nearly full
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if availableGB < criticalFreeGB {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("CRITICAL: only %.2f GB free", availableGB)
	}
	if availableGB < lowFreeGB {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Float64("used_percent", usage.UsedPercent).
			Msg("Disk space running low")
	}
	return nil
}

func (j *DailyMaintenanceJob) logDatabaseSizes() {
	for _, name := range sortedNames(j.databases) {
		stats, err := j.databases[name].GetStats()
		if err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Failed to get database stats")
			continue
		}
		j.log.Info().
			Str("database", name).
			Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
			Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
			Msg("Database metrics")
	}
}

// WeeklyMaintenanceJob vacuums the databases and uploads a backup
type WeeklyMaintenanceJob struct {
	databases     map[string]*database.DB
	backups       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewWeeklyMaintenanceJob creates a new weekly maintenance job. backups may
// be nil when no archive is configured.
func NewWeeklyMaintenanceJob(
	databases map[string]*database.DB,
	backups *BackupService,
	retentionDays int,
	log zerolog.Logger,
) *WeeklyMaintenanceJob {
	return &WeeklyMaintenanceJob{
		databases:     databases,
		backups:       backups,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "weekly_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *WeeklyMaintenanceJob) Name() string {
	return "weekly_maintenance"
}

// Run executes the weekly maintenance job
func (j *WeeklyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting weekly maintenance")
	startTime := time.Now()
	ctx := context.Background()

	for _, name := range sortedNames(j.databases) {
		if _, err := j.databases[name].Conn().ExecContext(ctx, "VACUUM"); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("VACUUM failed")
		}
	}

	if j.backups != nil {
		if _, err := j.backups.CreateAndUpload(ctx); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		if _, err := j.backups.RotateOldBackups(ctx, j.retentionDays); err != nil {
			j.log.Error().Err(err).Msg("Backup rotation failed")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Weekly maintenance completed successfully")
	return nil
}

func sortedNames(databases map[string]*database.DB) []string {
	names := make([]string, 0, len(databases))
	for name := range databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
