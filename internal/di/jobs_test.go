package di

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskcore/internal/config"
)

func TestRegisterJobs(t *testing.T) {
	cfg := &config.Config{
		DataDir:          t.TempDir(),
		Schedule:         "30 18 * * 1-5",
		Timezone:         "UTC",
		RunRetentionDays: 30,
	}
	container := newContainer(t, cfg)
	require.NoError(t, InitializeServices(context.Background(), container, cfg, zerolog.Nop()))

	jobs, err := RegisterJobs(container, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container.Scheduler)

	assert.NotNil(t, jobs.RiskAnalysis)
	assert.NotNil(t, jobs.DailyMaintenance)
	assert.NotNil(t, jobs.WeeklyMaintenance)
	assert.NotNil(t, jobs.CheckCoreDatabases)
	assert.NotNil(t, jobs.CheckWALCheckpoints)

	names := make([]string, 0)
	for _, st := range container.Scheduler.Status() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{
		"check_core_databases",
		"check_wal_checkpoints",
		"daily_maintenance",
		"risk_analysis",
		"weekly_maintenance",
	}, names)

	// An empty database set has no portfolios to analyse
	require.NoError(t, container.Scheduler.Trigger("risk_analysis"))
	require.NoError(t, container.Scheduler.Trigger("check_core_databases"))
}

func TestRegisterJobs_NoSchedule(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir()}
	container := newContainer(t, cfg)
	require.NoError(t, InitializeServices(context.Background(), container, cfg, zerolog.Nop()))

	jobs, err := RegisterJobs(container, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, jobs.RiskAnalysis)
	assert.Len(t, container.Scheduler.Status(), 4)
}

func TestRegisterJobs_InvalidSchedule(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir(), Schedule: "every weekday"}
	container := newContainer(t, cfg)
	require.NoError(t, InitializeServices(context.Background(), container, cfg, zerolog.Nop()))

	_, err := RegisterJobs(container, cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "risk_analysis")
}

func TestRegisterJobs_NilContainer(t *testing.T) {
	_, err := RegisterJobs(nil, &config.Config{}, zerolog.Nop())
	assert.Error(t, err)
}
