package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/database"
)

const integrityTimeout = time.Minute

// CheckCoreDatabasesJob runs an integrity check over the history, portfolio
// and results stores. Every store is checked even when an earlier one fails.
type CheckCoreDatabasesJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
}

func NewCheckCoreDatabasesJob(databases map[string]*database.DB) *CheckCoreDatabasesJob {
	return &CheckCoreDatabasesJob{
		log:       zerolog.Nop(),
		databases: databases,
	}
}

func (j *CheckCoreDatabasesJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

func (j *CheckCoreDatabasesJob) Name() string {
	return "check_core_databases"
}

func (j *CheckCoreDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), integrityTimeout)
	defer cancel()

	var errs []error
	checked := 0
	for _, name := range storeNames(j.databases) {
		db := j.databases[name]
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Store not opened, skipping integrity check")
			continue
		}
		checked++

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Store failed integrity check")
			errs = append(errs, fmt.Errorf("store %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	j.log.Info().Int("stores", checked).Msg("Store integrity verified")
	return nil
}

// storeNames returns the keys of a store map in a stable order so job logs
// read the same on every run.
func storeNames(databases map[string]*database.DB) []string {
	names := make([]string, 0, len(databases))
	for name := range databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
