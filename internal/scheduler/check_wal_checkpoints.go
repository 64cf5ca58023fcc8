package scheduler

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/database"
)

// defaultWALLimit is the write-ahead log size, in bytes, above which a store
// is truncated back to its main file.
const defaultWALLimit int64 = 4 << 20

// CheckWALCheckpointsJob keeps the write-ahead logs of the stores bounded.
// Batch analysis appends a row per run to the results store, so its log grows
// steadily on a busy server.
type CheckWALCheckpointsJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
	limit     int64
}

func NewCheckWALCheckpointsJob(databases map[string]*database.DB) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		log:       zerolog.Nop(),
		databases: databases,
		limit:     defaultWALLimit,
	}
}

func (j *CheckWALCheckpointsJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

func (j *CheckWALCheckpointsJob) Run() error {
	var errs []error
	truncated := 0
	for _, name := range storeNames(j.databases) {
		db := j.databases[name]
		if db == nil {
			continue
		}

		stats, err := db.GetStats()
		if err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", name, err))
			continue
		}
		if stats.WALSizeBytes <= j.limit {
			j.log.Debug().Str("database", name).Int64("wal_bytes", stats.WALSizeBytes).Msg("WAL within limit")
			continue
		}

		j.log.Warn().
			Str("database", name).
			Int64("wal_bytes", stats.WALSizeBytes).
			Int64("limit_bytes", j.limit).
			Msg("WAL over limit, truncating")
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			errs = append(errs, err)
			continue
		}
		truncated++
	}

	j.log.Info().Int("truncated", truncated).Msg("WAL sweep finished")
	return errors.Join(errs...)
}
