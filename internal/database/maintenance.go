package database

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// HealthCheck pings the store and runs PRAGMA integrity_check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("store %s: ping: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("store %s: integrity check: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("store %s: integrity check reported %q", db.name, result)
	}
	return nil
}

var checkpointModes = map[string]bool{"PASSIVE": true, "FULL": true, "RESTART": true, "TRUNCATE": true}

// WALCheckpoint runs a checkpoint in the given mode. An empty mode means
// TRUNCATE.
func (db *DB) WALCheckpoint(mode string) error {
	mode = strings.ToUpper(mode)
	if mode == "" {
		mode = "TRUNCATE"
	}
	if !checkpointModes[mode] {
		return fmt.Errorf("store %s: unknown checkpoint mode %q", db.name, mode)
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(" + mode + ")"); err != nil {
		return fmt.Errorf("store %s: checkpoint %s: %w", db.name, mode, err)
	}
	return nil
}

// Stats is the size report served by the system status endpoint.
type Stats struct {
	Name          string `json:"name"`
	SizeBytes     int64  `json:"size_bytes"`
	WALSizeBytes  int64  `json:"wal_size_bytes"`
	PageCount     int64  `json:"page_count"`
	PageSize      int64  `json:"page_size"`
	FreelistCount int64  `json:"freelist_count"`
}

func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{
		Name:         db.name,
		SizeBytes:    fileSize(db.path),
		WALSizeBytes: fileSize(db.path + "-wal"),
	}

	for pragma, dst := range map[string]*int64{
		"page_count":     &stats.PageCount,
		"page_size":      &stats.PageSize,
		"freelist_count": &stats.FreelistCount,
	} {
		if err := db.conn.QueryRow("PRAGMA " + pragma).Scan(dst); err != nil {
			return nil, fmt.Errorf("store %s: %s: %w", db.name, pragma, err)
		}
	}
	return stats, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
