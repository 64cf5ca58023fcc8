// Package database opens and maintains the three SQLite stores riskcore
// keeps: price history, portfolio snapshots and the analysis run ledger.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schemas/*.sql
var schemaFS embed.FS

// Store names with an embedded schema.
const (
	NameHistory   = "history"
	NamePortfolio = "portfolio"
	NameResults   = "results"
)

var hasSchema = map[string]bool{NameHistory: true, NamePortfolio: true, NameResults: true}

// DatabaseProfile selects durability pragmas for a store.
type DatabaseProfile string

const (
	// ProfileLedger fsyncs every commit and never reclaims pages. Used for
	// the append-only run history.
	ProfileLedger DatabaseProfile = "ledger"
	// ProfileStandard fsyncs at checkpoints and vacuums incrementally.
	ProfileStandard DatabaseProfile = "standard"
)

var profilePragmas = map[DatabaseProfile][]string{
	ProfileLedger:   {"synchronous(FULL)", "auto_vacuum(NONE)"},
	ProfileStandard: {"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)", "temp_store(MEMORY)"},
}

var commonPragmas = []string{"foreign_keys(1)", "busy_timeout(5000)", "cache_size(-64000)"}

const openTimeout = 5 * time.Second

type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

type Config struct {
	Path    string
	Profile DatabaseProfile
	// Name picks the embedded schema and labels log lines.
	Name string
}

// New opens the store at cfg.Path, creating its directory when needed.
// Paths starting with "file:" and ":memory:" are passed to the driver as-is.
func New(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store %s: empty path", cfg.Name)
	}
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	if _, ok := profilePragmas[cfg.Profile]; !ok {
		return nil, fmt.Errorf("store %s: unknown profile %q", cfg.Name, cfg.Profile)
	}

	inMemory := cfg.Path == ":memory:" || strings.Contains(cfg.Path, "mode=memory")
	if !inMemory && !strings.HasPrefix(cfg.Path, "file:") {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("store %s: resolve path: %w", cfg.Name, err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("store %s: create directory: %w", cfg.Name, err)
		}
		cfg.Path = abs
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("store %s: open: %w", cfg.Name, err)
	}
	tunePool(conn, inMemory)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store %s: ping: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

func dsn(path string, profile DatabaseProfile) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	for _, p := range profilePragmas[profile] {
		q.Add("_pragma", p)
	}
	for _, p := range commonPragmas {
		q.Add("_pragma", p)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// tunePool sizes the pool for a long-running server. An in-memory store is
// pinned to one connection since each connection would see its own database.
func tunePool(conn *sql.DB, inMemory bool) {
	if inMemory {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
		return
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
}

func (db *DB) Close() error { return db.conn.Close() }

// Conn exposes the pool to repositories.
func (db *DB) Conn() *sql.DB { return db.conn }

func (db *DB) Name() string { return db.name }

func (db *DB) Profile() DatabaseProfile { return db.profile }

func (db *DB) Path() string { return db.path }

// Migrate applies the embedded schema matching the store name. The schemas
// only use CREATE ... IF NOT EXISTS, so repeated calls are harmless. Stores
// without a schema are left alone.
func (db *DB) Migrate() error {
	if !hasSchema[db.name] {
		return nil
	}

	ddl, err := schemaFS.ReadFile("schemas/" + db.name + "_schema.sql")
	if err != nil {
		return fmt.Errorf("store %s: read schema: %w", db.name, err)
	}
	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(ddl)); err != nil {
			return fmt.Errorf("store %s: apply schema: %w", db.name, err)
		}
		return nil
	})
}
