// Package testing holds helpers shared by the riskcore test suites.
package testing

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/aristath/riskcore/internal/database"
)

// NewTestDB opens a migrated store under t.TempDir. The name selects the
// schema ("history", "portfolio" or "results"); any other name yields an
// empty database. The returned close func may be called more than once and
// is also registered with t.Cleanup.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("open %s store: %v", name, err)
	}

	var once sync.Once
	closeDB := func() {
		once.Do(func() {
			if err := db.Close(); err != nil {
				t.Logf("close %s store: %v", name, err)
			}
		})
	}
	t.Cleanup(closeDB)

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate %s store: %v", name, err)
	}
	return db, closeDB
}
