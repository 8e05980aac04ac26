package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.db")
}

// setupTestDB creates a migrated journal in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t), "")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b")
	path := filepath.Join(nested, "state.db")

	db, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path || db.Driver() != DefaultDriver {
		t.Errorf("Path()=%q Driver()=%q", db.Path(), db.Driver())
	}
	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(tempDBPath(t), "nosuchdriver"); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func TestOpenProject(t *testing.T) {
	root := t.TempDir()
	db, err := OpenProject(root, "")
	if err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	defer db.Close()
	if db.Path() != filepath.Join(root, ".nexus", "state.db") {
		t.Errorf("Path() = %q", db.Path())
	}
}

func TestPurgeBefore(t *testing.T) {
	db := setupTestDB(t)
	old := time.Now().Add(-48 * time.Hour)

	finished := &models.Plan{ID: "old", GoalID: "g", Status: models.PlanStatusCompleted, CreatedAt: old, UpdatedAt: old}
	running := &models.Plan{ID: "live", GoalID: "g", Status: models.PlanStatusExecuting, CreatedAt: old, UpdatedAt: old}
	for _, p := range []*models.Plan{finished, running} {
		if err := db.RecordPlan(p); err != nil {
			t.Fatalf("RecordPlan: %v", err)
		}
	}

	n, err := db.PurgeBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PurgeBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d plans, want 1", n)
	}
	if _, err := db.GetPlan("old"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("finished plan should be purged, got %v", err)
	}
	if _, err := db.GetPlan("live"); err != nil {
		t.Errorf("executing plan must be kept: %v", err)
	}
}
