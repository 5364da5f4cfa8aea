//go:build integration

package testhelpers

import (
	"testing"

	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/database"
)

func TestRunMigrations_RerunIsNoOp(t *testing.T) {
	testDB := GetTestDB(t)

	// GetTestDB already migrated the database; a second run must
	// report no change rather than fail.
	if err := database.RunMigrations(testDB.ConnStr, MigrationsDir(), zap.NewNop()); err != nil {
		t.Fatalf("RunMigrations on an up-to-date database failed: %v", err)
	}
}
