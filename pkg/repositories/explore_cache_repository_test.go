//go:build integration

package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prismbi/prism-engine/pkg/apperrors"
	"github.com/prismbi/prism-engine/pkg/crypto"
	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/testhelpers"
)

// cacheTestContext holds test dependencies for explore cache repository tests.
type cacheTestContext struct {
	t       *testing.T
	testDB  *testhelpers.TestDB
	repo    ExploreCacheRepository
	project *models.Project
}

// setupCacheTest creates a fresh organization and project for each test.
func setupCacheTest(t *testing.T) *cacheTestContext {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	enc, err := crypto.NewConnectionEncryptor("explore-cache-test-key")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	var orgID int64
	err = testDB.Pool.QueryRow(ctx,
		`INSERT INTO organizations (organization_name) VALUES ($1) RETURNING organization_id`,
		t.Name(),
	).Scan(&orgID)
	if err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	project := &models.Project{
		OrganizationID: orgID,
		Name:           "Cache Test",
		WarehouseType:  models.WarehouseTypePostgres,
		TableSelection: models.TableSelection{Type: models.TableSelectionTypeAll},
	}
	if err := NewProjectRepository(testDB.DB, enc).Create(ctx, project); err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}

	return &cacheTestContext{
		t:       t,
		testDB:  testDB,
		repo:    NewExploreCacheRepository(testDB.DB),
		project: project,
	}
}

// saveExplores runs SaveExplores in its own committed transaction.
func (tc *cacheTestContext) saveExplores(ctx context.Context, projectUUID uuid.UUID, explores []models.Explore) (*models.CachedExplores, error) {
	tc.t.Helper()
	var cached *models.CachedExplores
	err := tc.testDB.DB.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		cached, err = tc.repo.SaveExplores(ctx, tx, projectUUID, explores)
		return err
	})
	return cached, err
}

// saveCatalog runs SaveWarehouseCatalog in its own committed transaction.
func (tc *cacheTestContext) saveCatalog(ctx context.Context, projectUUID uuid.UUID, catalog models.WarehouseCatalog) (*models.CachedWarehouse, error) {
	tc.t.Helper()
	var cached *models.CachedWarehouse
	err := tc.testDB.DB.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		cached, err = tc.repo.SaveWarehouseCatalog(ctx, tx, projectUUID, catalog)
		return err
	})
	return cached, err
}

// TestExploreCacheRepository_GetExplores_NotCached verifies the never-cached case.
func TestExploreCacheRepository_GetExplores_NotCached(t *testing.T) {
	tc := setupCacheTest(t)
	ctx := context.Background()

	if _, err := tc.repo.GetExplores(ctx, tc.project.UUID); err != apperrors.ErrNotFound {
		t.Errorf("GetExplores: expected ErrNotFound, got %v", err)
	}
	if _, err := tc.repo.GetWarehouseCatalog(ctx, tc.project.UUID); err != apperrors.ErrNotFound {
		t.Errorf("GetWarehouseCatalog: expected ErrNotFound, got %v", err)
	}
}

// TestExploreCacheRepository_SaveExplores_ReplacesWholesale verifies that a
// second save fully replaces the first snapshot rather than merging.
func TestExploreCacheRepository_SaveExplores_ReplacesWholesale(t *testing.T) {
	tc := setupCacheTest(t)
	ctx := context.Background()

	first := []models.Explore{
		{Name: "orders", Label: "Orders", Compiled: json.RawMessage(`{"dimensions":{"id":{}}}`)},
		{Name: "customers", Label: "Customers", Compiled: json.RawMessage(`{}`)},
	}
	saved, err := tc.saveExplores(ctx, tc.project.UUID, first)
	if err != nil {
		t.Fatalf("first SaveExplores failed: %v", err)
	}
	if saved.ProjectID != tc.project.ID {
		t.Errorf("expected project id %d, got %d", tc.project.ID, saved.ProjectID)
	}
	if saved.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}

	second := []models.Explore{
		{Name: "payments", Tags: []string{"finance"}, Compiled: json.RawMessage(`{"metrics":{}}`)},
	}
	if _, err := tc.saveExplores(ctx, tc.project.UUID, second); err != nil {
		t.Fatalf("second SaveExplores failed: %v", err)
	}

	cached, err := tc.repo.GetExplores(ctx, tc.project.UUID)
	if err != nil {
		t.Fatalf("GetExplores failed: %v", err)
	}
	if len(cached.Explores) != 1 {
		t.Fatalf("expected snapshot to be replaced wholesale, got %d explores", len(cached.Explores))
	}
	if cached.Explores[0].Name != "payments" {
		t.Errorf("expected explore 'payments', got %q", cached.Explores[0].Name)
	}
	if len(cached.Explores[0].Tags) != 1 || cached.Explores[0].Tags[0] != "finance" {
		t.Errorf("expected tags [finance], got %v", cached.Explores[0].Tags)
	}

	// Exactly one row per project, enforced by the upsert.
	var n int
	err = tc.testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cached_explores WHERE project_id = $1`, tc.project.ID).Scan(&n)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 cache row, got %d", n)
	}
}

// TestExploreCacheRepository_SaveWarehouseCatalog_RoundTrip verifies the
// nested catalog survives storage and a later save replaces it.
func TestExploreCacheRepository_SaveWarehouseCatalog_RoundTrip(t *testing.T) {
	tc := setupCacheTest(t)
	ctx := context.Background()

	catalog := models.WarehouseCatalog{
		"analytics": {
			"public": {
				"orders": {"id": "integer", "total": "numeric"},
			},
		},
	}
	if _, err := tc.saveCatalog(ctx, tc.project.UUID, catalog); err != nil {
		t.Fatalf("SaveWarehouseCatalog failed: %v", err)
	}

	cached, err := tc.repo.GetWarehouseCatalog(ctx, tc.project.UUID)
	if err != nil {
		t.Fatalf("GetWarehouseCatalog failed: %v", err)
	}
	if cached.Catalog["analytics"]["public"]["orders"]["total"] != "numeric" {
		t.Errorf("expected orders.total to be numeric, got %v", cached.Catalog)
	}

	replacement := models.WarehouseCatalog{
		"analytics": {"public": {"payments": {"amount": "numeric"}}},
	}
	if _, err := tc.saveCatalog(ctx, tc.project.UUID, replacement); err != nil {
		t.Fatalf("second SaveWarehouseCatalog failed: %v", err)
	}
	cached, err = tc.repo.GetWarehouseCatalog(ctx, tc.project.UUID)
	if err != nil {
		t.Fatalf("GetWarehouseCatalog after replace failed: %v", err)
	}
	if _, ok := cached.Catalog["analytics"]["public"]["orders"]; ok {
		t.Error("expected old catalog tables to be gone after replace")
	}
	if _, ok := cached.Catalog["analytics"]["public"]["payments"]; !ok {
		t.Error("expected new catalog tables after replace")
	}
}

// TestExploreCacheRepository_Save_UnknownProject verifies saves against a
// project that does not exist.
func TestExploreCacheRepository_Save_UnknownProject(t *testing.T) {
	tc := setupCacheTest(t)
	ctx := context.Background()

	if _, err := tc.saveExplores(ctx, uuid.New(), nil); err != apperrors.ErrNotFound {
		t.Errorf("SaveExplores: expected ErrNotFound, got %v", err)
	}
	if _, err := tc.saveCatalog(ctx, uuid.New(), models.WarehouseCatalog{}); err != apperrors.ErrNotFound {
		t.Errorf("SaveWarehouseCatalog: expected ErrNotFound, got %v", err)
	}
}

// TestExploreCacheRepository_Save_RollsBackWithTransaction verifies that saves
// are scoped to the caller's transaction: when a later step in the same
// refresh fails, the explores write must not survive on its own.
func TestExploreCacheRepository_Save_RollsBackWithTransaction(t *testing.T) {
	tc := setupCacheTest(t)
	ctx := context.Background()

	boom := errors.New("catalog fetch failed")
	err := tc.testDB.DB.WithTx(ctx, func(tx pgx.Tx) error {
		explores := []models.Explore{{Name: "orders", Compiled: json.RawMessage(`{}`)}}
		if _, err := tc.repo.SaveExplores(ctx, tx, tc.project.UUID, explores); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected transaction to surface %v, got %v", boom, err)
	}

	if _, err := tc.repo.GetExplores(ctx, tc.project.UUID); err != apperrors.ErrNotFound {
		t.Errorf("expected explores save to roll back, got err %v", err)
	}
	var n int
	if err := tc.testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cached_explores WHERE project_id = $1`, tc.project.ID).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 cache rows after rollback, got %d", n)
	}
}
