//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prismbi/prism-engine/pkg/apperrors"
	"github.com/prismbi/prism-engine/pkg/crypto"
	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/testhelpers"
)

// projectTestContext holds test dependencies for project repository tests.
type projectTestContext struct {
	t      *testing.T
	testDB *testhelpers.TestDB
	enc    *crypto.ConnectionEncryptor
	repo   ProjectRepository
	orgID  int64
}

// setupProjectTest initializes the test context with a fresh organization.
func setupProjectTest(t *testing.T) *projectTestContext {
	testDB := testhelpers.GetTestDB(t)

	enc, err := crypto.NewConnectionEncryptor("project-repository-test-key")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	tc := &projectTestContext{
		t:      t,
		testDB: testDB,
		enc:    enc,
		repo:   NewProjectRepository(testDB.DB, enc),
	}
	err = testDB.Pool.QueryRow(context.Background(),
		`INSERT INTO organizations (organization_name) VALUES ($1) RETURNING organization_id`,
		t.Name(),
	).Scan(&tc.orgID)
	if err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}
	return tc
}

func (tc *projectTestContext) newProject(name string) *models.Project {
	return &models.Project{
		OrganizationID: tc.orgID,
		Name:           name,
		WarehouseType:  models.WarehouseTypePostgres,
		TableSelection: models.TableSelection{Type: models.TableSelectionTypeAll},
		DbtConnection: models.ConnectionConfig{
			"type":                  models.DbtConnectionTypeGithub,
			"personal_access_token": "ghp_secret",
			"repository":            "acme/analytics",
			"branch":                "main",
			"project_sub_path":      "/",
		},
		WarehouseConnection: models.ConnectionConfig{
			"type":     models.WarehouseTypePostgres,
			"host":     "warehouse.internal",
			"user":     "engine",
			"password": "wh-secret",
			"dbname":   "analytics",
		},
	}
}

// TestProjectRepository_Create_RoundTripsCredentials verifies that connection
// configs survive the encrypt/store/decrypt cycle.
func TestProjectRepository_Create_RoundTripsCredentials(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	project := tc.newProject("Credentials Round Trip")
	if err := tc.repo.Create(ctx, project); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if project.ID == 0 || project.UUID == uuid.Nil {
		t.Fatal("expected generated ids after Create")
	}
	if project.Type != models.ProjectTypeDefault {
		t.Errorf("expected default project type, got %q", project.Type)
	}

	retrieved, err := tc.repo.GetWithCredentials(ctx, project.UUID)
	if err != nil {
		t.Fatalf("GetWithCredentials failed: %v", err)
	}
	if retrieved.WarehouseConnection["password"] != "wh-secret" {
		t.Errorf("expected decrypted warehouse password, got %v", retrieved.WarehouseConnection["password"])
	}
	if retrieved.DbtConnection["personal_access_token"] != "ghp_secret" {
		t.Errorf("expected decrypted dbt token, got %v", retrieved.DbtConnection["personal_access_token"])
	}

	// The credential-free read must not carry connection configs.
	bare, err := tc.repo.GetByUUID(ctx, project.UUID)
	if err != nil {
		t.Fatalf("GetByUUID failed: %v", err)
	}
	if bare.DbtConnection != nil || bare.WarehouseConnection != nil {
		t.Error("expected GetByUUID to omit connection configs")
	}
	if bare.Name != "Credentials Round Trip" {
		t.Errorf("expected name to round-trip, got %q", bare.Name)
	}
}

// TestProjectRepository_GetWithCredentials_KeyMismatch verifies that reading
// credentials written under a different key surfaces the sentinel error
// instead of garbage.
func TestProjectRepository_GetWithCredentials_KeyMismatch(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	project := tc.newProject("Key Mismatch")
	if err := tc.repo.Create(ctx, project); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	otherEnc, err := crypto.NewConnectionEncryptor("a-different-key-entirely")
	if err != nil {
		t.Fatalf("failed to create second encryptor: %v", err)
	}
	otherRepo := NewProjectRepository(tc.testDB.DB, otherEnc)

	_, err = otherRepo.GetWithCredentials(ctx, project.UUID)
	if !errors.Is(err, apperrors.ErrCredentialsKeyMismatch) {
		t.Errorf("expected ErrCredentialsKeyMismatch, got %v", err)
	}
}

// TestProjectRepository_Get_NotFound verifies the missing-project cases.
func TestProjectRepository_Get_NotFound(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	unknown := uuid.New()
	if _, err := tc.repo.GetByUUID(ctx, unknown); err != apperrors.ErrNotFound {
		t.Errorf("GetByUUID: expected ErrNotFound, got %v", err)
	}
	if _, err := tc.repo.GetWithCredentials(ctx, unknown); err != apperrors.ErrNotFound {
		t.Errorf("GetWithCredentials: expected ErrNotFound, got %v", err)
	}
	if _, err := tc.repo.ResolveID(ctx, unknown); err != apperrors.ErrNotFound {
		t.Errorf("ResolveID: expected ErrNotFound, got %v", err)
	}
	if err := tc.repo.Delete(ctx, unknown); err != apperrors.ErrNotFound {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
	if err := tc.repo.Update(ctx, &models.Project{UUID: unknown, Name: "x"}); err != apperrors.ErrNotFound {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
}

// TestProjectRepository_Update_RewritesSettings verifies Update persists name,
// selection and credentials.
func TestProjectRepository_Update_RewritesSettings(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	project := tc.newProject("Before")
	if err := tc.repo.Create(ctx, project); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	project.Name = "After"
	project.TableSelection = models.TableSelection{Type: models.TableSelectionTypeWithTags, Value: []string{"marts"}}
	project.WarehouseConnection["password"] = "rotated"
	if err := tc.repo.Update(ctx, project); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retrieved, err := tc.repo.GetWithCredentials(ctx, project.UUID)
	if err != nil {
		t.Fatalf("GetWithCredentials failed: %v", err)
	}
	if retrieved.Name != "After" {
		t.Errorf("expected name 'After', got %q", retrieved.Name)
	}
	if retrieved.TableSelection.Type != models.TableSelectionTypeWithTags {
		t.Errorf("expected WITH_TAGS selection, got %q", retrieved.TableSelection.Type)
	}
	if retrieved.WarehouseConnection["password"] != "rotated" {
		t.Errorf("expected rotated password, got %v", retrieved.WarehouseConnection["password"])
	}
}

// TestProjectRepository_Delete_Cascades verifies content rows disappear with
// their project.
func TestProjectRepository_Delete_Cascades(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	project := tc.newProject("Doomed")
	if err := tc.repo.Create(ctx, project); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	var spaceID int64
	err := tc.testDB.Pool.QueryRow(ctx,
		`INSERT INTO spaces (project_id, name) VALUES ($1, 'Main') RETURNING space_id`,
		project.ID,
	).Scan(&spaceID)
	if err != nil {
		t.Fatalf("failed to create space: %v", err)
	}

	if err := tc.repo.Delete(ctx, project.UUID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var n int
	err = tc.testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM spaces WHERE space_id = $1`, spaceID).Scan(&n)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected cascade to remove spaces, found %d rows", n)
	}
}

// TestProjectRepository_TryWithProjectLock_MutualExclusion verifies that while
// one transaction holds the per-project lock, a second attempt runs its
// onFailed continuation instead of onAcquired.
func TestProjectRepository_TryWithProjectLock_MutualExclusion(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	project := tc.newProject("Locked")
	if err := tc.repo.Create(ctx, project); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var outerAcquired, innerAcquired, innerFailed bool
	err := tc.repo.TryWithProjectLock(ctx, project.UUID,
		func(ctx context.Context, _ pgx.Tx) error {
			outerAcquired = true
			// Second attempt on another pool connection while the first
			// transaction still holds the lock.
			return tc.repo.TryWithProjectLock(ctx, project.UUID,
				func(context.Context, pgx.Tx) error {
					innerAcquired = true
					return nil
				},
				func(context.Context) error {
					innerFailed = true
					return nil
				})
		}, nil)
	if err != nil {
		t.Fatalf("TryWithProjectLock failed: %v", err)
	}
	if !outerAcquired {
		t.Error("expected the first attempt to acquire the lock")
	}
	if innerAcquired {
		t.Error("second attempt acquired the lock while the first held it")
	}
	if !innerFailed {
		t.Error("expected the second attempt to run its onFailed continuation")
	}

	// The lock is transaction-scoped: after the first transaction ends, a new
	// attempt acquires it again.
	var reacquired bool
	err = tc.repo.TryWithProjectLock(ctx, project.UUID,
		func(context.Context, pgx.Tx) error {
			reacquired = true
			return nil
		}, nil)
	if err != nil {
		t.Fatalf("TryWithProjectLock after release failed: %v", err)
	}
	if !reacquired {
		t.Error("expected the lock to be free after the first transaction ended")
	}
}

// TestProjectRepository_TryWithProjectLock_UnknownProject verifies that an
// unknown project runs neither continuation and returns no error.
func TestProjectRepository_TryWithProjectLock_UnknownProject(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	var acquired, failed bool
	err := tc.repo.TryWithProjectLock(ctx, uuid.New(),
		func(context.Context, pgx.Tx) error {
			acquired = true
			return nil
		},
		func(context.Context) error {
			failed = true
			return nil
		})
	if err != nil {
		t.Fatalf("TryWithProjectLock failed: %v", err)
	}
	if acquired || failed {
		t.Errorf("expected no continuation to run, got acquired=%v failed=%v", acquired, failed)
	}
}

// TestProjectRepository_TryWithProjectLock_RollsBackOnError verifies that an
// error from onAcquired aborts the transaction's writes.
func TestProjectRepository_TryWithProjectLock_RollsBackOnError(t *testing.T) {
	tc := setupProjectTest(t)
	ctx := context.Background()

	project := tc.newProject("Rollback")
	if err := tc.repo.Create(ctx, project); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sentinel := errors.New("refresh failed")
	err := tc.repo.TryWithProjectLock(ctx, project.UUID,
		func(ctx context.Context, tx pgx.Tx) error {
			_, err := tx.Exec(ctx,
				`INSERT INTO spaces (project_id, name) VALUES ($1, 'Ghost')`, project.ID)
			if err != nil {
				return err
			}
			return sentinel
		}, nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	var n int
	err = tc.testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM spaces WHERE project_id = $1`, project.ID).Scan(&n)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback to discard the insert, found %d rows", n)
	}
}
