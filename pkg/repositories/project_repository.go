package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prismbi/prism-engine/pkg/apperrors"
	"github.com/prismbi/prism-engine/pkg/crypto"
	"github.com/prismbi/prism-engine/pkg/database"
	"github.com/prismbi/prism-engine/pkg/models"
)

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByUUID(ctx context.Context, projectUUID uuid.UUID) (*models.Project, error)
	// GetWithCredentials returns the project with its dbt and warehouse
	// connection configs decrypted.
	GetWithCredentials(ctx context.Context, projectUUID uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, projectUUID uuid.UUID) error
	ResolveID(ctx context.Context, projectUUID uuid.UUID) (int64, error)

	// TryWithProjectLock opens a transaction and attempts a non-blocking
	// advisory lock keyed by the project's internal id. Exactly one of the two
	// continuations runs inside that transaction: onAcquired when the lock was
	// taken, onFailed (if non-nil) when another transaction holds it. The lock
	// is released when the transaction ends; there is no explicit unlock. An
	// unknown project is a silent no-op: neither continuation runs.
	TryWithProjectLock(ctx context.Context, projectUUID uuid.UUID, onAcquired func(context.Context, pgx.Tx) error, onFailed func(context.Context) error) error
}

// projectRepository implements ProjectRepository using PostgreSQL. Connection
// configs are encrypted with the injected encryptor before they touch the
// projects table.
type projectRepository struct {
	db  *database.DB
	enc *crypto.ConnectionEncryptor
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB, enc *crypto.ConnectionEncryptor) ProjectRepository {
	return &projectRepository{db: db, enc: enc}
}

func (r *projectRepository) encryptConnection(conn models.ConnectionConfig) ([]byte, error) {
	if conn == nil {
		return nil, nil
	}
	plain, err := json.Marshal(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connection config: %w", err)
	}
	encrypted, err := r.enc.Encrypt(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt connection config: %w", err)
	}
	return encrypted, nil
}

func (r *projectRepository) decryptConnection(blob []byte) (models.ConnectionConfig, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	plain, err := r.enc.Decrypt(blob)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, apperrors.ErrCredentialsKeyMismatch
		}
		return nil, fmt.Errorf("failed to decrypt connection config: %w", err)
	}
	var conn models.ConnectionConfig
	if err := json.Unmarshal(plain, &conn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection config: %w", err)
	}
	return conn, nil
}

// Create inserts a new project and populates its generated ids.
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.UUID == uuid.Nil {
		project.UUID = uuid.New()
	}
	if project.Type == "" {
		project.Type = models.ProjectTypeDefault
	}
	project.CreatedAt = time.Now()

	dbtBlob, err := r.encryptConnection(project.DbtConnection)
	if err != nil {
		return err
	}
	whBlob, err := r.encryptConnection(project.WarehouseConnection)
	if err != nil {
		return err
	}
	selection, err := json.Marshal(project.TableSelection)
	if err != nil {
		return fmt.Errorf("failed to marshal table selection: %w", err)
	}

	query := `
		INSERT INTO projects (project_uuid, organization_id, name, project_type,
			dbt_connection, warehouse_type, warehouse_connection, table_selection,
			copied_from_project_uuid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING project_id`

	err = r.db.QueryRow(ctx, query,
		project.UUID,
		project.OrganizationID,
		project.Name,
		project.Type,
		dbtBlob,
		project.WarehouseType,
		whBlob,
		selection,
		project.CopiedFromProjectUUID,
		project.CreatedAt,
	).Scan(&project.ID)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

const projectColumns = `project_id, project_uuid, organization_id, name, project_type,
	warehouse_type, table_selection, copied_from_project_uuid, created_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var project models.Project
	var selection []byte
	err := row.Scan(
		&project.ID,
		&project.UUID,
		&project.OrganizationID,
		&project.Name,
		&project.Type,
		&project.WarehouseType,
		&selection,
		&project.CopiedFromProjectUUID,
		&project.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if err := json.Unmarshal(selection, &project.TableSelection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table selection: %w", err)
	}
	return &project, nil
}

// GetByUUID retrieves a project without its connection secrets.
func (r *projectRepository) GetByUUID(ctx context.Context, projectUUID uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE project_uuid = $1`
	return scanProject(r.db.QueryRow(ctx, query, projectUUID))
}

// GetWithCredentials retrieves a project and decrypts its connection configs.
func (r *projectRepository) GetWithCredentials(ctx context.Context, projectUUID uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + `, dbt_connection, warehouse_connection
		FROM projects WHERE project_uuid = $1`

	var project models.Project
	var selection, dbtBlob, whBlob []byte
	err := r.db.QueryRow(ctx, query, projectUUID).Scan(
		&project.ID,
		&project.UUID,
		&project.OrganizationID,
		&project.Name,
		&project.Type,
		&project.WarehouseType,
		&selection,
		&project.CopiedFromProjectUUID,
		&project.CreatedAt,
		&dbtBlob,
		&whBlob,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if err := json.Unmarshal(selection, &project.TableSelection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table selection: %w", err)
	}

	if project.DbtConnection, err = r.decryptConnection(dbtBlob); err != nil {
		return nil, err
	}
	if project.WarehouseConnection, err = r.decryptConnection(whBlob); err != nil {
		return nil, err
	}

	return &project, nil
}

// Update writes a project's name, connection configs and table selection.
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	dbtBlob, err := r.encryptConnection(project.DbtConnection)
	if err != nil {
		return err
	}
	whBlob, err := r.encryptConnection(project.WarehouseConnection)
	if err != nil {
		return err
	}
	selection, err := json.Marshal(project.TableSelection)
	if err != nil {
		return fmt.Errorf("failed to marshal table selection: %w", err)
	}

	query := `
		UPDATE projects
		SET name = $2, dbt_connection = $3, warehouse_type = $4,
			warehouse_connection = $5, table_selection = $6
		WHERE project_uuid = $1`

	result, err := r.db.Exec(ctx, query,
		project.UUID, project.Name, dbtBlob, project.WarehouseType, whBlob, selection)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a project. Content, memberships, cache rows and mapping
// records follow via CASCADE.
func (r *projectRepository) Delete(ctx context.Context, projectUUID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM projects WHERE project_uuid = $1`, projectUUID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ResolveID maps a public project id to its internal surrogate key.
func (r *projectRepository) ResolveID(ctx context.Context, projectUUID uuid.UUID) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT project_id FROM projects WHERE project_uuid = $1`, projectUUID).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to resolve project id: %w", err)
	}
	return id, nil
}

// TryWithProjectLock serializes cache refreshes per project. See the interface
// doc for the contract.
func (r *projectRepository) TryWithProjectLock(ctx context.Context, projectUUID uuid.UUID, onAcquired func(context.Context, pgx.Tx) error, onFailed func(context.Context) error) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var projectID int64
		err := tx.QueryRow(ctx, `SELECT project_id FROM projects WHERE project_uuid = $1`, projectUUID).Scan(&projectID)
		if err != nil {
			if err == pgx.ErrNoRows {
				// Unknown project: no-op, neither continuation runs.
				return nil
			}
			return fmt.Errorf("failed to resolve project id for lock: %w", err)
		}

		acquired, err := database.TryAdvisoryXactLock(ctx, tx, database.LockNamespaceExploreCache, database.AdvisoryLockKey(projectID))
		if err != nil {
			return err
		}

		if !acquired {
			if onFailed != nil {
				return onFailed(ctx)
			}
			return nil
		}
		return onAcquired(ctx, tx)
	})
}

var _ ProjectRepository = (*projectRepository)(nil)
