package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prismbi/prism-engine/pkg/apperrors"
	"github.com/prismbi/prism-engine/pkg/database"
	"github.com/prismbi/prism-engine/pkg/models"
)

// ExploreCacheRepository stores per-project snapshots of compiled explores and
// the warehouse schema catalog. At most one row exists per project; every save
// replaces the previous snapshot wholesale (last writer wins, no merge).
type ExploreCacheRepository interface {
	// GetExplores returns the cached snapshot, or apperrors.ErrNotFound when
	// the project has never been cached.
	GetExplores(ctx context.Context, projectUUID uuid.UUID) (*models.CachedExplores, error)
	// SaveExplores writes through the caller's transaction so that a refresh
	// holding the per-project advisory lock commits or rolls back as a unit.
	SaveExplores(ctx context.Context, tx pgx.Tx, projectUUID uuid.UUID, explores []models.Explore) (*models.CachedExplores, error)

	GetWarehouseCatalog(ctx context.Context, projectUUID uuid.UUID) (*models.CachedWarehouse, error)
	SaveWarehouseCatalog(ctx context.Context, tx pgx.Tx, projectUUID uuid.UUID, catalog models.WarehouseCatalog) (*models.CachedWarehouse, error)
}

type exploreCacheRepository struct {
	db *database.DB
}

// NewExploreCacheRepository creates a new explore cache repository.
func NewExploreCacheRepository(db *database.DB) ExploreCacheRepository {
	return &exploreCacheRepository{db: db}
}

// GetExplores returns the single most recent explores snapshot for a project.
func (r *exploreCacheRepository) GetExplores(ctx context.Context, projectUUID uuid.UUID) (*models.CachedExplores, error) {
	var cached models.CachedExplores
	var payload []byte
	err := r.db.QueryRow(ctx, `
		SELECT c.project_id, c.explores, c.updated_at
		FROM cached_explores c
		JOIN projects p ON p.project_id = c.project_id
		WHERE p.project_uuid = $1`, projectUUID,
	).Scan(&cached.ProjectID, &payload, &cached.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cached explores: %w", err)
	}
	if err := json.Unmarshal(payload, &cached.Explores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached explores: %w", err)
	}
	return &cached, nil
}

// SaveExplores upserts the explores snapshot for a project inside tx. A second
// save for the same project fully replaces the prior snapshot.
func (r *exploreCacheRepository) SaveExplores(ctx context.Context, tx pgx.Tx, projectUUID uuid.UUID, explores []models.Explore) (*models.CachedExplores, error) {
	payload, err := json.Marshal(explores)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal explores: %w", err)
	}

	var cached models.CachedExplores
	err = tx.QueryRow(ctx, `
		INSERT INTO cached_explores (project_id, explores, updated_at)
		SELECT project_id, $2, NOW() FROM projects WHERE project_uuid = $1
		ON CONFLICT (project_id) DO UPDATE
		SET explores = EXCLUDED.explores,
		    updated_at = EXCLUDED.updated_at
		RETURNING project_id, updated_at`, projectUUID, payload,
	).Scan(&cached.ProjectID, &cached.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to save cached explores: %w", err)
	}
	cached.Explores = explores
	return &cached, nil
}

// GetWarehouseCatalog returns the cached warehouse schema snapshot.
func (r *exploreCacheRepository) GetWarehouseCatalog(ctx context.Context, projectUUID uuid.UUID) (*models.CachedWarehouse, error) {
	var cached models.CachedWarehouse
	var payload []byte
	err := r.db.QueryRow(ctx, `
		SELECT c.project_id, c.warehouse, c.updated_at
		FROM cached_warehouse c
		JOIN projects p ON p.project_id = c.project_id
		WHERE p.project_uuid = $1`, projectUUID,
	).Scan(&cached.ProjectID, &payload, &cached.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cached warehouse: %w", err)
	}
	if err := json.Unmarshal(payload, &cached.Catalog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached warehouse: %w", err)
	}
	return &cached, nil
}

// SaveWarehouseCatalog upserts the warehouse schema snapshot for a project
// inside tx.
func (r *exploreCacheRepository) SaveWarehouseCatalog(ctx context.Context, tx pgx.Tx, projectUUID uuid.UUID, catalog models.WarehouseCatalog) (*models.CachedWarehouse, error) {
	payload, err := json.Marshal(catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warehouse catalog: %w", err)
	}

	var cached models.CachedWarehouse
	err = tx.QueryRow(ctx, `
		INSERT INTO cached_warehouse (project_id, warehouse, updated_at)
		SELECT project_id, $2, NOW() FROM projects WHERE project_uuid = $1
		ON CONFLICT (project_id) DO UPDATE
		SET warehouse = EXCLUDED.warehouse,
		    updated_at = EXCLUDED.updated_at
		RETURNING project_id, updated_at`, projectUUID, payload,
	).Scan(&cached.ProjectID, &cached.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to save cached warehouse: %w", err)
	}
	cached.Catalog = catalog
	return &cached, nil
}

var _ ExploreCacheRepository = (*exploreCacheRepository)(nil)
