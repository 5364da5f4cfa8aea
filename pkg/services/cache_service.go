package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/repositories"
)

// CacheService maintains the per-project explore and warehouse-catalog cache.
// Compiled explores and the catalog snapshot are produced outside this process
// (the dbt compile step and the warehouse client) and handed in; the service's
// job is to serialize concurrent refreshes per project and store the result.
type CacheService interface {
	// RefreshCache replaces the project's cached snapshots under a per-project
	// advisory lock. Returns false when another refresh holds the lock; the
	// caller should treat that as "someone else is already doing this, skip."
	// An unknown project is a no-op returning false.
	RefreshCache(ctx context.Context, projectUUID uuid.UUID, explores []models.Explore, catalog models.WarehouseCatalog) (bool, error)

	GetExplores(ctx context.Context, projectUUID uuid.UUID) (*models.CachedExplores, error)
	GetWarehouseCatalog(ctx context.Context, projectUUID uuid.UUID) (*models.CachedWarehouse, error)
}

type cacheService struct {
	projectRepo repositories.ProjectRepository
	cacheRepo   repositories.ExploreCacheRepository
	logger      *zap.Logger
}

// NewCacheService creates a new cache service.
func NewCacheService(projectRepo repositories.ProjectRepository, cacheRepo repositories.ExploreCacheRepository, logger *zap.Logger) CacheService {
	return &cacheService{
		projectRepo: projectRepo,
		cacheRepo:   cacheRepo,
		logger:      logger,
	}
}

func (s *cacheService) RefreshCache(ctx context.Context, projectUUID uuid.UUID, explores []models.Explore, catalog models.WarehouseCatalog) (bool, error) {
	refreshed := false
	err := s.projectRepo.TryWithProjectLock(ctx, projectUUID,
		func(ctx context.Context, tx pgx.Tx) error {
			// Both writes go through the lock's transaction so a failed
			// catalog save rolls the explores save back with it.
			if _, err := s.cacheRepo.SaveExplores(ctx, tx, projectUUID, explores); err != nil {
				return err
			}
			if catalog != nil {
				if _, err := s.cacheRepo.SaveWarehouseCatalog(ctx, tx, projectUUID, catalog); err != nil {
					return err
				}
			}
			refreshed = true
			return nil
		},
		func(ctx context.Context) error {
			s.logger.Info("Cache refresh already in progress, skipping",
				zap.String("project_uuid", projectUUID.String()))
			return nil
		},
	)
	if err != nil {
		return false, err
	}
	return refreshed, nil
}

func (s *cacheService) GetExplores(ctx context.Context, projectUUID uuid.UUID) (*models.CachedExplores, error) {
	return s.cacheRepo.GetExplores(ctx, projectUUID)
}

func (s *cacheService) GetWarehouseCatalog(ctx context.Context, projectUUID uuid.UUID) (*models.CachedWarehouse, error) {
	return s.cacheRepo.GetWarehouseCatalog(ctx, projectUUID)
}

var _ CacheService = (*cacheService)(nil)
