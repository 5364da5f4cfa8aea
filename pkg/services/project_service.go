// Package services contains the application logic layered over repositories.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/repositories"
)

// ProjectService manages projects and preview cloning.
type ProjectService interface {
	Get(ctx context.Context, projectUUID uuid.UUID) (*models.Project, error)
	// Update writes project settings. Secret fields omitted from the incoming
	// connection configs are filled from the stored configs before the write,
	// so clients never have to echo secrets back.
	Update(ctx context.Context, projectUUID uuid.UUID, incoming *models.Project) (*models.Project, error)
	Delete(ctx context.Context, projectUUID uuid.UUID) error

	// CreatePreview creates an empty preview project copied from the source,
	// then clones the source's full content graph into it.
	CreatePreview(ctx context.Context, sourceProjectUUID uuid.UUID, name string) (*models.Project, error)
	// GetContentMapping returns the clone record for a preview project.
	GetContentMapping(ctx context.Context, previewProjectUUID uuid.UUID) (*models.PreviewContentMapping, error)
}

type projectService struct {
	projectRepo   repositories.ProjectRepository
	duplicateRepo repositories.DuplicateRepository
	logger        *zap.Logger
}

// NewProjectService creates a new project service.
func NewProjectService(projectRepo repositories.ProjectRepository, duplicateRepo repositories.DuplicateRepository, logger *zap.Logger) ProjectService {
	return &projectService{
		projectRepo:   projectRepo,
		duplicateRepo: duplicateRepo,
		logger:        logger,
	}
}

func (s *projectService) Get(ctx context.Context, projectUUID uuid.UUID) (*models.Project, error) {
	return s.projectRepo.GetByUUID(ctx, projectUUID)
}

func (s *projectService) Update(ctx context.Context, projectUUID uuid.UUID, incoming *models.Project) (*models.Project, error) {
	stored, err := s.projectRepo.GetWithCredentials(ctx, projectUUID)
	if err != nil {
		return nil, err
	}

	merged := *incoming
	merged.UUID = projectUUID
	if merged.Name == "" {
		merged.Name = stored.Name
	}
	if incoming.DbtConnection != nil && stored.DbtConnection != nil {
		merged.DbtConnection = models.MergeMissingDbtSecrets(incoming.DbtConnection, stored.DbtConnection)
	}
	if incoming.WarehouseConnection != nil && stored.WarehouseConnection != nil {
		merged.WarehouseConnection = models.MergeMissingWarehouseSecrets(incoming.WarehouseConnection, stored.WarehouseConnection)
	}

	if err := s.projectRepo.Update(ctx, &merged); err != nil {
		return nil, err
	}
	return s.projectRepo.GetByUUID(ctx, projectUUID)
}

func (s *projectService) Delete(ctx context.Context, projectUUID uuid.UUID) error {
	return s.projectRepo.Delete(ctx, projectUUID)
}

// CreatePreview provisions the preview project row first; the cloner then
// populates it in its own all-or-nothing transaction.
func (s *projectService) CreatePreview(ctx context.Context, sourceProjectUUID uuid.UUID, name string) (*models.Project, error) {
	source, err := s.projectRepo.GetWithCredentials(ctx, sourceProjectUUID)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = fmt.Sprintf("%s [preview]", source.Name)
	}
	preview := &models.Project{
		OrganizationID:        source.OrganizationID,
		Name:                  name,
		Type:                  models.ProjectTypePreview,
		DbtConnection:         source.DbtConnection,
		WarehouseType:         source.WarehouseType,
		WarehouseConnection:   source.WarehouseConnection,
		TableSelection:        source.TableSelection,
		CopiedFromProjectUUID: &source.UUID,
	}
	if err := s.projectRepo.Create(ctx, preview); err != nil {
		return nil, err
	}

	mapping, err := s.duplicateRepo.DuplicateContent(ctx, source.UUID, preview.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate content into preview %s: %w", preview.UUID, err)
	}

	s.logger.Info("Created preview project",
		zap.String("source_project_uuid", source.UUID.String()),
		zap.String("preview_project_uuid", preview.UUID.String()),
		zap.Int("spaces", len(mapping.Spaces)),
		zap.Int("charts", len(mapping.Charts)),
		zap.Int("dashboards", len(mapping.Dashboards)),
	)
	return preview, nil
}

func (s *projectService) GetContentMapping(ctx context.Context, previewProjectUUID uuid.UUID) (*models.PreviewContentMapping, error) {
	return s.duplicateRepo.GetContentMapping(ctx, previewProjectUUID)
}

var _ ProjectService = (*projectService)(nil)
