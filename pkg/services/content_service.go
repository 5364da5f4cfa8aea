package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/repositories"
)

// ContentService manages spaces, saved charts and dashboards. Callers address
// content by public UUID; resolution to internal ids happens here.
type ContentService interface {
	CreateSpace(ctx context.Context, projectUUID uuid.UUID, name string, isPrivate bool) (*models.Space, error)
	ListSpaces(ctx context.Context, projectUUID uuid.UUID) ([]*models.Space, error)
	// ShareSpace grants a user access to a space. The user is resolved by
	// email within the organization that owns the space.
	ShareSpace(ctx context.Context, spaceUUID uuid.UUID, email string) error

	CreateChart(ctx context.Context, spaceUUID uuid.UUID, chart *models.SavedChart, version *models.ChartVersion) (*models.SavedChart, error)
	AddChartVersion(ctx context.Context, chartUUID uuid.UUID, version *models.ChartVersion) error
	GetLatestChartVersion(ctx context.Context, chartUUID uuid.UUID) (*models.ChartVersion, error)

	CreateDashboard(ctx context.Context, spaceUUID uuid.UUID, dashboard *models.Dashboard, version *models.DashboardVersion) (*models.Dashboard, error)
	AddDashboardVersion(ctx context.Context, dashboardUUID uuid.UUID, version *models.DashboardVersion) error
	GetLatestDashboardVersion(ctx context.Context, dashboardUUID uuid.UUID) (*models.DashboardVersion, error)
}

type contentService struct {
	projectRepo    repositories.ProjectRepository
	contentRepo    repositories.ContentRepository
	membershipRepo repositories.MembershipRepository
	logger         *zap.Logger
}

// NewContentService creates a new content service.
func NewContentService(projectRepo repositories.ProjectRepository, contentRepo repositories.ContentRepository, membershipRepo repositories.MembershipRepository, logger *zap.Logger) ContentService {
	return &contentService{
		projectRepo:    projectRepo,
		contentRepo:    contentRepo,
		membershipRepo: membershipRepo,
		logger:         logger,
	}
}

func (s *contentService) CreateSpace(ctx context.Context, projectUUID uuid.UUID, name string, isPrivate bool) (*models.Space, error) {
	projectID, err := s.projectRepo.ResolveID(ctx, projectUUID)
	if err != nil {
		return nil, err
	}

	space := &models.Space{ProjectID: projectID, Name: name, IsPrivate: isPrivate}
	if err := s.contentRepo.CreateSpace(ctx, space); err != nil {
		return nil, err
	}

	s.logger.Info("Created space",
		zap.String("project_uuid", projectUUID.String()),
		zap.String("space_uuid", space.UUID.String()),
	)
	return space, nil
}

func (s *contentService) ListSpaces(ctx context.Context, projectUUID uuid.UUID) ([]*models.Space, error) {
	if _, err := s.projectRepo.ResolveID(ctx, projectUUID); err != nil {
		return nil, err
	}
	return s.contentRepo.ListSpaces(ctx, projectUUID)
}

func (s *contentService) ShareSpace(ctx context.Context, spaceUUID uuid.UUID, email string) error {
	spaceID, orgID, err := s.contentRepo.ResolveSpace(ctx, spaceUUID)
	if err != nil {
		return err
	}

	user, err := s.membershipRepo.GetUserByEmail(ctx, orgID, email)
	if err != nil {
		return err
	}

	return s.contentRepo.AddSpaceAccess(ctx, spaceID, user.ID)
}

func (s *contentService) CreateChart(ctx context.Context, spaceUUID uuid.UUID, chart *models.SavedChart, version *models.ChartVersion) (*models.SavedChart, error) {
	spaceID, _, err := s.contentRepo.ResolveSpace(ctx, spaceUUID)
	if err != nil {
		return nil, err
	}

	chart.SpaceID = spaceID
	if err := s.contentRepo.CreateChart(ctx, chart, version); err != nil {
		return nil, err
	}
	return chart, nil
}

func (s *contentService) AddChartVersion(ctx context.Context, chartUUID uuid.UUID, version *models.ChartVersion) error {
	chartID, err := s.contentRepo.ResolveChartID(ctx, chartUUID)
	if err != nil {
		return err
	}
	return s.contentRepo.AddChartVersion(ctx, chartID, version)
}

func (s *contentService) GetLatestChartVersion(ctx context.Context, chartUUID uuid.UUID) (*models.ChartVersion, error) {
	return s.contentRepo.GetLatestChartVersion(ctx, chartUUID)
}

func (s *contentService) CreateDashboard(ctx context.Context, spaceUUID uuid.UUID, dashboard *models.Dashboard, version *models.DashboardVersion) (*models.Dashboard, error) {
	spaceID, _, err := s.contentRepo.ResolveSpace(ctx, spaceUUID)
	if err != nil {
		return nil, err
	}

	dashboard.SpaceID = spaceID
	if err := s.contentRepo.CreateDashboard(ctx, dashboard, version); err != nil {
		return nil, err
	}
	return dashboard, nil
}

func (s *contentService) AddDashboardVersion(ctx context.Context, dashboardUUID uuid.UUID, version *models.DashboardVersion) error {
	dashboardID, err := s.contentRepo.ResolveDashboardID(ctx, dashboardUUID)
	if err != nil {
		return err
	}
	return s.contentRepo.AddDashboardVersion(ctx, dashboardID, version)
}

func (s *contentService) GetLatestDashboardVersion(ctx context.Context, dashboardUUID uuid.UUID) (*models.DashboardVersion, error) {
	return s.contentRepo.GetLatestDashboardVersion(ctx, dashboardUUID)
}

var _ ContentService = (*contentService)(nil)
