package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/apperrors"
	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/repositories"
)

// MembershipService manages project access control lists.
type MembershipService interface {
	List(ctx context.Context, projectUUID uuid.UUID) ([]*models.ProjectMember, error)
	// AddByEmail resolves the user by email within the project's organization
	// and adds a membership row. Unknown email returns apperrors.ErrNotFound;
	// an existing membership returns apperrors.ErrAlreadyExists.
	AddByEmail(ctx context.Context, projectUUID uuid.UUID, email string, role models.ProjectMemberRole) error
	UpdateRole(ctx context.Context, projectUUID, userUUID uuid.UUID, role models.ProjectMemberRole) error
	Remove(ctx context.Context, projectUUID, userUUID uuid.UUID) error
}

type membershipService struct {
	projectRepo    repositories.ProjectRepository
	membershipRepo repositories.MembershipRepository
	logger         *zap.Logger
}

// NewMembershipService creates a new membership service.
func NewMembershipService(projectRepo repositories.ProjectRepository, membershipRepo repositories.MembershipRepository, logger *zap.Logger) MembershipService {
	return &membershipService{
		projectRepo:    projectRepo,
		membershipRepo: membershipRepo,
		logger:         logger,
	}
}

func (s *membershipService) List(ctx context.Context, projectUUID uuid.UUID) ([]*models.ProjectMember, error) {
	return s.membershipRepo.ListMembers(ctx, projectUUID)
}

func (s *membershipService) AddByEmail(ctx context.Context, projectUUID uuid.UUID, email string, role models.ProjectMemberRole) error {
	if !role.IsValid() {
		return apperrors.ErrInvalidRole
	}

	project, err := s.projectRepo.GetByUUID(ctx, projectUUID)
	if err != nil {
		return err
	}

	user, err := s.membershipRepo.GetUserByEmail(ctx, project.OrganizationID, email)
	if err != nil {
		return err
	}

	if err := s.membershipRepo.Add(ctx, projectUUID, user.UUID, role); err != nil {
		return err
	}

	s.logger.Info("Added project member",
		zap.String("project_uuid", projectUUID.String()),
		zap.String("user_uuid", user.UUID.String()),
		zap.String("role", string(role)),
	)
	return nil
}

func (s *membershipService) UpdateRole(ctx context.Context, projectUUID, userUUID uuid.UUID, role models.ProjectMemberRole) error {
	if !role.IsValid() {
		return apperrors.ErrInvalidRole
	}
	return s.membershipRepo.UpdateRole(ctx, projectUUID, userUUID, role)
}

func (s *membershipService) Remove(ctx context.Context, projectUUID, userUUID uuid.UUID) error {
	return s.membershipRepo.Remove(ctx, projectUUID, userUUID)
}

var _ MembershipService = (*membershipService)(nil)
