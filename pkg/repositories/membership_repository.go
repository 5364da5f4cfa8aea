package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prismbi/prism-engine/pkg/apperrors"
	"github.com/prismbi/prism-engine/pkg/database"
	"github.com/prismbi/prism-engine/pkg/models"
)

// MembershipRepository manages project-level membership rows. All mutations
// are scoped by the project's public id, joined against the numeric id
// internally; internal ids never cross this boundary.
type MembershipRepository interface {
	// ListMembers returns project members joined with their primary email.
	ListMembers(ctx context.Context, projectUUID uuid.UUID) ([]*models.ProjectMember, error)
	// GetUserByEmail resolves a user within an organization by any of their
	// email addresses. Returns apperrors.ErrNotFound for an unknown email.
	GetUserByEmail(ctx context.Context, organizationID int64, email string) (*models.User, error)
	// Add inserts a membership row. A duplicate (project, user) pair returns
	// apperrors.ErrAlreadyExists, detected from the unique-constraint
	// violation rather than a racy pre-check.
	Add(ctx context.Context, projectUUID, userUUID uuid.UUID, role models.ProjectMemberRole) error
	UpdateRole(ctx context.Context, projectUUID, userUUID uuid.UUID, role models.ProjectMemberRole) error
	Remove(ctx context.Context, projectUUID, userUUID uuid.UUID) error
}

type membershipRepository struct {
	db *database.DB
}

// NewMembershipRepository creates a new membership repository.
func NewMembershipRepository(db *database.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// ListMembers lists a project's members with their primary email.
func (r *membershipRepository) ListMembers(ctx context.Context, projectUUID uuid.UUID) ([]*models.ProjectMember, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.user_uuid, e.email, u.first_name, u.last_name, m.role
		FROM project_memberships m
		JOIN projects p ON p.project_id = m.project_id
		JOIN users u ON u.user_id = m.user_id
		JOIN emails e ON e.user_id = u.user_id AND e.is_primary
		WHERE p.project_uuid = $1
		ORDER BY e.email`, projectUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	defer rows.Close()

	var members []*models.ProjectMember
	for rows.Next() {
		var m models.ProjectMember
		if err := rows.Scan(&m.UserUUID, &m.Email, &m.FirstName, &m.LastName, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// GetUserByEmail resolves a user by email within an organization.
func (r *membershipRepository) GetUserByEmail(ctx context.Context, organizationID int64, email string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT u.user_id, u.user_uuid, u.organization_id, u.first_name, u.last_name, u.created_at
		FROM users u
		JOIN emails e ON e.user_id = u.user_id
		WHERE u.organization_id = $1 AND e.email = $2`, organizationID, email,
	).Scan(&u.ID, &u.UUID, &u.OrganizationID, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// Add inserts a membership row for the (project, user) pair.
func (r *membershipRepository) Add(ctx context.Context, projectUUID, userUUID uuid.UUID, role models.ProjectMemberRole) error {
	result, err := r.db.Exec(ctx, `
		INSERT INTO project_memberships (project_id, user_id, role)
		SELECT p.project_id, u.user_id, $3
		FROM projects p, users u
		WHERE p.project_uuid = $1 AND u.user_uuid = $2`,
		projectUUID, userUUID, role)
	if err != nil {
		// Unique violation on (project_id, user_id) - PostgreSQL error code 23505.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to add project member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateRole changes a member's role.
func (r *membershipRepository) UpdateRole(ctx context.Context, projectUUID, userUUID uuid.UUID, role models.ProjectMemberRole) error {
	result, err := r.db.Exec(ctx, `
		UPDATE project_memberships m
		SET role = $3
		FROM projects p, users u
		WHERE m.project_id = p.project_id AND m.user_id = u.user_id
		  AND p.project_uuid = $1 AND u.user_uuid = $2`,
		projectUUID, userUUID, role)
	if err != nil {
		return fmt.Errorf("failed to update project member role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Remove deletes a membership row.
func (r *membershipRepository) Remove(ctx context.Context, projectUUID, userUUID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM project_memberships m
		USING projects p, users u
		WHERE m.project_id = p.project_id AND m.user_id = u.user_id
		  AND p.project_uuid = $1 AND u.user_uuid = $2`,
		projectUUID, userUUID)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

var _ MembershipRepository = (*membershipRepository)(nil)
