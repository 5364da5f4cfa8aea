package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an organization member.
type User struct {
	ID             int64     `json:"-"`
	UUID           uuid.UUID `json:"uuid"`
	OrganizationID int64     `json:"-"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProjectMemberRole is a user's role within a project.
type ProjectMemberRole string

const (
	RoleViewer ProjectMemberRole = "viewer"
	RoleEditor ProjectMemberRole = "editor"
	RoleAdmin  ProjectMemberRole = "admin"
)

// IsValid reports whether the role is one of the known project roles.
func (r ProjectMemberRole) IsValid() bool {
	switch r {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// ProjectMember is a user's membership in a project, joined against the
// user's primary email for display.
type ProjectMember struct {
	UserUUID  uuid.UUID         `json:"user_uuid"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Role      ProjectMemberRole `json:"role"`
}
