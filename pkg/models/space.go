package models

import (
	"time"

	"github.com/google/uuid"
)

// Space is a folder-like grouping of charts and dashboards within a project,
// with its own sharing rules.
type Space struct {
	ID        int64     `json:"-"`
	UUID      uuid.UUID `json:"uuid"`
	ProjectID int64     `json:"-"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
}

// SpaceUserAccess shares a private space with a user.
type SpaceUserAccess struct {
	SpaceID int64
	UserID  int64
}
