// Package models contains domain types for prism-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectType distinguishes long-lived projects from ephemeral previews.
type ProjectType string

const (
	// ProjectTypeDefault is a regular, long-lived project.
	ProjectTypeDefault ProjectType = "DEFAULT"
	// ProjectTypePreview is an ephemeral project populated by cloning another
	// project's content, used for isolated testing of changes.
	ProjectTypePreview ProjectType = "PREVIEW"
)

// Project is the top-level tenant-scoped container for a connected warehouse
// and its semantic model. ID is the internal surrogate key and never crosses
// the API boundary; UUID is the public identifier.
type Project struct {
	ID             int64       `json:"-"`
	UUID           uuid.UUID   `json:"uuid"`
	OrganizationID int64       `json:"-"`
	Name           string      `json:"name"`
	Type           ProjectType `json:"type"`

	// DbtConnection and WarehouseConnection are stored encrypted and are only
	// populated on reads that explicitly request credentials.
	DbtConnection       ConnectionConfig `json:"dbt_connection,omitempty"`
	WarehouseType       string           `json:"warehouse_type"`
	WarehouseConnection ConnectionConfig `json:"warehouse_connection,omitempty"`

	TableSelection TableSelection `json:"table_selection"`

	// CopiedFromProjectUUID backlinks a preview to the project it was cloned
	// from. Nil for regular projects.
	CopiedFromProjectUUID *uuid.UUID `json:"copied_from_project_uuid,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableSelectionType controls which dbt models are exposed in a project.
type TableSelectionType string

const (
	TableSelectionTypeAll       TableSelectionType = "ALL"
	TableSelectionTypeWithTags  TableSelectionType = "WITH_TAGS"
	TableSelectionTypeWithNames TableSelectionType = "WITH_NAMES"
)

// TableSelection is the project's model-filtering configuration, stored as
// JSONB on the projects table.
type TableSelection struct {
	Type  TableSelectionType `json:"type"`
	Value []string           `json:"value,omitempty"`
}

// Organization owns projects. Exactly one organization owns each project.
type Organization struct {
	ID   int64     `json:"-"`
	UUID uuid.UUID `json:"uuid"`
	Name string    `json:"name"`
}
