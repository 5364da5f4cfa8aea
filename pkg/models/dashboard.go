package models

import (
	"time"

	"github.com/google/uuid"
)

// Dashboard is a persisted, versioned arrangement of tiles referencing charts
// or static content.
type Dashboard struct {
	ID          int64     `json:"-"`
	UUID        uuid.UUID `json:"uuid"`
	SpaceID     int64     `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DashboardVersion is an immutable snapshot of a dashboard's tile layout.
type DashboardVersion struct {
	ID          int64     `json:"-"`
	DashboardID int64     `json:"-"`
	CreatedAt   time.Time `json:"created_at"`

	Tiles []DashboardTile `json:"tiles,omitempty"`
}

// TileType selects which content variant a tile holds.
type TileType string

const (
	TileTypeChart    TileType = "saved_chart"
	TileTypeLoom     TileType = "loom"
	TileTypeMarkdown TileType = "markdown"
)

// DashboardTile is a positioned cell on a dashboard version. The tile UUID is
// stable identity: downstream consumers (scheduled deliveries, comments) look
// tiles up by UUID, so cloning preserves it rather than generating a new one.
// Uniqueness is scoped to (dashboard_version_id, uuid).
type DashboardTile struct {
	DashboardVersionID int64     `json:"-"`
	UUID               uuid.UUID `json:"uuid"`
	Type               TileType  `json:"type"`
	XOffset            int       `json:"x"`
	YOffset            int       `json:"y"`
	Width              int       `json:"w"`
	Height             int       `json:"h"`

	// Exactly one of these is non-nil, matching Type.
	Chart    *ChartTileContent    `json:"chart,omitempty"`
	Loom     *LoomTileContent     `json:"loom,omitempty"`
	Markdown *MarkdownTileContent `json:"markdown,omitempty"`
}

// ChartTileContent references a saved chart. SavedChartID may be nil for a
// tile whose chart was deleted.
type ChartTileContent struct {
	SavedChartID *int64 `json:"-"`
	HideTitle    bool   `json:"hide_title"`
}

// LoomTileContent embeds an external video or link.
type LoomTileContent struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	HideTitle bool   `json:"hide_title"`
}

// MarkdownTileContent holds static markdown text.
type MarkdownTileContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
