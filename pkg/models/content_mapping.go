package models

import "time"

// IDPair records one old-to-new surrogate-key mapping produced by a clone.
type IDPair struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// ContentMapping describes how a preview project's content maps back to its
// source. Written once per clone operation and never mutated afterward; tile
// UUIDs are preserved across the clone so they carry no mapping entry.
type ContentMapping struct {
	Spaces            []IDPair `json:"spaces"`
	Charts            []IDPair `json:"charts"`
	ChartVersions     []IDPair `json:"chartVersions"`
	Dashboards        []IDPair `json:"dashboards"`
	DashboardVersions []IDPair `json:"dashboardVersions"`
}

// PreviewContentMapping is the persisted clone record joining a source project
// to the preview it populated.
type PreviewContentMapping struct {
	ID               int64
	ProjectID        int64
	PreviewProjectID int64
	Mapping          ContentMapping
	CreatedAt        time.Time
}
