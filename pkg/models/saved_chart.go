package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SavedChart is a persisted, versioned query definition with visualization
// settings. Only the version with the maximum version id is "current".
type SavedChart struct {
	ID          int64     `json:"-"`
	UUID        uuid.UUID `json:"uuid"`
	SpaceID     int64     `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChartVersion is an immutable snapshot of a saved chart's query and
// visualization configuration.
type ChartVersion struct {
	ID           int64           `json:"-"`
	UUID         uuid.UUID       `json:"uuid"`
	SavedChartID int64           `json:"-"`
	ExploreName  string          `json:"explore_name"`
	Filters      json.RawMessage `json:"filters,omitempty"`
	RowLimit     int             `json:"row_limit"`
	ChartType    string          `json:"chart_type"`
	ChartConfig  json.RawMessage `json:"chart_config,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`

	TableCalculations []TableCalculation `json:"table_calculations,omitempty"`
	Sorts             []SortField        `json:"sorts,omitempty"`
	Fields            []SelectedField    `json:"fields,omitempty"`
	AdditionalMetrics []AdditionalMetric `json:"additional_metrics,omitempty"`
}

// TableCalculation is a version-scoped derived column expressed in raw SQL.
type TableCalculation struct {
	Name              string `json:"name"`
	DisplayName       string `json:"display_name"`
	CalculationRawSQL string `json:"calculation_raw_sql"`
	Order             int    `json:"order"`
}

// SortField orders chart results by a field.
type SortField struct {
	FieldName  string `json:"field_name"`
	Descending bool   `json:"descending"`
	Order      int    `json:"order"`
}

// FieldType distinguishes dimensions from metrics in a chart's field list.
type FieldType string

const (
	FieldTypeDimension FieldType = "dimension"
	FieldTypeMetric    FieldType = "metric"
)

// SelectedField is a dimension or metric selected into a chart version.
type SelectedField struct {
	Name      string    `json:"name"`
	FieldType FieldType `json:"field_type"`
	Order     int       `json:"order"`
}

// AdditionalMetric is an ad-hoc metric defined on a chart version rather than
// in the semantic model.
type AdditionalMetric struct {
	Table       string `json:"table"`
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	Type        string `json:"type"`
	SQL         string `json:"sql"`
	Description string `json:"description,omitempty"`
}
