package models

import (
	"encoding/json"
	"time"
)

// Explore is compiled semantic-model metadata describing a queryable table
// and its dimensions and metrics. The compiled shape is produced by the dbt
// compiler and treated as an opaque document by the cache; only the name is
// lifted out for indexing.
type Explore struct {
	Name     string          `json:"name"`
	Label    string          `json:"label,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
	Compiled json.RawMessage `json:"compiled,omitempty"`
}

// CachedExplores is the per-project snapshot of compiled explores. At most one
// row exists per project; every refresh replaces it wholesale.
type CachedExplores struct {
	ProjectID int64
	Explores  []Explore
	UpdatedAt time.Time
}

// WarehouseCatalog maps database -> schema -> table -> column -> type, as
// returned by the warehouse client during a cache refresh.
type WarehouseCatalog map[string]map[string]map[string]map[string]string

// CachedWarehouse is the per-project snapshot of the warehouse schema catalog,
// replaced wholesale on every refresh.
type CachedWarehouse struct {
	ProjectID int64
	Catalog   WarehouseCatalog
	UpdatedAt time.Time
}
