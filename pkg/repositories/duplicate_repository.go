package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prismbi/prism-engine/pkg/apperrors"
	"github.com/prismbi/prism-engine/pkg/database"
	"github.com/prismbi/prism-engine/pkg/models"
)

// DuplicateRepository clones a project's entire content graph - spaces, saved
// charts with their latest version and sub-entities, dashboards with their
// latest version, tiles and tile contents - into a preview project, rewriting
// every internal foreign key to the newly created rows.
type DuplicateRepository interface {
	// DuplicateContent runs the clone as one transaction: afterwards either
	// the full preview graph and its mapping record exist, or nothing does.
	// Calling it twice for the same pair produces two independent clones.
	DuplicateContent(ctx context.Context, sourceProjectUUID, previewProjectUUID uuid.UUID) (*models.ContentMapping, error)

	// GetContentMapping returns the most recent mapping record written for a
	// preview project.
	GetContentMapping(ctx context.Context, previewProjectUUID uuid.UUID) (*models.PreviewContentMapping, error)
}

type duplicateRepository struct {
	db *database.DB
}

// NewDuplicateRepository creates a new duplicate repository.
func NewDuplicateRepository(db *database.DB) DuplicateRepository {
	return &duplicateRepository{db: db}
}

// idMap accumulates old surrogate key -> new surrogate key for one entity
// kind. Lookups fail loudly: an id missing from the map means the graph
// traversal is broken, and writing a null or dangling foreign key instead
// would corrupt the clone silently.
type idMap struct {
	entity string
	ids    map[int64]int64
	order  []int64
}

func newIDMap(entity string) *idMap {
	return &idMap{entity: entity, ids: make(map[int64]int64)}
}

func (m *idMap) put(oldID, newID int64) {
	if _, exists := m.ids[oldID]; !exists {
		m.order = append(m.order, oldID)
	}
	m.ids[oldID] = newID
}

func (m *idMap) get(old int64) (int64, error) {
	n, ok := m.ids[old]
	if !ok {
		return 0, fmt.Errorf("duplicate content: no cloned %s for id %d", m.entity, old)
	}
	return n, nil
}

func (m *idMap) olds() []int64 {
	return m.order
}

// pairs returns the mapping in insertion order for the persisted record.
func (m *idMap) pairs() []models.IDPair {
	out := make([]models.IDPair, 0, len(m.order))
	for _, old := range m.order {
		out = append(out, models.IDPair{From: old, To: m.ids[old]})
	}
	return out
}

// DuplicateContent copies the source project's content graph into the preview
// project. Steps run in strict dependency order; each builds an old-to-new id
// map consumed by later steps.
func (r *duplicateRepository) DuplicateContent(ctx context.Context, sourceProjectUUID, previewProjectUUID uuid.UUID) (*models.ContentMapping, error) {
	var mapping *models.ContentMapping
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		sourceID, err := resolveProjectIDTx(ctx, tx, sourceProjectUUID)
		if err != nil {
			return err
		}
		previewID, err := resolveProjectIDTx(ctx, tx, previewProjectUUID)
		if err != nil {
			return err
		}

		spaceMap, err := copySpaces(ctx, tx, sourceID, previewID)
		if err != nil {
			return err
		}
		if err := copySpaceAccess(ctx, tx, spaceMap); err != nil {
			return err
		}

		chartMap, err := copyCharts(ctx, tx, spaceMap)
		if err != nil {
			return err
		}
		chartVersionMap, err := copyLatestChartVersions(ctx, tx, chartMap)
		if err != nil {
			return err
		}
		if err := copyChartVersionChildren(ctx, tx, chartVersionMap); err != nil {
			return err
		}

		dashboardMap, err := copyDashboards(ctx, tx, spaceMap)
		if err != nil {
			return err
		}
		dashboardVersionMap, err := copyLatestDashboardVersions(ctx, tx, dashboardMap)
		if err != nil {
			return err
		}
		if err := copyDashboardTiles(ctx, tx, dashboardVersionMap, chartMap); err != nil {
			return err
		}

		mapping = &models.ContentMapping{
			Spaces:            spaceMap.pairs(),
			Charts:            chartMap.pairs(),
			ChartVersions:     chartVersionMap.pairs(),
			Dashboards:        dashboardMap.pairs(),
			DashboardVersions: dashboardVersionMap.pairs(),
		}
		return insertContentMapping(ctx, tx, sourceID, previewID, mapping)
	})
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

func resolveProjectIDTx(ctx context.Context, tx pgx.Tx, projectUUID uuid.UUID) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT project_id FROM projects WHERE project_uuid = $1`, projectUUID).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("project %s: %w", projectUUID, apperrors.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to resolve project id: %w", err)
	}
	return id, nil
}

// copySpaces copies every space of the source project, assigning new
// surrogate and public ids.
func copySpaces(ctx context.Context, tx pgx.Tx, sourceID, previewID int64) (*idMap, error) {
	rows, err := tx.Query(ctx, `
		SELECT space_id, name, is_private
		FROM spaces WHERE project_id = $1 ORDER BY space_id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read source spaces: %w", err)
	}
	type spaceRow struct {
		id        int64
		name      string
		isPrivate bool
	}
	sources, err := collectRows(rows, func(row pgx.Rows) (spaceRow, error) {
		var s spaceRow
		err := row.Scan(&s.id, &s.name, &s.isPrivate)
		return s, err
	})
	if err != nil {
		return nil, err
	}

	spaceMap := newIDMap("space")
	for _, s := range sources {
		var newID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO spaces (space_uuid, project_id, name, is_private)
			VALUES (gen_random_uuid(), $1, $2, $3)
			RETURNING space_id`, previewID, s.name, s.isPrivate,
		).Scan(&newID)
		if err != nil {
			return nil, fmt.Errorf("failed to copy space %d: %w", s.id, err)
		}
		spaceMap.put(s.id, newID)
	}
	return spaceMap, nil
}

// copySpaceAccess copies sharing rows for the copied space set, rewriting the
// space foreign key.
func copySpaceAccess(ctx context.Context, tx pgx.Tx, spaceMap *idMap) error {
	for _, oldSpaceID := range spaceMap.olds() {
		newSpaceID, err := spaceMap.get(oldSpaceID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO space_user_access (space_id, user_id)
			SELECT $2, user_id FROM space_user_access WHERE space_id = $1`,
			oldSpaceID, newSpaceID)
		if err != nil {
			return fmt.Errorf("failed to copy space access for space %d: %w", oldSpaceID, err)
		}
	}
	return nil
}

// copyCharts copies all charts whose space was copied, rewriting space_id.
func copyCharts(ctx context.Context, tx pgx.Tx, spaceMap *idMap) (*idMap, error) {
	chartMap := newIDMap("chart")
	if len(spaceMap.olds()) == 0 {
		return chartMap, nil
	}
	rows, err := tx.Query(ctx, `
		SELECT saved_query_id, space_id, name, description
		FROM saved_queries WHERE space_id = ANY($1) ORDER BY saved_query_id`, spaceMap.olds())
	if err != nil {
		return nil, fmt.Errorf("failed to read source charts: %w", err)
	}
	type chartRow struct {
		id          int64
		spaceID     int64
		name        string
		description string
	}
	sources, err := collectRows(rows, func(row pgx.Rows) (chartRow, error) {
		var c chartRow
		err := row.Scan(&c.id, &c.spaceID, &c.name, &c.description)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	for _, c := range sources {
		newSpaceID, err := spaceMap.get(c.spaceID)
		if err != nil {
			return nil, err
		}
		var newID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO saved_queries (saved_query_uuid, space_id, name, description)
			VALUES (gen_random_uuid(), $1, $2, $3)
			RETURNING saved_query_id`, newSpaceID, c.name, c.description,
		).Scan(&newID)
		if err != nil {
			return nil, fmt.Errorf("failed to copy chart %d: %w", c.id, err)
		}
		chartMap.put(c.id, newID)
	}
	return chartMap, nil
}

// copyLatestChartVersions copies, for each copied chart, only the version row
// with the maximum version id. Charts with zero versions contribute nothing.
func copyLatestChartVersions(ctx context.Context, tx pgx.Tx, chartMap *idMap) (*idMap, error) {
	versionMap := newIDMap("chart version")
	if len(chartMap.olds()) == 0 {
		return versionMap, nil
	}
	rows, err := tx.Query(ctx, `
		SELECT v.saved_queries_version_id, v.saved_query_id, v.explore_name,
			v.filters, v.row_limit, v.chart_type, v.chart_config
		FROM saved_queries_versions v
		JOIN (
			SELECT saved_query_id, MAX(saved_queries_version_id) AS latest_version_id
			FROM saved_queries_versions
			WHERE saved_query_id = ANY($1)
			GROUP BY saved_query_id
		) latest ON latest.latest_version_id = v.saved_queries_version_id
		ORDER BY v.saved_queries_version_id`, chartMap.olds())
	if err != nil {
		return nil, fmt.Errorf("failed to read latest chart versions: %w", err)
	}
	type versionRow struct {
		id          int64
		chartID     int64
		exploreName string
		filters     []byte
		rowLimit    int
		chartType   string
		chartConfig []byte
	}
	sources, err := collectRows(rows, func(row pgx.Rows) (versionRow, error) {
		var v versionRow
		err := row.Scan(&v.id, &v.chartID, &v.exploreName, &v.filters, &v.rowLimit, &v.chartType, &v.chartConfig)
		return v, err
	})
	if err != nil {
		return nil, err
	}

	for _, v := range sources {
		newChartID, err := chartMap.get(v.chartID)
		if err != nil {
			return nil, err
		}
		var newID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO saved_queries_versions (saved_queries_version_uuid, saved_query_id,
				explore_name, filters, row_limit, chart_type, chart_config)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
			RETURNING saved_queries_version_id`,
			newChartID, v.exploreName, v.filters, v.rowLimit, v.chartType, v.chartConfig,
		).Scan(&newID)
		if err != nil {
			return nil, fmt.Errorf("failed to copy chart version %d: %w", v.id, err)
		}
		versionMap.put(v.id, newID)
	}
	return versionMap, nil
}

// copyChartVersionChildren copies the four chart-version dependent tables.
// A table with no rows for the copied version set is a no-op, not an error.
func copyChartVersionChildren(ctx context.Context, tx pgx.Tx, versionMap *idMap) error {
	copies := []struct {
		name string
		sql  string
	}{
		{"table calculations", `
			INSERT INTO saved_queries_version_table_calculations
				(saved_queries_version_id, name, display_name, calculation_raw_sql, "order")
			SELECT $2, name, display_name, calculation_raw_sql, "order"
			FROM saved_queries_version_table_calculations
			WHERE saved_queries_version_id = $1`},
		{"sorts", `
			INSERT INTO saved_queries_version_sorts
				(saved_queries_version_id, field_name, descending, "order")
			SELECT $2, field_name, descending, "order"
			FROM saved_queries_version_sorts
			WHERE saved_queries_version_id = $1`},
		{"fields", `
			INSERT INTO saved_queries_version_fields
				(saved_queries_version_id, name, field_type, "order")
			SELECT $2, name, field_type, "order"
			FROM saved_queries_version_fields
			WHERE saved_queries_version_id = $1`},
		{"additional metrics", `
			INSERT INTO saved_queries_version_additional_metrics
				(saved_queries_version_id, "table", name, label, type, sql, description)
			SELECT $2, "table", name, label, type, sql, description
			FROM saved_queries_version_additional_metrics
			WHERE saved_queries_version_id = $1`},
	}

	for _, oldVersionID := range versionMap.olds() {
		newVersionID, err := versionMap.get(oldVersionID)
		if err != nil {
			return err
		}
		for _, c := range copies {
			if _, err := tx.Exec(ctx, c.sql, oldVersionID, newVersionID); err != nil {
				return fmt.Errorf("failed to copy %s for chart version %d: %w", c.name, oldVersionID, err)
			}
		}
	}
	return nil
}

// copyDashboards copies all dashboards whose space was copied.
func copyDashboards(ctx context.Context, tx pgx.Tx, spaceMap *idMap) (*idMap, error) {
	dashboardMap := newIDMap("dashboard")
	if len(spaceMap.olds()) == 0 {
		return dashboardMap, nil
	}
	rows, err := tx.Query(ctx, `
		SELECT dashboard_id, space_id, name, description
		FROM dashboards WHERE space_id = ANY($1) ORDER BY dashboard_id`, spaceMap.olds())
	if err != nil {
		return nil, fmt.Errorf("failed to read source dashboards: %w", err)
	}
	type dashboardRow struct {
		id          int64
		spaceID     int64
		name        string
		description string
	}
	sources, err := collectRows(rows, func(row pgx.Rows) (dashboardRow, error) {
		var d dashboardRow
		err := row.Scan(&d.id, &d.spaceID, &d.name, &d.description)
		return d, err
	})
	if err != nil {
		return nil, err
	}

	for _, d := range sources {
		newSpaceID, err := spaceMap.get(d.spaceID)
		if err != nil {
			return nil, err
		}
		var newID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO dashboards (dashboard_uuid, space_id, name, description)
			VALUES (gen_random_uuid(), $1, $2, $3)
			RETURNING dashboard_id`, newSpaceID, d.name, d.description,
		).Scan(&newID)
		if err != nil {
			return nil, fmt.Errorf("failed to copy dashboard %d: %w", d.id, err)
		}
		dashboardMap.put(d.id, newID)
	}
	return dashboardMap, nil
}

// copyLatestDashboardVersions copies, per copied dashboard, only the version
// with the maximum version id.
func copyLatestDashboardVersions(ctx context.Context, tx pgx.Tx, dashboardMap *idMap) (*idMap, error) {
	versionMap := newIDMap("dashboard version")
	if len(dashboardMap.olds()) == 0 {
		return versionMap, nil
	}
	rows, err := tx.Query(ctx, `
		SELECT v.dashboard_version_id, v.dashboard_id
		FROM dashboard_versions v
		JOIN (
			SELECT dashboard_id, MAX(dashboard_version_id) AS latest_version_id
			FROM dashboard_versions
			WHERE dashboard_id = ANY($1)
			GROUP BY dashboard_id
		) latest ON latest.latest_version_id = v.dashboard_version_id
		ORDER BY v.dashboard_version_id`, dashboardMap.olds())
	if err != nil {
		return nil, fmt.Errorf("failed to read latest dashboard versions: %w", err)
	}
	type versionRow struct {
		id          int64
		dashboardID int64
	}
	sources, err := collectRows(rows, func(row pgx.Rows) (versionRow, error) {
		var v versionRow
		err := row.Scan(&v.id, &v.dashboardID)
		return v, err
	})
	if err != nil {
		return nil, err
	}

	for _, v := range sources {
		newDashboardID, err := dashboardMap.get(v.dashboardID)
		if err != nil {
			return nil, err
		}
		var newID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO dashboard_versions (dashboard_id)
			VALUES ($1)
			RETURNING dashboard_version_id`, newDashboardID,
		).Scan(&newID)
		if err != nil {
			return nil, fmt.Errorf("failed to copy dashboard version %d: %w", v.id, err)
		}
		versionMap.put(v.id, newID)
	}
	return versionMap, nil
}

// copyDashboardTiles copies tiles and their content rows for the copied
// dashboard-version set. Tile UUIDs are preserved verbatim: downstream
// consumers look tiles up by UUID, and tile uniqueness is scoped to the
// dashboard version, so the copy cannot collide with the source. Chart-tile
// rows additionally rewrite the referenced chart id through the chart map.
func copyDashboardTiles(ctx context.Context, tx pgx.Tx, versionMap *idMap, chartMap *idMap) error {
	for _, oldVersionID := range versionMap.olds() {
		newVersionID, err := versionMap.get(oldVersionID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO dashboard_tiles (dashboard_version_id, dashboard_tile_uuid,
				tile_type, x_offset, y_offset, width, height)
			SELECT $2, dashboard_tile_uuid, tile_type, x_offset, y_offset, width, height
			FROM dashboard_tiles WHERE dashboard_version_id = $1`,
			oldVersionID, newVersionID)
		if err != nil {
			return fmt.Errorf("failed to copy tiles for dashboard version %d: %w", oldVersionID, err)
		}

		// Chart tiles: each row's saved_chart_id must be rewritten, so they
		// are copied row by row rather than set-at-once.
		rows, err := tx.Query(ctx, `
			SELECT dashboard_tile_uuid, saved_chart_id, hide_title
			FROM dashboard_tile_charts WHERE dashboard_version_id = $1`, oldVersionID)
		if err != nil {
			return fmt.Errorf("failed to read chart tiles for dashboard version %d: %w", oldVersionID, err)
		}
		type chartTileRow struct {
			tileUUID     uuid.UUID
			savedChartID *int64
			hideTitle    bool
		}
		chartTiles, err := collectRows(rows, func(row pgx.Rows) (chartTileRow, error) {
			var t chartTileRow
			err := row.Scan(&t.tileUUID, &t.savedChartID, &t.hideTitle)
			return t, err
		})
		if err != nil {
			return err
		}
		for _, t := range chartTiles {
			var newChartID *int64
			if t.savedChartID != nil {
				mapped, err := chartMap.get(*t.savedChartID)
				if err != nil {
					return err
				}
				newChartID = &mapped
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO dashboard_tile_charts (dashboard_version_id, dashboard_tile_uuid, saved_chart_id, hide_title)
				VALUES ($1, $2, $3, $4)`,
				newVersionID, t.tileUUID, newChartID, t.hideTitle)
			if err != nil {
				return fmt.Errorf("failed to copy chart tile %s: %w", t.tileUUID, err)
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO dashboard_tile_looms (dashboard_version_id, dashboard_tile_uuid, title, url, hide_title)
			SELECT $2, dashboard_tile_uuid, title, url, hide_title
			FROM dashboard_tile_looms WHERE dashboard_version_id = $1`,
			oldVersionID, newVersionID)
		if err != nil {
			return fmt.Errorf("failed to copy loom tiles for dashboard version %d: %w", oldVersionID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO dashboard_tile_markdowns (dashboard_version_id, dashboard_tile_uuid, title, content)
			SELECT $2, dashboard_tile_uuid, title, content
			FROM dashboard_tile_markdowns WHERE dashboard_version_id = $1`,
			oldVersionID, newVersionID)
		if err != nil {
			return fmt.Errorf("failed to copy markdown tiles for dashboard version %d: %w", oldVersionID, err)
		}
	}
	return nil
}

func insertContentMapping(ctx context.Context, tx pgx.Tx, sourceID, previewID int64, mapping *models.ContentMapping) error {
	payload, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal content mapping: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO preview_content_mappings (project_id, preview_project_id, content_mapping)
		VALUES ($1, $2, $3)`, sourceID, previewID, payload)
	if err != nil {
		return fmt.Errorf("failed to insert content mapping: %w", err)
	}
	return nil
}

// GetContentMapping returns the newest mapping record for a preview project.
func (r *duplicateRepository) GetContentMapping(ctx context.Context, previewProjectUUID uuid.UUID) (*models.PreviewContentMapping, error) {
	var record models.PreviewContentMapping
	var payload []byte
	err := r.db.QueryRow(ctx, `
		SELECT m.preview_content_mapping_id, m.project_id, m.preview_project_id, m.content_mapping, m.created_at
		FROM preview_content_mappings m
		JOIN projects p ON p.project_id = m.preview_project_id
		WHERE p.project_uuid = $1
		ORDER BY m.preview_content_mapping_id DESC
		LIMIT 1`, previewProjectUUID,
	).Scan(&record.ID, &record.ProjectID, &record.PreviewProjectID, &payload, &record.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content mapping: %w", err)
	}
	if err := json.Unmarshal(payload, &record.Mapping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content mapping: %w", err)
	}
	return &record, nil
}

var _ DuplicateRepository = (*duplicateRepository)(nil)
