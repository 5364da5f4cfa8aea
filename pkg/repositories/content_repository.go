package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prismbi/prism-engine/pkg/apperrors"
	"github.com/prismbi/prism-engine/pkg/database"
	"github.com/prismbi/prism-engine/pkg/models"
)

// ContentRepository provides data access for spaces, saved charts and
// dashboards. Creation of a chart or dashboard always writes an initial
// version; later versions append, never mutate.
type ContentRepository interface {
	CreateSpace(ctx context.Context, space *models.Space) error
	ListSpaces(ctx context.Context, projectUUID uuid.UUID) ([]*models.Space, error)
	AddSpaceAccess(ctx context.Context, spaceID, userID int64) error
	// ResolveSpace maps a public space id to its internal id and owning
	// organization. Returns apperrors.ErrNotFound for an unknown space.
	ResolveSpace(ctx context.Context, spaceUUID uuid.UUID) (spaceID, organizationID int64, err error)

	CreateChart(ctx context.Context, chart *models.SavedChart, version *models.ChartVersion) error
	// AddChartVersion appends a new version to an existing chart.
	AddChartVersion(ctx context.Context, chartID int64, version *models.ChartVersion) error
	ResolveChartID(ctx context.Context, chartUUID uuid.UUID) (int64, error)
	// GetLatestChartVersion returns the version with the maximum version id,
	// with all its sub-collections loaded.
	GetLatestChartVersion(ctx context.Context, chartUUID uuid.UUID) (*models.ChartVersion, error)

	CreateDashboard(ctx context.Context, dashboard *models.Dashboard, version *models.DashboardVersion) error
	AddDashboardVersion(ctx context.Context, dashboardID int64, version *models.DashboardVersion) error
	ResolveDashboardID(ctx context.Context, dashboardUUID uuid.UUID) (int64, error)
	GetLatestDashboardVersion(ctx context.Context, dashboardUUID uuid.UUID) (*models.DashboardVersion, error)
}

type contentRepository struct {
	db *database.DB
}

// NewContentRepository creates a new content repository.
func NewContentRepository(db *database.DB) ContentRepository {
	return &contentRepository{db: db}
}

// CreateSpace inserts a space and populates its generated ids.
func (r *contentRepository) CreateSpace(ctx context.Context, space *models.Space) error {
	if space.UUID == uuid.Nil {
		space.UUID = uuid.New()
	}
	space.CreatedAt = time.Now()

	err := r.db.QueryRow(ctx, `
		INSERT INTO spaces (space_uuid, project_id, name, is_private, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING space_id`,
		space.UUID, space.ProjectID, space.Name, space.IsPrivate, space.CreatedAt,
	).Scan(&space.ID)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}
	return nil
}

// ListSpaces returns all spaces in a project, oldest first.
func (r *contentRepository) ListSpaces(ctx context.Context, projectUUID uuid.UUID) ([]*models.Space, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.space_id, s.space_uuid, s.project_id, s.name, s.is_private, s.created_at
		FROM spaces s
		JOIN projects p ON p.project_id = s.project_id
		WHERE p.project_uuid = $1
		ORDER BY s.space_id`, projectUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []*models.Space
	for rows.Next() {
		var s models.Space
		if err := rows.Scan(&s.ID, &s.UUID, &s.ProjectID, &s.Name, &s.IsPrivate, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, &s)
	}
	return spaces, rows.Err()
}

// AddSpaceAccess shares a space with a user.
func (r *contentRepository) AddSpaceAccess(ctx context.Context, spaceID, userID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO space_user_access (space_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (space_id, user_id) DO NOTHING`, spaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to add space access: %w", err)
	}
	return nil
}

// ResolveSpace maps a public space id to its internal id and owning organization.
func (r *contentRepository) ResolveSpace(ctx context.Context, spaceUUID uuid.UUID) (int64, int64, error) {
	var spaceID, orgID int64
	err := r.db.QueryRow(ctx, `
		SELECT s.space_id, p.organization_id
		FROM spaces s
		JOIN projects p ON p.project_id = s.project_id
		WHERE s.space_uuid = $1`, spaceUUID,
	).Scan(&spaceID, &orgID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, 0, apperrors.ErrNotFound
		}
		return 0, 0, fmt.Errorf("failed to resolve space: %w", err)
	}
	return spaceID, orgID, nil
}

// ResolveChartID maps a public chart id to its internal surrogate key.
func (r *contentRepository) ResolveChartID(ctx context.Context, chartUUID uuid.UUID) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT saved_query_id FROM saved_queries WHERE saved_query_uuid = $1`, chartUUID,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to resolve chart: %w", err)
	}
	return id, nil
}

// ResolveDashboardID maps a public dashboard id to its internal surrogate key.
func (r *contentRepository) ResolveDashboardID(ctx context.Context, dashboardUUID uuid.UUID) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT dashboard_id FROM dashboards WHERE dashboard_uuid = $1`, dashboardUUID,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to resolve dashboard: %w", err)
	}
	return id, nil
}

// CreateChart inserts a chart and its initial version in one transaction.
func (r *contentRepository) CreateChart(ctx context.Context, chart *models.SavedChart, version *models.ChartVersion) error {
	if chart.UUID == uuid.Nil {
		chart.UUID = uuid.New()
	}
	chart.CreatedAt = time.Now()

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO saved_queries (saved_query_uuid, space_id, name, description, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING saved_query_id`,
			chart.UUID, chart.SpaceID, chart.Name, chart.Description, chart.CreatedAt,
		).Scan(&chart.ID)
		if err != nil {
			return fmt.Errorf("failed to create chart: %w", err)
		}
		return insertChartVersion(ctx, tx, chart.ID, version)
	})
}

// AddChartVersion appends a version to an existing chart.
func (r *contentRepository) AddChartVersion(ctx context.Context, chartID int64, version *models.ChartVersion) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		return insertChartVersion(ctx, tx, chartID, version)
	})
}

func insertChartVersion(ctx context.Context, tx pgx.Tx, chartID int64, version *models.ChartVersion) error {
	if version.UUID == uuid.Nil {
		version.UUID = uuid.New()
	}
	version.SavedChartID = chartID
	version.CreatedAt = time.Now()

	filters := version.Filters
	if filters == nil {
		filters = []byte("{}")
	}
	chartConfig := version.ChartConfig
	if chartConfig == nil {
		chartConfig = []byte("{}")
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO saved_queries_versions (saved_queries_version_uuid, saved_query_id,
			explore_name, filters, row_limit, chart_type, chart_config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING saved_queries_version_id`,
		version.UUID, chartID, version.ExploreName, filters,
		version.RowLimit, version.ChartType, chartConfig, version.CreatedAt,
	).Scan(&version.ID)
	if err != nil {
		return fmt.Errorf("failed to create chart version: %w", err)
	}

	for _, tc := range version.TableCalculations {
		_, err := tx.Exec(ctx, `
			INSERT INTO saved_queries_version_table_calculations
				(saved_queries_version_id, name, display_name, calculation_raw_sql, "order")
			VALUES ($1, $2, $3, $4, $5)`,
			version.ID, tc.Name, tc.DisplayName, tc.CalculationRawSQL, tc.Order)
		if err != nil {
			return fmt.Errorf("failed to create table calculation: %w", err)
		}
	}
	for _, s := range version.Sorts {
		_, err := tx.Exec(ctx, `
			INSERT INTO saved_queries_version_sorts
				(saved_queries_version_id, field_name, descending, "order")
			VALUES ($1, $2, $3, $4)`,
			version.ID, s.FieldName, s.Descending, s.Order)
		if err != nil {
			return fmt.Errorf("failed to create sort: %w", err)
		}
	}
	for _, f := range version.Fields {
		_, err := tx.Exec(ctx, `
			INSERT INTO saved_queries_version_fields
				(saved_queries_version_id, name, field_type, "order")
			VALUES ($1, $2, $3, $4)`,
			version.ID, f.Name, f.FieldType, f.Order)
		if err != nil {
			return fmt.Errorf("failed to create field: %w", err)
		}
	}
	for _, m := range version.AdditionalMetrics {
		_, err := tx.Exec(ctx, `
			INSERT INTO saved_queries_version_additional_metrics
				(saved_queries_version_id, "table", name, label, type, sql, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			version.ID, m.Table, m.Name, m.Label, m.Type, m.SQL, m.Description)
		if err != nil {
			return fmt.Errorf("failed to create additional metric: %w", err)
		}
	}
	return nil
}

// GetLatestChartVersion returns the current version of a chart: strictly the
// row with the maximum version id, never a timestamp comparison.
func (r *contentRepository) GetLatestChartVersion(ctx context.Context, chartUUID uuid.UUID) (*models.ChartVersion, error) {
	var v models.ChartVersion
	err := r.db.QueryRow(ctx, `
		SELECT v.saved_queries_version_id, v.saved_queries_version_uuid, v.saved_query_id,
			v.explore_name, v.filters, v.row_limit, v.chart_type, v.chart_config, v.created_at
		FROM saved_queries_versions v
		JOIN saved_queries q ON q.saved_query_id = v.saved_query_id
		WHERE q.saved_query_uuid = $1
		ORDER BY v.saved_queries_version_id DESC
		LIMIT 1`, chartUUID,
	).Scan(&v.ID, &v.UUID, &v.SavedChartID, &v.ExploreName, &v.Filters,
		&v.RowLimit, &v.ChartType, &v.ChartConfig, &v.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest chart version: %w", err)
	}

	if err := r.loadChartVersionChildren(ctx, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *contentRepository) loadChartVersionChildren(ctx context.Context, v *models.ChartVersion) error {
	rows, err := r.db.Query(ctx, `
		SELECT name, display_name, calculation_raw_sql, "order"
		FROM saved_queries_version_table_calculations
		WHERE saved_queries_version_id = $1 ORDER BY "order"`, v.ID)
	if err != nil {
		return fmt.Errorf("failed to load table calculations: %w", err)
	}
	v.TableCalculations, err = collectRows(rows, func(row pgx.Rows) (models.TableCalculation, error) {
		var tc models.TableCalculation
		err := row.Scan(&tc.Name, &tc.DisplayName, &tc.CalculationRawSQL, &tc.Order)
		return tc, err
	})
	if err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT field_name, descending, "order"
		FROM saved_queries_version_sorts
		WHERE saved_queries_version_id = $1 ORDER BY "order"`, v.ID)
	if err != nil {
		return fmt.Errorf("failed to load sorts: %w", err)
	}
	v.Sorts, err = collectRows(rows, func(row pgx.Rows) (models.SortField, error) {
		var s models.SortField
		err := row.Scan(&s.FieldName, &s.Descending, &s.Order)
		return s, err
	})
	if err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT name, field_type, "order"
		FROM saved_queries_version_fields
		WHERE saved_queries_version_id = $1 ORDER BY "order"`, v.ID)
	if err != nil {
		return fmt.Errorf("failed to load fields: %w", err)
	}
	v.Fields, err = collectRows(rows, func(row pgx.Rows) (models.SelectedField, error) {
		var f models.SelectedField
		err := row.Scan(&f.Name, &f.FieldType, &f.Order)
		return f, err
	})
	if err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT "table", name, COALESCE(label, ''), type, sql, COALESCE(description, '')
		FROM saved_queries_version_additional_metrics
		WHERE saved_queries_version_id = $1 ORDER BY name`, v.ID)
	if err != nil {
		return fmt.Errorf("failed to load additional metrics: %w", err)
	}
	v.AdditionalMetrics, err = collectRows(rows, func(row pgx.Rows) (models.AdditionalMetric, error) {
		var m models.AdditionalMetric
		err := row.Scan(&m.Table, &m.Name, &m.Label, &m.Type, &m.SQL, &m.Description)
		return m, err
	})
	return err
}

func collectRows[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// CreateDashboard inserts a dashboard and its initial version in one transaction.
func (r *contentRepository) CreateDashboard(ctx context.Context, dashboard *models.Dashboard, version *models.DashboardVersion) error {
	if dashboard.UUID == uuid.Nil {
		dashboard.UUID = uuid.New()
	}
	dashboard.CreatedAt = time.Now()

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO dashboards (dashboard_uuid, space_id, name, description, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING dashboard_id`,
			dashboard.UUID, dashboard.SpaceID, dashboard.Name, dashboard.Description, dashboard.CreatedAt,
		).Scan(&dashboard.ID)
		if err != nil {
			return fmt.Errorf("failed to create dashboard: %w", err)
		}
		return insertDashboardVersion(ctx, tx, dashboard.ID, version)
	})
}

// AddDashboardVersion appends a version to an existing dashboard.
func (r *contentRepository) AddDashboardVersion(ctx context.Context, dashboardID int64, version *models.DashboardVersion) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		return insertDashboardVersion(ctx, tx, dashboardID, version)
	})
}

func insertDashboardVersion(ctx context.Context, tx pgx.Tx, dashboardID int64, version *models.DashboardVersion) error {
	version.DashboardID = dashboardID
	version.CreatedAt = time.Now()

	err := tx.QueryRow(ctx, `
		INSERT INTO dashboard_versions (dashboard_id, created_at)
		VALUES ($1, $2)
		RETURNING dashboard_version_id`,
		dashboardID, version.CreatedAt,
	).Scan(&version.ID)
	if err != nil {
		return fmt.Errorf("failed to create dashboard version: %w", err)
	}

	for i := range version.Tiles {
		tile := &version.Tiles[i]
		if tile.UUID == uuid.Nil {
			tile.UUID = uuid.New()
		}
		tile.DashboardVersionID = version.ID

		_, err := tx.Exec(ctx, `
			INSERT INTO dashboard_tiles (dashboard_version_id, dashboard_tile_uuid,
				tile_type, x_offset, y_offset, width, height)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			version.ID, tile.UUID, tile.Type, tile.XOffset, tile.YOffset, tile.Width, tile.Height)
		if err != nil {
			return fmt.Errorf("failed to create dashboard tile: %w", err)
		}

		switch tile.Type {
		case models.TileTypeChart:
			if tile.Chart == nil {
				return fmt.Errorf("chart tile %s has no chart content", tile.UUID)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO dashboard_tile_charts (dashboard_version_id, dashboard_tile_uuid, saved_chart_id, hide_title)
				VALUES ($1, $2, $3, $4)`,
				version.ID, tile.UUID, tile.Chart.SavedChartID, tile.Chart.HideTitle)
		case models.TileTypeLoom:
			if tile.Loom == nil {
				return fmt.Errorf("loom tile %s has no loom content", tile.UUID)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO dashboard_tile_looms (dashboard_version_id, dashboard_tile_uuid, title, url, hide_title)
				VALUES ($1, $2, $3, $4, $5)`,
				version.ID, tile.UUID, tile.Loom.Title, tile.Loom.URL, tile.Loom.HideTitle)
		case models.TileTypeMarkdown:
			if tile.Markdown == nil {
				return fmt.Errorf("markdown tile %s has no markdown content", tile.UUID)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO dashboard_tile_markdowns (dashboard_version_id, dashboard_tile_uuid, title, content)
				VALUES ($1, $2, $3, $4)`,
				version.ID, tile.UUID, tile.Markdown.Title, tile.Markdown.Content)
		default:
			return fmt.Errorf("unknown tile type %q", tile.Type)
		}
		if err != nil {
			return fmt.Errorf("failed to create tile content: %w", err)
		}
	}
	return nil
}

// GetLatestDashboardVersion returns the current version of a dashboard with
// its tiles and tile contents loaded.
func (r *contentRepository) GetLatestDashboardVersion(ctx context.Context, dashboardUUID uuid.UUID) (*models.DashboardVersion, error) {
	var v models.DashboardVersion
	err := r.db.QueryRow(ctx, `
		SELECT v.dashboard_version_id, v.dashboard_id, v.created_at
		FROM dashboard_versions v
		JOIN dashboards d ON d.dashboard_id = v.dashboard_id
		WHERE d.dashboard_uuid = $1
		ORDER BY v.dashboard_version_id DESC
		LIMIT 1`, dashboardUUID,
	).Scan(&v.ID, &v.DashboardID, &v.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest dashboard version: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT t.dashboard_tile_uuid, t.tile_type, t.x_offset, t.y_offset, t.width, t.height,
			c.saved_chart_id, c.hide_title,
			l.title, l.url, l.hide_title,
			m.title, m.content
		FROM dashboard_tiles t
		LEFT JOIN dashboard_tile_charts c
			ON c.dashboard_version_id = t.dashboard_version_id AND c.dashboard_tile_uuid = t.dashboard_tile_uuid
		LEFT JOIN dashboard_tile_looms l
			ON l.dashboard_version_id = t.dashboard_version_id AND l.dashboard_tile_uuid = t.dashboard_tile_uuid
		LEFT JOIN dashboard_tile_markdowns m
			ON m.dashboard_version_id = t.dashboard_version_id AND m.dashboard_tile_uuid = t.dashboard_tile_uuid
		WHERE t.dashboard_version_id = $1
		ORDER BY t.y_offset, t.x_offset`, v.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard tiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tile := models.DashboardTile{DashboardVersionID: v.ID}
		var (
			chartID             *int64
			chartHide           *bool
			loomTitle, loomURL  *string
			loomHide            *bool
			mdTitle, mdContent  *string
		)
		err := rows.Scan(&tile.UUID, &tile.Type, &tile.XOffset, &tile.YOffset, &tile.Width, &tile.Height,
			&chartID, &chartHide, &loomTitle, &loomURL, &loomHide, &mdTitle, &mdContent)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dashboard tile: %w", err)
		}

		switch tile.Type {
		case models.TileTypeChart:
			tile.Chart = &models.ChartTileContent{SavedChartID: chartID}
			if chartHide != nil {
				tile.Chart.HideTitle = *chartHide
			}
		case models.TileTypeLoom:
			tile.Loom = &models.LoomTileContent{}
			if loomTitle != nil {
				tile.Loom.Title = *loomTitle
			}
			if loomURL != nil {
				tile.Loom.URL = *loomURL
			}
			if loomHide != nil {
				tile.Loom.HideTitle = *loomHide
			}
		case models.TileTypeMarkdown:
			tile.Markdown = &models.MarkdownTileContent{}
			if mdTitle != nil {
				tile.Markdown.Title = *mdTitle
			}
			if mdContent != nil {
				tile.Markdown.Content = *mdContent
			}
		}
		v.Tiles = append(v.Tiles, tile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dashboard tiles: %w", err)
	}

	return &v, nil
}

var _ ContentRepository = (*contentRepository)(nil)
