//go:build integration

package repositories

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prismbi/prism-engine/pkg/crypto"
	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/testhelpers"
)

// contentTestContext holds test dependencies for content repository tests.
type contentTestContext struct {
	t       *testing.T
	testDB  *testhelpers.TestDB
	repo    ContentRepository
	project *models.Project
	space   *models.Space
}

// setupContentTest creates a fresh organization, project and space.
func setupContentTest(t *testing.T) *contentTestContext {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	enc, err := crypto.NewConnectionEncryptor("content-test-key")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	var orgID int64
	err = testDB.Pool.QueryRow(ctx,
		`INSERT INTO organizations (organization_name) VALUES ($1) RETURNING organization_id`,
		t.Name(),
	).Scan(&orgID)
	if err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	project := &models.Project{
		OrganizationID: orgID,
		Name:           "Content Test",
		WarehouseType:  models.WarehouseTypePostgres,
		TableSelection: models.TableSelection{Type: models.TableSelectionTypeAll},
	}
	if err := NewProjectRepository(testDB.DB, enc).Create(ctx, project); err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}

	repo := NewContentRepository(testDB.DB)
	space := &models.Space{ProjectID: project.ID, Name: "Main"}
	if err := repo.CreateSpace(ctx, space); err != nil {
		t.Fatalf("failed to create space: %v", err)
	}

	return &contentTestContext{t: t, testDB: testDB, repo: repo, project: project, space: space}
}

// TestContentRepository_GetLatestChartVersion verifies that appending versions
// moves the "current" pointer and loads sub-collections.
func TestContentRepository_GetLatestChartVersion(t *testing.T) {
	tc := setupContentTest(t)
	ctx := context.Background()

	chart := &models.SavedChart{SpaceID: tc.space.ID, Name: "Revenue"}
	if err := tc.repo.CreateChart(ctx, chart, &models.ChartVersion{
		ExploreName: "orders", RowLimit: 500, ChartType: "table",
		Filters: json.RawMessage(`{}`), ChartConfig: json.RawMessage(`{}`),
	}); err != nil {
		t.Fatalf("CreateChart failed: %v", err)
	}

	latest, err := tc.repo.GetLatestChartVersion(ctx, chart.UUID)
	if err != nil {
		t.Fatalf("GetLatestChartVersion failed: %v", err)
	}
	if latest.ExploreName != "orders" {
		t.Errorf("expected initial version, got explore %q", latest.ExploreName)
	}

	newer := &models.ChartVersion{
		ExploreName: "payments", RowLimit: 1000, ChartType: "cartesian",
		Filters: json.RawMessage(`{}`), ChartConfig: json.RawMessage(`{}`),
		Sorts:  []models.SortField{{FieldName: "payments_total", Descending: true}},
		Fields: []models.SelectedField{{Name: "payments_total", FieldType: models.FieldTypeMetric}},
	}
	if err := tc.repo.AddChartVersion(ctx, chart.ID, newer); err != nil {
		t.Fatalf("AddChartVersion failed: %v", err)
	}

	latest, err = tc.repo.GetLatestChartVersion(ctx, chart.UUID)
	if err != nil {
		t.Fatalf("GetLatestChartVersion after append failed: %v", err)
	}
	if latest.ExploreName != "payments" {
		t.Errorf("expected newest version, got explore %q", latest.ExploreName)
	}
	if latest.RowLimit != 1000 {
		t.Errorf("expected row limit 1000, got %d", latest.RowLimit)
	}
	if len(latest.Sorts) != 1 || latest.Sorts[0].FieldName != "payments_total" {
		t.Errorf("expected loaded sorts, got %+v", latest.Sorts)
	}
	if len(latest.Fields) != 1 || latest.Fields[0].FieldType != models.FieldTypeMetric {
		t.Errorf("expected loaded fields, got %+v", latest.Fields)
	}
}

// TestContentRepository_GetLatestDashboardVersion verifies tile loading across
// the three content variants.
func TestContentRepository_GetLatestDashboardVersion(t *testing.T) {
	tc := setupContentTest(t)
	ctx := context.Background()

	chart := &models.SavedChart{SpaceID: tc.space.ID, Name: "KPIs"}
	if err := tc.repo.CreateChart(ctx, chart, &models.ChartVersion{
		ExploreName: "orders", RowLimit: 500, ChartType: "big_number",
		Filters: json.RawMessage(`{}`), ChartConfig: json.RawMessage(`{}`),
	}); err != nil {
		t.Fatalf("CreateChart failed: %v", err)
	}

	dashboard := &models.Dashboard{SpaceID: tc.space.ID, Name: "Overview"}
	chartID := chart.ID
	version := &models.DashboardVersion{
		Tiles: []models.DashboardTile{
			{Type: models.TileTypeChart, Width: 4, Height: 3,
				Chart: &models.ChartTileContent{SavedChartID: &chartID, HideTitle: true}},
			{Type: models.TileTypeMarkdown, YOffset: 3, Width: 8, Height: 2,
				Markdown: &models.MarkdownTileContent{Title: "Notes", Content: "hello"}},
		},
	}
	if err := tc.repo.CreateDashboard(ctx, dashboard, version); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}

	latest, err := tc.repo.GetLatestDashboardVersion(ctx, dashboard.UUID)
	if err != nil {
		t.Fatalf("GetLatestDashboardVersion failed: %v", err)
	}
	if len(latest.Tiles) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(latest.Tiles))
	}
	// Tiles come back ordered by position.
	chartTile, mdTile := latest.Tiles[0], latest.Tiles[1]
	if chartTile.Type != models.TileTypeChart || chartTile.Chart == nil {
		t.Fatalf("expected chart tile first, got %+v", chartTile)
	}
	if chartTile.Chart.SavedChartID == nil || *chartTile.Chart.SavedChartID != chart.ID {
		t.Errorf("expected chart tile to reference chart %d", chart.ID)
	}
	if !chartTile.Chart.HideTitle {
		t.Error("expected hide_title to round-trip")
	}
	if mdTile.Type != models.TileTypeMarkdown || mdTile.Markdown == nil || mdTile.Markdown.Content != "hello" {
		t.Errorf("expected markdown tile, got %+v", mdTile)
	}
}
