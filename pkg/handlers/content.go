package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/services"
)

// ContentHandler handles space, chart and dashboard HTTP requests.
type ContentHandler struct {
	contentService services.ContentService
	logger         *zap.Logger
}

// NewContentHandler creates a new content handler.
func NewContentHandler(contentService services.ContentService, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{contentService: contentService, logger: logger}
}

// RegisterRoutes registers the content handler's routes on the given mux.
func (h *ContentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}/spaces", h.ListSpaces)
	mux.HandleFunc("POST /api/projects/{pid}/spaces", h.CreateSpace)
	mux.HandleFunc("POST /api/spaces/{sid}/share", h.ShareSpace)
	mux.HandleFunc("POST /api/spaces/{sid}/charts", h.CreateChart)
	mux.HandleFunc("POST /api/spaces/{sid}/dashboards", h.CreateDashboard)
	mux.HandleFunc("GET /api/charts/{cid}/version", h.GetLatestChartVersion)
	mux.HandleFunc("POST /api/charts/{cid}/versions", h.AddChartVersion)
	mux.HandleFunc("GET /api/dashboards/{did}/version", h.GetLatestDashboardVersion)
	mux.HandleFunc("POST /api/dashboards/{did}/versions", h.AddDashboardVersion)
}

func parsePathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_"+name, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// ListSpaces returns all spaces in a project, oldest first.
func (h *ContentHandler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	spaces, err := h.contentService.ListSpaces(r.Context(), pid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, spaces)
}

// CreateSpaceRequest names the space to create.
type CreateSpaceRequest struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
}

// CreateSpace creates a space in a project.
func (h *ContentHandler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	var req CreateSpaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Name == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "space name is required")
		return
	}

	space, err := h.contentService.CreateSpace(r.Context(), pid, req.Name, req.IsPrivate)
	if err != nil {
		h.logger.Error("Failed to create space", zap.String("project_uuid", pid.String()), zap.Error(err))
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, space)
}

// ShareSpaceRequest identifies the user to grant space access to.
type ShareSpaceRequest struct {
	Email string `json:"email"`
}

// ShareSpace grants an organization member access to a space.
func (h *ContentHandler) ShareSpace(w http.ResponseWriter, r *http.Request) {
	sid, ok := parsePathUUID(w, r, "sid")
	if !ok {
		return
	}

	var req ShareSpaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Email == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	if err := h.contentService.ShareSpace(r.Context(), sid, req.Email); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateChartRequest carries a chart and its initial version.
type CreateChartRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Version     models.ChartVersion `json:"version"`
}

// CreateChart creates a chart with its initial version in a space.
func (h *ContentHandler) CreateChart(w http.ResponseWriter, r *http.Request) {
	sid, ok := parsePathUUID(w, r, "sid")
	if !ok {
		return
	}

	var req CreateChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Name == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "chart name is required")
		return
	}

	chart := &models.SavedChart{Name: req.Name, Description: req.Description}
	chart, err := h.contentService.CreateChart(r.Context(), sid, chart, &req.Version)
	if err != nil {
		h.logger.Error("Failed to create chart", zap.String("space_uuid", sid.String()), zap.Error(err))
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, chart)
}

// AddChartVersion appends a new version to an existing chart.
func (h *ContentHandler) AddChartVersion(w http.ResponseWriter, r *http.Request) {
	cid, ok := parsePathUUID(w, r, "cid")
	if !ok {
		return
	}

	var version models.ChartVersion
	if err := json.NewDecoder(r.Body).Decode(&version); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if err := h.contentService.AddChartVersion(r.Context(), cid, &version); err != nil {
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, &version)
}

// GetLatestChartVersion returns the current version of a chart.
func (h *ContentHandler) GetLatestChartVersion(w http.ResponseWriter, r *http.Request) {
	cid, ok := parsePathUUID(w, r, "cid")
	if !ok {
		return
	}

	version, err := h.contentService.GetLatestChartVersion(r.Context(), cid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, version)
}

// CreateDashboardRequest carries a dashboard and its initial version.
type CreateDashboardRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Version     models.DashboardVersion `json:"version"`
}

// CreateDashboard creates a dashboard with its initial version in a space.
func (h *ContentHandler) CreateDashboard(w http.ResponseWriter, r *http.Request) {
	sid, ok := parsePathUUID(w, r, "sid")
	if !ok {
		return
	}

	var req CreateDashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Name == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "dashboard name is required")
		return
	}

	dashboard := &models.Dashboard{Name: req.Name, Description: req.Description}
	dashboard, err := h.contentService.CreateDashboard(r.Context(), sid, dashboard, &req.Version)
	if err != nil {
		h.logger.Error("Failed to create dashboard", zap.String("space_uuid", sid.String()), zap.Error(err))
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, dashboard)
}

// AddDashboardVersion appends a new version to an existing dashboard.
func (h *ContentHandler) AddDashboardVersion(w http.ResponseWriter, r *http.Request) {
	did, ok := parsePathUUID(w, r, "did")
	if !ok {
		return
	}

	var version models.DashboardVersion
	if err := json.NewDecoder(r.Body).Decode(&version); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if err := h.contentService.AddDashboardVersion(r.Context(), did, &version); err != nil {
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, &version)
}

// GetLatestDashboardVersion returns the current version of a dashboard with
// its tiles.
func (h *ContentHandler) GetLatestDashboardVersion(w http.ResponseWriter, r *http.Request) {
	did, ok := parsePathUUID(w, r, "did")
	if !ok {
		return
	}

	version, err := h.contentService.GetLatestDashboardVersion(r.Context(), did)
	if err != nil {
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, version)
}
