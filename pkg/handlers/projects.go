package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/logging"
	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/services"
)

// ProjectsHandler handles project and preview HTTP requests.
type ProjectsHandler struct {
	projectService services.ProjectService
	logger         *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projectService services.ProjectService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{projectService: projectService, logger: logger}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}", h.Get)
	mux.HandleFunc("PATCH /api/projects/{pid}", h.Update)
	mux.HandleFunc("DELETE /api/projects/{pid}", h.Delete)
	mux.HandleFunc("POST /api/projects/{pid}/previews", h.CreatePreview)
	mux.HandleFunc("GET /api/projects/{pid}/content-mapping", h.GetContentMapping)
}

func parseProjectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	pid, err := uuid.Parse(r.PathValue("pid"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_project_id", "project id must be a UUID")
		return uuid.Nil, false
	}
	return pid, true
}

// Get returns a project without connection secrets.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	project, err := h.projectService.Get(r.Context(), pid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, project)
}

// UpdateProjectRequest carries a project settings update. Connection secret
// fields may be omitted; they are filled from the stored configuration.
type UpdateProjectRequest struct {
	Name                string                  `json:"name"`
	DbtConnection       models.ConnectionConfig `json:"dbt_connection"`
	WarehouseType       string                  `json:"warehouse_type"`
	WarehouseConnection models.ConnectionConfig `json:"warehouse_connection"`
	TableSelection      models.TableSelection   `json:"table_selection"`
}

// Update writes project settings.
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	project, err := h.projectService.Update(r.Context(), pid, &models.Project{
		Name:                req.Name,
		DbtConnection:       req.DbtConnection,
		WarehouseType:       req.WarehouseType,
		WarehouseConnection: req.WarehouseConnection,
		TableSelection:      req.TableSelection,
	})
	if err != nil {
		h.logger.Error("Failed to update project",
			zap.String("project_uuid", pid.String()),
			zap.String("error", logging.SanitizeError(err)))
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, project)
}

// Delete removes a project and all its content.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	if err := h.projectService.Delete(r.Context(), pid); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePreviewRequest names the preview project to create.
type CreatePreviewRequest struct {
	Name string `json:"name"`
}

// CreatePreview creates a preview project cloned from the source project.
func (h *ProjectsHandler) CreatePreview(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	var req CreatePreviewRequest
	if r.Body != nil {
		// An empty body means a default-named preview.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	preview, err := h.projectService.CreatePreview(r.Context(), pid, req.Name)
	if err != nil {
		h.logger.Error("Failed to create preview",
			zap.String("source_project_uuid", pid.String()),
			zap.String("error", logging.SanitizeError(err)))
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, preview)
}

// GetContentMapping returns the clone record for a preview project.
func (h *ProjectsHandler) GetContentMapping(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	record, err := h.projectService.GetContentMapping(r.Context(), pid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, record.Mapping)
}
