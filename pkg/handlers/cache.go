package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/services"
)

// CacheHandler handles explore-cache HTTP requests. Compiled explores are
// produced by the deploy tooling (dbt compile) and pushed here; this process
// only stores and serves them.
type CacheHandler struct {
	cacheService services.CacheService
	logger       *zap.Logger
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(cacheService services.CacheService, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{cacheService: cacheService, logger: logger}
}

// RegisterRoutes registers the cache handler's routes on the given mux.
func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}/explores", h.GetExplores)
	mux.HandleFunc("GET /api/projects/{pid}/warehouse-catalog", h.GetWarehouseCatalog)
	mux.HandleFunc("PUT /api/projects/{pid}/cache", h.Refresh)
}

// GetExplores returns the cached explores snapshot.
func (h *CacheHandler) GetExplores(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	cached, err := h.cacheService.GetExplores(r.Context(), pid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"explores":   cached.Explores,
		"updated_at": cached.UpdatedAt,
	})
}

// GetWarehouseCatalog returns the cached warehouse schema snapshot.
func (h *CacheHandler) GetWarehouseCatalog(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	cached, err := h.cacheService.GetWarehouseCatalog(r.Context(), pid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"warehouse":  cached.Catalog,
		"updated_at": cached.UpdatedAt,
	})
}

// RefreshCacheRequest carries the compiled snapshots to store.
type RefreshCacheRequest struct {
	Explores  []models.Explore        `json:"explores"`
	Warehouse models.WarehouseCatalog `json:"warehouse,omitempty"`
}

// Refresh replaces the project's cached snapshots. Responds 409 when another
// refresh for the same project is in flight.
func (h *CacheHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	var req RefreshCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	refreshed, err := h.cacheService.RefreshCache(r.Context(), pid, req.Explores, req.Warehouse)
	if err != nil {
		h.logger.Error("Failed to refresh cache", zap.String("project_uuid", pid.String()), zap.Error(err))
		ServiceError(w, err)
		return
	}
	if !refreshed {
		_ = ErrorResponse(w, http.StatusConflict, "refresh_in_progress", "a cache refresh for this project is already running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
