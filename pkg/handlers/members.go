package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/models"
	"github.com/prismbi/prism-engine/pkg/services"
)

// MembersHandler handles project access-control HTTP requests.
type MembersHandler struct {
	membershipService services.MembershipService
	logger            *zap.Logger
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(membershipService services.MembershipService, logger *zap.Logger) *MembersHandler {
	return &MembersHandler{membershipService: membershipService, logger: logger}
}

// RegisterRoutes registers the members handler's routes on the given mux.
func (h *MembersHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}/members", h.List)
	mux.HandleFunc("POST /api/projects/{pid}/members", h.Add)
	mux.HandleFunc("PATCH /api/projects/{pid}/members/{uid}", h.UpdateRole)
	mux.HandleFunc("DELETE /api/projects/{pid}/members/{uid}", h.Remove)
}

// List returns the project's members with their primary email.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	members, err := h.membershipService.List(r.Context(), pid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if members == nil {
		members = []*models.ProjectMember{}
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

// AddMemberRequest adds a user to a project by email.
type AddMemberRequest struct {
	Email string                   `json:"email"`
	Role  models.ProjectMemberRole `json:"role"`
}

// Add adds a member by email and role.
func (h *MembersHandler) Add(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "email and role are required")
		return
	}

	if err := h.membershipService.AddByEmail(r.Context(), pid, req.Email, req.Role); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	uid, err := uuid.Parse(r.PathValue("uid"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_user_id", "user id must be a UUID")
		return uuid.Nil, false
	}
	return uid, true
}

// UpdateRoleRequest changes a member's role.
type UpdateRoleRequest struct {
	Role models.ProjectMemberRole `json:"role"`
}

// UpdateRole changes a member's role.
func (h *MembersHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}
	uid, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if err := h.membershipService.UpdateRole(r.Context(), pid, uid, req.Role); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Remove removes a member from the project.
func (h *MembersHandler) Remove(w http.ResponseWriter, r *http.Request) {
	pid, ok := parseProjectID(w, r)
	if !ok {
		return
	}
	uid, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if err := h.membershipService.Remove(r.Context(), pid, uid); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
