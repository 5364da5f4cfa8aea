package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prismbi/prism-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ServiceError maps domain errors to HTTP responses. Raw error text is never
// echoed for unexpected failures; those surface as a generic server error.
func ServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, apperrors.ErrAlreadyExists):
		_ = ErrorResponse(w, http.StatusConflict, "already_exists", "resource already exists")
	case errors.Is(err, apperrors.ErrInvalidRole):
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_role", "invalid project role")
	default:
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_server_error", "unexpected server error")
	}
}
