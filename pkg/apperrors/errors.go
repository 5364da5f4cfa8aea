package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrInvalidRole            = errors.New("invalid role")
	ErrCredentialsKeyMismatch = errors.New("project credentials were encrypted with a different key")
)
