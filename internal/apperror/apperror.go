// Package apperror defines the domain errors shared by the pipeline stages
// and the HTTP layer.
//
// Services and loaders return *AppError values wrapping one of the sentinels
// below; the HTTP layer maps them to status codes with errors.Is, and the CLIs
// decide which ones are fatal.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrSchema       = errors.New("schema error")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// SchemaViolation reports a snapshot that does not match the record schema.
// Field names the missing or malformed key when there is one.
func SchemaViolation(source, field, message string) *AppError {
	return &AppError{
		Err:     ErrSchema,
		Message: fmt.Sprintf("%s: %s", source, message),
		Field:   field,
	}
}

// Unauthorized returns an AppError for missing or invalid credentials.
// HTTP handlers map this to 401 with a Basic challenge.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
