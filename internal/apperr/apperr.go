// Package apperr defines the application error taxonomy shared by the
// engine, the services and the HTTP layer. Every error carries a stable
// machine-readable code that API clients can switch on.
package apperr

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced in API responses.
const (
	CodeNotFound      = "not_found"
	CodeValidation    = "validation_error"
	CodeDataIntegrity = "data_integrity_error"
	CodeConflict      = "conflict"
	CodeUnauthorized  = "unauthorized"
	CodeForbidden     = "forbidden"
	CodeInternal      = "internal_error"
)

// NotFoundError reports an unknown owner, user or record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError reports malformed input. Field is empty when the
// problem is not tied to a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// DataIntegrityError reports an invariant violated while aggregating.
// It is fatal to the request.
type DataIntegrityError struct {
	Message string
	Err     error
}

func (e *DataIntegrityError) Error() string {
	if e.Err != nil {
		return "data integrity: " + e.Message + ": " + e.Err.Error()
	}
	return "data integrity: " + e.Message
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

// ConflictError reports a uniqueness violation, e.g. a taken username.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// UnauthorizedError reports missing or bad credentials.
type UnauthorizedError struct {
	Err error
}

func (e *UnauthorizedError) Error() string {
	if e.Err == nil {
		return "unauthorized"
	}
	return e.Err.Error()
}

func (e *UnauthorizedError) Unwrap() error { return e.Err }

// ForbiddenError reports an authenticated caller acting on someone else's data.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// NotFound returns a *NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// Invalid returns a *ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Integrity returns a *DataIntegrityError.
func Integrity(format string, args ...any) error {
	return &DataIntegrityError{Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a *ConflictError.
func Conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// Unauthorized wraps err in an *UnauthorizedError.
func Unauthorized(err error) error {
	return &UnauthorizedError{Err: err}
}

// Forbidden returns a *ForbiddenError.
func Forbidden(format string, args ...any) error {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...)}
}

// Code returns the stable code for err, or CodeInternal when err is not
// part of the taxonomy.
func Code(err error) string {
	var (
		notFound     *NotFoundError
		validation   *ValidationError
		integrity    *DataIntegrityError
		conflict     *ConflictError
		unauthorized *UnauthorizedError
		forbidden    *ForbiddenError
	)
	switch {
	case errors.As(err, &validation):
		return CodeValidation
	case errors.As(err, &notFound):
		return CodeNotFound
	case errors.As(err, &integrity):
		return CodeDataIntegrity
	case errors.As(err, &conflict):
		return CodeConflict
	case errors.As(err, &unauthorized):
		return CodeUnauthorized
	case errors.As(err, &forbidden):
		return CodeForbidden
	default:
		return CodeInternal
	}
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsDataIntegrity reports whether err is a *DataIntegrityError.
func IsDataIntegrity(err error) bool {
	var e *DataIntegrityError
	return errors.As(err, &e)
}
