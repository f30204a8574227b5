package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed or semantically invalid payload.
	ErrValidation = errors.New("validation failed")
	// ErrSchemaConflict signals a collection redeclared with different parameters.
	ErrSchemaConflict = errors.New("schema conflict")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEngine signals an unreachable or failing storage engine.
	ErrEngine = errors.New("storage engine unavailable")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError wraps ErrNotFound with the resource kind and its identifier.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates a not-found error for a resource.
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// SchemaConflictError reports the stored schema of a collection that was
// redeclared with different parameters.
type SchemaConflictError struct {
	Collection string
	Existing   string
	Requested  string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("collection %q already declared as %s, requested %s",
		e.Collection, e.Existing, e.Requested)
}

func (e *SchemaConflictError) Unwrap() error { return ErrSchemaConflict }

// EngineError wraps a backend failure with the backend identity.
// Retryable is set for timeouts and connectivity loss.
type EngineError struct {
	Backend   string
	Op        string
	Retryable bool
	Err       error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap exposes both ErrEngine and the underlying cause.
func (e *EngineError) Unwrap() []error { return []error{ErrEngine, e.Err} }

// NewEngineError wraps err unless it already belongs to the error taxonomy.
// Deadline and cancellation errors are always marked retryable.
func NewEngineError(backend, op string, err error, retryable bool) error {
	if err == nil {
		return nil
	}
	if IsTaxonomy(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		retryable = true
	}
	return &EngineError{Backend: backend, Op: op, Retryable: retryable, Err: err}
}

// IsTaxonomy reports whether err is already one of the declared error kinds.
func IsTaxonomy(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSchemaConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEngine)
}

// IsRetryable reports whether err is an engine failure the caller may retry.
func IsRetryable(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Retryable
}
