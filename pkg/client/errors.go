package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes sent by the server.
const (
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeValidationFailed  = "validation_failed"
	CodeSchemaConflict    = "schema_conflict"
	CodeNotFound          = "not_found"
	CodeMethodNotAllowed  = "method_not_allowed"
	CodeEngineUnavailable = "engine_unavailable"
	CodeInternalError     = "internal_error"
)

// APIError is a non-2xx response.
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("storaged: %d %s: %s (field %s)", e.Status, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("storaged: %d %s: %s", e.Status, e.Code, e.Message)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsNotFound reports a 404.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsConflict reports a 409, e.g. a collection re-declared with another shape.
func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

// IsValidation reports a 422.
func IsValidation(err error) bool { return hasStatus(err, http.StatusUnprocessableEntity) }

// IsRetryable reports an engine failure the server marked transient.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable
}
