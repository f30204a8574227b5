package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/logger"
)

// Error codes carried in error bodies.
const (
	codeUnauthorized     = "unauthorized"
	codeForbidden        = "forbidden"
	codeValidation       = "validation_failed"
	codeSchemaConflict   = "schema_conflict"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeUnavailable      = "engine_unavailable"
	codeInternal         = "internal_error"
)

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// errorHandler writes a response for err and reports whether it matched.
type errorHandler func(w http.ResponseWriter, err error) bool

// errorHandlers is the single mapping from the error taxonomy to HTTP.
var errorHandlers = []errorHandler{
	validationHandler,
	sentinelHandler(domain.ErrSchemaConflict, http.StatusConflict, codeSchemaConflict),
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
	engineHandler,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:    codeValidation,
		Message: ve.Error(),
		Field:   ve.Field,
	})
	return true
}

// sentinelHandler matches one sentinel. The message of the matched error
// names only the resource the caller referenced.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// engineHandler hides engine details from the client; they are logged.
func engineHandler(w http.ResponseWriter, err error) bool {
	var ee *domain.EngineError
	if !errors.As(err, &ee) {
		return false
	}
	if ee.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Code:      codeUnavailable,
		Message:   "storage backend " + ee.Backend + " unavailable",
		Retryable: ee.Retryable,
	})
	return true
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	for _, h := range errorHandlers {
		if h(w, err) {
			return
		}
	}
	logger.FromContext(r.Context()).Error("Unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
