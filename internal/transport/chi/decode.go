package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kailas-cloud/storaged/internal/domain"
)

// decodeJSON reads exactly one JSON value into dst. Unknown fields,
// trailing data and oversized bodies are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.NewValidationError("body", "must contain a single JSON value")
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for bodies that may be absent.
// It reports whether a body was present.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) (bool, error) {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return false, nil
	}
	err := decodeJSON(w, r, maxBytes, dst)
	var ve *domain.ValidationError
	if errors.As(err, &ve) && ve.Reason == emptyBodyReason {
		return false, nil
	}
	return err == nil, err
}

const emptyBodyReason = "request body is empty"

func decodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return domain.NewValidationError("body", emptyBodyReason)
	case errors.As(err, &maxErr):
		return domain.NewValidationError("body", "must be at most %d bytes", maxErr.Limit)
	case errors.As(err, &syntaxErr):
		return domain.NewValidationError("body", "malformed JSON at offset %d", syntaxErr.Offset)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return domain.NewValidationError("body", "malformed JSON")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return domain.NewValidationError(field, "must be %s", jsonKind(typeErr.Type.Kind().String()))
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		name := strings.TrimPrefix(err.Error(), "json: unknown field ")
		if unq, uerr := strconv.Unquote(name); uerr == nil {
			name = unq
		}
		return domain.NewValidationError(name, "unknown field")
	default:
		return domain.NewValidationError("body", "%v", err)
	}
}

func jsonKind(goKind string) string {
	switch goKind {
	case "float32", "float64", "int", "int64", "int32":
		return "a number in range"
	case "string":
		return "a string"
	case "slice":
		return "an array"
	case "struct", "map":
		return "an object"
	case "bool":
		return "a boolean"
	default:
		return fmt.Sprintf("a valid %s", goKind)
	}
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer, got %q", raw)
	}
	return n, nil
}
