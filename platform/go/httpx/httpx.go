// Package httpx holds the JSON and problem+json plumbing shared by every domain handler.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformlogging "github.com/harmony-hq/harmony/platform/go/logging"
)

const (
	ProblemTypeValidation   = "https://harmony.dev/problems/validation-error"
	ProblemTypeUnauthorized = "https://harmony.dev/problems/unauthorized"
	ProblemTypeNotFound     = "https://harmony.dev/problems/not-found"
	ProblemTypeConflict     = "https://harmony.dev/problems/conflict"
	ProblemTypeSequence     = "https://harmony.dev/problems/invalid-sequence"
	ProblemTypeInconsistent = "https://harmony.dev/problems/inconsistent-state"
	ProblemTypeInternal     = "https://harmony.dev/problems/internal-error"
)

const maxBodyBytes = 4 << 20

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// WriteJSON encodes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteProblem encodes p as application/problem+json.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteError maps err onto the error taxonomy and writes the matching problem.
// Unclassified errors are logged and reported without detail.
func WriteError(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, err error) {
	WriteProblem(w, ProblemFor(r, fallback, err))
}

// ProblemFor maps err to a Problem.
func ProblemFor(r *http.Request, fallback *zap.Logger, err error) Problem {
	var validationErr *apperr.ValidationError
	var inconsistent *apperr.InconsistentError

	switch {
	case errors.As(err, &validationErr):
		return Problem{Type: ProblemTypeValidation, Title: "Validation failed", Status: http.StatusBadRequest, Detail: "request failed validation", Errors: validationErr.Fields}
	case errors.Is(err, apperr.ErrUnauthorized):
		return Problem{Type: ProblemTypeUnauthorized, Title: "Forbidden", Status: http.StatusForbidden, Detail: err.Error()}
	case errors.Is(err, apperr.ErrTenantNotFound):
		return Problem{Type: ProblemTypeNotFound, Title: "Company not found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, apperr.ErrNotFound):
		return Problem{Type: ProblemTypeNotFound, Title: "Not found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, apperr.ErrAlreadyExists):
		return Problem{Type: ProblemTypeConflict, Title: "Conflict", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, apperr.ErrInvalidSequence):
		return Problem{Type: ProblemTypeSequence, Title: "Invalid sequence", Status: http.StatusUnprocessableEntity, Detail: err.Error()}
	case errors.As(err, &inconsistent):
		logger(r, fallback).Error("request left inconsistent state", zap.Error(err))
		return Problem{Type: ProblemTypeInconsistent, Title: "Inconsistent state", Status: http.StatusInternalServerError, Detail: err.Error()}
	default:
		logger(r, fallback).Error("request failed", zap.Error(err))
		return Problem{Type: ProblemTypeInternal, Title: "Internal error", Status: http.StatusInternalServerError, Detail: "internal error"}
	}
}

// DecodeJSON reads a JSON body into dst. Malformed bodies become validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.NewValidationError(map[string]string{"body": "is required"})
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.NewValidationError(map[string]string{"body": "is required"})
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.NewValidationError(map[string]string{typeErr.Field: fmt.Sprintf("must be %s", typeErr.Type)})
		}
		return apperr.NewValidationError(map[string]string{"body": "must be valid JSON"})
	}
	return nil
}

// PathUUID binds a chi URL parameter into a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return uuid.Nil, apperr.NewValidationError(map[string]string{name: "is required"})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.NewValidationError(map[string]string{name: "must be a UUID"})
	}
	return id, nil
}

// PathString binds a required chi URL parameter.
func PathString(r *http.Request, name string) (string, error) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || strings.TrimSpace(raw) == "" {
		return "", apperr.NewValidationError(map[string]string{name: "is required"})
	}
	return raw, nil
}

// QueryList binds a repeatable query parameter. Both months=01&months=02 and months=01,02 are accepted.
func QueryList(r *http.Request, name string) ([]string, error) {
	var values []string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &values); err != nil {
		return nil, apperr.NewValidationError(map[string]string{name: "is malformed"})
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out, nil
}

// QueryInt binds an optional integer query parameter, returning def when absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	var v *int
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return 0, apperr.NewValidationError(map[string]string{name: "must be an integer"})
	}
	if v == nil {
		return def, nil
	}
	return *v, nil
}

// QueryBool binds an optional boolean query parameter; nil means absent.
func QueryBool(r *http.Request, name string) (*bool, error) {
	var v *bool
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return nil, apperr.NewValidationError(map[string]string{name: "must be true or false"})
	}
	return v, nil
}

func logger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if r == nil {
		if fallback == nil {
			return zap.NewNop()
		}
		return fallback
	}
	return platformlogging.FromContextOr(r.Context(), fallback)
}
