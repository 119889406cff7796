// Package apperr holds the error taxonomy shared by every Harmony domain.
//
// Domains declare their own sentinels and wrap one of the kinds below so callers
// can branch with errors.Is regardless of which domain produced the failure.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound signals an absent entity or a scope mismatch (other company, other stall).
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized signals a failed role or tag-scope check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAlreadyExists signals a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidSequence signals malformed rotation input.
	ErrInvalidSequence = errors.New("invalid sequence")
	// ErrStorage signals an underlying I/O failure.
	ErrStorage = errors.New("storage error")
	// ErrInconsistent signals a multi-step protocol that only partially completed.
	ErrInconsistent = errors.New("inconsistent state")
	// ErrTenantNotFound signals that the company directory has no entry for the request.
	ErrTenantNotFound = errors.New("tenant not found")
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// Add appends a message for field.
func (f FieldErrors) Add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}

// ValidationError is returned when an input payload is rejected before any write.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	if len(v.Fields) == 0 {
		return "validation error"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.Fields[k], ", ")))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from single-message fields.
func NewValidationError(fields map[string]string) *ValidationError {
	fe := FieldErrors{}
	for key, message := range fields {
		fe.Add(key, message)
	}
	return &ValidationError{Fields: fe}
}

// Storage wraps a driver error as ErrStorage keeping the driver error in the chain.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// InconsistentError records enough context to reconcile a partially applied protocol.
type InconsistentError struct {
	Operation string
	StallID   string
	WorkerID  string
	Period    string
	Completed []string
	Err       error
}

func (e *InconsistentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s left inconsistent state (stall=%s", e.Operation, e.StallID)
	if e.WorkerID != "" {
		fmt.Fprintf(&b, ", worker=%s", e.WorkerID)
	}
	if e.Period != "" {
		fmt.Fprintf(&b, ", period=%s", e.Period)
	}
	fmt.Fprintf(&b, ", completed=[%s])", strings.Join(e.Completed, ","))
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the ErrInconsistent kind and the failing cause.
func (e *InconsistentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInconsistent}
	}
	return []error{ErrInconsistent, e.Err}
}
