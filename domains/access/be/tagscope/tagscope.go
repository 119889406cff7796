// Package tagscope decides which tagged records a user may see or touch.
package tagscope

import (
	"fmt"

	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
)

// Scope is the set of tags a user is authorized for. It may contain the "all" sentinel.
type Scope []string

// Unrestricted reports whether the scope carries the "all" sentinel.
func (s Scope) Unrestricted() bool {
	for _, tag := range s {
		if tag == platformauth.ScopeAllSentinel {
			return true
		}
	}
	return false
}

// Tagged is implemented by records subject to tag scoping.
type Tagged interface {
	ScopeTags() []string
}

// Visible reports whether a record carrying tags is inside scope.
func Visible(scope Scope, tags []string) bool {
	if scope.Unrestricted() {
		return true
	}
	for _, want := range scope {
		for _, have := range tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Authorize returns apperr.ErrUnauthorized when tags fall outside scope.
func Authorize(scope Scope, tags []string) error {
	if Visible(scope, tags) {
		return nil
	}
	return fmt.Errorf("record outside tag scope: %w", apperr.ErrUnauthorized)
}

// Filter keeps the records visible under scope, preserving order.
func Filter[T Tagged](scope Scope, records []T) []T {
	if scope.Unrestricted() {
		return records
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if Visible(scope, rec.ScopeTags()) {
			out = append(out, rec)
		}
	}
	return out
}

// SQLScope expresses scope as a repository predicate: all=true means no filter,
// otherwise rows must satisfy `tags && $n` with the returned tags.
func SQLScope(scope Scope) (all bool, tags []string) {
	if scope.Unrestricted() {
		return true, nil
	}
	tags = make([]string, 0, len(scope))
	tags = append(tags, scope...)
	return false, tags
}

// CustomerScope returns the customer tag scope of creds.
// Users without credentials see nothing.
func CustomerScope(creds *platformauth.UserCredentials) Scope {
	if creds == nil {
		return Scope{}
	}
	if creds.HasRole(platformauth.RoleSuperAdmin) {
		return Scope{platformauth.ScopeAllSentinel}
	}
	return Scope(creds.Customers)
}

// WorkerScope returns the worker tag scope of creds.
func WorkerScope(creds *platformauth.UserCredentials) Scope {
	if creds == nil {
		return Scope{}
	}
	if creds.HasRole(platformauth.RoleSuperAdmin) {
		return Scope{platformauth.ScopeAllSentinel}
	}
	return Scope(creds.Workers)
}
