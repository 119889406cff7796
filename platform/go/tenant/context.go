package tenant

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Space captures the resolved company routing metadata for a request.
// Middleware attaches it to the context once the company claim has been resolved
// against the company directory.
type Space struct {
	CompanyID    uuid.UUID
	CompanyName  string
	DatabaseName string
	SchemaName   string
}

type ctxKey string

const spaceKey ctxKey = "HARMONY_COMPANY_SPACE"

// WithSpace returns a derived context carrying the company Space.
func WithSpace(ctx context.Context, space Space) context.Context {
	return context.WithValue(ctx, spaceKey, space)
}

// FromContext extracts the company Space and a boolean indicating presence.
func FromContext(ctx context.Context) (Space, bool) {
	v := ctx.Value(spaceKey)
	if v == nil {
		return Space{}, false
	}

	space, ok := v.(Space)
	return space, ok
}

// BuildSchemaName returns the PostgreSQL schema that holds a company's operational records.
// Format: <rootSchema>__company_<databaseSnake>.
func BuildSchemaName(rootSchema, databaseName string) string {
	rootSchema = strings.TrimSpace(rootSchema)
	return rootSchema + "__company_" + ToSnake(databaseName)
}
