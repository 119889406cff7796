package requesttrace

import (
	"context"
	"errors"

	"go.uber.org/zap"

	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "HARMONY_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo captures request-scoped metadata needed for audit stamps and the log sink.
// User fields are set only when ActorKind is user.
type AuditInfo struct {
	ActorKind ActorKind
	UserID    *string
	UserName  string
	Email     string
	CompanyID *string
	RequestID string
}

// ActorName is the value written to createdBy/updatedBy and to log entries.
func (a AuditInfo) ActorName() string {
	switch {
	case a.UserName != "":
		return a.UserName
	case a.UserID != nil && *a.UserID != "":
		return *a.UserID
	default:
		return string(a.ActorKind)
	}
}

// Company returns the caller's company id, or "" for anonymous and system actors.
func (a AuditInfo) Company() string {
	if a.CompanyID == nil {
		return ""
	}
	return *a.CompanyID
}

// LogFields describes the actor for request and service logs.
func (a AuditInfo) LogFields() []zap.Field {
	fields := []zap.Field{zap.String("actor_kind", string(a.ActorKind))}
	if a.UserID != nil && *a.UserID != "" {
		fields = append(fields, zap.String("user_id", *a.UserID))
	}
	if company := a.Company(); company != "" {
		fields = append(fields, zap.String("company_id", company))
	}
	return fields
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}

	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromCredentials builds an AuditInfo from authenticated user credentials and a request ID.
// Returns an error when creds are nil or missing a user id.
func FromCredentials(creds *platformauth.UserCredentials, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.ID == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	audit := AuditInfo{
		ActorKind: ActorKindUser,
		UserID:    &creds.ID,
		UserName:  creds.UserName,
		Email:     creds.Email,
		RequestID: requestID,
	}
	if creds.CompanyID != "" {
		audit.CompanyID = &creds.CompanyID
	}
	return audit, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests (e.g., login) where no user exists yet.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for CLI and background operations.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}
