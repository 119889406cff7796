package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	platformlogging "github.com/harmony-hq/harmony/platform/go/logging"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
)

// RequestIDHeader echoes the chi request id so clients can quote it when reporting problems.
const RequestIDHeader = "X-Request-Id"

// RequestTrace stores the caller's AuditInfo on the context and tags the request logger with it.
// Mount it after the JWT middleware.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set(RequestIDHeader, requestID)
		}
		logger := platformlogging.FromRequest(r, nil)

		audit := requesttrace.Anonymous(requestID)
		if creds, ok := platformauth.UserFromContext(r.Context()); ok && creds != nil {
			var err error
			if audit, err = requesttrace.FromCredentials(creds, requestID); err != nil {
				logger.Warn("reject credentials without user id", zap.Error(err))
				httpx.WriteProblem(w, httpx.Problem{
					Type:   httpx.ProblemTypeUnauthorized,
					Title:  "Unauthorized",
					Status: http.StatusUnauthorized,
					Detail: "token does not identify a user",
				})
				return
			}
		}

		ctx := requesttrace.IntoContext(r.Context(), audit)
		ctx = platformlogging.WithLogger(ctx, logger.With(audit.LogFields()...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
