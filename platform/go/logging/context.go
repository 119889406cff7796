package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// probePaths are logged at debug so liveness checks do not flood the request log.
var probePaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, if any.
func FromContext(ctx context.Context) (*zap.Logger, bool) {
	logger, ok := ctx.Value(ctxKey{}).(*zap.Logger)
	return logger, ok && logger != nil
}

// FromContextOr returns the request logger, else fallback, else a no-op logger.
func FromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := FromContext(ctx); ok {
		return logger
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// FromRequest is FromContextOr for an HTTP request.
func FromRequest(r *http.Request, fallback *zap.Logger) *zap.Logger {
	return FromContextOr(r.Context(), fallback)
}

// RequestLogger stores a request-scoped logger on the context and logs one line per request
// with the matched chi route. 5xx responses log at error, 4xx at warn.
func RequestLogger(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := []zap.Field{
				zap.String("http_method", r.Method),
				zap.String("path", r.URL.Path),
			}
			if requestID := middleware.GetReqID(r.Context()); requestID != "" {
				fields = append(fields, zap.String("request_id", requestID))
			}
			logger := base.With(fields...)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(WithLogger(r.Context(), logger)))

			status := ww.Status()
			if status == 0 {
				// Hijacked (websocket) or nothing written.
				status = http.StatusOK
			}
			level := completionLevel(r.URL.Path, status)
			if ce := logger.Check(level, "request completed"); ce != nil {
				ce.Write(
					zap.String("route", routePattern(r)),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

func completionLevel(path string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	}
	if _, ok := probePaths[path]; ok {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
