package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerEmitsSeverityAndComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(Config{Component: "harmony-test", Level: "debug", Output: &buf})
	require.NoError(t, err)

	logger.Warn("stall pointer stale", zap.String("stall_id", "s-1"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "WARNING", entry["severity"])
	require.Equal(t, "harmony-test", entry["component"])
	require.Equal(t, "s-1", entry["stall_id"])
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(Config{Level: "chatty"})
	require.Error(t, err)
}

func TestNewLoggerRejectsUnknownEncoding(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(Config{Encoding: "xml"})
	require.Error(t, err)
}

func TestRequestLoggerStoresLoggerOnContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base, err := NewLogger(Config{Output: &buf})
	require.NoError(t, err)

	var seen bool
	handler := middleware.RequestID(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = FromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stalls", nil))

	require.True(t, seen)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, buf.String(), `"request_id"`)
	require.Contains(t, buf.String(), `"status":202`)
}

func TestFromContextOrFallsBack(t *testing.T) {
	t.Parallel()

	fallback := zap.NewNop()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Same(t, fallback, FromContextOr(req.Context(), fallback))
	require.NotNil(t, FromContextOr(req.Context(), nil))
}

func TestCompletionLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path   string
		status int
		want   zapcore.Level
	}{
		{path: "/api/v1/shifts", status: http.StatusOK, want: zapcore.InfoLevel},
		{path: "/healthz", status: http.StatusOK, want: zapcore.DebugLevel},
		{path: "/readyz", status: http.StatusServiceUnavailable, want: zapcore.ErrorLevel},
		{path: "/api/v1/stalls", status: http.StatusForbidden, want: zapcore.WarnLevel},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, completionLevel(tc.path, tc.status), tc.path)
	}
}

func TestRequestLoggerRecordsRoutePattern(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base, err := NewLogger(Config{Output: &buf})
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(RequestLogger(base))
	router.Get("/stalls/{stallId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stalls/abc", nil))

	require.Contains(t, buf.String(), `"route":"/stalls/{stallId}"`)
	require.Contains(t, buf.String(), `"severity":"WARNING"`)
}
