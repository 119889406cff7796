package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harmony-hq/harmony/platform/go/apperr"
)

func TestProblemFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"validation", apperr.NewValidationError(map[string]string{"name": "is required"}), http.StatusBadRequest, ProblemTypeValidation},
		{"unauthorized", fmt.Errorf("customer: %w", apperr.ErrUnauthorized), http.StatusForbidden, ProblemTypeUnauthorized},
		{"not found", fmt.Errorf("stall %w", apperr.ErrNotFound), http.StatusNotFound, ProblemTypeNotFound},
		{"tenant", apperr.ErrTenantNotFound, http.StatusNotFound, ProblemTypeNotFound},
		{"conflict", apperr.ErrAlreadyExists, http.StatusConflict, ProblemTypeConflict},
		{"sequence", apperr.ErrInvalidSequence, http.StatusUnprocessableEntity, ProblemTypeSequence},
		{"inconsistent", &apperr.InconsistentError{Operation: "apply_sequence", StallID: "s1"}, http.StatusInternalServerError, ProblemTypeInconsistent},
		{"storage", apperr.Storage("insert", errors.New("boom")), http.StatusInternalServerError, ProblemTypeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := ProblemFor(httptest.NewRequest(http.MethodGet, "/", nil), zaptest.NewLogger(t), tc.err)
			require.Equal(t, tc.status, p.Status)
			require.Equal(t, tc.typ, p.Type)
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), zaptest.NewLogger(t), errors.New("password=secret"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.NotContains(t, rec.Body.String(), "secret")
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var dst struct {
		Index int `json:"index"`
	}

	rec := httptest.NewRecorder()
	err := DecodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"index":"x"}`)), &dst)
	var validationErr *apperr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "index")

	err = DecodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``)), &dst)
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "body")

	require.NoError(t, DecodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"index":2}`)), &dst))
	require.Equal(t, 2, dst.Index)
}

func TestPathUUID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	var got uuid.UUID
	var gotErr error
	r := chi.NewRouter()
	r.Get("/stalls/{stallId}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = PathUUID(req, "stallId")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stalls/"+id.String(), nil))
	require.NoError(t, gotErr)
	require.Equal(t, id, got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stalls/not-a-uuid", nil))
	require.Error(t, gotErr)
}

func TestQueryList(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/shifts?months=01&months=02,03&years=2024", nil)
	months, err := QueryList(r, "months")
	require.NoError(t, err)
	require.Equal(t, []string{"01", "02", "03"}, months)

	types, err := QueryList(r, "types")
	require.NoError(t, err)
	require.Empty(t, types)
}

func TestQueryInt(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/workers?limit=5&skip=x", nil)
	limit, err := QueryInt(r, "limit", 20)
	require.NoError(t, err)
	require.Equal(t, 5, limit)

	def, err := QueryInt(r, "missing", 20)
	require.NoError(t, err)
	require.Equal(t, 20, def)

	_, err = QueryInt(r, "skip", 0)
	require.Error(t, err)
}

func TestQueryBool(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/customers?active=false&deleted=maybe", nil)
	active, err := QueryBool(r, "active")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.False(t, *active)

	missing, err := QueryBool(r, "missing")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = QueryBool(r, "deleted")
	require.Error(t, err)
}
