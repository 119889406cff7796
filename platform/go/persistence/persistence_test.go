package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	sqlassets "github.com/harmony-hq/harmony/database"
	"github.com/harmony-hq/harmony/platform/go/apperr"
)

func TestSplitStatementsDropsComments(t *testing.T) {
	t.Parallel()

	stmts := splitStatements(`
-- heading comment
CREATE TABLE a (id INT);

-- trailing
CREATE INDEX a_idx ON a (id);
`)
	require.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX a_idx ON a (id)"}, stmts)
}

func TestEmbeddedDDLSplits(t *testing.T) {
	t.Parallel()

	for _, file := range append(sqlassets.PlatformDDL(), sqlassets.CompanySpaceDDL()...) {
		require.NotEmpty(t, splitStatements(file))
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	require.NoError(t, MapError("noop", nil))
	require.ErrorIs(t, MapError("get stall", pgx.ErrNoRows), apperr.ErrNotFound)

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "workers_identification_unique"}
	err := MapError("create worker", unique)
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)
	require.Contains(t, err.Error(), "workers_identification_unique")

	err = MapError("list shifts", errors.New("connection reset"))
	require.ErrorIs(t, err, apperr.ErrStorage)

	already := apperr.NewValidationError(map[string]string{"name": "required"})
	require.Same(t, already, MapError("create", already))
}

func TestDocumentValidatorShift(t *testing.T) {
	t.Parallel()

	v := MustNewDocumentValidator()
	valid := map[string]any{
		"day": "2024-03-01", "type": "shift", "worker": "w", "stall": "s",
		"month": "03", "year": "2024", "startTime": "06:00", "endTime": "18:00",
	}
	require.NoError(t, v.Validate(context.Background(), DocumentShift, valid))

	invalid := map[string]any{"day": "01/03/2024", "type": "nap", "worker": "w", "stall": "s", "month": "13", "year": "2024"}
	err := v.Validate(context.Background(), DocumentShift, invalid)
	var validationErr *apperr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "/day")
	require.Contains(t, validationErr.Fields, "/type")
	require.Contains(t, validationErr.Fields, "/month")
}

func TestDocumentValidatorStallWorkerResolvesStepRef(t *testing.T) {
	t.Parallel()

	v := MustNewDocumentValidator()
	doc := map[string]any{
		"id": "w-1", "name": "Ana", "index": 0, "jump": 0,
		"sequence": []any{map[string]any{"startTime": "25:00", "endTime": "", "color": "#fff"}},
	}
	err := v.Validate(context.Background(), DocumentStallWorker, doc)
	var validationErr *apperr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "/sequence/0/startTime")
}

func TestDocumentValidatorAdhocCaches(t *testing.T) {
	t.Parallel()

	v := MustNewDocumentValidator()
	schema := []byte(`{"type":"object","required":["size"],"properties":{"size":{"type":"string","maxLength":3}}}`)

	require.NoError(t, v.ValidateWith(context.Background(), schema, map[string]any{"size": "XL"}))
	require.Error(t, v.ValidateWith(context.Background(), schema, map[string]any{"size": "XXXXL"}))
	require.Len(t, v.adhoc, 1)

	require.Error(t, v.Validate(context.Background(), "unknown.json", map[string]any{}))
}

func TestBuildUserOrderBy(t *testing.T) {
	t.Parallel()

	order, err := buildUserOrderBy(nil)
	require.NoError(t, err)
	require.Equal(t, "ORDER BY user_name ASC", order)

	sort := "-createdAt, email"
	order, err = buildUserOrderBy(&sort)
	require.NoError(t, err)
	require.Equal(t, "ORDER BY created_at DESC, email ASC", order)

	bad := "password"
	_, err = buildUserOrderBy(&bad)
	require.Error(t, err)
}
