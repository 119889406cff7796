package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestToSnake(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Acme":             "acme",
		"acme-security":    "acme_security",
		" Vigilancia  S.A": "vigilancia_s_a",
		"__x__":            "x",
	}
	for in, want := range cases {
		require.Equal(t, want, ToSnake(in), in)
	}
}

func TestBuildSchemaName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "harmony__company_acme_security", BuildSchemaName("harmony", "Acme-Security"))
}

func TestSpaceRoundTrip(t *testing.T) {
	t.Parallel()

	space := Space{CompanyID: uuid.New(), SchemaName: "harmony__company_acme"}
	ctx := WithSpace(context.Background(), space)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, space, got)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
}
