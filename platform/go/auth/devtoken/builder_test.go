package devtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
)

func TestBuildUnsignedTokenFlowsThroughDevVerifier(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	token, err := Build(Params{
		UserID:    "admin-123",
		UserName:  "admin",
		CompanyID: "company-1",
		Roles:     []string{platformauth.RoleAdmin},
		Customers: []string{platformauth.ScopeAllSentinel},
	}, now)
	require.NoError(t, err)

	claims, err := platformauth.UnsignedTokenVerifier()(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "none", mustHeaderAlg(t, token))
	require.EqualValues(t, now.Add(time.Hour).Unix(), claims["exp"])

	creds, err := platformauth.DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.Equal(t, "admin-123", creds.ID)
	require.Equal(t, "company-1", creds.CompanyID)
	require.Equal(t, []string{platformauth.RoleAdmin}, creds.Roles)
	require.Empty(t, creds.Workers)
}

func TestBuildSignedToken(t *testing.T) {
	t.Parallel()

	token, err := Build(Params{UserID: "u", CompanyID: "c", Secret: "s3cret"}, time.Time{})
	require.NoError(t, err)

	claims, err := platformauth.NewTokenManager("s3cret", time.Hour).Validate(token)
	require.NoError(t, err)
	require.Equal(t, "u", claims.Subject)
	require.Equal(t, "c", claims.Company)
}

func TestBuildValidation(t *testing.T) {
	t.Parallel()

	_, err := Build(Params{CompanyID: "c"}, time.Time{})
	require.Error(t, err)
	_, err = Build(Params{UserID: "u"}, time.Time{})
	require.Error(t, err)
}

func mustHeaderAlg(t *testing.T, token string) string {
	t.Helper()
	claims, err := platformauth.UnsignedTokenVerifier()(context.Background(), headerAsPayload(token))
	require.NoError(t, err)
	alg, _ := claims["alg"].(string)
	return alg
}

// headerAsPayload swaps segments so the header can be decoded with the payload decoder.
func headerAsPayload(token string) string {
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			return "x." + token[:i]
		}
	}
	return token
}
