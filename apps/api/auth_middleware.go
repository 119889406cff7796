package main

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
)

// buildAuthMiddleware constructs the JWT middleware and enforces the company claim.
func buildAuthMiddleware(cfg config, tokens *platformauth.TokenManager, logger *zap.Logger) func(http.Handler) http.Handler {
	var verify platformauth.VerifyFunc
	switch cfg.AuthProvider {
	case "jwt":
		verify = tokens.Verifier()
	case "dev":
		logger.Warn("using dev auth middleware; do not use in production")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		logger.Fatal("unsupported auth provider", zap.String("provider", cfg.AuthProvider))
	}

	return platformauth.JWT(verify, companyClaimExtractor)
}

func companyClaimExtractor(claims map[string]interface{}) (*platformauth.UserCredentials, error) {
	creds, err := platformauth.DefaultCredentialExtractor(claims)
	if err != nil {
		return nil, err
	}
	if creds.CompanyID == "" {
		return nil, errors.New("company claim required")
	}
	cid, err := uuid.Parse(creds.CompanyID)
	if err != nil {
		return nil, errors.New("company claim must be a UUID")
	}
	creds.CompanyID = cid.String()
	return creds, nil
}
