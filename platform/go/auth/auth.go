package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ctxKey string

const (
	ctxUserCredentials ctxKey = "HARMONY_USER_CREDENTIALS"
)

// UserCredentials is the authenticated actor attached to each request.
// Customers and Workers carry the tag scope; either may contain ScopeAllSentinel.
type UserCredentials struct {
	ID        string
	UserName  string
	Email     string
	CompanyID string
	Roles     []string
	Customers []string
	Workers   []string
}

// HasRole reports whether the credentials carry role.
func (c *UserCredentials) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the credentials carry any of roles. Super admins always match.
func (c *UserCredentials) HasAnyRole(roles ...string) bool {
	if c.HasRole(RoleSuperAdmin) {
		return true
	}
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// WithUser stores credentials on ctx. Used by the JWT middleware and by tests.
func WithUser(ctx context.Context, creds *UserCredentials) context.Context {
	return context.WithValue(ctx, ctxUserCredentials, creds)
}

func UserFromContext(ctx context.Context) (*UserCredentials, bool) {
	v := ctx.Value(ctxUserCredentials)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*UserCredentials)
	return u, ok
}

// VerifyFunc validates the incoming JWT and returns its claims map.
type VerifyFunc func(ctx context.Context, token string) (map[string]interface{}, error)

// ExtractFunc converts a claims map into UserCredentials.
type ExtractFunc func(claims map[string]interface{}) (*UserCredentials, error)

// JWT parses the request and sets the context credentials using the provided verify/extract functions.
// Requests without a token pass through anonymously; RequireRole rejects them later.
func JWT(verify VerifyFunc, extract ExtractFunc) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.JWT: verify func must not be nil")
	}
	if extract == nil {
		extract = DefaultCredentialExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := ExtractJWTToken(r)
			if token == "" || !found {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verify(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="api", error="invalid_token", error_description="%s"`, err.Error()))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			creds, err := extract(claims)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="invalid claims"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), creds)))
		})
	}
}

// DefaultCredentialExtractor converts Harmony claims into UserCredentials.
func DefaultCredentialExtractor(claims map[string]interface{}) (*UserCredentials, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}

	id := fallbackStringClaim(claims, []string{"sub", "user_id"}, "")
	if id == "" {
		return nil, errors.New("subject claim required")
	}

	creds := &UserCredentials{
		ID:        id,
		UserName:  extractStringClaim(claims, "userName"),
		Email:     extractStringClaim(claims, "email"),
		CompanyID: extractStringClaim(claims, "company"),
		Roles:     extractStringSliceClaim(claims, "roles"),
		Customers: extractStringSliceClaim(claims, "customers"),
		Workers:   extractStringSliceClaim(claims, "workers"),
	}

	return creds, nil
}

func extractStringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key]; ok {
		if strVal, valid := v.(string); valid {
			return strVal
		}
	}
	return ""
}

func extractStringSliceClaim(claims map[string]interface{}, key string) []string {
	switch v := claims[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func fallbackStringClaim(claims map[string]interface{}, keys []string, def string) string {
	for _, key := range keys {
		if v := extractStringClaim(claims, key); v != "" {
			return v
		}
	}
	return def
}

func parseUnsignedJWTClaims(token string) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid token format")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	claims := make(map[string]interface{})
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	return claims, nil
}

// UnsignedTokenVerifier returns a VerifyFunc that decodes unsigned JWT payloads without validation.
// Only wired when AUTH_PROVIDER=dev.
func UnsignedTokenVerifier() VerifyFunc {
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		return parseUnsignedJWTClaims(token)
	}
}

// RequireRole gates a route group on any of the given roles; super_admin always passes.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := UserFromContext(r.Context())
			if !ok || creds == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !creds.HasAnyRole(roles...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
