package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractJWTToken reads a bearer token from the Authorization header, or from the
// "token" query parameter for WebSocket upgrades that cannot set headers.
func ExtractJWTToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if q := strings.TrimSpace(r.URL.Query().Get("token")); q != "" {
			return q, true
		}
		return "", false
	}

	const prefix = "Bearer "
	// Case-insensitive prefix match.
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(authHeader[len(prefix):]), true
}

// Claims is the signed token payload issued at login.
type Claims struct {
	UserName  string   `json:"userName"`
	Email     string   `json:"email"`
	Company   string   `json:"company"`
	Roles     []string `json:"roles"`
	Customers []string `json:"customers"`
	Workers   []string `json:"workers"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if strings.TrimSpace(secret) == "" {
		panic("token manager requires a secret")
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for creds.
func (tm *TokenManager) Issue(creds UserCredentials) (string, time.Time, error) {
	if creds.ID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}

	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := Claims{
		UserName:  creds.UserName,
		Email:     creds.Email,
		Company:   creds.CompanyID,
		Roles:     creds.Roles,
		Customers: creds.Customers,
		Workers:   creds.Workers,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   creds.ID,
			Issuer:    "harmony",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies a signed token.
func (tm *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// Verifier adapts the manager to the JWT middleware.
func (tm *TokenManager) Verifier() VerifyFunc {
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		claims, err := tm.Validate(token)
		if err != nil {
			return nil, err
		}
		return claimsToMap(claims), nil
	}
}

func claimsToMap(c *Claims) map[string]interface{} {
	return map[string]interface{}{
		"sub":       c.Subject,
		"userName":  c.UserName,
		"email":     c.Email,
		"company":   c.Company,
		"roles":     c.Roles,
		"customers": c.Customers,
		"workers":   c.Workers,
	}
}
