package devtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
)

// Params captures the claims required to mint a token for local and CI environments.
// No environment variables are read so the builder stays deterministic for tooling.
type Params struct {
	UserID    string
	UserName  string
	Email     string
	CompanyID string
	Roles     []string
	Customers []string
	Workers   []string
	ExpiresIn time.Duration // default 1h if zero
	// Secret signs the token with HS256; when empty the token is unsigned (alg "none")
	// and only accepted by an api running with AUTH_PROVIDER=dev.
	Secret string
}

// Build returns a signed or unsigned token depending on p.Secret.
func Build(p Params, now time.Time) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", errors.New("userID is required")
	}
	if strings.TrimSpace(p.CompanyID) == "" {
		return "", errors.New("companyID is required")
	}

	expiresIn := p.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	if p.Secret != "" {
		tm := platformauth.NewTokenManager(p.Secret, expiresIn)
		token, _, err := tm.Issue(platformauth.UserCredentials{
			ID:        p.UserID,
			UserName:  p.UserName,
			Email:     p.Email,
			CompanyID: p.CompanyID,
			Roles:     p.Roles,
			Customers: p.Customers,
			Workers:   p.Workers,
		})
		return token, err
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}

	payload := map[string]interface{}{
		"iss":       "harmony-dev",
		"sub":       p.UserID,
		"iat":       now.Unix(),
		"exp":       now.Add(expiresIn).Unix(),
		"userName":  p.UserName,
		"email":     p.Email,
		"company":   p.CompanyID,
		"roles":     nonNil(p.Roles),
		"customers": nonNil(p.Customers),
		"workers":   nonNil(p.Workers),
	}

	headerSegment, err := encodeSegment(map[string]interface{}{"alg": "none", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	payloadSegment, err := encodeSegment(payload)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s.%s.", headerSegment, payloadSegment), nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func encodeSegment(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
