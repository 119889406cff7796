package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// Resolver defines the minimal lookup capability required to populate a company Space.
// Implemented by the companies service (the tenant directory).
type Resolver interface {
	GetCompanyDatabase(ctx context.Context, companyID uuid.UUID) (tenant.Space, error)
}

// Config controls middleware behavior.
type Config struct {
	// Optional small in-memory TTL cache to avoid directory hits; zero disables caching.
	CacheTTL time.Duration
	// Logger is used when the request carries no logger of its own.
	Logger *zap.Logger
}

// WithCompanySpace resolves the company claim and attaches tenant.Space to the context.
// Anonymous requests pass through untouched so public routes can share the router.
func WithCompanySpace(resolver Resolver, cfg Config) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("company middleware: resolver is required")
	}

	var cache *spaceCache
	if cfg.CacheTTL > 0 {
		cache = newSpaceCache(cfg.CacheTTL)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := platformauth.UserFromContext(r.Context())
			if !ok || creds == nil {
				next.ServeHTTP(w, r)
				return
			}
			if creds.CompanyID == "" {
				writeUnauthorized(w, "token carries no company")
				return
			}

			cid, err := uuid.Parse(creds.CompanyID)
			if err != nil {
				writeUnauthorized(w, "invalid company id")
				return
			}

			if cached, hit := cache.get(cid); hit {
				next.ServeHTTP(w, r.WithContext(tenant.WithSpace(r.Context(), cached)))
				return
			}

			space, err := resolver.GetCompanyDatabase(r.Context(), cid)
			if errors.Is(err, apperr.ErrTenantNotFound) {
				writeUnauthorized(w, "company not found")
				return
			}
			if err != nil {
				httpx.WriteError(w, r, cfg.Logger, err)
				return
			}

			cache.put(space)

			next.ServeHTTP(w, r.WithContext(tenant.WithSpace(r.Context(), space)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	httpx.WriteProblem(w, httpx.Problem{
		Type:   httpx.ProblemTypeUnauthorized,
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
		Detail: detail,
	})
}

type spaceCache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[uuid.UUID]cacheItem
}

type cacheItem struct {
	space     tenant.Space
	expiresAt time.Time
}

func newSpaceCache(ttl time.Duration) *spaceCache {
	return &spaceCache{ttl: ttl, now: time.Now, items: make(map[uuid.UUID]cacheItem)}
}

func (c *spaceCache) get(id uuid.UUID) (tenant.Space, bool) {
	if c == nil {
		return tenant.Space{}, false
	}
	c.mu.RLock()
	item, ok := c.items[id]
	c.mu.RUnlock()
	if !ok || c.now().After(item.expiresAt) {
		return tenant.Space{}, false
	}
	return item.space, true
}

func (c *spaceCache) put(space tenant.Space) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items[space.CompanyID] = cacheItem{space: space, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
