package registry

import (
	"context"
	"time"

	"storefront/internal/cache"
	"storefront/internal/models"
	"storefront/internal/observability"
)

// DomainSource finds the tenant key owning an exact hostname. A miss is a
// NOT_FOUND AppError.
type DomainSource interface {
	TenantKeyForDomain(ctx context.Context, domain string) (string, error)
}

// DBRegistry resolves hosts from the tenant_domains table with an optional
// Redis read-through. Domain writes must invalidate cache.DomainKey(host).
type DBRegistry struct {
	source DomainSource
	cache  *cache.Store
	ttl    time.Duration
}

// NewDBRegistry returns a DBRegistry. A nil store or non-positive ttl disables caching.
func NewDBRegistry(source DomainSource, store *cache.Store, ttl time.Duration) *DBRegistry {
	if ttl <= 0 {
		store = nil
	}
	return &DBRegistry{source: source, cache: store, ttl: ttl}
}

type cachedDomain struct {
	TenantKey string `json:"tenant_key"`
}

// Lookup implements Registry. Misses are not cached so a newly added domain
// resolves on the next request.
func (r *DBRegistry) Lookup(ctx context.Context, host string) (string, bool, error) {
	var entry cachedDomain
	hit, err := r.cache.CacheAside(ctx, cache.DomainKey(host), &entry, r.ttl, func() error {
		key, err := r.source.TenantKeyForDomain(ctx, host)
		if err != nil {
			return err
		}
		entry.TenantKey = key
		return nil
	})
	if r.cache.Enabled() {
		result := "miss"
		if hit {
			result = "hit"
		}
		observability.DomainCacheLookups.WithLabelValues(result).Inc()
	}

	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return entry.TenantKey, entry.TenantKey != "", nil
}
