package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	DomainKeyPrefix = "tenant:domain:%s"
	TenantKeyPrefix = "tenant:key:%s"
)

// DefaultDomainTTL bounds how long a stale domain mapping can survive a missed invalidation.
const DefaultDomainTTL = time.Minute

// DomainKey is the cache key for a normalized host.
func DomainKey(host string) string {
	return fmt.Sprintf(DomainKeyPrefix, host)
}

// TenantKey is the cache key for a tenant looked up by its key.
func TenantKey(key string) string {
	return fmt.Sprintf(TenantKeyPrefix, key)
}

// InvalidateDomains drops cached mappings for the given hosts.
func (s *Store) InvalidateDomains(ctx context.Context, hosts ...string) {
	keys := make([]string, 0, len(hosts))
	for _, h := range hosts {
		keys = append(keys, DomainKey(h))
	}
	s.Invalidate(ctx, keys...)
}

// InvalidateTenant drops the cached tenant record and every cached host that maps to it.
func (s *Store) InvalidateTenant(ctx context.Context, key string, hosts ...string) {
	keys := make([]string, 0, len(hosts)+1)
	keys = append(keys, TenantKey(key))
	for _, h := range hosts {
		keys = append(keys, DomainKey(h))
	}
	s.Invalidate(ctx, keys...)
}
