package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Registry looks up the tenant key for a normalized host. A miss is
// ("", false, nil); errors are reserved for backend failures.
type Registry interface {
	Lookup(ctx context.Context, host string) (string, bool, error)
}

// StaticDomain is one hostname entry in a static registry file.
type StaticDomain struct {
	Domain  string `yaml:"domain"`
	Primary bool   `yaml:"primary"`
}

// StaticTenant groups the hostnames of one tenant.
type StaticTenant struct {
	Key     string         `yaml:"key"`
	Domains []StaticDomain `yaml:"domains"`
}

type staticFile struct {
	Tenants []StaticTenant `yaml:"tenants"`
}

// StaticRegistry is an immutable, config-backed host map.
type StaticRegistry struct {
	hosts     map[string]string
	primaries map[string]string
}

// NewStaticRegistry validates entries and builds the host map. Every host
// must be unique across tenants and each tenant may mark at most one primary.
// A tenant with domains but no explicit primary gets its first domain.
func NewStaticRegistry(tenants []StaticTenant) (*StaticRegistry, error) {
	r := &StaticRegistry{
		hosts:     make(map[string]string),
		primaries: make(map[string]string),
	}

	for _, t := range tenants {
		if t.Key == "" {
			return nil, fmt.Errorf("static registry: tenant without key")
		}
		for _, d := range t.Domains {
			host := NormalizeHost(d.Domain)
			if host == "" {
				return nil, fmt.Errorf("static registry: tenant %q has an empty domain", t.Key)
			}
			if owner, dup := r.hosts[host]; dup {
				return nil, fmt.Errorf("static registry: domain %q listed for %q and %q", host, owner, t.Key)
			}
			r.hosts[host] = t.Key

			if d.Primary {
				if existing, ok := r.primaries[t.Key]; ok {
					return nil, fmt.Errorf("static registry: tenant %q has two primary domains (%q, %q)", t.Key, existing, host)
				}
				r.primaries[t.Key] = host
			}
		}
		if _, ok := r.primaries[t.Key]; !ok && len(t.Domains) > 0 {
			r.primaries[t.Key] = NormalizeHost(t.Domains[0].Domain)
		}
	}
	return r, nil
}

// ParseStatic decodes a YAML registry document.
func ParseStatic(data []byte) (*StaticRegistry, error) {
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("static registry: %w", err)
	}
	return NewStaticRegistry(f.Tenants)
}

// LoadStaticFile reads and parses the registry file at path.
func LoadStaticFile(path string) (*StaticRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("static registry: %w", err)
	}
	return ParseStatic(data)
}

// Lookup implements Registry.
func (r *StaticRegistry) Lookup(_ context.Context, host string) (string, bool, error) {
	key, ok := r.hosts[host]
	return key, ok, nil
}

// PrimaryDomain returns the primary host configured for tenantKey.
func (r *StaticRegistry) PrimaryDomain(tenantKey string) (string, bool) {
	host, ok := r.primaries[tenantKey]
	return host, ok
}

// Len returns the number of configured hosts.
func (r *StaticRegistry) Len() int {
	return len(r.hosts)
}

// ChainRegistry consults each registry in order and returns the first match.
type ChainRegistry []Registry

// Lookup implements Registry. A backend error stops the chain.
func (c ChainRegistry) Lookup(ctx context.Context, host string) (string, bool, error) {
	for _, reg := range c {
		if reg == nil {
			continue
		}
		key, ok, err := reg.Lookup(ctx, host)
		if err != nil {
			return "", false, err
		}
		if ok {
			return key, true, nil
		}
	}
	return "", false, nil
}
