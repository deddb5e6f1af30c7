// Package featureflags evaluates deployment-level flags, optionally rolled
// out to a percentage of tenants.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags consulted by the server.
const (
	FlagSitemap            = "sitemap"
	FlagVendorRegistration = "vendor_registration"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "sitemap=on,vendor_registration=25%,legacy_theme=off"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a tenant.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic tenant rollout, e.g. 25%)
func (m *Manager) Enabled(name, tenantKey string) bool {
	return m.EnabledOr(name, tenantKey, false)
}

// EnabledOr is Enabled with fallback returned for flags that are not
// configured or carry an unrecognized value.
func (m *Manager) EnabledOr(name, tenantKey string, fallback bool) bool {
	if m == nil {
		return fallback
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return fallback
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil {
			return fallback
		}
		if pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if tenantKey == "" {
			return false
		}
		return rolloutBucket(name, tenantKey) < pct
	}

	return fallback
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one tenant.
func (m *Manager) Snapshot(tenantKey string) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, tenantKey)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, tenantKey string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%s", normalize(name), tenantKey)))
	return int(h.Sum32() % 100)
}
