// Package registry maps inbound hostnames to tenants.
package registry

import "strings"

// NormalizeHost lowercases host and strips any port, IPv6 brackets and
// trailing dot. For a comma-separated forwarded header only the first
// entry is used.
func NormalizeHost(host string) string {
	h := strings.TrimSpace(host)
	if i := strings.IndexByte(h, ','); i >= 0 {
		h = strings.TrimSpace(h[:i])
	}

	switch {
	case strings.HasPrefix(h, "["):
		if end := strings.IndexByte(h, ']'); end > 0 {
			h = h[1:end]
		}
	case strings.Count(h, ":") == 1:
		h = h[:strings.IndexByte(h, ':')]
	}

	h = strings.TrimSuffix(h, ".")
	return strings.ToLower(h)
}
