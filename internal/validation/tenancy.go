// Package validation checks user-supplied tenant keys and hostnames.
package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

var tenantKeyRegex = regexp.MustCompile(`^[a-z0-9-]{2,64}$`)

var hostLabelRegex = regexp.MustCompile(`^[a-z0-9-]{1,63}$`)

var reservedTenantKeys = map[string]struct{}{
	"admin":   {},
	"api":     {},
	"www":     {},
	"static":  {},
	"assets":  {},
	"health":  {},
	"metrics": {},
	"sitemap": {},
	"login":   {},
	"signup":  {},
}

// ValidateTenantKey validates tenant key format and reserved names.
func ValidateTenantKey(key string) error {
	if !tenantKeyRegex.MatchString(key) {
		return fmt.Errorf("tenant key must be 2-64 characters and contain only lowercase letters, numbers, and hyphens")
	}

	if strings.HasPrefix(key, "-") || strings.HasSuffix(key, "-") {
		return fmt.Errorf("tenant key cannot start or end with a hyphen")
	}

	if _, exists := reservedTenantKeys[key]; exists {
		return fmt.Errorf("tenant key is reserved")
	}

	return nil
}

// ValidateHostname checks a normalized hostname (lowercase, no port).
// IP literals are rejected: storefronts are addressed by name.
func ValidateHostname(host string) error {
	if host == "" {
		return fmt.Errorf("hostname is required")
	}
	if len(host) > 253 {
		return fmt.Errorf("hostname must be at most 253 characters")
	}
	if net.ParseIP(host) != nil {
		return fmt.Errorf("hostname must not be an IP address")
	}

	for _, label := range strings.Split(host, ".") {
		if !hostLabelRegex.MatchString(label) {
			return fmt.Errorf("hostname label %q is invalid", label)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("hostname label %q cannot start or end with a hyphen", label)
		}
	}
	return nil
}

// IsCustomDomain reports whether host lies outside the platform domain.
// The platform domain itself and its subdomains are not custom.
func IsCustomDomain(host, platformDomain string) bool {
	platformDomain = strings.ToLower(strings.TrimSpace(platformDomain))
	if platformDomain == "" {
		return true
	}
	return host != platformDomain && !strings.HasSuffix(host, "."+platformDomain)
}
