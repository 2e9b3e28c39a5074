package tenant

import (
	"net"
	"regexp"
	"strings"
)

// DemoTenantID is the sentinel tenant used for localhost and internal
// hosts. It never exists in the registry.
const DemoTenantID = "demo"

// subdomainPattern is the only gate between the Host header and a registry
// lookup: lowercase alphanumerics and hyphens, 1-50 chars, no leading or
// trailing hyphen. Anything else (path segments, script tags, SQL
// metacharacters, null bytes, oversize labels) is rejected, not sanitized.
var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,48}[a-z0-9])?$`)

// ValidSubdomain reports whether s is an acceptable tenant subdomain.
func ValidSubdomain(s string) bool {
	return subdomainPattern.MatchString(s)
}

// ResolveSubdomain maps a raw Host header to a candidate tenant subdomain.
// It returns (DemoTenantID, true) for localhost, loopback IP literals and
// the internal hosting suffix, (sub, true) for a valid tenant subdomain,
// and ("", false) otherwise. It is total: no input makes it fail.
func ResolveSubdomain(host, internalSuffix string) (string, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", false
	}

	// Strip port. SplitHostPort fails on bare hosts; keep the original then.
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	// Only a host that IS a loopback literal counts. A host that merely
	// starts with one ("127.0.0.1.evil.com") is not trusted as local; it
	// falls through and dies in the registry lookup.
	if strings.Contains(host, "localhost") || isLoopback(host) {
		return DemoTenantID, true
	}
	if internalSuffix != "" && (host == strings.TrimPrefix(internalSuffix, ".") || strings.HasSuffix(host, internalSuffix)) {
		return DemoTenantID, true
	}

	// A tenant host needs at least sub.domain.tld.
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return "", false
	}

	sub := labels[0]
	if !ValidSubdomain(sub) {
		return "", false
	}
	return sub, true
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
