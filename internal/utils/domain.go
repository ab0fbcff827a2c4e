package utils

import (
	"net"
	"strings"
)

// NormalizeDomain trims whitespace and a trailing dot and lowercases the name.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
}

// IsValidDomain accepts hostnames made of letters, digits, dots and hyphens
// with at least one dot. IP addresses are rejected: every report category is
// keyed by a domain name.
func IsValidDomain(domain string) bool {
	if net.ParseIP(domain) != nil {
		return false
	}
	if len(domain) == 0 || len(domain) > 253 {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, ch := range label {
			if (ch < 'a' || ch > 'z') && (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') && ch != '-' {
				return false
			}
		}
	}
	return strings.Contains(domain, ".")
}
