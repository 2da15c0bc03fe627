// Package utils holds small name helpers shared by the store, the zone loader
// and the authoritative responder.
package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalDNSName returns a DNS name in canonical form:
// lowercased, trimmed of surrounding whitespace, without trailing dots.
func CanonicalDNSName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimRight(name, ".")
}

// SameName reports whether two names are equal once canonicalized.
func SameName(a, b string) bool {
	return CanonicalDNSName(a) == CanonicalDNSName(b)
}

// GetApexDomain returns the registrable domain (eTLD+1) of name, or the
// canonical name itself when the public suffix list cannot place it.
func GetApexDomain(name string) string {
	name = CanonicalDNSName(name)
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}

// InZones reports whether name falls under any of the given zone roots.
func InZones(name string, zones []string) bool {
	cn := CanonicalDNSName(name)
	for _, z := range zones {
		root := CanonicalDNSName(z)
		if root == "" {
			continue
		}
		if cn == root || strings.HasSuffix(cn, "."+root) {
			return true
		}
	}
	return false
}
