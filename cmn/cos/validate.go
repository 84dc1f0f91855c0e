package cos

import "strings"

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// IsAlnumUnderscore reports whether s contains only ASCII letters, digits,
// and underscores - the constraint on most system-metrics string fields
// (vendor, partner, device, software, gpu, cpu, device_id, device_region,
// tenancy, advertising_id - §6).
func IsAlnumUnderscore(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isAlpha(c) && c != '_' {
			return false
		}
	}
	return true
}

// IsAlnumDash reports whether s contains only ASCII letters, digits, and
// dashes - the constraint on system-metrics' partner_guid field (§6).
func IsAlnumDash(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isAlpha(c) && c != '-' {
			return false
		}
	}
	return true
}

// IsUnderRoot reports whether the cleaned form of elem stays inside root
// once joined - no "..", no absolute escape - guarding cache and persona
// file lookups (§4.7, §6) against a path-traversing key or id.
func IsUnderRoot(elem string) bool {
	if elem == "" {
		return false
	}
	if strings.Contains(elem, "..") {
		return false
	}
	return !strings.HasPrefix(elem, "/") && !strings.HasPrefix(elem, "\\")
}
