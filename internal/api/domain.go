package api

import "strings"

// NormalizeDomain trims input and prefixes https:// when no scheme is given.
func NormalizeDomain(input string) string {
	d := strings.TrimSpace(input)
	if d == "" {
		return ""
	}
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		return d
	}
	return "https://" + d
}
