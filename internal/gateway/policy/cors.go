package policy

import "strings"

// CORSConfig is the static cross-origin allow-list, evaluated independently
// of the path rules and applied to every response regardless of the auth
// outcome.
type CORSConfig struct {
	// AllowedOriginPatterns are exact origins or wildcard-subdomain
	// patterns like "https://*.example.com".
	AllowedOriginPatterns []string
	AllowedMethods        []string
	AllowedHeaders        []string
	ExposedHeaders        []string
	AllowCredentials      bool
}

// DefaultCORS mirrors the gateway's standard frontend allow-list.
func DefaultCORS() CORSConfig {
	return CORSConfig{
		AllowedOriginPatterns: []string{"http://localhost:3000"},
		AllowedMethods:        []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:        []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:        []string{"Authorization"},
		AllowCredentials:      true,
	}
}

// OriginAllowed reports whether origin matches the allow-list. Wildcard
// patterns match exactly one scheme and any single leading subdomain chain,
// e.g. "https://*.example.com" matches "https://app.example.com".
func (c CORSConfig) OriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, pattern := range c.AllowedOriginPatterns {
		if matchOrigin(pattern, origin) {
			return true
		}
	}
	return false
}

func matchOrigin(pattern, origin string) bool {
	scheme, host, ok := strings.Cut(pattern, "://")
	if !ok {
		return pattern == origin
	}
	wildcardHost, isWildcard := strings.CutPrefix(host, "*.")
	if !isWildcard {
		return pattern == origin
	}

	originScheme, originHost, ok := strings.Cut(origin, "://")
	if !ok || originScheme != scheme {
		return false
	}
	return originHost == wildcardHost || strings.HasSuffix(originHost, "."+wildcardHost)
}
