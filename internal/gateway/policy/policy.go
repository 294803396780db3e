package policy

import (
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/domain"
)

// Reason explains a deny decision. Unauthenticated and Forbidden map to
// different HTTP status codes downstream (401 vs 403), so they must stay
// distinguishable.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnauthenticated
	ReasonForbidden
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonForbidden:
		return "forbidden"
	default:
		return "none"
	}
}

// Rule binds a path pattern to a required authority. An empty Authority
// marks a public route. Patterns are exact paths or prefix globs ending in
// "/**" (e.g. "/auth/**").
type Rule struct {
	Pattern   string
	Authority string
}

// Decision is the outcome of evaluating a path against the rule table.
type Decision struct {
	Allowed bool
	Reason  Reason
}

var (
	allow               = Decision{Allowed: true}
	denyUnauthenticated = Decision{Reason: ReasonUnauthenticated}
	denyForbidden       = Decision{Reason: ReasonForbidden}
)

// Policy is an ordered, first-match-wins rule table with default deny.
// Loaded once at startup and immutable thereafter.
type Policy struct {
	rules []Rule
}

// New builds a policy from an ordered rule list.
func New(rules ...Rule) *Policy {
	return &Policy{rules: rules}
}

// Default is the gateway's standard rule table: auth, public, and operator
// probe routes are open; admin routes need the admin authority; everything
// else needs an authenticated user.
func Default() *Policy {
	return New(
		Rule{Pattern: "/auth/**"},
		Rule{Pattern: "/v1/public/**"},
		Rule{Pattern: "/livez"},
		Rule{Pattern: "/readyz"},
		Rule{Pattern: "/metrics"},
		Rule{Pattern: "/admin/**", Authority: "admin"},
		Rule{Pattern: "/**", Authority: "user"},
	)
}

// Evaluate walks the rule list; the first rule whose pattern matches path
// wins. A winning rule without an authority allows unconditionally. One with
// an authority allows only an identity carrying it; otherwise the deny
// reason distinguishes a missing identity from an insufficient one. No
// matching rule means deny.
func (p *Policy) Evaluate(path string, identity *domain.Identity) Decision {
	for _, rule := range p.rules {
		if !matchPattern(rule.Pattern, path) {
			continue
		}
		if rule.Authority == "" {
			return allow
		}
		if identity == nil {
			return denyUnauthenticated
		}
		if identity.HasAuthority(rule.Authority) {
			return allow
		}
		return denyForbidden
	}
	if identity == nil {
		return denyUnauthenticated
	}
	return denyForbidden
}

// Public reports whether path wins a rule with no required authority. The
// interceptor uses this to skip token decoding entirely for public routes.
func (p *Policy) Public(path string) bool {
	for _, rule := range p.rules {
		if matchPattern(rule.Pattern, path) {
			return rule.Authority == ""
		}
	}
	return false
}

// matchPattern matches exact paths, or any path under the prefix when the
// pattern ends in "/**". The bare "/**" pattern matches everything.
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		if prefix == "" {
			return true
		}
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return pattern == path
}
