package http

import (
	"context"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/domain"
)

type ctxKey int

const (
	ctxKeyIdentity ctxKey = iota
	ctxKeyToken
)

// WithIdentity attaches the authenticated identity to the request context.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, identity)
}

// IdentityFromContext returns the authenticated identity, if any. Handlers
// must treat a false result as an anonymous request, not an error.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(ctxKeyIdentity).(domain.Identity)
	return identity, ok
}

// WithToken attaches the raw bearer token to the request context so it can
// be propagated to downstream calls.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyToken, token)
}

// TokenFromContext returns the raw bearer token, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ctxKeyToken).(string)
	return token, ok && token != ""
}
