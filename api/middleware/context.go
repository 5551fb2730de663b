package middleware

import (
	"context"

	"github.com/kestrelcommerce/storefront-backend/internal/identity"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// WithIdentity injects the resolved caller identity into the context.
func WithIdentity(ctx context.Context, ident identity.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, ident)
}

// IdentityFromContext returns the identity seeded by the Identity middleware.
// The zero identity means the middleware did not run.
func IdentityFromContext(ctx context.Context) identity.Identity {
	if ctx == nil {
		return identity.Identity{}
	}
	if v, ok := ctx.Value(ctxIdentity).(identity.Identity); ok {
		return v
	}
	return identity.Identity{}
}
