package auth

import (
	"context"
)

var authCtxKey = &contextKey{"auth"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithAuthContext sets the AuthContext in the given context
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey, ac)
}

// AuthFromContext finds the authorization context in the given context.
func AuthFromContext(ctx context.Context) (*AuthContext, bool) {
	raw, ok := ctx.Value(authCtxKey).(*AuthContext)
	return raw, ok
}

// WithClaimsContext sets the decoded TokenClaims in the given context
func WithClaimsContext(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// ClaimsFromContext extracts the TokenClaims from the given context
func ClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*TokenClaims)
	return raw, ok
}
