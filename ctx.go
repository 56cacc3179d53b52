package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithPrincipalContext sets the PrincipalClaims in the given context
func WithPrincipalContext(r context.Context, claims *PrincipalClaims) context.Context {
	return context.WithValue(r, principalCtxKey, claims)
}

// PrincipalFromContext extracts the PrincipalClaims from the standard context
func PrincipalFromContext(ctx context.Context) (*PrincipalClaims, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*PrincipalClaims)
	return raw, ok
}

// RouterPrincipal extracts the PrincipalClaims from the router context
func RouterPrincipal(ctx router.Context, key string) (*PrincipalClaims, bool) {
	if key == "" {
		key = "auth_session"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(*PrincipalClaims)
	return claims, ok
}
