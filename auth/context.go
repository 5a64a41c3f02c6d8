package auth

import "context"

type contextKey int

const (
	identityKey contextKey = iota
	anonymousKey
)

// WithIdentity returns a new context with the given identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context.
// Returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// WithoutCredentials marks ctx so that requests made with it carry no
// Authorization header, even when a token is stored.
func WithoutCredentials(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey, true)
}

// CredentialsDisabled reports whether WithoutCredentials was applied.
func CredentialsDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey).(bool)
	return v
}
