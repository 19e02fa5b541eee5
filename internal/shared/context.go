package shared

import "context"

// Identity is the trusted authorization context supplied by the caller.
// The service performs no authentication; upstream gateways are expected
// to have verified the actor before the request reaches us.
type Identity struct {
	ActorID int64
	OrgID   int64
	Role    string
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
