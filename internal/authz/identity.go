package authz

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the resolved principal for one request: who they are and the
// role set everything else derives from. Derived values (primary role,
// aggregate, guards) are recomputed from Roles on demand, never cached on
// the struct, so a role change can't leave a stale capability behind.
type Identity struct {
	UserID uuid.UUID
	Roles  []Role
}

// Primary returns the highest-precedence role.
func (id Identity) Primary() Role {
	return PrimaryRole(id.Roles)
}

// Aggregate returns the combined capability set.
func (id Identity) Aggregate() Aggregated {
	return Aggregate(id.Roles)
}

// HasRole reports whether the identity holds the exact role.
func (id Identity) HasRole(r Role) bool {
	return HasRole(id.Roles, r)
}

type identityContextKey struct{}

// ContextWithIdentity stores the resolved identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context. The second return
// is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
