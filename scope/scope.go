// Package scope carries the security context under which scheduler-
// initiated work runs. Downstream tenant-scoped collaborators (storage,
// scan orchestration) read the scope from the context to authorize calls.
//
// Scope is an explicit context value, never ambient mutable state: each
// dispatch derives its own context, so concurrent workers cannot observe
// one another's impersonation.
//
// The scheduler is the only component permitted to mint a system-wide
// scope outside of an authenticated admin request.
package scope

import (
	"context"

	"github.com/ermey-enterprises/marketalert/id"
)

// Scope identifies the acting principal and its tenant boundary.
type Scope struct {
	// Principal names the actor, e.g. "scan-scheduler".
	Principal string

	// TenantID bounds the scope to one tenant. Nil for system scopes.
	TenantID id.TenantID

	// InstitutionID is the representative institution used for log
	// correlation during tenant-scoped dispatch. Nil for system scopes.
	InstitutionID id.InstitutionID

	// System marks a cross-tenant scope.
	System bool
}

// NewSystemScope returns a cross-tenant scope for the given principal.
// Used for enumeration reads that no single tenant may perform.
func NewSystemScope(principal string) Scope {
	return Scope{Principal: principal, System: true}
}

// NewTenantScope returns a single-tenant scope with a representative
// institution for correlation.
func NewTenantScope(principal string, tenant id.TenantID, representative id.InstitutionID) Scope {
	return Scope{
		Principal:     principal,
		TenantID:      tenant,
		InstitutionID: representative,
	}
}

type ctxKey struct{}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext extracts the scope from the context.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	return s, ok
}

// IsSystem reports whether the context carries a system scope.
func IsSystem(ctx context.Context) bool {
	s, ok := FromContext(ctx)
	return ok && s.System
}

// Allows reports whether the scope authorizes access to the tenant.
// System scopes allow every tenant.
func (s Scope) Allows(tenant id.TenantID) bool {
	if s.System {
		return true
	}
	return !s.TenantID.IsNil() && s.TenantID.String() == tenant.String()
}
