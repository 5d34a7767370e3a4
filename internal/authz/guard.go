package authz

// Verdict is the outcome of a page guard evaluation.
type Verdict int

const (
	// VerdictLoading means identity is still resolving; render nothing yet.
	VerdictLoading Verdict = iota
	// VerdictSignIn means the caller is unauthenticated and must sign in.
	VerdictSignIn
	// VerdictDenied means the caller is authenticated but lacks the
	// required role or domain; send them to the landing page.
	VerdictDenied
	// VerdictAllow means the protected content may be served.
	VerdictAllow
)

// GuardRequest captures one page guard evaluation.
type GuardRequest struct {
	Loading        bool
	Authenticated  bool
	Roles          []Role
	RequiredRole   Role   // optional, zero value skips the check
	RequiredDomain Domain // optional, zero value skips the check
}

// PageGuard evaluates the four conditions in their fixed order: loading
// before authentication, authentication before role, role before domain.
// While loading, no other condition is consulted, so an unresolved identity
// never leaks a sign-in redirect or protected content.
func PageGuard(req GuardRequest) Verdict {
	if req.Loading {
		return VerdictLoading
	}
	if !req.Authenticated {
		return VerdictSignIn
	}
	if req.RequiredRole != "" && !HasRole(req.Roles, req.RequiredRole) {
		return VerdictDenied
	}
	if req.RequiredDomain != "" && !CanAccessDomain(req.Roles, req.RequiredDomain) {
		return VerdictDenied
	}
	return VerdictAllow
}

// Actions describes which mutation controls are available to a role set
// within one domain.
type Actions struct {
	CanCreate bool `json:"can_create"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// ActionsFor computes the action guard for a domain. Create and edit require
// both the capability and domain access; delete is enterprise-only and
// already implies every domain, so it carries no separate domain check.
func ActionsFor(roles []Role, domain Domain) Actions {
	agg := Aggregate(roles)
	access := CanAccessDomain(roles, domain)
	return Actions{
		CanCreate: agg.CanCreate && access,
		CanEdit:   agg.CanEdit && access,
		CanDelete: agg.CanDelete,
	}
}
