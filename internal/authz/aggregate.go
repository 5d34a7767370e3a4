package authz

// Aggregated is the single capability view derived from a user's full role
// set. It is recomputed on every role change and never stored.
type Aggregated struct {
	CanEdit        bool
	CanCreate      bool
	CanDelete      bool
	CanManageUsers bool
	Domains        map[Domain]bool
}

// PrimaryRole returns the highest-precedence role in the set, or viewer for
// an empty set. Display shortcut only; authorization goes through Aggregate.
func PrimaryRole(roles []Role) Role {
	primary := RoleViewer
	best := Rank(primary)
	for _, r := range roles {
		if rank := Rank(r); rank < best {
			primary = r
			best = rank
		}
	}
	return primary
}

// Aggregate folds a role set into one capability bundle: booleans are OR-ed,
// domain sets are unioned. The fold is commutative, so the order of the
// input never affects the result. An empty set yields the viewer entry.
func Aggregate(roles []Role) Aggregated {
	agg := Aggregated{Domains: make(map[Domain]bool)}
	for _, r := range roles {
		entry := Permissions(r)
		agg.CanEdit = agg.CanEdit || entry.CanEdit
		agg.CanCreate = agg.CanCreate || entry.CanCreate
		agg.CanDelete = agg.CanDelete || entry.CanDelete
		agg.CanManageUsers = agg.CanManageUsers || entry.CanManageUsers
		for _, d := range entry.Domains {
			agg.Domains[d] = true
		}
	}
	return agg
}

// DomainList returns the aggregated domains in catalog order.
func (a Aggregated) DomainList() []Domain {
	out := make([]Domain, 0, len(a.Domains))
	for _, d := range AllDomains() {
		if a.Domains[d] {
			out = append(out, d)
		}
	}
	return out
}

// HasRole reports whether the set contains the exact role.
func HasRole(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// CanAccessDomain reports whether the role set may work within a domain.
// Enterprise architects pass unconditionally; the explicit short-circuit
// keeps full access independent of the table's domain list.
func CanAccessDomain(roles []Role, domain Domain) bool {
	if HasRole(roles, RoleEnterpriseArchitect) {
		return true
	}
	return Aggregate(roles).Domains[domain]
}
