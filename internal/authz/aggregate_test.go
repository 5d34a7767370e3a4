package authz

import (
	"math/rand"
	"testing"
)

func TestAggregateUnionsEachRole(t *testing.T) {
	all := AllRoles()
	// Every non-empty subset is feasible at 2^8; aggregate must dominate
	// each member's own entry.
	for mask := 1; mask < 1<<len(all); mask++ {
		var roles []Role
		for i, r := range all {
			if mask&(1<<i) != 0 {
				roles = append(roles, r)
			}
		}
		agg := Aggregate(roles)
		for _, r := range roles {
			entry := Permissions(r)
			if entry.CanEdit && !agg.CanEdit {
				t.Fatalf("roles %v: lost canEdit from %s", roles, r)
			}
			if entry.CanCreate && !agg.CanCreate {
				t.Fatalf("roles %v: lost canCreate from %s", roles, r)
			}
			if entry.CanDelete && !agg.CanDelete {
				t.Fatalf("roles %v: lost canDelete from %s", roles, r)
			}
			if entry.CanManageUsers && !agg.CanManageUsers {
				t.Fatalf("roles %v: lost canManageUsers from %s", roles, r)
			}
			for _, d := range entry.Domains {
				if !agg.Domains[d] {
					t.Fatalf("roles %v: lost domain %s from %s", roles, d, r)
				}
			}
		}
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	roles := []Role{RoleDataArchitect, RoleCloudArchitect, RoleBusinessArchitect, RoleViewer}
	want := Aggregate(roles)
	wantPrimary := PrimaryRole(roles)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]Role(nil), roles...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := Aggregate(shuffled)
		if got.CanEdit != want.CanEdit || got.CanCreate != want.CanCreate ||
			got.CanDelete != want.CanDelete || got.CanManageUsers != want.CanManageUsers {
			t.Fatalf("capabilities vary with order: %v vs %v", got, want)
		}
		if len(got.Domains) != len(want.Domains) {
			t.Fatalf("domain set varies with order: %v vs %v", got.Domains, want.Domains)
		}
		for d := range want.Domains {
			if !got.Domains[d] {
				t.Fatalf("domain %s missing after shuffle", d)
			}
		}
		if PrimaryRole(shuffled) != wantPrimary {
			t.Fatalf("primary role varies with order: %s vs %s", PrimaryRole(shuffled), wantPrimary)
		}
	}
}

func TestEmptyRoleSetFallsBackToViewer(t *testing.T) {
	if got := PrimaryRole(nil); got != RoleViewer {
		t.Fatalf("primary of empty set = %s, want viewer", got)
	}
	empty := Aggregate(nil)
	viewer := Aggregate([]Role{RoleViewer})
	if empty.CanEdit || empty.CanCreate || empty.CanDelete || empty.CanManageUsers {
		t.Fatalf("empty set granted capabilities: %+v", empty)
	}
	if len(empty.Domains) != 0 || len(viewer.Domains) != 0 {
		t.Fatalf("viewer fallback must grant no domains")
	}
	if empty.CanEdit != viewer.CanEdit || empty.CanCreate != viewer.CanCreate ||
		empty.CanDelete != viewer.CanDelete || empty.CanManageUsers != viewer.CanManageUsers {
		t.Fatalf("empty set and [viewer] disagree")
	}
}

func TestEnterpriseArchitectAccessesEveryDomain(t *testing.T) {
	sets := [][]Role{
		{RoleEnterpriseArchitect},
		{RoleViewer, RoleEnterpriseArchitect},
		{RoleDataArchitect, RoleEnterpriseArchitect, RoleCloudArchitect},
	}
	for _, roles := range sets {
		for _, d := range AllDomains() {
			if !CanAccessDomain(roles, d) {
				t.Fatalf("roles %v denied domain %s", roles, d)
			}
		}
	}
}

func TestDeleteIsEnterpriseOnly(t *testing.T) {
	for _, r := range AllRoles() {
		got := Aggregate([]Role{r}).CanDelete
		want := r == RoleEnterpriseArchitect
		if got != want {
			t.Fatalf("role %s canDelete = %v, want %v", r, got, want)
		}
	}
}

func TestViewerDeniedEveryDomain(t *testing.T) {
	for _, d := range AllDomains() {
		if CanAccessDomain([]Role{RoleViewer}, d) {
			t.Fatalf("viewer granted domain %s", d)
		}
	}
}

func TestDataPlusCloudArchitectAggregate(t *testing.T) {
	roles := []Role{RoleDataArchitect, RoleCloudArchitect}
	agg := Aggregate(roles)

	wantDomains := map[Domain]bool{
		DomainData:        true,
		DomainCloud:       true,
		DomainTechnology:  true,
		DomainApplication: true,
	}
	if len(agg.Domains) != len(wantDomains) {
		t.Fatalf("domains = %v, want %v", agg.Domains, wantDomains)
	}
	for d := range wantDomains {
		if !agg.Domains[d] {
			t.Fatalf("domain %s missing", d)
		}
	}
	if !agg.CanCreate || agg.CanDelete || agg.CanManageUsers {
		t.Fatalf("capabilities wrong: %+v", agg)
	}
	if got := PrimaryRole(roles); got != RoleCloudArchitect {
		t.Fatalf("primary = %s, want cloud_architect", got)
	}
}

func TestRankFollowsPrecedence(t *testing.T) {
	prev := -1
	for _, r := range AllRoles() {
		if rank := Rank(r); rank <= prev {
			t.Fatalf("rank of %s (%d) not strictly increasing", r, rank)
		} else {
			prev = rank
		}
	}
	if Rank(Role("ninth_architect")) <= Rank(RoleViewer) {
		t.Fatalf("unknown role must rank below viewer")
	}
}

func TestParseRoleRejectsUnknown(t *testing.T) {
	if _, err := ParseRole("enterprise_architect"); err != nil {
		t.Fatalf("known role rejected: %v", err)
	}
	if _, err := ParseRole("superadmin"); err == nil {
		t.Fatalf("unknown role accepted")
	}
	if _, err := ParseDomain("security"); err == nil {
		t.Fatalf("unknown domain accepted")
	}
}
