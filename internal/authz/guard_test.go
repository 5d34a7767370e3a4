package authz

import "testing"

func TestPageGuardLoadingShortCircuits(t *testing.T) {
	// While loading, nothing else may be evaluated: an absent user must not
	// trigger a sign-in redirect, and a failing role check must not deny.
	v := PageGuard(GuardRequest{
		Loading:        true,
		Authenticated:  false,
		RequiredRole:   RoleEnterpriseArchitect,
		RequiredDomain: DomainCloud,
	})
	if v != VerdictLoading {
		t.Fatalf("verdict = %v, want loading", v)
	}
}

func TestPageGuardOrdering(t *testing.T) {
	cases := []struct {
		name string
		req  GuardRequest
		want Verdict
	}{
		{
			name: "anonymous redirects to sign-in",
			req:  GuardRequest{},
			want: VerdictSignIn,
		},
		{
			name: "missing required role denies",
			req: GuardRequest{
				Authenticated: true,
				Roles:         []Role{RoleSolutionArchitect},
				RequiredRole:  RoleEnterpriseArchitect,
			},
			want: VerdictDenied,
		},
		{
			name: "role passes then domain denies",
			req: GuardRequest{
				Authenticated:  true,
				Roles:          []Role{RoleBusinessArchitect},
				RequiredRole:   RoleBusinessArchitect,
				RequiredDomain: DomainCloud,
			},
			want: VerdictDenied,
		},
		{
			name: "no requirements allows any signed-in user",
			req: GuardRequest{
				Authenticated: true,
				Roles:         []Role{RoleViewer},
			},
			want: VerdictAllow,
		},
		{
			name: "domain requirement met",
			req: GuardRequest{
				Authenticated:  true,
				Roles:          []Role{RoleAIArchitect},
				RequiredDomain: DomainAI,
			},
			want: VerdictAllow,
		},
		{
			name: "empty role set is denied, never default-allowed",
			req: GuardRequest{
				Authenticated:  true,
				RequiredDomain: DomainBusiness,
			},
			want: VerdictDenied,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PageGuard(tc.req); got != tc.want {
				t.Fatalf("verdict = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestActionsForAIArchitectInAIDomain(t *testing.T) {
	got := ActionsFor([]Role{RoleAIArchitect}, DomainAI)
	if !got.CanCreate || !got.CanEdit || got.CanDelete {
		t.Fatalf("actions = %+v", got)
	}
}

func TestActionsForOutsideDomain(t *testing.T) {
	got := ActionsFor([]Role{RoleAIArchitect}, DomainBusiness)
	if got.CanCreate || got.CanEdit || got.CanDelete {
		t.Fatalf("actions outside domain must all be off, got %+v", got)
	}
}

func TestDeleteNeedsNoDomainCheck(t *testing.T) {
	// Enterprise delete shows up in every domain without a separate access
	// check because the role already spans all of them.
	for _, d := range AllDomains() {
		got := ActionsFor([]Role{RoleEnterpriseArchitect}, d)
		if !got.CanDelete {
			t.Fatalf("enterprise delete off in %s", d)
		}
	}
	got := ActionsFor([]Role{RoleDataArchitect, RoleCloudArchitect}, DomainData)
	if got.CanDelete {
		t.Fatalf("non-enterprise set granted delete")
	}
}

func TestActionsForViewer(t *testing.T) {
	for _, d := range AllDomains() {
		if got := ActionsFor([]Role{RoleViewer}, d); got.CanCreate || got.CanEdit || got.CanDelete {
			t.Fatalf("viewer actions in %s = %+v", d, got)
		}
	}
}
