package authz

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnknownRole and ErrUnknownDomain mark parse rejections so callers can
// surface them as client errors rather than internal failures.
var (
	ErrUnknownRole   = errors.New("authz: unknown role")
	ErrUnknownDomain = errors.New("authz: unknown domain")
)

// Role identifies one of the eight fixed architect archetypes.
// The catalog is closed: consumers must go through ParseRole so that an
// unknown tag is rejected at the boundary instead of silently granting
// nothing (or worse, something).
type Role string

const (
	RoleEnterpriseArchitect  Role = "enterprise_architect"
	RoleSolutionArchitect    Role = "solution_architect"
	RoleAIArchitect          Role = "ai_architect"
	RoleCloudArchitect       Role = "cloud_architect"
	RoleApplicationArchitect Role = "application_architect"
	RoleDataArchitect        Role = "data_architect"
	RoleBusinessArchitect    Role = "business_architect"
	RoleViewer               Role = "viewer"
)

// Domain identifies one of the six architecture classification areas.
type Domain string

const (
	DomainBusiness    Domain = "business"
	DomainData        Domain = "data"
	DomainApplication Domain = "application"
	DomainTechnology  Domain = "technology"
	DomainAI          Domain = "ai"
	DomainCloud       Domain = "cloud"
)

// rolePrecedence is the single auditable declaration of role ranking,
// highest privilege first. Rank is derived from it; never compare roles
// any other way.
var rolePrecedence = [...]Role{
	RoleEnterpriseArchitect,
	RoleSolutionArchitect,
	RoleAIArchitect,
	RoleCloudArchitect,
	RoleApplicationArchitect,
	RoleDataArchitect,
	RoleBusinessArchitect,
	RoleViewer,
}

// AllRoles returns the closed role catalog in precedence order.
func AllRoles() []Role {
	out := make([]Role, len(rolePrecedence))
	copy(out, rolePrecedence[:])
	return out
}

// AllDomains returns the closed domain catalog.
func AllDomains() []Domain {
	return []Domain{DomainBusiness, DomainData, DomainApplication, DomainTechnology, DomainAI, DomainCloud}
}

// Rank maps a role to its precedence index; lower is more privileged.
// Unknown roles rank below viewer so they can never win a comparison.
func Rank(r Role) int {
	for i, candidate := range rolePrecedence {
		if candidate == r {
			return i
		}
	}
	return len(rolePrecedence)
}

// ParseRole validates a raw tag against the closed catalog.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(raw)))
	for _, candidate := range rolePrecedence {
		if candidate == r {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownRole, raw)
}

// ParseDomain validates a raw tag against the closed catalog.
func ParseDomain(raw string) (Domain, error) {
	d := Domain(strings.TrimSpace(strings.ToLower(raw)))
	for _, candidate := range AllDomains() {
		if candidate == d {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownDomain, raw)
}

// PermissionSet is the capability bundle a role grants.
type PermissionSet struct {
	CanEdit        bool
	CanCreate      bool
	CanDelete      bool
	CanManageUsers bool
	Domains        []Domain
}

// Permissions returns the static permission entry for a role. The switch is
// exhaustive over the closed catalog; adding a ninth role without extending
// it is a compile-visible hole, not a silent nil lookup. Unknown input gets
// the viewer entry (deny everything).
func Permissions(r Role) PermissionSet {
	switch r {
	case RoleEnterpriseArchitect:
		return PermissionSet{
			CanEdit:        true,
			CanCreate:      true,
			CanDelete:      true,
			CanManageUsers: true,
			Domains:        AllDomains(),
		}
	case RoleSolutionArchitect:
		return PermissionSet{
			CanEdit:   true,
			CanCreate: true,
			Domains:   []Domain{DomainApplication, DomainTechnology, DomainData},
		}
	case RoleAIArchitect:
		return PermissionSet{
			CanEdit:   true,
			CanCreate: true,
			Domains:   []Domain{DomainAI, DomainData, DomainApplication},
		}
	case RoleCloudArchitect:
		return PermissionSet{
			CanEdit:   true,
			CanCreate: true,
			Domains:   []Domain{DomainCloud, DomainTechnology, DomainApplication},
		}
	case RoleApplicationArchitect:
		return PermissionSet{
			CanEdit:   true,
			CanCreate: true,
			Domains:   []Domain{DomainApplication},
		}
	case RoleDataArchitect:
		return PermissionSet{
			CanEdit:   true,
			CanCreate: true,
			Domains:   []Domain{DomainData},
		}
	case RoleBusinessArchitect:
		return PermissionSet{
			CanEdit:   true,
			CanCreate: true,
			Domains:   []Domain{DomainBusiness},
		}
	case RoleViewer:
		return PermissionSet{}
	default:
		return PermissionSet{}
	}
}

var titleCaser = cases.Title(language.English)

// Label renders a role tag for display ("ai_architect" -> "AI Architect").
func (r Role) Label() string {
	switch r {
	case RoleAIArchitect:
		return "AI Architect"
	default:
		return titleCaser.String(strings.ReplaceAll(string(r), "_", " "))
	}
}

// Label renders a domain tag for display.
func (d Domain) Label() string {
	if d == DomainAI {
		return "AI"
	}
	return titleCaser.String(string(d))
}
