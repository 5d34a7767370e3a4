package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/authz"
)

// RoleAssignment is one row of the user_roles relation. A user may hold
// several simultaneously; the service guarantees at least one row survives
// any removal.
type RoleAssignment struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Role       authz.Role `json:"role"`
	AssignedAt time.Time  `json:"assigned_at"`
	AssignedBy *uuid.UUID `json:"assigned_by"`
}

// UserWithRoles is the management listing row: profile data joined with the
// user's stored role set.
type UserWithRoles struct {
	ID        uuid.UUID    `json:"id"`
	Email     string       `json:"email"`
	FullName  *string      `json:"full_name"`
	AvatarURL *string      `json:"avatar_url"`
	CreatedAt time.Time    `json:"created_at"`
	Roles     []authz.Role `json:"roles"`
}

// RoleStats summarizes the user population for the management dashboard.
type RoleStats struct {
	Total      int `json:"total"`
	Architects int `json:"architects"`
	Viewers    int `json:"viewers"`
}

// ComputeStats derives the management dashboard counters. A user counts as
// an architect when any stored role is not viewer; as a viewer only when
// viewer is their sole stored role.
func ComputeStats(list []UserWithRoles) RoleStats {
	stats := RoleStats{Total: len(list)}
	for _, u := range list {
		architect := false
		for _, r := range u.Roles {
			if r != authz.RoleViewer {
				architect = true
				break
			}
		}
		if architect {
			stats.Architects++
		} else if len(u.Roles) == 1 && u.Roles[0] == authz.RoleViewer {
			stats.Viewers++
		}
	}
	return stats
}
