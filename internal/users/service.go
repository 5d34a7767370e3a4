package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/shared"
)

var (
	// ErrLastRole indicates an attempt to remove a user's only role.
	ErrLastRole = errors.New("users: cannot remove a user's last role")
	// ErrDuplicateRole indicates the user already holds the role.
	ErrDuplicateRole = errors.New("users: role already assigned")
	// ErrRoleNotAssigned indicates a removal of a role the user lacks.
	ErrRoleNotAssigned = errors.New("users: role not assigned")
)

// Invalidator drops derived role state after a change. Wired to the
// authz role cache so every process recomputes aggregates immediately.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user management business logic. Every mutation re-checks
// the actor's manage-users capability; HTTP middleware already gates the
// routes but the service is the enforcement boundary.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	auditor     Auditor
	logger      *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, invalidator Invalidator, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invalidator: invalidator, auditor: auditor, logger: logger}
}

// ListUsers returns every user with their stored roles.
func (s *Service) ListUsers(ctx context.Context, actor authz.Identity) ([]UserWithRoles, error) {
	if !actor.Aggregate().CanManageUsers {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListUsersWithRoles(ctx)
}

// AssignRole grants a role to a user. Duplicate assignments are rejected as
// a value error so the caller can report them distinctly.
func (s *Service) AssignRole(ctx context.Context, actor authz.Identity, userID uuid.UUID, role authz.Role) (RoleAssignment, error) {
	if !actor.Aggregate().CanManageUsers {
		return RoleAssignment{}, shared.ErrForbidden
	}
	var assignment RoleAssignment
	err := s.repo.WithTx(ctx, actor.UserID, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.RolesForUserLocked(ctx, userID)
		if err != nil {
			return err
		}
		if authz.HasRole(existing, role) {
			return ErrDuplicateRole
		}
		assignment, err = tx.InsertAssignment(ctx, userID, role, actor.UserID)
		return err
	})
	if err != nil {
		return RoleAssignment{}, fmt.Errorf("assign role: %w", err)
	}
	s.afterRoleChange(ctx, actor, userID, role, "role.assign")
	return assignment, nil
}

// RemoveRole revokes a role from a user. The last-role invariant is checked
// under a row lock at the moment of removal: a user must always keep at
// least one stored role.
func (s *Service) RemoveRole(ctx context.Context, actor authz.Identity, userID uuid.UUID, role authz.Role) error {
	if !actor.Aggregate().CanManageUsers {
		return shared.ErrForbidden
	}
	err := s.repo.WithTx(ctx, actor.UserID, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.RolesForUserLocked(ctx, userID)
		if err != nil {
			return err
		}
		if !authz.HasRole(existing, role) {
			return ErrRoleNotAssigned
		}
		if len(existing) <= 1 {
			return ErrLastRole
		}
		deleted, err := tx.DeleteAssignment(ctx, userID, role)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrRoleNotAssigned
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLastRole) || errors.Is(err, ErrRoleNotAssigned) {
			return err
		}
		return fmt.Errorf("remove role: %w", err)
	}
	s.afterRoleChange(ctx, actor, userID, role, "role.remove")
	return nil
}

// afterRoleChange flushes derived permission state and writes the audit
// trail. Both are best effort relative to the already-committed change.
func (s *Service) afterRoleChange(ctx context.Context, actor authz.Identity, userID uuid.UUID, role authz.Role, action string) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, userID); err != nil {
			s.logger.Error("role cache invalidation failed", "user_id", userID, "error", err)
		}
	}
	if s.auditor != nil {
		err := s.auditor.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   action,
			Entity:   "user_roles",
			EntityID: userID.String(),
			Meta:     map[string]any{"role": string(role)},
		})
		if err != nil {
			s.logger.Error("role audit record failed", "action", action, "user_id", userID, "error", err)
		}
	}
}
