package users

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/shared"
)

type stubRepo struct {
	roles    map[uuid.UUID][]authz.Role
	txActors []uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{roles: make(map[uuid.UUID][]authz.Role)}
}

func (r *stubRepo) ListUsersWithRoles(ctx context.Context) ([]UserWithRoles, error) {
	return nil, nil
}

func (r *stubRepo) RolesForUser(ctx context.Context, userID uuid.UUID) ([]authz.Role, error) {
	return r.roles[userID], nil
}

func (r *stubRepo) AssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]RoleAssignment, error) {
	return nil, nil
}

func (r *stubRepo) WithTx(ctx context.Context, actor uuid.UUID, fn func(context.Context, TxRepository) error) error {
	r.txActors = append(r.txActors, actor)
	return fn(ctx, stubTx{repo: r})
}

type stubTx struct {
	repo *stubRepo
}

func (tx stubTx) RolesForUserLocked(ctx context.Context, userID uuid.UUID) ([]authz.Role, error) {
	return tx.repo.roles[userID], nil
}

func (tx stubTx) InsertAssignment(ctx context.Context, userID uuid.UUID, role authz.Role, assignedBy uuid.UUID) (RoleAssignment, error) {
	tx.repo.roles[userID] = append(tx.repo.roles[userID], role)
	by := assignedBy
	return RoleAssignment{ID: uuid.New(), UserID: userID, Role: role, AssignedBy: &by}, nil
}

func (tx stubTx) DeleteAssignment(ctx context.Context, userID uuid.UUID, role authz.Role) (int64, error) {
	kept := tx.repo.roles[userID][:0]
	var deleted int64
	for _, r := range tx.repo.roles[userID] {
		if r == role {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	tx.repo.roles[userID] = kept
	return deleted, nil
}

func admin() authz.Identity {
	return authz.Identity{UserID: uuid.New(), Roles: []authz.Role{authz.RoleEnterpriseArchitect}}
}

func TestRemoveLastRoleRejected(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.roles[userID] = []authz.Role{authz.RoleBusinessArchitect}
	svc := NewService(repo, nil, nil, nil)

	err := svc.RemoveRole(context.Background(), admin(), userID, authz.RoleBusinessArchitect)
	if !errors.Is(err, ErrLastRole) {
		t.Fatalf("err = %v, want ErrLastRole", err)
	}
	// The assignment set must be untouched after the rejected attempt.
	if got := repo.roles[userID]; len(got) != 1 || got[0] != authz.RoleBusinessArchitect {
		t.Fatalf("roles after rejected removal = %v", got)
	}
}

func TestRemoveOneOfTwoRolesSucceeds(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.roles[userID] = []authz.Role{authz.RoleDataArchitect, authz.RoleCloudArchitect}
	svc := NewService(repo, nil, nil, nil)

	if err := svc.RemoveRole(context.Background(), admin(), userID, authz.RoleDataArchitect); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := repo.roles[userID]; len(got) != 1 || got[0] != authz.RoleCloudArchitect {
		t.Fatalf("roles after removal = %v", got)
	}
}

func TestRemoveUnassignedRole(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.roles[userID] = []authz.Role{authz.RoleDataArchitect, authz.RoleCloudArchitect}
	svc := NewService(repo, nil, nil, nil)

	err := svc.RemoveRole(context.Background(), admin(), userID, authz.RoleAIArchitect)
	if !errors.Is(err, ErrRoleNotAssigned) {
		t.Fatalf("err = %v, want ErrRoleNotAssigned", err)
	}
}

func TestAssignDuplicateRoleRejected(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.roles[userID] = []authz.Role{authz.RoleDataArchitect}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.AssignRole(context.Background(), admin(), userID, authz.RoleDataArchitect)
	if !errors.Is(err, ErrDuplicateRole) {
		t.Fatalf("err = %v, want ErrDuplicateRole", err)
	}
}

func TestMutationsRequireManageUsers(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.roles[userID] = []authz.Role{authz.RoleDataArchitect, authz.RoleCloudArchitect}
	svc := NewService(repo, nil, nil, nil)

	// A solution architect can create artifacts but must never touch roles,
	// even if a forged request reaches the service directly.
	actor := authz.Identity{UserID: uuid.New(), Roles: []authz.Role{authz.RoleSolutionArchitect}}
	if _, err := svc.AssignRole(context.Background(), actor, userID, authz.RoleAIArchitect); !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("assign err = %v, want ErrForbidden", err)
	}
	if err := svc.RemoveRole(context.Background(), actor, userID, authz.RoleDataArchitect); !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("remove err = %v, want ErrForbidden", err)
	}
	if _, err := svc.ListUsers(context.Background(), actor); !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("list err = %v, want ErrForbidden", err)
	}
	if got := repo.roles[userID]; len(got) != 2 {
		t.Fatalf("roles mutated by forbidden actor: %v", got)
	}
}

func TestMutationsBindActingUserToTransaction(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.roles[userID] = []authz.Role{authz.RoleDataArchitect, authz.RoleCloudArchitect}
	svc := NewService(repo, nil, nil, nil)

	actor := admin()
	if _, err := svc.AssignRole(context.Background(), actor, userID, authz.RoleAIArchitect); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.RemoveRole(context.Background(), actor, userID, authz.RoleAIArchitect); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(repo.txActors) != 2 {
		t.Fatalf("transactions = %d, want 2", len(repo.txActors))
	}
	for _, got := range repo.txActors {
		if got != actor.UserID {
			t.Fatalf("transaction actor = %s, want %s", got, actor.UserID)
		}
	}
}

type failingAuditor struct {
	calls int
}

func (a *failingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	a.calls++
	return errors.New("audit_logs unavailable")
}

func TestAuditFailureDoesNotFailMutationButIsLogged(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.roles[userID] = []authz.Role{authz.RoleDataArchitect}
	auditor := &failingAuditor{}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(repo, nil, auditor, logger)

	if _, err := svc.AssignRole(context.Background(), admin(), userID, authz.RoleCloudArchitect); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if auditor.calls != 1 {
		t.Fatalf("auditor calls = %d, want 1", auditor.calls)
	}
	if !strings.Contains(buf.String(), "role audit record failed") {
		t.Fatalf("audit failure not logged: %q", buf.String())
	}
}

type countingInvalidator struct {
	calls []uuid.UUID
}

func (c *countingInvalidator) Invalidate(ctx context.Context, userID uuid.UUID) error {
	c.calls = append(c.calls, userID)
	return nil
}

func TestRoleChangeInvalidatesDerivedState(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.roles[userID] = []authz.Role{authz.RoleDataArchitect}
	inv := &countingInvalidator{}
	svc := NewService(repo, inv, nil, nil)

	if _, err := svc.AssignRole(context.Background(), admin(), userID, authz.RoleCloudArchitect); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.RemoveRole(context.Background(), admin(), userID, authz.RoleDataArchitect); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(inv.calls) != 2 {
		t.Fatalf("invalidations = %d, want 2", len(inv.calls))
	}
}
