package artifacts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/shared"
)

type stubRepo struct {
	byID     map[uuid.UUID]Artifact
	inserts  int
	deletes  int
	txActors []uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{byID: make(map[uuid.UUID]Artifact)}
}

func (r *stubRepo) Get(ctx context.Context, id uuid.UUID) (Artifact, error) {
	a, ok := r.byID[id]
	if !ok {
		return Artifact{}, shared.ErrNotFound
	}
	return a, nil
}

func (r *stubRepo) List(ctx context.Context, filter ListFilter) ([]Artifact, int, error) {
	var list []Artifact
	for _, a := range r.byID {
		list = append(list, a)
	}
	return list, len(list), nil
}

func (r *stubRepo) Insert(ctx context.Context, actor uuid.UUID, a Artifact) (Artifact, error) {
	r.txActors = append(r.txActors, actor)
	r.inserts++
	r.byID[a.ID] = a
	return a, nil
}

func (r *stubRepo) Update(ctx context.Context, actor uuid.UUID, id uuid.UUID, updates map[string]any) (Artifact, error) {
	r.txActors = append(r.txActors, actor)
	a, ok := r.byID[id]
	if !ok {
		return Artifact{}, shared.ErrNotFound
	}
	if name, ok := updates["name"].(string); ok {
		a.Name = name
	}
	if status, ok := updates["status"].(string); ok {
		a.Status = Status(status)
	}
	r.byID[id] = a
	return a, nil
}

func (r *stubRepo) Delete(ctx context.Context, actor uuid.UUID, id uuid.UUID) error {
	r.txActors = append(r.txActors, actor)
	if _, ok := r.byID[id]; !ok {
		return shared.ErrNotFound
	}
	r.deletes++
	delete(r.byID, id)
	return nil
}

func (r *stubRepo) CountByDomain(ctx context.Context) ([]DomainCount, error) {
	return nil, nil
}

func identityWith(roles ...authz.Role) authz.Identity {
	return authz.Identity{UserID: uuid.New(), Roles: roles}
}

func TestCreateAllowedInsideDomain(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), identityWith(authz.RoleAIArchitect), CreateArtifactRequest{
		Name:   "Churn model",
		Domain: "ai",
		Type:   "ai_model",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusDraft {
		t.Fatalf("status = %s, want draft", created.Status)
	}
	if created.Version != "1.0" {
		t.Fatalf("version = %q, want default 1.0", created.Version)
	}
	if repo.inserts != 1 {
		t.Fatalf("inserts = %d", repo.inserts)
	}
}

func TestCreateDeniedOutsideDomain(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil)

	// A data architect has create capability but no business domain access.
	_, err := svc.Create(context.Background(), identityWith(authz.RoleDataArchitect), CreateArtifactRequest{
		Name:   "Payments capability",
		Domain: "business",
		Type:   "capability",
	})
	if !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if repo.inserts != 0 {
		t.Fatalf("insert happened despite denial")
	}
}

func TestCreateDeniedForViewer(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil)

	for _, domain := range authz.AllDomains() {
		types := TypesForDomain(domain)
		_, err := svc.Create(context.Background(), identityWith(authz.RoleViewer), CreateArtifactRequest{
			Name:   "x",
			Domain: string(domain),
			Type:   string(types[0]),
		})
		if !errors.Is(err, shared.ErrForbidden) {
			t.Fatalf("domain %s: err = %v, want ErrForbidden", domain, err)
		}
	}
}

func TestCreateRejectsTypeOutsideDomain(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil)

	_, err := svc.Create(context.Background(), identityWith(authz.RoleEnterpriseArchitect), CreateArtifactRequest{
		Name:   "Misfiled",
		Domain: "data",
		Type:   "cloud_resource",
	})
	if !errors.Is(err, ErrTypeDomainMismatch) {
		t.Fatalf("err = %v, want ErrTypeDomainMismatch", err)
	}
}

func TestCreateRejectsBadVersion(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil)

	_, err := svc.Create(context.Background(), identityWith(authz.RoleEnterpriseArchitect), CreateArtifactRequest{
		Name:    "Versioned",
		Domain:  "cloud",
		Type:    "cloud_resource",
		Version: "v1-beta",
	})
	if !errors.Is(err, ErrInvalidVersion) {
		t.Fatalf("err = %v, want ErrInvalidVersion", err)
	}
}

func TestUpdateChecksStoredDomain(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil)

	id := uuid.New()
	repo.byID[id] = Artifact{ID: id, Name: "Billing service", Domain: authz.DomainApplication, Type: TypeService, Status: StatusDraft}

	// Application architect edits inside their domain.
	name := "Billing service v2"
	if _, err := svc.Update(context.Background(), identityWith(authz.RoleApplicationArchitect), id, UpdateArtifactRequest{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Business architect holds edit capability but not this domain.
	if _, err := svc.Update(context.Background(), identityWith(authz.RoleBusinessArchitect), id, UpdateArtifactRequest{Name: &name}); !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestDeleteIsEnterpriseOnly(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil)

	id := uuid.New()
	repo.byID[id] = Artifact{ID: id, Domain: authz.DomainData, Type: TypeDataEntity}

	// Even the artifact's own domain architect may not delete.
	if err := svc.Delete(context.Background(), identityWith(authz.RoleDataArchitect), id); !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), identityWith(authz.RoleEnterpriseArchitect), id); err != nil {
		t.Fatalf("enterprise delete: %v", err)
	}
	if repo.deletes != 1 {
		t.Fatalf("deletes = %d", repo.deletes)
	}
}

func TestMutationsCarryActingUser(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil)

	actor := identityWith(authz.RoleEnterpriseArchitect)
	created, err := svc.Create(context.Background(), actor, CreateArtifactRequest{
		Name:   "Payments capability",
		Domain: "business",
		Type:   "capability",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	name := "Payments capability v2"
	if _, err := svc.Update(context.Background(), actor, created.ID, UpdateArtifactRequest{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(context.Background(), actor, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.txActors) != 3 {
		t.Fatalf("mutations = %d, want 3", len(repo.txActors))
	}
	for _, got := range repo.txActors {
		if got != actor.UserID {
			t.Fatalf("mutation actor = %s, want %s", got, actor.UserID)
		}
	}
}

func TestCreateRejectsUnknownEnums(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil)
	actor := identityWith(authz.RoleEnterpriseArchitect)

	_, err := svc.Create(context.Background(), actor, CreateArtifactRequest{Name: "x", Domain: "security", Type: "capability"})
	if !errors.Is(err, authz.ErrUnknownDomain) {
		t.Fatalf("err = %v, want ErrUnknownDomain", err)
	}
	_, err = svc.Create(context.Background(), actor, CreateArtifactRequest{Name: "x", Domain: "business", Type: "blueprint"})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
	_, err = svc.Create(context.Background(), actor, CreateArtifactRequest{Name: "x", Domain: "business", Type: "capability", Status: "frozen"})
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("err = %v, want ErrUnknownStatus", err)
	}
}

func TestValidateTypeForDomainCoversCatalog(t *testing.T) {
	for _, domain := range authz.AllDomains() {
		for _, artifactType := range TypesForDomain(domain) {
			if err := ValidateTypeForDomain(domain, artifactType); err != nil {
				t.Fatalf("%s/%s rejected: %v", domain, artifactType, err)
			}
		}
	}
	if err := ValidateTypeForDomain(authz.DomainBusiness, TypeAIModel); err == nil {
		t.Fatalf("ai_model accepted in business domain")
	}
}
