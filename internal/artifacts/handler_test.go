package artifacts

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/authz"
)

func artifactRouter(repo RepositoryPort) chi.Router {
	h := NewHandler(nil, NewService(repo, nil, nil))
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func requestAs(method, target, body string, roles ...authz.Role) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	identity := authz.Identity{UserID: uuid.New(), Roles: roles}
	return req.WithContext(authz.ContextWithIdentity(req.Context(), identity))
}

func TestCreateRejectsUnknownEnumsWith422(t *testing.T) {
	router := artifactRouter(newStubRepo())

	cases := []struct {
		label string
		body  string
	}{
		{"domain", `{"name":"Fraud model","domain":"security","artifact_type":"capability"}`},
		{"type", `{"name":"Fraud model","domain":"business","artifact_type":"blueprint"}`},
		{"status", `{"name":"Fraud model","domain":"business","artifact_type":"capability","status":"frozen"}`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, requestAs(http.MethodPost, "/", tc.body, authz.RoleEnterpriseArchitect))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("unknown %s: status = %d, want 422", tc.label, rec.Code)
		}
	}
}

func TestUpdateRejectsUnknownStatusWith422(t *testing.T) {
	repo := newStubRepo()
	id := uuid.New()
	repo.byID[id] = Artifact{ID: id, Name: "Billing service", Domain: authz.DomainApplication, Type: TypeService, Status: StatusDraft}
	router := artifactRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodPut, "/"+id.String(), `{"status":"frozen"}`, authz.RoleApplicationArchitect))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestListRejectsUnknownDomainFilter(t *testing.T) {
	router := artifactRouter(newStubRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodGet, "/?domain=security", "", authz.RoleViewer))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
