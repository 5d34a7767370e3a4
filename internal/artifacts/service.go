package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/shared"
)

var versionPattern = regexp.MustCompile(`^[\d.]*$`)

// ErrInvalidVersion indicates a version outside the d.d[.d] shape.
var ErrInvalidVersion = errors.New("artifacts: version must look like 1.0 or 1.0.0")

// Auditor records artifact mutations.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles artifact business logic. Every mutation re-derives the
// actor's action set for the artifact's domain before touching the
// repository — route guards and UI state are advisory, this check plus the
// database policy layer are the boundary.
type Service struct {
	repo    RepositoryPort
	auditor Auditor
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

// Get returns one artifact. Reading requires authentication only.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Artifact, error) {
	return s.repo.Get(ctx, id)
}

// List returns artifacts matching the filter plus the unpaged total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Artifact, int, error) {
	return s.repo.List(ctx, filter)
}

// Summary returns per-domain counts for the dashboard.
func (s *Service) Summary(ctx context.Context) ([]DomainCount, error) {
	return s.repo.CountByDomain(ctx)
}

// Create stores a new artifact after checking the actor may create in the
// target domain and the type belongs there.
func (s *Service) Create(ctx context.Context, actor authz.Identity, req CreateArtifactRequest) (Artifact, error) {
	domain, err := authz.ParseDomain(req.Domain)
	if err != nil {
		return Artifact{}, err
	}
	artifactType, err := ParseType(req.Type)
	if err != nil {
		return Artifact{}, err
	}

	if actions := authz.ActionsFor(actor.Roles, domain); !actions.CanCreate {
		return Artifact{}, shared.ErrForbidden
	}
	if err := ValidateTypeForDomain(domain, artifactType); err != nil {
		return Artifact{}, err
	}

	status := StatusDraft
	if req.Status != "" {
		if status, err = ParseStatus(req.Status); err != nil {
			return Artifact{}, err
		}
	}
	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = "1.0"
	}
	if !versionPattern.MatchString(version) {
		return Artifact{}, ErrInvalidVersion
	}

	actorID := actor.UserID
	artifact := Artifact{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Domain:      domain,
		Type:        artifactType,
		Status:      status,
		Version:     version,
		OwnerID:     &actorID,
		Tags:        normalizeTags(req.Tags),
		Metadata:    req.Metadata,
		CreatedBy:   &actorID,
		UpdatedBy:   &actorID,
	}
	created, err := s.repo.Insert(ctx, actorID, artifact)
	if err != nil {
		return Artifact{}, fmt.Errorf("create artifact: %w", err)
	}
	s.audit(ctx, actor, "artifact.create", created.ID, map[string]any{"domain": string(domain), "type": string(artifactType)})
	return created, nil
}

// Update applies a partial update after checking the actor may edit in the
// artifact's stored domain.
func (s *Service) Update(ctx context.Context, actor authz.Identity, id uuid.UUID, req UpdateArtifactRequest) (Artifact, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	if actions := authz.ActionsFor(actor.Roles, existing.Domain); !actions.CanEdit {
		return Artifact{}, shared.ErrForbidden
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		status, err := ParseStatus(*req.Status)
		if err != nil {
			return Artifact{}, err
		}
		updates["status"] = string(status)
	}
	if req.Version != nil {
		version := strings.TrimSpace(*req.Version)
		if !versionPattern.MatchString(version) || version == "" {
			return Artifact{}, ErrInvalidVersion
		}
		updates["version"] = version
	}
	if req.Tags != nil {
		updates["tags"] = normalizeTags(req.Tags)
	}
	if req.Metadata != nil {
		updates["metadata"] = req.Metadata
	}
	if len(updates) == 0 {
		return existing, nil
	}
	updates["updated_by"] = actor.UserID

	updated, err := s.repo.Update(ctx, actor.UserID, id, updates)
	if err != nil {
		return Artifact{}, fmt.Errorf("update artifact: %w", err)
	}
	s.audit(ctx, actor, "artifact.update", id, map[string]any{"domain": string(existing.Domain)})
	return updated, nil
}

// Delete removes an artifact. Delete is an enterprise-architect power and
// needs no per-domain check.
func (s *Service) Delete(ctx context.Context, actor authz.Identity, id uuid.UUID) error {
	if !actor.Aggregate().CanDelete {
		return shared.ErrForbidden
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, actor.UserID, id); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	s.audit(ctx, actor, "artifact.delete", id, map[string]any{"domain": string(existing.Domain), "name": existing.Name})
	return nil
}

func (s *Service) audit(ctx context.Context, actor authz.Identity, action string, id uuid.UUID, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	// Auditing never blocks the mutation, but failures must not vanish.
	err := s.auditor.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "architecture_artifacts",
		EntityID: id.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Error("artifact audit record failed", "action", action, "artifact_id", id, "error", err)
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
