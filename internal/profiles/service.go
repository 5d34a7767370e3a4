package profiles

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryPort defines data access methods for profiles.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (Profile, error)
	UpdateFullName(ctx context.Context, id uuid.UUID, fullName string) (Profile, error)
}

// Service handles profile business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the profile for a user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	return s.repo.Get(ctx, id)
}

// UpdateFullName updates the caller's display name.
func (s *Service) UpdateFullName(ctx context.Context, id uuid.UUID, fullName string) (Profile, error) {
	return s.repo.UpdateFullName(ctx, id, fullName)
}
