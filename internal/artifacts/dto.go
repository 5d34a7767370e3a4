package artifacts

import (
	"github.com/archvault/archvault/internal/authz"
)

// CreateArtifactRequest carries a new artifact. Limits mirror the form
// validation the client applies.
type CreateArtifactRequest struct {
	Name        string         `json:"name" validate:"required,max=100"`
	Description *string        `json:"description" validate:"omitempty,max=1000"`
	Domain      string         `json:"domain" validate:"required"`
	Type        string         `json:"artifact_type" validate:"required"`
	Status      string         `json:"status" validate:"omitempty"`
	Version     string         `json:"version" validate:"omitempty,max=20"`
	Tags        []string       `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Metadata    map[string]any `json:"metadata"`
}

// UpdateArtifactRequest carries a partial update; nil fields are untouched.
// Domain and type are immutable after creation — moving an artifact between
// domains would silently change who may edit it.
type UpdateArtifactRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string        `json:"description" validate:"omitempty,max=1000"`
	Status      *string        `json:"status"`
	Version     *string        `json:"version" validate:"omitempty,max=20"`
	Tags        []string       `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Metadata    map[string]any `json:"metadata"`
}

// ListFilter composes the repository query.
type ListFilter struct {
	Domain  *authz.Domain
	Type    *ArtifactType
	Status  *Status
	Search  string // substring over name and description
	Page    int
	PerPage int
}
