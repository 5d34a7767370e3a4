package artifacts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/authz"
)

// ArtifactType classifies an artifact within its domain. Closed set; each
// type belongs to exactly one domain.
type ArtifactType string

const (
	TypeCapability          ArtifactType = "capability"
	TypeProcess             ArtifactType = "process"
	TypeApplication         ArtifactType = "application"
	TypeService             ArtifactType = "service"
	TypeDataEntity          ArtifactType = "data_entity"
	TypeTechnologyComponent ArtifactType = "technology_component"
	TypeAIModel             ArtifactType = "ai_model"
	TypeCloudResource       ArtifactType = "cloud_resource"
)

// Status is the governance lifecycle state of an artifact.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusDeprecated  Status = "deprecated"
	StatusRetired     Status = "retired"
)

// ErrTypeDomainMismatch indicates an artifact type outside its domain.
var ErrTypeDomainMismatch = errors.New("artifacts: type not allowed in domain")

// ErrUnknownType and ErrUnknownStatus mark parse rejections; handlers map
// them to client errors.
var (
	ErrUnknownType   = errors.New("artifacts: unknown artifact type")
	ErrUnknownStatus = errors.New("artifacts: unknown status")
)

// domainTypes is the closed domain -> artifact type mapping.
var domainTypes = map[authz.Domain][]ArtifactType{
	authz.DomainBusiness:    {TypeCapability, TypeProcess},
	authz.DomainData:        {TypeDataEntity},
	authz.DomainApplication: {TypeApplication, TypeService},
	authz.DomainTechnology:  {TypeTechnologyComponent},
	authz.DomainAI:          {TypeAIModel},
	authz.DomainCloud:       {TypeCloudResource},
}

// TypesForDomain returns the artifact types permitted in a domain.
func TypesForDomain(domain authz.Domain) []ArtifactType {
	types := domainTypes[domain]
	out := make([]ArtifactType, len(types))
	copy(out, types)
	return out
}

// ValidateTypeForDomain checks the closed domain/type mapping.
func ValidateTypeForDomain(domain authz.Domain, t ArtifactType) error {
	for _, candidate := range domainTypes[domain] {
		if candidate == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %s in %s", ErrTypeDomainMismatch, t, domain)
}

// ParseType validates a raw artifact type tag.
func ParseType(raw string) (ArtifactType, error) {
	t := ArtifactType(strings.TrimSpace(strings.ToLower(raw)))
	for _, types := range domainTypes {
		for _, candidate := range types {
			if candidate == t {
				return t, nil
			}
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownType, raw)
}

// ParseStatus validates a raw status tag.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(strings.ToLower(raw)))
	switch s {
	case StatusDraft, StatusUnderReview, StatusApproved, StatusDeprecated, StatusRetired:
		return s, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownStatus, raw)
}

// Artifact is one documented architecture element.
type Artifact struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Domain      authz.Domain   `json:"domain"`
	Type        ArtifactType   `json:"artifact_type"`
	Status      Status         `json:"status"`
	Version     string         `json:"version"`
	OwnerID     *uuid.UUID     `json:"owner_id"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
	CreatedBy   *uuid.UUID     `json:"created_by"`
	UpdatedBy   *uuid.UUID     `json:"updated_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DomainCount is one slice of the dashboard summary.
type DomainCount struct {
	Domain authz.Domain   `json:"domain"`
	Total  int            `json:"total"`
	Status map[Status]int `json:"by_status"`
}
