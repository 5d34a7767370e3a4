package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/platform/db"
	"github.com/archvault/archvault/internal/shared"
)

const artifactColumns = `id, name, description, domain, artifact_type, status, version, owner_id, tags, metadata, created_by, updated_by, created_at, updated_at`

// RepositoryPort defines data access methods for artifacts. Mutations carry
// the acting user so the repository can bind it for row level security.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (Artifact, error)
	List(ctx context.Context, filter ListFilter) ([]Artifact, int, error)
	Insert(ctx context.Context, actor uuid.UUID, a Artifact) (Artifact, error)
	Update(ctx context.Context, actor uuid.UUID, id uuid.UUID, updates map[string]any) (Artifact, error)
	Delete(ctx context.Context, actor uuid.UUID, id uuid.UUID) error
	CountByDomain(ctx context.Context) ([]DomainCount, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches an artifact by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Artifact, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+artifactColumns+` FROM architecture_artifacts WHERE id = $1`, id)
	return scanArtifact(row)
}

// List returns artifacts matching the filter plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Artifact, int, error) {
	where, args := buildWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM architecture_artifacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := `SELECT ` + artifactColumns + ` FROM architecture_artifacts` + where +
		fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Insert stores a new artifact inside a transaction with the actor bound
// for the insert policy.
func (r *Repository) Insert(ctx context.Context, actor uuid.UUID, a Artifact) (Artifact, error) {
	var created Artifact
	err := db.WithActorTx(ctx, r.pool, actor, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO architecture_artifacts
				(id, name, description, domain, artifact_type, status, version, owner_id, tags, metadata, created_by, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING `+artifactColumns,
			a.ID, a.Name, a.Description, string(a.Domain), string(a.Type), string(a.Status),
			a.Version, a.OwnerID, a.Tags, a.Metadata, a.CreatedBy, a.UpdatedBy)
		var scanErr error
		created, scanErr = scanArtifact(row)
		return scanErr
	})
	if err != nil {
		return Artifact{}, err
	}
	return created, nil
}

// Update applies a partial column update with the actor bound.
func (r *Repository) Update(ctx context.Context, actor uuid.UUID, id uuid.UUID, updates map[string]any) (Artifact, error) {
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}
	// Columns are fixed by the service; values are always bound parameters.
	sets := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+1)
	args = append(args, id)
	for col, val := range updates {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE architecture_artifacts SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + artifactColumns

	var updated Artifact
	err := db.WithActorTx(ctx, r.pool, actor, func(tx pgx.Tx) error {
		var scanErr error
		updated, scanErr = scanArtifact(tx.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		return Artifact{}, err
	}
	return updated, nil
}

// Delete removes an artifact with the actor bound.
func (r *Repository) Delete(ctx context.Context, actor uuid.UUID, id uuid.UUID) error {
	return db.WithActorTx(ctx, r.pool, actor, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM architecture_artifacts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// CountByDomain aggregates artifact counts per domain and status.
func (r *Repository) CountByDomain(ctx context.Context) ([]DomainCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT domain, status, COUNT(*)
		FROM architecture_artifacts
		GROUP BY domain, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDomain := make(map[authz.Domain]*DomainCount)
	for rows.Next() {
		var rawDomain, rawStatus string
		var count int
		if err := rows.Scan(&rawDomain, &rawStatus, &count); err != nil {
			return nil, err
		}
		domain, err := authz.ParseDomain(rawDomain)
		if err != nil {
			continue
		}
		status, err := ParseStatus(rawStatus)
		if err != nil {
			continue
		}
		entry, ok := byDomain[domain]
		if !ok {
			entry = &DomainCount{Domain: domain, Status: make(map[Status]int)}
			byDomain[domain] = entry
		}
		entry.Total += count
		entry.Status[status] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Catalog order, empty domains included so the dashboard renders all six.
	out := make([]DomainCount, 0, len(authz.AllDomains()))
	for _, d := range authz.AllDomains() {
		if entry, ok := byDomain[d]; ok {
			out = append(out, *entry)
		} else {
			out = append(out, DomainCount{Domain: d, Status: map[Status]int{}})
		}
	}
	return out, nil
}

func buildWhere(filter ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Domain != nil {
		add("domain = $%d", string(*filter.Domain))
	}
	if filter.Type != nil {
		add("artifact_type = $%d", string(*filter.Type))
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		idx := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", idx, idx))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (Artifact, error) {
	var a Artifact
	var rawDomain, rawType, rawStatus string
	err := row.Scan(&a.ID, &a.Name, &a.Description, &rawDomain, &rawType, &rawStatus,
		&a.Version, &a.OwnerID, &a.Tags, &a.Metadata, &a.CreatedBy, &a.UpdatedBy,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Artifact{}, shared.ErrNotFound
		}
		return Artifact{}, err
	}
	a.Domain = authz.Domain(rawDomain)
	a.Type = ArtifactType(rawType)
	a.Status = Status(rawStatus)
	return a, nil
}

var _ RepositoryPort = (*Repository)(nil)
