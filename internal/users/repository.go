package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/platform/db"
)

// TxRepository exposes the operations available inside a transaction.
type TxRepository interface {
	RolesForUserLocked(ctx context.Context, userID uuid.UUID) ([]authz.Role, error)
	InsertAssignment(ctx context.Context, userID uuid.UUID, role authz.Role, assignedBy uuid.UUID) (RoleAssignment, error)
	DeleteAssignment(ctx context.Context, userID uuid.UUID, role authz.Role) (int64, error)
}

// RepositoryPort defines data access methods for user management.
type RepositoryPort interface {
	ListUsersWithRoles(ctx context.Context) ([]UserWithRoles, error)
	RolesForUser(ctx context.Context, userID uuid.UUID) ([]authz.Role, error)
	AssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]RoleAssignment, error)
	WithTx(ctx context.Context, actor uuid.UUID, fn func(context.Context, TxRepository) error) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsersWithRoles returns every profile joined with its stored roles,
// newest account first.
func (r *Repository) ListUsersWithRoles(ctx context.Context) ([]UserWithRoles, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.email, p.full_name, p.avatar_url, p.created_at,
		       COALESCE(array_agg(ur.role ORDER BY ur.assigned_at) FILTER (WHERE ur.role IS NOT NULL), '{}')
		FROM profiles p
		LEFT JOIN user_roles ur ON ur.user_id = p.id
		GROUP BY p.id, p.email, p.full_name, p.avatar_url, p.created_at
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []UserWithRoles
	for rows.Next() {
		var u UserWithRoles
		var rawRoles []string
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &u.CreatedAt, &rawRoles); err != nil {
			return nil, err
		}
		u.Roles = parseStoredRoles(rawRoles)
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// RolesForUser returns the stored role tags for one user. Zero rows is a
// valid result; the viewer fallback is applied by callers, not here.
func (r *Repository) RolesForUser(ctx context.Context, userID uuid.UUID) ([]authz.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

// AssignmentsForUser returns the full assignment rows for one user.
func (r *Repository) AssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]RoleAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, role, assigned_at, assigned_by
		FROM user_roles WHERE user_id = $1 ORDER BY assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		var raw string
		if err := rows.Scan(&a.ID, &a.UserID, &raw, &a.AssignedAt, &a.AssignedBy); err != nil {
			return nil, err
		}
		role, err := authz.ParseRole(raw)
		if err != nil {
			continue
		}
		a.Role = role
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// WithTx runs fn inside a transaction with the acting user bound, so the
// user_roles write policies see who is making the change.
func (r *Repository) WithTx(ctx context.Context, actor uuid.UUID, fn func(context.Context, TxRepository) error) error {
	return db.WithActorTx(ctx, r.pool, actor, func(tx pgx.Tx) error {
		return fn(ctx, txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// RolesForUserLocked reads the user's role rows with a row lock so a
// concurrent removal cannot slip past the last-role check.
func (r txRepository) RolesForUserLocked(ctx context.Context, userID uuid.UUID) ([]authz.Role, error) {
	rows, err := r.tx.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY assigned_at FOR UPDATE`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func (r txRepository) InsertAssignment(ctx context.Context, userID uuid.UUID, role authz.Role, assignedBy uuid.UUID) (RoleAssignment, error) {
	row := r.tx.QueryRow(ctx, `
		INSERT INTO user_roles (id, user_id, role, assigned_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, role, assigned_at, assigned_by`,
		uuid.New(), userID, string(role), assignedBy)
	var a RoleAssignment
	var raw string
	if err := row.Scan(&a.ID, &a.UserID, &raw, &a.AssignedAt, &a.AssignedBy); err != nil {
		return RoleAssignment{}, err
	}
	a.Role = authz.Role(raw)
	return a, nil
}

func (r txRepository) DeleteAssignment(ctx context.Context, userID uuid.UUID, role authz.Role) (int64, error) {
	tag, err := r.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, userID, string(role))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRoles(rows pgx.Rows) ([]authz.Role, error) {
	var raw []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		raw = append(raw, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return parseStoredRoles(raw), nil
}

// parseStoredRoles drops tags outside the closed catalog instead of letting
// them grant anything.
func parseStoredRoles(raw []string) []authz.Role {
	roles := make([]authz.Role, 0, len(raw))
	for _, tag := range raw {
		role, err := authz.ParseRole(tag)
		if err != nil {
			continue
		}
		roles = append(roles, role)
	}
	return roles
}

var _ RepositoryPort = (*Repository)(nil)
