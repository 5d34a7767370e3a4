package profiles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archvault/archvault/internal/platform/db"
	"github.com/archvault/archvault/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a profile by user ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, full_name, avatar_url, created_at, updated_at FROM profiles WHERE id = $1`, id)
	var p Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// UpdateFullName sets the display name. Only full_name is user-mutable, and
// the update runs with the owner bound as actor so the self-update policy
// applies.
func (r *Repository) UpdateFullName(ctx context.Context, id uuid.UUID, fullName string) (Profile, error) {
	var p Profile
	err := db.WithActorTx(ctx, r.pool, id, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE profiles
			SET full_name = NULLIF($2, ''), updated_at = NOW()
			WHERE id = $1
			RETURNING id, email, full_name, avatar_url, created_at, updated_at`,
			id, fullName)
		if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}
