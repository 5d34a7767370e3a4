package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// SetActor binds the acting user to the transaction so row level security
// policies can read it through current_setting('app.user_id'). The setting
// is transaction-local and disappears on commit or rollback.
func SetActor(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT set_config('app.user_id', $1, true)`, userID.String()); err != nil {
		return fmt.Errorf("platform/db: set actor: %w", err)
	}
	return nil
}

// WithActorTx runs fn inside WithTx with the acting user bound first.
// All writes that row level security cares about go through this.
func WithActorTx(ctx context.Context, pool *pgxpool.Pool, actor uuid.UUID, fn func(pgx.Tx) error) error {
	return WithTx(ctx, pool, func(tx pgx.Tx) error {
		if err := SetActor(ctx, tx, actor); err != nil {
			return err
		}
		return fn(tx)
	})
}
