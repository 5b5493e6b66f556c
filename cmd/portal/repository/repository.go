package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/db"
	"github.com/landrecords/portal/common/draw"
	"github.com/landrecords/portal/common/workflow"
)

const pgUniqueViolation = "23505"

// querier is satisfied by both the pool and a pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the Postgres implementation of the workflow and draw stores
type Repository struct {
	db *db.DB
}

// NewRepository creates a new repository
func NewRepository(db *db.DB) *Repository {
	return &Repository{db: db}
}

var (
	_ workflow.Store = (*Repository)(nil)
	_ draw.Store     = (*Repository)(nil)
	_ workflow.Tx    = (*pgTx)(nil)
	_ draw.Tx        = (*pgTx)(nil)
)

// InTx runs fn inside one database transaction
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx workflow.Tx) error) error {
	return r.inTx(ctx, func(ctx context.Context, t *pgTx) error { return fn(ctx, t) })
}

// InDrawTx runs fn inside one database transaction
func (r *Repository) InDrawTx(ctx context.Context, fn func(ctx context.Context, tx draw.Tx) error) error {
	return r.inTx(ctx, func(ctx context.Context, t *pgTx) error { return fn(ctx, t) })
}

func (r *Repository) inTx(ctx context.Context, fn func(ctx context.Context, t *pgTx) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

// pgTx implements workflow.Tx and draw.Tx over one pgx transaction
type pgTx struct {
	tx pgx.Tx
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// notFound wraps pgx.ErrNoRows into the store sentinel and leaves other
// errors with the operation context.
func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
