package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/cwrk-planet/chat-gateway/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// txQuerier can also open a transaction for multi-row writes.
type txQuerier interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

const pgUniqueViolation = "23505"

func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return repository.ErrAlreadyExists
	}

	return err
}

func toNullStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}

	return &s
}
