package db

import (
	"context"
	"errors"

	"github.com/fegerV/ARV-sub005/internal/apperror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pipeline's persistence adapter. It exposes only the record
// reads and writes the pipeline needs; schema ownership and migrations live
// with the CRUD layer.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func notFound(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.Wrap(err, apperror.KindNotFound, message)
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
