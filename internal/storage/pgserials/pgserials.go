// Package pgserials is the Postgres implementation of the serial store, for
// deployments that share one database between the API and the worker.
package pgserials

import (
	"context"
	"fmt"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Storage struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, errors.Wrap(err, "parse pg config"))
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, errors.Wrap(err, "connect pg"))
	}

	s := &Storage{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	return s, nil
}

func (s *Storage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// ApplyEntries writes one record's entries in a single transaction.
func (s *Storage) ApplyEntries(ctx context.Context, exact []*models.ExactSerialEntry, ranges []*models.SerialRangeEntry) error {
	if len(exact) == 0 && len(ranges) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range exact {
		if err := upsertExact(ctx, tx, exact[i]); err != nil {
			return err
		}
	}
	for i := range ranges {
		if err := upsertRange(ctx, tx, ranges[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
