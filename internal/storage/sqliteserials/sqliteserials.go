// Package sqliteserials is the embedded SQLite implementation of the local
// serial store: exact serials, serial ranges and the metadata table.
package sqliteserials

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/BearBump/RIDBox/internal/storage/sqliteserials/migrations"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Storage struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Storage, error) {
	dsn := path
	if path != MemoryPath {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, errors.Wrap(err, "open sqlite"))
	}
	// один writer; для :memory: каждое соединение ещё и отдельная база
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, errors.Wrap(err, "ping sqlite"))
	}

	s := &Storage{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return s, nil
}

// OpenExisting is Open for callers that must not create a fresh database:
// a missing file is ErrStoreUnavailable.
func OpenExisting(ctx context.Context, path string) (*Storage, error) {
	if path != MemoryPath {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: database not found at %s, run build first", models.ErrStoreUnavailable, path)
		}
	}
	return Open(ctx, path)
}

func newWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) migrate(ctx context.Context) error {
	p, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations.FS)
	if err != nil {
		return errors.Wrap(err, "goose provider")
	}
	if _, err := p.Up(ctx); err != nil {
		return errors.Wrap(err, "goose up")
	}
	return nil
}

func (s *Storage) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Storage) withTx(ctx context.Context, fn func(q querier) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "commit tx")
	}()
	return fn(tx)
}
