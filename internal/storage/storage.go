// Package storage picks the local serial store backend from config.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/RIDBox/config"
	"github.com/BearBump/RIDBox/internal/models"
	"github.com/BearBump/RIDBox/internal/storage/pgserials"
	"github.com/BearBump/RIDBox/internal/storage/sqliteserials"
)

// Store is the full read/write surface shared by both backends.
type Store interface {
	GetExact(ctx context.Context, serial string) (*models.ExactSerialEntry, error)
	UpsertExact(ctx context.Context, e *models.ExactSerialEntry) error
	FindRange(ctx context.Context, serial string) (*models.SerialRangeEntry, error)
	GetRangeByKey(ctx context.Context, key models.RangeKey) (*models.SerialRangeEntry, error)
	UpsertRange(ctx context.Context, r *models.SerialRangeEntry) error
	ApplyEntries(ctx context.Context, exact []*models.ExactSerialEntry, ranges []*models.SerialRangeEntry) error
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
	SetMetaBatch(ctx context.Context, kv map[string]string) error
	Stats(ctx context.Context) (models.StoreStats, error)
	Close()
}

var (
	_ Store = (*sqliteserials.Storage)(nil)
	_ Store = (*pgserials.Storage)(nil)
)

type Mode int

const (
	// OpenOrCreate creates an empty SQLite database when none exists.
	OpenOrCreate Mode = iota
	// MustExist fails with ErrStoreUnavailable when the SQLite file is missing.
	MustExist
)

func Open(ctx context.Context, cfg *config.Config, mode Mode) (Store, error) {
	switch cfg.DatabaseDriver() {
	case config.DriverPostgres:
		return pgserials.New(ctx, cfg.PostgresConnString())
	case config.DriverSQLite:
		if mode == MustExist {
			return sqliteserials.OpenExisting(ctx, cfg.SQLitePath())
		}
		return sqliteserials.Open(ctx, cfg.SQLitePath())
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", models.ErrInvalidArgument, cfg.Database.Driver)
	}
}

// OpenWithRetry keeps trying until wait elapses. Services use it at startup
// while the database container is still coming up.
func OpenWithRetry(ctx context.Context, cfg *config.Config, mode Mode, wait time.Duration) (Store, error) {
	deadline := time.Now().Add(wait)
	for {
		st, err := Open(ctx, cfg, mode)
		if err == nil {
			return st, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("store is not ready after %s: %w", wait, err)
		}
		slog.Warn("store not ready, retrying", "driver", cfg.DatabaseDriver(), "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
