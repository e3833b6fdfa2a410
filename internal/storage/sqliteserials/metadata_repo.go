package sqliteserials

import (
	"context"
	"database/sql"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/pkg/errors"
)

// GetMeta returns the value for key and whether it was present.
func (s *Storage) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select metadata")
	}
	return v, true, nil
}

func (s *Storage) SetMeta(ctx context.Context, key, value string) error {
	return setMeta(ctx, s.db, key, value)
}

// SetMetaBatch writes all pairs in one transaction.
func (s *Storage) SetMetaBatch(ctx context.Context, kv map[string]string) error {
	return s.withTx(ctx, func(q querier) error {
		for k, v := range kv {
			if err := setMeta(ctx, q, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return errors.Wrap(err, "upsert metadata")
}

// Stats returns every metadata pair and the live row counts.
func (s *Storage) Stats(ctx context.Context) (models.StoreStats, error) {
	st := models.StoreStats{Metadata: map[string]string{}}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM metadata ORDER BY key`)
	if err != nil {
		return st, errors.Wrap(err, "select metadata")
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return st, errors.Wrap(err, "scan metadata")
		}
		st.Metadata[k] = v
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return st, errors.Wrap(err, "iterate metadata")
	}
	_ = rows.Close()

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exact_serials WHERE deleted = 0`).Scan(&st.ExactSerials); err != nil {
		return st, errors.Wrap(err, "count exact serials")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM serial_ranges WHERE deleted = 0`).Scan(&st.SerialRanges); err != nil {
		return st, errors.Wrap(err, "count serial ranges")
	}
	return st, nil
}
