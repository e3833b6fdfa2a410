package pgserials

import (
	"context"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(ctx, `SELECT value FROM metadata WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *Storage) SetMetaBatch(ctx context.Context, kv map[string]string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for k, v := range kv {
		if err := setMeta(ctx, tx, k, v); err != nil {
			return err
		}
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.Exec(ctx, `
INSERT INTO metadata (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
`, key, value)
	return errors.Wrap(err, "upsert metadata")
}

func (s *Storage) Stats(ctx context.Context) (models.StoreStats, error) {
	st := models.StoreStats{Metadata: map[string]string{}}

	rows, err := s.db.Query(ctx, `SELECT key, value FROM metadata ORDER BY key`)
	if err != nil {
		return st, errors.Wrap(err, "select metadata")
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return st, errors.Wrap(err, "scan metadata")
		}
		st.Metadata[k] = v
	}
	rows.Close()
	if rows.Err() != nil {
		return st, errors.Wrap(rows.Err(), "rows")
	}

	err = s.db.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM exact_serials WHERE NOT deleted),
  (SELECT COUNT(*) FROM serial_ranges WHERE NOT deleted)
`).Scan(&st.ExactSerials, &st.SerialRanges)
	if err != nil {
		return st, errors.Wrap(err, "count serials")
	}
	return st, nil
}
