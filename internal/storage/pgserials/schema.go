package pgserials

import (
	"context"

	"github.com/pkg/errors"
)

// Serial columns use the C collation so ordering and range comparison are
// byte-wise, matching the SQLite store.
func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS exact_serials (
  serial_number TEXT COLLATE "C" PRIMARY KEY,
  rid_tracking TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  make TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  mfr_serial TEXT NULL,
  synced_at TIMESTAMPTZ NOT NULL,
  faa_updated_at TIMESTAMPTZ NULL,
  deleted BOOLEAN NOT NULL DEFAULT FALSE
)`,
		`
CREATE TABLE IF NOT EXISTS serial_ranges (
  id BIGSERIAL PRIMARY KEY,
  serial_start TEXT COLLATE "C" NOT NULL,
  serial_end TEXT COLLATE "C" NOT NULL,
  rid_tracking TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  make TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  mfr_serial TEXT NULL,
  synced_at TIMESTAMPTZ NOT NULL,
  faa_updated_at TIMESTAMPTZ NULL,
  deleted BOOLEAN NOT NULL DEFAULT FALSE,
  CHECK (octet_length(serial_start) = octet_length(serial_end) AND serial_start <= serial_end),
  UNIQUE (serial_start, serial_end, rid_tracking)
)`,
		`CREATE INDEX IF NOT EXISTS idx_serial_ranges_start ON serial_ranges(serial_start)`,
		`CREATE INDEX IF NOT EXISTS idx_serial_ranges_end ON serial_ranges(serial_end)`,
		`CREATE INDEX IF NOT EXISTS idx_exact_serials_rid ON exact_serials(rid_tracking)`,
		`CREATE INDEX IF NOT EXISTS idx_serial_ranges_rid ON serial_ranges(rid_tracking)`,
		`
CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
