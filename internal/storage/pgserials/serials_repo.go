package pgserials

import (
	"context"
	"time"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) GetExact(ctx context.Context, serial string) (*models.ExactSerialEntry, error) {
	var e models.ExactSerialEntry
	err := s.db.QueryRow(ctx, `
SELECT
  serial_number, rid_tracking, description, status, make, model,
  mfr_serial, synced_at, faa_updated_at, deleted
FROM exact_serials
WHERE serial_number = $1
`, serial).Scan(
		&e.SerialNumber, &e.RIDTracking, &e.Description, &e.Status, &e.Make, &e.Model,
		&e.MfrSerial, &e.SyncedAt, &e.FAAUpdatedAt, &e.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select exact serial")
	}
	normalizeExact(&e)
	return &e, nil
}

func (s *Storage) UpsertExact(ctx context.Context, e *models.ExactSerialEntry) error {
	return upsertExact(ctx, s.db, e)
}

// FindRange returns the tightest live range containing serial.
func (s *Storage) FindRange(ctx context.Context, serial string) (*models.SerialRangeEntry, error) {
	return scanRange(s.db.QueryRow(ctx, `
SELECT
  id, serial_start, serial_end, rid_tracking, description, status, make, model,
  mfr_serial, synced_at, faa_updated_at, deleted
FROM serial_ranges
WHERE NOT deleted
  AND octet_length(serial_start) = octet_length($1::text)
  AND serial_start <= $1::text COLLATE "C"
  AND serial_end >= $1::text COLLATE "C"
ORDER BY serial_start DESC, serial_end ASC, id ASC
LIMIT 1
`, serial))
}

func (s *Storage) GetRangeByKey(ctx context.Context, key models.RangeKey) (*models.SerialRangeEntry, error) {
	return scanRange(s.db.QueryRow(ctx, `
SELECT
  id, serial_start, serial_end, rid_tracking, description, status, make, model,
  mfr_serial, synced_at, faa_updated_at, deleted
FROM serial_ranges
WHERE serial_start = $1 AND serial_end = $2 AND rid_tracking = $3
`, key.SerialStart, key.SerialEnd, key.RIDTracking))
}

func (s *Storage) UpsertRange(ctx context.Context, r *models.SerialRangeEntry) error {
	return upsertRange(ctx, s.db, r)
}

func upsertExact(ctx context.Context, q querier, e *models.ExactSerialEntry) error {
	_, err := q.Exec(ctx, `
INSERT INTO exact_serials (
  serial_number, rid_tracking, description, status, make, model,
  mfr_serial, synced_at, faa_updated_at, deleted
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (serial_number) DO UPDATE SET
  rid_tracking = EXCLUDED.rid_tracking,
  description = EXCLUDED.description,
  status = EXCLUDED.status,
  make = EXCLUDED.make,
  model = EXCLUDED.model,
  mfr_serial = EXCLUDED.mfr_serial,
  synced_at = EXCLUDED.synced_at,
  faa_updated_at = EXCLUDED.faa_updated_at,
  deleted = EXCLUDED.deleted
WHERE EXCLUDED.faa_updated_at IS NULL
   OR exact_serials.faa_updated_at IS NULL
   OR EXCLUDED.faa_updated_at >= exact_serials.faa_updated_at
`, e.SerialNumber, e.RIDTracking, e.Description, e.Status, e.Make, e.Model,
		models.StrPtr(models.Deref(e.MfrSerial)), e.SyncedAt.UTC(), utcPtr(e.FAAUpdatedAt), e.Deleted)
	return errors.Wrap(err, "upsert exact serial")
}

func upsertRange(ctx context.Context, q querier, r *models.SerialRangeEntry) error {
	if !models.ValidBounds(r.SerialStart, r.SerialEnd) {
		return errors.Wrapf(models.ErrInvalidArgument, "range %s-%s", r.SerialStart, r.SerialEnd)
	}
	err := q.QueryRow(ctx, `
INSERT INTO serial_ranges (
  serial_start, serial_end, rid_tracking, description, status, make, model,
  mfr_serial, synced_at, faa_updated_at, deleted
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (serial_start, serial_end, rid_tracking) DO UPDATE SET
  description = EXCLUDED.description,
  status = EXCLUDED.status,
  make = EXCLUDED.make,
  model = EXCLUDED.model,
  mfr_serial = EXCLUDED.mfr_serial,
  synced_at = EXCLUDED.synced_at,
  faa_updated_at = EXCLUDED.faa_updated_at,
  deleted = EXCLUDED.deleted
WHERE EXCLUDED.faa_updated_at IS NULL
   OR serial_ranges.faa_updated_at IS NULL
   OR EXCLUDED.faa_updated_at >= serial_ranges.faa_updated_at
RETURNING id
`, r.SerialStart, r.SerialEnd, r.RIDTracking, r.Description, r.Status, r.Make, r.Model,
		models.StrPtr(models.Deref(r.MfrSerial)), r.SyncedAt.UTC(), utcPtr(r.FAAUpdatedAt), r.Deleted).Scan(&r.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// stored row is newer, keep it
		err = q.QueryRow(ctx, `
SELECT id FROM serial_ranges
WHERE serial_start = $1 AND serial_end = $2 AND rid_tracking = $3
`, r.SerialStart, r.SerialEnd, r.RIDTracking).Scan(&r.ID)
	}
	return errors.Wrap(err, "upsert serial range")
}

func scanRange(row pgx.Row) (*models.SerialRangeEntry, error) {
	var r models.SerialRangeEntry
	err := row.Scan(
		&r.ID, &r.SerialStart, &r.SerialEnd, &r.RIDTracking, &r.Description, &r.Status, &r.Make, &r.Model,
		&r.MfrSerial, &r.SyncedAt, &r.FAAUpdatedAt, &r.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select serial range")
	}
	r.SyncedAt = r.SyncedAt.UTC()
	r.FAAUpdatedAt = utcPtr(r.FAAUpdatedAt)
	return &r, nil
}

func normalizeExact(e *models.ExactSerialEntry) {
	e.SyncedAt = e.SyncedAt.UTC()
	e.FAAUpdatedAt = utcPtr(e.FAAUpdatedAt)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
