package sqliteserials

import (
	"context"
	"database/sql"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/pkg/errors"
)

const rangeColumns = `id, serial_start, serial_end, rid_tracking, description, status, make, model, mfr_serial, synced_at, faa_updated_at, deleted`

// FindRange returns the tightest live range containing serial: greatest
// start, then smallest end, then lowest id. (nil, nil) when none matches.
func (s *Storage) FindRange(ctx context.Context, serial string) (*models.SerialRangeEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+rangeColumns+`
		FROM serial_ranges
		WHERE deleted = 0
		  AND length(CAST(serial_start AS BLOB)) = length(CAST(? AS BLOB))
		  AND serial_start <= ?
		  AND serial_end >= ?
		ORDER BY serial_start DESC, serial_end ASC, id ASC
		LIMIT 1
	`, serial, serial, serial)
	return scanRange(row)
}

// GetRangeByKey looks a range up by its natural key, deleted or not.
func (s *Storage) GetRangeByKey(ctx context.Context, key models.RangeKey) (*models.SerialRangeEntry, error) {
	return getRangeByKey(ctx, s.db, key)
}

func (s *Storage) UpsertRange(ctx context.Context, r *models.SerialRangeEntry) error {
	return upsertRange(ctx, s.db, r)
}

func getRangeByKey(ctx context.Context, q querier, key models.RangeKey) (*models.SerialRangeEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+rangeColumns+`
		FROM serial_ranges
		WHERE serial_start = ? AND serial_end = ? AND rid_tracking = ?
	`, key.SerialStart, key.SerialEnd, key.RIDTracking)
	return scanRange(row)
}

func upsertRange(ctx context.Context, q querier, r *models.SerialRangeEntry) error {
	if !models.ValidBounds(r.SerialStart, r.SerialEnd) {
		return errors.Wrapf(models.ErrInvalidArgument, "range %s-%s", r.SerialStart, r.SerialEnd)
	}
	err := q.QueryRowContext(ctx, `
		INSERT INTO serial_ranges (serial_start, serial_end, rid_tracking, description, status, make, model, mfr_serial, synced_at, faa_updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(serial_start, serial_end, rid_tracking) DO UPDATE SET
			description = excluded.description,
			status = excluded.status,
			make = excluded.make,
			model = excluded.model,
			mfr_serial = excluded.mfr_serial,
			synced_at = excluded.synced_at,
			faa_updated_at = excluded.faa_updated_at,
			deleted = excluded.deleted
		WHERE excluded.faa_updated_at IS NULL
		   OR serial_ranges.faa_updated_at IS NULL
		   OR julianday(excluded.faa_updated_at) >= julianday(serial_ranges.faa_updated_at)
		RETURNING id
	`,
		r.SerialStart, r.SerialEnd, r.RIDTracking, r.Description, r.Status, r.Make, r.Model,
		nullString(r.MfrSerial), formatTime(r.SyncedAt), formatTimePtr(r.FAAUpdatedAt), boolInt(r.Deleted),
	).Scan(&r.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// stored row is newer, keep it
		err = q.QueryRowContext(ctx, `
			SELECT id FROM serial_ranges
			WHERE serial_start = ? AND serial_end = ? AND rid_tracking = ?
		`, r.SerialStart, r.SerialEnd, r.RIDTracking).Scan(&r.ID)
	}
	return errors.Wrap(err, "upsert serial range")
}

func scanRange(row *sql.Row) (*models.SerialRangeEntry, error) {
	var (
		r         models.SerialRangeEntry
		mfr       sql.NullString
		syncedAt  string
		updatedAt sql.NullString
		deleted   int
	)
	err := row.Scan(&r.ID, &r.SerialStart, &r.SerialEnd, &r.RIDTracking, &r.Description, &r.Status,
		&r.Make, &r.Model, &mfr, &syncedAt, &updatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select serial range")
	}

	r.MfrSerial = stringPtr(mfr)
	r.Deleted = deleted != 0
	if r.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, err
	}
	if r.FAAUpdatedAt, err = parseTimePtr(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
