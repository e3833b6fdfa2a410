package sqliteserials

import (
	"context"
	"database/sql"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/pkg/errors"
)

const exactColumns = `serial_number, rid_tracking, description, status, make, model, mfr_serial, synced_at, faa_updated_at, deleted`

// GetExact returns the entry keyed by serial, deleted or not. (nil, nil) when absent.
func (s *Storage) GetExact(ctx context.Context, serial string) (*models.ExactSerialEntry, error) {
	return getExact(ctx, s.db, serial)
}

func (s *Storage) UpsertExact(ctx context.Context, e *models.ExactSerialEntry) error {
	return upsertExact(ctx, s.db, e)
}

func getExact(ctx context.Context, q querier, serial string) (*models.ExactSerialEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+exactColumns+` FROM exact_serials WHERE serial_number = ?`, serial)

	var (
		e         models.ExactSerialEntry
		mfr       sql.NullString
		syncedAt  string
		updatedAt sql.NullString
		deleted   int
	)
	err := row.Scan(&e.SerialNumber, &e.RIDTracking, &e.Description, &e.Status, &e.Make, &e.Model,
		&mfr, &syncedAt, &updatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select exact serial")
	}

	e.MfrSerial = stringPtr(mfr)
	e.Deleted = deleted != 0
	if e.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, err
	}
	if e.FAAUpdatedAt, err = parseTimePtr(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func upsertExact(ctx context.Context, q querier, e *models.ExactSerialEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO exact_serials (`+exactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(serial_number) DO UPDATE SET
			rid_tracking = excluded.rid_tracking,
			description = excluded.description,
			status = excluded.status,
			make = excluded.make,
			model = excluded.model,
			mfr_serial = excluded.mfr_serial,
			synced_at = excluded.synced_at,
			faa_updated_at = excluded.faa_updated_at,
			deleted = excluded.deleted
		WHERE excluded.faa_updated_at IS NULL
		   OR exact_serials.faa_updated_at IS NULL
		   OR julianday(excluded.faa_updated_at) >= julianday(exact_serials.faa_updated_at)
	`,
		e.SerialNumber, e.RIDTracking, e.Description, e.Status, e.Make, e.Model,
		nullString(e.MfrSerial), formatTime(e.SyncedAt), formatTimePtr(e.FAAUpdatedAt), boolInt(e.Deleted),
	)
	return errors.Wrap(err, "upsert exact serial")
}
