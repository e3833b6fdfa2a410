package sqliteserials

import (
	"context"

	"github.com/BearBump/RIDBox/internal/models"
)

// ApplyEntries writes one record's entries atomically.
func (s *Storage) ApplyEntries(ctx context.Context, exact []*models.ExactSerialEntry, ranges []*models.SerialRangeEntry) error {
	if len(exact) == 0 && len(ranges) == 0 {
		return nil
	}
	return s.withTx(ctx, func(q querier) error {
		for i := range exact {
			if err := upsertExact(ctx, q, exact[i]); err != nil {
				return err
			}
		}
		for i := range ranges {
			if err := upsertRange(ctx, q, ranges[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
