package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/models"
)

// DefaultCount is how many recent records SinceLastSync checks when the
// store has no watermark yet.
const DefaultCount = 50

type Kind int

const (
	KindSince Kind = iota + 1
	KindDaysBack
	KindSinceLastSync
	KindCount
	KindAll
)

func (k Kind) String() string {
	switch k {
	case KindSince:
		return "since"
	case KindDaysBack:
		return "days_back"
	case KindSinceLastSync:
		return "since_last_sync"
	case KindCount:
		return "count"
	case KindAll:
		return "all"
	default:
		return "unknown"
	}
}

// Boundary selects which remote records a run looks at. Limit caps the
// time-based kinds; zero means no cap.
type Boundary struct {
	Kind  Kind
	Since time.Time
	Days  int
	Count int
	Limit int
}

func Since(t time.Time) Boundary { return Boundary{Kind: KindSince, Since: t.UTC()} }
func DaysBack(n int) Boundary    { return Boundary{Kind: KindDaysBack, Days: n} }
func SinceLastSync() Boundary    { return Boundary{Kind: KindSinceLastSync} }
func Count(n int) Boundary       { return Boundary{Kind: KindCount, Count: n} }
func All() Boundary              { return Boundary{Kind: KindAll} }

func (b Boundary) WithLimit(n int) Boundary {
	b.Limit = n
	return b
}

func (b Boundary) Validate() error {
	if b.Limit < 0 {
		return fmt.Errorf("%w: negative limit", models.ErrInvalidArgument)
	}
	switch b.Kind {
	case KindSince:
		if b.Since.IsZero() {
			return fmt.Errorf("%w: since time is required", models.ErrInvalidArgument)
		}
	case KindDaysBack:
		if b.Days <= 0 {
			return fmt.Errorf("%w: days must be positive", models.ErrInvalidArgument)
		}
	case KindSinceLastSync:
	case KindCount:
		if b.Count <= 0 {
			return fmt.Errorf("%w: count must be positive", models.ErrInvalidArgument)
		}
		if b.Limit != 0 {
			return fmt.Errorf("%w: limit only applies to time-based boundaries", models.ErrInvalidArgument)
		}
	case KindAll:
		if b.Limit != 0 {
			return fmt.Errorf("%w: limit only applies to time-based boundaries", models.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unknown boundary kind %d", models.ErrInvalidArgument, b.Kind)
	}
	return nil
}

// cursor is a resolved boundary: records strictly newer than since (when
// set), at most limit of them (when positive).
type cursor struct {
	since *time.Time
	limit int
}

func (e *Engine) resolve(ctx context.Context, b Boundary, now time.Time) (cursor, error) {
	switch b.Kind {
	case KindSince:
		t := b.Since.UTC()
		return cursor{since: &t, limit: b.Limit}, nil
	case KindDaysBack:
		t := now.Add(-time.Duration(b.Days) * 24 * time.Hour)
		return cursor{since: &t, limit: b.Limit}, nil
	case KindSinceLastSync:
		v, ok, err := e.store.GetMeta(ctx, models.MetaLastSyncDate)
		if err != nil {
			return cursor{}, fmt.Errorf("%w: read watermark: %w", models.ErrStoreUnavailable, err)
		}
		if !ok {
			return cursor{limit: DefaultCount}, nil
		}
		t, err := faa.ParseTimestamp(v)
		if err != nil {
			slog.Warn("ignoring unreadable watermark", "value", v, "error", err.Error())
			return cursor{limit: DefaultCount}, nil
		}
		return cursor{since: &t, limit: b.Limit}, nil
	case KindCount:
		return cursor{limit: b.Count}, nil
	default:
		return cursor{}, nil
	}
}
