package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/models"
	"github.com/BearBump/RIDBox/internal/normalizer"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type phase int

const (
	phaseListing phase = iota
	phaseProcessing
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseListing:
		return "listing"
	case phaseProcessing:
		return "processing"
	default:
		return "done"
	}
}

type queued struct {
	rec       faa.RIDRecord
	updatedAt *time.Time
}

// run is one sync as an explicit state machine. Each step performs exactly
// one remote call; wait says how long the driver must hold off before the
// next one.
type run struct {
	eng      *Engine
	cur      cursor
	dryRun   bool
	syncedAt time.Time

	phase phase
	page  int
	queue []queued
	pos   int

	called   bool
	lastCall time.Time

	report  models.SyncReport
	overlay *overlay

	changedExact  []string
	changedRanges map[string]struct{}
}

func newRun(e *Engine, cur cursor, dryRun bool, started time.Time) *run {
	r := &run{
		eng:      e,
		cur:      cur,
		dryRun:   dryRun,
		syncedAt: started,
		report: models.SyncReport{
			RunID:     uuid.NewString(),
			DryRun:    dryRun,
			StartedAt: started,
		},
		changedRanges: map[string]struct{}{},
	}
	if dryRun {
		r.overlay = newOverlay()
	}
	return r
}

func (r *run) wait(now time.Time) time.Duration {
	if !r.called {
		return 0
	}
	d := r.lastCall.Add(ThrottleInterval).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (r *run) markCall() {
	r.called = true
	r.lastCall = r.eng.clock.Now()
	r.report.APICalls++
}

func (r *run) finish(now time.Time) {
	t := now.UTC()
	r.report.FinishedAt = &t
}

func (r *run) step(ctx context.Context) error {
	switch r.phase {
	case phaseListing:
		return r.stepList(ctx)
	case phaseProcessing:
		return r.stepRecord(ctx)
	default:
		return nil
	}
}

// stepList fetches one listing page. A listing failure ends the run.
func (r *run) stepList(ctx context.Context) error {
	page, err := r.eng.src.ListUpdated(ctx, r.page, r.eng.pageSize)
	r.markCall()
	if err != nil {
		if errors.Is(err, models.ErrRemoteUnavailable) {
			return errors.Wrapf(err, "list page %d", r.page)
		}
		return fmt.Errorf("%w: list page %d: %w", models.ErrRemoteUnavailable, r.page, err)
	}

	// короткая страница последняя
	stop := len(page.Items) < r.eng.pageSize
	for _, rec := range page.Items {
		q := queued{rec: rec}
		if t, err := rec.UpdatedTime(); err == nil {
			q.updatedAt = &t
		}
		if r.cur.since != nil {
			if q.updatedAt == nil {
				r.report.Errors++
				slog.Warn("record without usable updatedAt", "tracking", rec.TrackingNumber, "updated_at", rec.UpdatedAt)
				continue
			}
			// листинг отсортирован по updatedAt DESC, дальше только старее
			if !q.updatedAt.After(*r.cur.since) {
				stop = true
				break
			}
		}
		r.queue = append(r.queue, q)
		if r.cur.limit > 0 && len(r.queue) >= r.cur.limit {
			stop = true
			break
		}
	}
	r.page++

	if stop {
		r.phase = phaseProcessing
		if len(r.queue) == 0 {
			r.phase = phaseDone
		}
		slog.Info("listing finished", "run_id", r.report.RunID, "pages", r.page, "records", len(r.queue))
	}
	return nil
}

// stepRecord fetches and applies one queued record. Failures are counted
// and the run moves on.
func (r *run) stepRecord(ctx context.Context) error {
	q := r.queue[r.pos]
	r.pos++
	if r.pos >= len(r.queue) {
		r.phase = phaseDone
	}
	r.report.RecordsChecked++

	items, err := r.eng.src.GetSerials(ctx, q.rec.TrackingNumber)
	r.markCall()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, "sync cancelled")
		}
		r.report.Errors++
		slog.Warn("fetch serials failed", "run_id", r.report.RunID, "tracking", q.rec.TrackingNumber, "error", err.Error())
		return nil
	}

	res := normalizer.Normalize(items, normalizer.MetaFromRecord(q.rec), q.updatedAt, r.syncedAt)
	for _, iss := range res.Issues {
		r.report.Errors++
		slog.Warn("skipping serial item", "run_id", r.report.RunID, "tracking", q.rec.TrackingNumber, "error", iss.Error())
	}

	changed, err := r.apply(ctx, res)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, "sync cancelled")
		}
		r.report.Errors++
		slog.Error("apply record failed", "run_id", r.report.RunID, "tracking", q.rec.TrackingNumber, "error", err.Error())
		return nil
	}
	if changed {
		r.report.RecordsUpdated++
	}

	if every := r.eng.progressEvery; every > 0 && r.report.RecordsChecked%every == 0 {
		slog.Info("sync progress",
			"run_id", r.report.RunID,
			"checked", r.report.RecordsChecked,
			"queued", len(r.queue),
			"updated", r.report.RecordsUpdated,
		)
	}
	return nil
}

// apply classifies every entry against the store (and the dry-run overlay),
// then writes the record atomically unless this is a dry run. An entry whose
// stored faa_updated_at is newer counts as unchanged and is not written.
// Counters only move once the write succeeded.
func (r *run) apply(ctx context.Context, res normalizer.Result) (bool, error) {
	var (
		exactAdded, exactUpdated int
		rangeAdded, rangeUpdated int
		exact                    []*models.ExactSerialEntry
		ranges                   []*models.SerialRangeEntry
		exactTouched             []string
	)

	for i := range res.Exact {
		e := res.Exact[i]
		prev, err := r.lookupExact(ctx, e.SerialNumber)
		if err != nil {
			return false, err
		}
		switch {
		case prev == nil:
			exactAdded++
			exactTouched = append(exactTouched, e.SerialNumber)
		case models.Stale(prev.FAAUpdatedAt, e.FAAUpdatedAt):
			continue
		case !prev.SameData(e):
			exactUpdated++
			exactTouched = append(exactTouched, e.SerialNumber)
		}
		exact = append(exact, e)
	}
	for i := range res.Ranges {
		rg := res.Ranges[i]
		prev, err := r.lookupRange(ctx, rg.Key())
		if err != nil {
			return false, err
		}
		switch {
		case prev == nil:
			rangeAdded++
		case models.Stale(prev.FAAUpdatedAt, rg.FAAUpdatedAt):
			continue
		case !prev.SameData(rg):
			rangeUpdated++
		}
		ranges = append(ranges, rg)
	}

	if r.dryRun {
		r.overlay.stage(exact, ranges)
	} else if err := r.eng.store.ApplyEntries(ctx, exact, ranges); err != nil {
		return false, err
	}

	r.report.ExactAdded += exactAdded
	r.report.ExactUpdated += exactUpdated
	r.report.RangeAdded += rangeAdded
	r.report.RangeUpdated += rangeUpdated
	r.changedExact = append(r.changedExact, exactTouched...)
	if rangeAdded+rangeUpdated > 0 {
		for i := range ranges {
			r.changedRanges[ranges[i].RIDTracking] = struct{}{}
		}
	}
	return exactAdded+exactUpdated+rangeAdded+rangeUpdated > 0, nil
}

func (r *run) lookupExact(ctx context.Context, serial string) (*models.ExactSerialEntry, error) {
	if r.overlay != nil {
		if e, ok := r.overlay.exact[serial]; ok {
			return &e, nil
		}
	}
	return r.eng.store.GetExact(ctx, serial)
}

func (r *run) lookupRange(ctx context.Context, key models.RangeKey) (*models.SerialRangeEntry, error) {
	if r.overlay != nil {
		if e, ok := r.overlay.ranges[key]; ok {
			return &e, nil
		}
	}
	return r.eng.store.GetRangeByKey(ctx, key)
}

func (r *run) changedRangeTrackings() []string {
	if len(r.changedRanges) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.changedRanges))
	for k := range r.changedRanges {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// overlay holds what a dry run would have written so later records in the
// same run classify against it.
type overlay struct {
	exact  map[string]models.ExactSerialEntry
	ranges map[models.RangeKey]models.SerialRangeEntry
}

func newOverlay() *overlay {
	return &overlay{
		exact:  map[string]models.ExactSerialEntry{},
		ranges: map[models.RangeKey]models.SerialRangeEntry{},
	}
}

func (o *overlay) stage(exact []*models.ExactSerialEntry, ranges []*models.SerialRangeEntry) {
	for _, e := range exact {
		o.exact[e.SerialNumber] = *e
	}
	for _, rg := range ranges {
		o.ranges[rg.Key()] = *rg
	}
}
