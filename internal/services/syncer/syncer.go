// Package syncer keeps the local store in step with the FAA listing. A run
// pages through recently updated declarations, fetches each record's serials
// and upserts the normalized entries, with one remote call every
// ThrottleInterval at most.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/BearBump/RIDBox/internal/broker/messages"
	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ThrottleInterval is the minimum gap between consecutive remote calls.
const ThrottleInterval = 5 * time.Second

// BuildMethodAPI is recorded under build_method by Build.
const BuildMethodAPI = "api"

type Store interface {
	GetExact(ctx context.Context, serial string) (*models.ExactSerialEntry, error)
	GetRangeByKey(ctx context.Context, key models.RangeKey) (*models.SerialRangeEntry, error)
	ApplyEntries(ctx context.Context, exact []*models.ExactSerialEntry, ranges []*models.SerialRangeEntry) error
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
	SetMetaBatch(ctx context.Context, kv map[string]string) error
	Stats(ctx context.Context) (models.StoreStats, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Engine struct {
	src   faa.Source
	store Store
	clock Clock

	producer Producer
	topic    string

	pageSize      int
	publishTries  int
	progressEvery int
}

func New(src faa.Source, store Store) *Engine {
	return &Engine{
		src:           src,
		store:         store,
		clock:         SystemClock{},
		pageSize:      faa.DefaultPageSize,
		publishTries:  3,
		progressEvery: 10,
	}
}

func (e *Engine) WithClock(c Clock) *Engine {
	if c != nil {
		e.clock = c
	}
	return e
}

func (e *Engine) WithProducer(p Producer, topic string) *Engine {
	e.producer = p
	e.topic = topic
	return e
}

func (e *Engine) WithPageSize(n int) *Engine {
	if n > 0 {
		e.pageSize = n
	}
	return e
}

// Sync checks the records selected by b and applies what changed. With
// dryRun nothing is written, but the report counts what a real run would.
func (e *Engine) Sync(ctx context.Context, b Boundary, dryRun bool) (models.SyncReport, error) {
	if err := b.Validate(); err != nil {
		return models.SyncReport{}, err
	}
	started := e.clock.Now().UTC()

	cur, err := e.resolve(ctx, b, started)
	if err != nil {
		return models.SyncReport{RunID: uuid.NewString(), DryRun: dryRun, StartedAt: started}, err
	}

	r := newRun(e, cur, dryRun, started)
	slog.Info("sync started",
		"run_id", r.report.RunID,
		"boundary", b.Kind.String(),
		"dry_run", dryRun,
		"limit", cur.limit,
	)

	if err := e.drive(ctx, r); err != nil {
		r.finish(e.clock.Now())
		slog.Error("sync failed", "run_id", r.report.RunID, "error", err.Error())
		return r.report, err
	}
	r.finish(e.clock.Now())
	r.report.Completed = true

	if !dryRun {
		if err := e.store.SetMeta(ctx, models.MetaLastSyncDate, started.Format(time.RFC3339)); err != nil {
			return r.report, fmt.Errorf("%w: write watermark: %w", models.ErrStoreUnavailable, err)
		}
		e.publish(ctx, r, messages.KindSync)
	}

	e.logReport("sync finished", r.report)
	return r.report, nil
}

// Build lists every record to exhaustion and stores all of them, then
// writes the build metadata.
func (e *Engine) Build(ctx context.Context) (models.SyncReport, error) {
	started := e.clock.Now().UTC()
	r := newRun(e, cursor{}, false, started)
	slog.Info("build started", "run_id", r.report.RunID)

	if err := e.drive(ctx, r); err != nil {
		r.finish(e.clock.Now())
		slog.Error("build failed", "run_id", r.report.RunID, "error", err.Error())
		return r.report, err
	}
	r.finish(e.clock.Now())
	r.report.Completed = true

	st, err := e.store.Stats(ctx)
	if err != nil {
		return r.report, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	stamp := started.Format(time.RFC3339)
	err = e.store.SetMetaBatch(ctx, map[string]string{
		models.MetaBuildDate:         stamp,
		models.MetaBuildMethod:       BuildMethodAPI,
		models.MetaLastSyncDate:      stamp,
		models.MetaTotalRIDs:         strconv.Itoa(r.report.RecordsChecked),
		models.MetaExactSerialsCount: strconv.FormatInt(st.ExactSerials, 10),
		models.MetaSerialRangesCount: strconv.FormatInt(st.SerialRanges, 10),
		models.MetaTotalRecords:      strconv.FormatInt(st.ExactSerials+st.SerialRanges, 10),
	})
	if err != nil {
		return r.report, fmt.Errorf("%w: write build metadata: %w", models.ErrStoreUnavailable, err)
	}
	e.publish(ctx, r, messages.KindBuild)

	e.logReport("build finished", r.report)
	return r.report, nil
}

// drive runs the state machine to completion, sleeping out the throttle
// between steps.
func (e *Engine) drive(ctx context.Context, r *run) error {
	for r.phase != phaseDone {
		if d := r.wait(e.clock.Now()); d > 0 {
			if err := e.clock.Sleep(ctx, d); err != nil {
				return errors.Wrap(err, "throttle wait")
			}
		}
		if err := r.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, r *run, kind string) {
	if e.producer == nil || e.topic == "" || r.report.RecordsUpdated == 0 {
		return
	}
	msg := messages.SerialsSynced{
		RunID:          r.report.RunID,
		Kind:           kind,
		StartedAt:      r.report.StartedAt,
		RecordsChecked: r.report.RecordsChecked,
		RecordsUpdated: r.report.RecordsUpdated,
		Errors:         r.report.Errors,
		ExactSerials:   r.changedExact,
		RangeTrackings: r.changedRangeTrackings(),
	}
	if r.report.FinishedAt != nil {
		msg.FinishedAt = *r.report.FinishedAt
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal serials synced", "run_id", msg.RunID, "error", err.Error())
		return
	}

	var pubErr error
	for i := 0; i < e.publishTries; i++ {
		if pubErr = e.producer.Publish(ctx, e.topic, []byte(msg.RunID), b); pubErr == nil {
			return
		}
		if err := e.clock.Sleep(ctx, time.Duration(200*(i+1))*time.Millisecond); err != nil {
			break
		}
	}
	// данные уже в базе, событие только для инвалидации кэша
	slog.Error("publish serials synced", "run_id", msg.RunID, "error", pubErr.Error())
}

func (e *Engine) logReport(msg string, rep models.SyncReport) {
	slog.Info(msg,
		"run_id", rep.RunID,
		"dry_run", rep.DryRun,
		"records_checked", rep.RecordsChecked,
		"records_updated", rep.RecordsUpdated,
		"exact_added", rep.ExactAdded,
		"exact_updated", rep.ExactUpdated,
		"range_added", rep.RangeAdded,
		"range_updated", rep.RangeUpdated,
		"api_calls", rep.APICalls,
		"errors", rep.Errors,
	)
}
