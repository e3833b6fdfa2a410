// Package scheduler runs the sync engine periodically inside the worker.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/RIDBox/internal/cache"
	"github.com/BearBump/RIDBox/internal/models"
	"github.com/BearBump/RIDBox/internal/services/syncer"
	"github.com/pkg/errors"
)

// DefaultLockKey guards sync runs across worker processes.
const DefaultLockKey = "ridbox:lock:sync"

type Syncer interface {
	Sync(ctx context.Context, b syncer.Boundary, dryRun bool) (models.SyncReport, error)
}

type Scheduler struct {
	syncer   Syncer
	planner  *Planner
	boundary syncer.Boundary

	locker      cache.Locker
	lockKey     string
	lockTTL     time.Duration
	lockRefresh time.Duration

	runOnStart bool

	triggerCh chan struct{}
	runMu     sync.Mutex

	startedAtUnixNano   int64
	lastRunUnixNano     atomic.Int64
	lastSuccessUnixNano atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRuns           atomic.Int64
	totalFailures       atomic.Int64
	skippedLocked       atomic.Int64
	consecutiveFailures atomic.Int64
	running             atomic.Bool
	lastMu              sync.Mutex
	lastError           string
	lastReport          *models.SyncReport
}

func New(s Syncer) *Scheduler {
	return &Scheduler{
		syncer:            s,
		planner:           NewPlanner(DefaultPlannerConfig(), nil),
		boundary:          syncer.SinceLastSync(),
		lockKey:           DefaultLockKey,
		lockTTL:           30 * time.Minute,
		runOnStart:        true,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Scheduler) WithPlanner(cfg PlannerConfig) *Scheduler {
	s.planner = NewPlanner(cfg, nil)
	return s
}

func (s *Scheduler) WithBoundary(b syncer.Boundary) *Scheduler {
	s.boundary = b
	return s
}

// WithLocker makes every run take key for ttl first; a held lock skips the run.
func (s *Scheduler) WithLocker(l cache.Locker, key string, ttl time.Duration) *Scheduler {
	s.locker = l
	if key != "" {
		s.lockKey = key
	}
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// WithLockRefresh sets how often a held lock is extended. Defaults to a
// third of the lock TTL.
func (s *Scheduler) WithLockRefresh(every time.Duration) *Scheduler {
	if every > 0 {
		s.lockRefresh = every
	}
	return s
}

func (s *Scheduler) WithRunOnStart(v bool) *Scheduler {
	s.runOnStart = v
	return s
}

// Trigger forces an immediate sync (best-effort, non-blocking).
func (s *Scheduler) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt           time.Time          `json:"startedAt"`
	LastRunAt           *time.Time         `json:"lastRunAt,omitempty"`
	LastSuccessAt       *time.Time         `json:"lastSuccessAt,omitempty"`
	LastTriggerAt       *time.Time         `json:"lastTriggerAt,omitempty"`
	TotalRuns           int64              `json:"totalRuns"`
	TotalFailures       int64              `json:"totalFailures"`
	SkippedLocked       int64              `json:"skippedLocked"`
	ConsecutiveFailures int64              `json:"consecutiveFailures"`
	Running             bool               `json:"running"`
	LastError           string             `json:"lastError,omitempty"`
	LastReport          *models.SyncReport `json:"lastReport,omitempty"`
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		StartedAt:           time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalRuns:           s.totalRuns.Load(),
		TotalFailures:       s.totalFailures.Load(),
		SkippedLocked:       s.skippedLocked.Load(),
		ConsecutiveFailures: s.consecutiveFailures.Load(),
		Running:             s.running.Load(),
	}
	st.LastRunAt = unixPtr(s.lastRunUnixNano.Load())
	st.LastSuccessAt = unixPtr(s.lastSuccessUnixNano.Load())
	st.LastTriggerAt = unixPtr(s.lastTriggerUnixNano.Load())

	s.lastMu.Lock()
	st.LastError = s.lastError
	if s.lastReport != nil {
		rep := *s.lastReport
		st.LastReport = &rep
	}
	s.lastMu.Unlock()
	return st
}

func (s *Scheduler) Run(ctx context.Context) error {
	delay := time.Duration(0)
	if !s.runOnStart {
		delay = s.planner.NextDelay(0)
	}
	t := time.NewTimer(delay)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		case <-s.triggerCh:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
		}
		_ = s.RunOnce(ctx)
		t.Reset(s.planner.NextDelay(int(s.consecutiveFailures.Load())))
	}
}

// RunOnce performs one sync under the lock. A run skipped because another
// worker holds the lock is not a failure.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runCtx := ctx
	if s.locker != nil {
		lease, ok, err := s.locker.TryLock(ctx, s.lockKey, s.lockTTL)
		if err != nil {
			s.fail(err)
			return err
		}
		if !ok {
			s.skippedLocked.Add(1)
			slog.Info("sync skipped, lock held by another worker", "key", s.lockKey)
			return nil
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("release sync lock", "error", err.Error())
			}
		}()

		var stop func()
		runCtx, stop = s.keepLease(ctx, lease)
		defer stop()
	}

	s.running.Store(true)
	defer s.running.Store(false)
	now := time.Now().UTC()
	s.lastRunUnixNano.Store(now.UnixNano())
	s.totalRuns.Add(1)

	rep, err := s.syncer.Sync(runCtx, s.boundary, false)
	s.lastMu.Lock()
	s.lastReport = &rep
	s.lastMu.Unlock()
	if err != nil {
		if cause := context.Cause(runCtx); cause != nil && ctx.Err() == nil {
			err = cause
		}
		err = errors.Wrap(err, "scheduled sync")
		s.fail(err)
		return err
	}

	s.consecutiveFailures.Store(0)
	s.lastSuccessUnixNano.Store(time.Now().UTC().UnixNano())
	s.lastMu.Lock()
	s.lastError = ""
	s.lastMu.Unlock()
	return nil
}

// keepLease extends lease in the background until stop is called. A failed
// refresh cancels the returned context: the run no longer owns the lock.
func (s *Scheduler) keepLease(ctx context.Context, lease cache.Lease) (context.Context, func()) {
	every := s.lockRefresh
	if every <= 0 {
		every = s.lockTTL / 3
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				return
			case <-t.C:
				if err := lease.Refresh(runCtx, s.lockTTL); err != nil {
					slog.Error("sync lock lost, cancelling run", "key", s.lockKey, "error", err.Error())
					cancel(errors.Wrap(err, "sync lock lost"))
					return
				}
			}
		}
	}()

	return runCtx, func() {
		close(done)
		wg.Wait()
		cancel(nil)
	}
}

func (s *Scheduler) fail(err error) {
	s.totalFailures.Add(1)
	n := s.consecutiveFailures.Add(1)
	s.lastMu.Lock()
	s.lastError = err.Error()
	s.lastMu.Unlock()
	slog.Error("sync run failed", "consecutive_failures", n, "next_in", s.planner.NextDelay(int(n)).String(), "error", err.Error())
}

func unixPtr(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	t := time.Unix(0, n).UTC()
	return &t
}
