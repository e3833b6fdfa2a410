package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BearBump/RIDBox/config"
	"github.com/BearBump/RIDBox/internal/broker/kafka"
	"github.com/BearBump/RIDBox/internal/cache"
	"github.com/BearBump/RIDBox/internal/cache/rediscache"
	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/integrations/faa/faasource"
	"github.com/BearBump/RIDBox/internal/services/scheduler"
	"github.com/BearBump/RIDBox/internal/services/syncer"
	"github.com/BearBump/RIDBox/internal/storage"
)

// workerFactories returns nil producer or locker when the backing service is
// not configured; the worker then runs without events or without a lock.
type workerFactories struct {
	newStorage  func(ctx context.Context, cfg *config.Config) (store syncer.Store, closeFn func(), err error)
	newProducer func(cfg *config.Config) (syncer.Producer, func())
	newLocker   func(cfg *config.Config) (cache.Locker, func())
	newSource   func(cfg *config.Config) faa.Source
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (syncer.Store, func(), error) {
			// воркер может стартовать на пустой базе и наполнить её сам
			st, err := storage.OpenWithRetry(ctx, cfg, storage.OpenOrCreate, 60*time.Second)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) (syncer.Producer, func()) {
			brokers := cfg.KafkaBrokers()
			if brokers == nil {
				return nil, nil
			}
			p := kafka.NewProducer(brokers)
			return p, func() { _ = p.Close() }
		},
		newLocker: func(cfg *config.Config) (cache.Locker, func()) {
			addr := cfg.RedisAddr()
			if addr == "" {
				return nil, nil
			}
			c := rediscache.NewClient(rediscache.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			return rediscache.NewLocker(c), func() { _ = c.Close() }
		},
		newSource: faasource.FromConfig,
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func plannerConfig(cfg *config.Config) scheduler.PlannerConfig {
	return scheduler.PlannerConfig{
		Interval: seconds(cfg.RIDBox.WorkerSyncIntervalSeconds),
		Jitter:   seconds(cfg.RIDBox.WorkerSyncJitterSeconds),
		Backoff1: seconds(cfg.RIDBox.WorkerBackoff1Seconds),
		Backoff2: seconds(cfg.RIDBox.WorkerBackoff2Seconds),
		Backoff3: seconds(cfg.RIDBox.WorkerBackoff3Seconds),
		Backoff4: seconds(cfg.RIDBox.WorkerBackoff4Seconds),
	}
}

func workerBoundary(cfg *config.Config) syncer.Boundary {
	b := syncer.SinceLastSync()
	if cfg.RIDBox.WorkerSyncLimit > 0 {
		b = b.WithLimit(cfg.RIDBox.WorkerSyncLimit)
	}
	return b
}

// newScheduler wires the sync engine and its periodic runner. The returned
// close function releases every resource the factories opened.
func newScheduler(ctx context.Context, cfg *config.Config, f workerFactories) (*scheduler.Scheduler, func(), error) {
	store, closeStore, err := f.newStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){closeStore}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if closers[i] != nil {
				closers[i]()
			}
		}
	}

	topic := cfg.Kafka.SerialsSyncedTopicName
	if topic == "" {
		topic = kafka.DefaultSerialsSyncedTopic
	}

	engine := syncer.New(f.newSource(cfg), store).WithPageSize(cfg.FAA.PageSize)
	if producer, closeProducer := f.newProducer(cfg); producer != nil {
		engine = engine.WithProducer(producer, topic)
		closers = append(closers, closeProducer)
	}

	sch := scheduler.New(engine).
		WithPlanner(plannerConfig(cfg)).
		WithBoundary(workerBoundary(cfg)).
		WithRunOnStart(!cfg.RIDBox.WorkerSkipInitialSync)
	if locker, closeLocker := f.newLocker(cfg); locker != nil {
		sch = sch.WithLocker(locker, scheduler.DefaultLockKey, seconds(cfg.RIDBox.WorkerLockTTLSeconds))
		closers = append(closers, closeLocker)
	}
	return sch, closeAll, nil
}

// RunRIDWorker runs the scheduler and the worker HTTP endpoints until ctx is
// done or either of them fails.
func RunRIDWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	sch, closeFn, err := newScheduler(ctx, cfg, f)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpOpts.scheduler = sch
	httpOpts.cfg = cfg
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, httpOpts)
	}()

	slog.Info("rid worker started",
		"interval", plannerConfig(cfg).Interval.String(),
		"driver", cfg.DatabaseDriver(),
		"faa_mode", cfg.FAA.Mode)

	runErr := sch.Run(ctx)
	cancel()
	if err := <-httpErr; err != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("worker http server", "error", err.Error())
	}
	return runErr
}
