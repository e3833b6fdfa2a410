package main

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/BearBump/RIDBox/config"
	"github.com/BearBump/RIDBox/internal/cache"
	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/integrations/faa/fake"
	"github.com/BearBump/RIDBox/internal/models"
	"github.com/BearBump/RIDBox/internal/services/syncer"
	"github.com/BearBump/RIDBox/internal/storage/sqliteserials"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

type noopProducer struct{}

func (p noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

func TestDefaultWorkerFactories_OptionalBackends(t *testing.T) {
	f := defaultWorkerFactories()

	cfg := config.Default()
	p, closeP := f.newProducer(cfg)
	require.Nil(t, p)
	require.Nil(t, closeP)
	l, closeL := f.newLocker(cfg)
	require.Nil(t, l)
	require.Nil(t, closeL)

	cfg.Kafka = config.KafkaConfig{Host: "localhost", Port: 9092}
	cfg.Redis = config.RedisConfig{Host: "localhost", Port: 6379}
	p, closeP = f.newProducer(cfg)
	require.NotNil(t, p)
	closeP()
	l, closeL = f.newLocker(cfg)
	require.NotNil(t, l)
	closeL()

	cfg.FAA.Mode = config.FAAModeFake
	_, ok := f.newSource(cfg).(*fake.Source)
	require.True(t, ok)
}

func TestPlannerConfigAndBoundary(t *testing.T) {
	cfg := config.Default()
	cfg.RIDBox.WorkerSyncIntervalSeconds = 600
	cfg.RIDBox.WorkerBackoff1Seconds = 30
	cfg.RIDBox.WorkerSyncLimit = 200

	pc := plannerConfig(cfg)
	require.Equal(t, 10*time.Minute, pc.Interval)
	require.Equal(t, 30*time.Second, pc.Backoff1)
	require.Zero(t, pc.Backoff2)

	b := workerBoundary(cfg)
	require.Equal(t, syncer.KindSinceLastSync, b.Kind)
	require.Equal(t, 200, b.Limit)
}

func testFactories(t *testing.T, mr *miniredis.Miniredis, closed *bool) workerFactories {
	f := defaultWorkerFactories()
	f.newProducer = func(cfg *config.Config) (syncer.Producer, func()) {
		return noopProducer{}, func() { *closed = true }
	}
	f.newSource = func(cfg *config.Config) faa.Source { return fake.New() }
	if mr == nil {
		f.newLocker = func(cfg *config.Config) (cache.Locker, func()) { return nil, nil }
	}
	return f
}

func TestRunRIDWorker_SyncsAndServesHTTP(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "rid.db")
	cfg := config.Default()
	cfg.Database.Path = dbPath
	cfg.Redis = config.RedisConfig{Host: mr.Host(), Port: port}
	cfg.RIDBox.WorkerSyncIntervalSeconds = 3600

	closed := false
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunRIDWorker(ctx, cfg, testFactories(t, mr, &closed), workerHTTPOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
		})
	}()
	base := "http://" + <-addrCh

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/stats")
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	require.EqualValues(t, 1, st["totalRuns"])
	require.EqualValues(t, 0, st["totalFailures"])

	resp, err = http.Get(base + "/config")
	require.NoError(t, err)
	var conf map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conf))
	resp.Body.Close()
	require.Equal(t, "sqlite", conf["driver"])
	require.EqualValues(t, 3600, conf["effectiveIntervalSeconds"])

	resp, err = http.Post(base+"/trigger", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Get(base + "/swagger.json")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting worker to stop")
	}
	require.True(t, closed)

	// пустой листинг всё равно двигает watermark
	st2, err := sqliteserials.OpenExisting(context.Background(), dbPath)
	require.NoError(t, err)
	defer st2.Close()
	_, ok, err := st2.GetMeta(context.Background(), models.MetaLastSyncDate)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRunRIDWorker_StorageErrorReturned(t *testing.T) {
	f := defaultWorkerFactories()
	f.newStorage = func(ctx context.Context, cfg *config.Config) (syncer.Store, func(), error) {
		return nil, nil, models.ErrStoreUnavailable
	}
	err := RunRIDWorker(context.Background(), config.Default(), f, workerHTTPOpts{httpAddr: "127.0.0.1:0"})
	require.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestRunRIDWorker_ContextCanceled(t *testing.T) {
	closed := false
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "rid.db")
	cfg.RIDBox.WorkerSkipInitialSync = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := testFactories(t, nil, &closed)
	f.newStorage = func(ctx context.Context, cfg *config.Config) (syncer.Store, func(), error) {
		st, err := sqliteserials.Open(context.Background(), cfg.SQLitePath())
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	err := RunRIDWorker(ctx, cfg, f, workerHTTPOpts{httpAddr: "127.0.0.1:0"})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, closed)
}

func TestWorkerRouter_NotWired(t *testing.T) {
	srv := newWorkerRouter(workerHTTPOpts{})
	for _, path := range []string{"/stats", "/config"} {
		rec := doRequest(srv, http.MethodGet, path)
		require.Contains(t, rec.Body.String(), "not wired")
	}
	rec := doRequest(srv, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = doRequest(srv, http.MethodPost, "/trigger")
	require.Contains(t, rec.Body.String(), "not wired")
}
