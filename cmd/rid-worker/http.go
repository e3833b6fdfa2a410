package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/RIDBox/config"
	"github.com/BearBump/RIDBox/internal/services/scheduler"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed swagger.json
var workerSwaggerJSON []byte

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	scheduler *scheduler.Scheduler
	cfg       *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newWorkerRouter(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newWorkerRouter(opts workerHTTPOpts) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// ready после первого успешного прогона: до этого база может быть пустой
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.scheduler == nil || opts.scheduler.Stats().LastSuccessAt == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.scheduler == nil {
			_, _ = w.Write([]byte(`{"error":"scheduler not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.scheduler.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Avoid dumping secrets; show only operational worker settings.
		pc := plannerConfig(opts.cfg)
		out := map[string]any{
			"driver":                   opts.cfg.DatabaseDriver(),
			"faaMode":                  opts.cfg.FAA.Mode,
			"pageSize":                 opts.cfg.FAA.PageSize,
			"syncIntervalSeconds":      opts.cfg.RIDBox.WorkerSyncIntervalSeconds,
			"syncJitterSeconds":        opts.cfg.RIDBox.WorkerSyncJitterSeconds,
			"syncLimit":                opts.cfg.RIDBox.WorkerSyncLimit,
			"lockTTLSeconds":           opts.cfg.RIDBox.WorkerLockTTLSeconds,
			"skipInitialSync":          opts.cfg.RIDBox.WorkerSkipInitialSync,
			"backoffSeconds":           []int{opts.cfg.RIDBox.WorkerBackoff1Seconds, opts.cfg.RIDBox.WorkerBackoff2Seconds, opts.cfg.RIDBox.WorkerBackoff3Seconds, opts.cfg.RIDBox.WorkerBackoff4Seconds},
			"effectiveIntervalSeconds": int(scheduler.NewPlanner(pc, nil).NextDelay(0) / time.Second),
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.scheduler == nil {
			_, _ = w.Write([]byte(`{"error":"scheduler not wired"}`))
			return
		}
		opts.scheduler.Trigger()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if opts.swaggerPath != "" {
			http.ServeFile(w, r, opts.swaggerPath)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(workerSwaggerJSON)
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))
	return r
}
