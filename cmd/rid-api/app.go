package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	serialsapi "github.com/BearBump/RIDBox/internal/api/serials_api"
	"github.com/BearBump/RIDBox/internal/broker/messages"
	"github.com/BearBump/RIDBox/internal/services/lookup"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type ridAPIOpts struct {
	httpAddr string
	// swaggerPath overrides the embedded API document when set.
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type syncedConsumer interface {
	ConsumeSerialsSynced(ctx context.Context, handle func(ctx context.Context, msg messages.SerialsSynced) error) error
}

// runRIDAPI serves lookups until ctx is done. consumer may be nil when Kafka
// is not configured; cached answers then expire only by TTL.
func runRIDAPI(ctx context.Context, opts ridAPIOpts, svc *lookup.Service, consumer syncedConsumer) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, newRouter(svc, opts.swaggerPath))
	}()

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			err := consumer.ConsumeSerialsSynced(ctx, svc.ApplySyncedEvent)
			if err != nil && ctx.Err() == nil {
				slog.Error("kafka consumer stopped", "error", err.Error())
			}
		}()
	}

	select {
	case <-ctx.Done():
		<-httpErr
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func newRouter(svc *lookup.Service, swaggerPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	serialsapi.New(svc).Register(r)

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if swaggerPath != "" {
			http.ServeFile(w, r, swaggerPath)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(serialsapi.SwaggerJSON)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))
	return r
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	err := srv.Serve(lis)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
