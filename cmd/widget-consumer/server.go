package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/slackmgr/widget-consumer/types"
)

const metricsShutdownTimeout = 5 * time.Second

func newRouter(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", metricsHandler)

	return r
}

// serveMetrics serves the router on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger types.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", addr).Info("Metrics server listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Metrics server stopped: %v", err)
	}
}
