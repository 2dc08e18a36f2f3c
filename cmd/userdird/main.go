// Command userdird serves the user directory REST API.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"userdir/internal/adapters/exports"
	"userdir/internal/blob"
	"userdir/internal/core"
	"userdir/internal/httpapi"
	"userdir/internal/infra/persistence"
	"userdir/internal/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := persistence.Open(core.DefaultRulesEngine())
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	blobs, err := blob.Open(ctx)
	if err != nil {
		return err
	}

	service := core.NewService(store)
	handler := httpapi.NewHandler(service)
	handler.Exports = exports.New(service, blobs)

	m := metrics.New()
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/api/users", m.Middleware("/api/users", handler))
	mux.Handle("/api/users/", m.Middleware("/api/users", handler))
	mux.Handle("/api/exports", m.Middleware("/api/exports", handler))
	mux.Handle("/api/exports/", m.Middleware("/api/exports", handler))
	mux.Handle("/api/health", m.Middleware("/api/health", handler))

	addr := os.Getenv("USERDIR_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "blob_driver", blobs.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
