package webflow

import (
	"context"
	"errors"
	golog "log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mjl-/mailflow/mlog"
)

// ShutdownTimeout is how long Serve waits for requests in progress to finish
// after ctx is canceled.
var ShutdownTimeout = 10 * time.Second

// Serve serves handler on listener ln until ctx is canceled, then shuts down
// gracefully. Serve returns nil after a graceful shutdown.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	log := pkglog.WithContext(ctx)
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       65 * time.Second,
		ErrorLog:          golog.New(mlog.ErrWriter(log.With(slog.String("pkg", "net/http")), slog.LevelInfo, "http error"), "", 0),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Print("shutting down http server", slog.Duration("timeout", ShutdownTimeout))
	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
