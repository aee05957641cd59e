package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"golang.org/x/sync/errgroup"
)

// Run serves HTTP until a termination signal arrives or the listener fails,
// then shuts every component down within the configured timeout.
func (app *application) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(app.config.Server.Port)))
	if err != nil {
		_ = app.shutdown(ctx)
		return fmt.Errorf("failed to listen on port %d: %w", app.config.Server.Port, err)
	}

	wait := gfshutdown.GracefulShutdown(ctx, app.config.Server.ShutdownTimeout(), map[string]gfshutdown.Operation{
		"application": func(ctx context.Context) error {
			app.logger.Info("graceful shutdown initiated")
			return app.stop(ctx)
		},
	})

	return app.serve(ctx, listener, wait)
}

// serve runs the HTTP server on listener. A value on signalled means the
// shutdown operation already ran and carries its exit code.
func (app *application) serve(ctx context.Context, listener net.Listener, signalled <-chan int) error {
	app.server = &http.Server{
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("starting server", "addr", listener.Addr().String())
		if err := app.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case code := <-signalled:
			if code != 0 {
				return fmt.Errorf("graceful shutdown finished with exit code %d", code)
			}
			return nil
		case <-gctx.Done():
			app.logger.Info("server context canceled, shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.Server.ShutdownTimeout())
			defer cancel()
			return app.stop(shutdownCtx)
		}
	})

	return g.Wait()
}

// stop closes the HTTP server and then the rest of the application.
func (app *application) stop(ctx context.Context) error {
	var errs []error
	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if err := app.shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
