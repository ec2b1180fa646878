package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// errServerStopped reports a listener that exited without an error.
var errServerStopped = errors.New("server stopped unexpectedly")

// Start launches the HTTP server goroutine. It requires Init to have completed.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true
	return a.serverErrors, nil
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails, then releases every resource within the configured shutdown
// timeout. A cancelled ctx is a clean stop and returns nil.
func (a *App) Run(ctx context.Context) error {
	serverErrors, err := a.Start()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err, ok := <-serverErrors:
			if !ok || err == nil {
				return errServerStopped
			}
			return err
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		if cause := context.Cause(ctx); cause != nil {
			a.logger.Info("shutdown requested", slog.String("reason", cause.Error()))
		}

		timeout := a.shutdownTimeout()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

// ReloadCatalog rebuilds the catalog immediately instead of waiting for the
// next poll.
func (a *App) ReloadCatalog(ctx context.Context) error {
	a.stateMu.Lock()
	manager := a.catalog
	a.stateMu.Unlock()
	if manager == nil {
		return fmt.Errorf("app is not initialized")
	}

	start := time.Now()
	if err := manager.RefreshNow(ctx); err != nil {
		a.logger.Error("catalog reload failed", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("catalog reloaded", slog.Duration("duration", time.Since(start)))
	return nil
}
