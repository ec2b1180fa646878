// Command restfilter serves MySQL/TiDB tables as a filterable, read-only
// REST API for react-admin clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restfilter/internal/config"
	"restfilter/internal/serverapp"

	"github.com/spf13/pflag"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load(args)
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		_, _ = fmt.Fprintf(stdout, "restfilter %s (%s)\n", Version, Commit)
		return nil
	case errors.Is(err, pflag.ErrHelp):
		return nil
	case err != nil:
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	result := cfg.Validate()
	for _, warn := range result.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if result.HasErrors() {
		for _, verr := range result.Errors {
			slog.Error("configuration error",
				slog.String("field", verr.Field),
				slog.String("message", verr.Message),
				slog.String("hint", verr.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed: %w", result)
	}

	logger, loggerProvider, err := serverapp.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	app, err := serverapp.New(cfg, logger)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	app.AttachLoggerProvider(loggerProvider)

	if err := app.Init(ctx); err != nil {
		return err
	}

	stopReload := reloadOnHangup(ctx, app)
	defer stopReload()

	logger.Info("restfilter starting", slog.String("version", Version), slog.String("commit", Commit))
	if err := app.Run(ctx); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}

// reloadOnHangup rebuilds the catalog whenever the process receives SIGHUP.
func reloadOnHangup(ctx context.Context, app *serverapp.App) func() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-hup:
				reloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				_ = app.ReloadCatalog(reloadCtx)
				cancel()
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(hup)
		close(done)
	}
}
