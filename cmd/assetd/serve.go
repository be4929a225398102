package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/zynqcloud/go-assets/internal/app"
	"github.com/zynqcloud/go-assets/internal/config"
)

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime(*envFile, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	// shutdownSignals is defined in signals.go (os.Interrupt) and extended by
	// signals_unix.go (+ SIGTERM) via build tags.
	ctx, stop := signal.NotifyContext(parent, shutdownSignals...)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise service", "err", err)
		return err
	}
	defer a.Close()
	logger.Debug("configuration", "config", cfg.String())

	a.StartCleanup(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.Handler(),
		// Large timeouts accommodate slow clients uploading 100 MiB models.
		ReadTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("asset service starting", "port", cfg.Port,
			"backend", cfg.StorageBackend, "catalog", cfg.CatalogDriver, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			logger.Error("server error", "err", err)
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		return err
	}
	logger.Info("asset service stopped")
	return nil
}
