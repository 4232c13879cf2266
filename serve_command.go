package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nijaru/mcp-video/config"
	"github.com/nijaru/mcp-video/db"
	"github.com/nijaru/mcp-video/handlers"
	"github.com/nijaru/mcp-video/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			if err := config.ValidateServer(cfg); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(runCtx, ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cmdCtx *commandContext, cfg *config.Config) error {
	service, err := cmdCtx.newService(cfg)
	if err != nil {
		return err
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close database")
		}
	}()

	archive, err := storage.NewArchive(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	opts := []handlers.Option{
		handlers.WithRateLimiter(rate.NewLimiter(rate.Every(cfg.RateLimitInterval), cfg.RateLimit)),
	}
	if archive != nil {
		opts = append(opts, handlers.WithArchive(archive))
		logrus.WithField("bucket", cfg.Archive.Bucket).Info("Transcription archive enabled")
	}

	h := handlers.New(service, store, cfg.ProcessTimeout, opts...)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      h.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":  cfg.ServerPort,
			"model": service.ModelName(),
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logrus.WithError(err).Error("Server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
		return err
	}

	logrus.Info("Server stopped")
	return nil
}
