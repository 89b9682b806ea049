package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cellkeeper/cellkeeper/internal/app"
	"github.com/cellkeeper/cellkeeper/internal/config"
	"github.com/cellkeeper/cellkeeper/internal/logging"
)

func main() {
	cfg := config.Load()

	application, err := app.New(cfg)
	if err != nil {
		logging.New(logging.LevelError).Error("Failed to initialize application", logging.WithField("error", err.Error()))
		os.Exit(1)
	}
	logger := application.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown error", logging.WithField("error", err.Error()))
		}
		cancel()
	}()

	logger.Info("Starting HTTP server", logging.WithField("addr", cfg.Server.HTTPAddr))
	if err := application.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server error", logging.WithField("error", err.Error()))
		os.Exit(1)
	}
}
