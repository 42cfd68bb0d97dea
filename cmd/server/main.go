// Shopmate serves the order API and realtime order updates.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopmate/shopmate/app"
	"github.com/shopmate/shopmate/server"
)

const shutdownGrace = 30 * time.Second

func main() {
	os.Exit(run())
}

// run owns the process lifetime so deferred cleanup still happens on a
// failing exit code.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to initialize app", "error", err)
		return 1
	}
	defer application.Close()
	logger := application.Logger

	srv, err := server.New(application.Config, logger, application.Handlers, application.BillDir)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		return 1
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Run() }()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}
	stop()

	logger.Info("shutting down", "grace", shutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Close(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return 1
	}
	return 0
}
