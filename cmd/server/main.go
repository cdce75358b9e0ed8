package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/moviewatch/internal/app"
	"github.com/Clark-Hu/moviewatch/internal/config"
	httpserver "github.com/Clark-Hu/moviewatch/internal/http"
	"github.com/Clark-Hu/moviewatch/internal/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.LoadEnv(slog.Default(), ".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger, closer, err := app.NewLogger(cfg, os.Stdout, "moviewatch-api")
	if err != nil {
		slog.Error("logger error", "error", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	storageCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, cleanup, err := app.OpenStorage(storageCtx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	wl, err := app.OpenWatchlist(storageCtx, cfg, kv, logger)
	if err != nil {
		return err
	}

	// The watchlist stays usable without metadata credentials.
	var catalog tmdb.Client
	if client, err := app.NewTMDB(cfg, logger); err != nil {
		logger.Warn("metadata client disabled", "error", err)
	} else {
		catalog = client
	}

	server := httpserver.New(cfg, kv, wl, catalog, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	var serveErr error
	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("graceful shutdown error", "error", err)
	}
	return serveErr
}
