// Command watchlistctl manages the watchlist from a terminal and offers an
// interactive browse mode with debounced search and a detail view.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/moviewatch/internal/app"
	"github.com/Clark-Hu/moviewatch/internal/config"
	"github.com/Clark-Hu/moviewatch/internal/search"
	"github.com/Clark-Hu/moviewatch/internal/storage"
	"github.com/Clark-Hu/moviewatch/internal/tmdb"
	"github.com/Clark-Hu/moviewatch/internal/watchlist"
)

// deps is what the commands need from the outside world. Tests replace the
// constructors.
type deps struct {
	cfg    config.Config
	logger *slog.Logger

	openStorage func(ctx context.Context) (storage.KV, func(), error)
	newCatalog  func() (tmdb.Client, error)
	clock       search.Clock
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(nil)
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(d *deps) *cobra.Command {
	if d == nil {
		d = &deps{}
	}
	if d.clock == nil {
		d.clock = search.RealClock
	}

	var (
		envFile string
		verbose bool
		closer  io.Closer
	)

	root := &cobra.Command{
		Use:          "watchlistctl",
		Short:        "Browse movies and manage your watchlist",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if d.logger != nil {
				return nil
			}
			app.LoadEnv(slog.Default(), envFile)
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if verbose {
				cfg.LogLevel = "debug"
			}
			logger, c, err := app.NewLogger(cfg, cmd.ErrOrStderr(), "watchlistctl")
			if err != nil {
				return err
			}
			closer = c
			d.cfg = cfg
			d.logger = logger
			d.openStorage = func(ctx context.Context) (storage.KV, func(), error) {
				return app.OpenStorage(ctx, cfg, nil, logger)
			}
			d.newCatalog = func() (tmdb.Client, error) {
				return app.NewTMDB(cfg, logger)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closer != nil {
				_ = closer.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "load environment variables from this file when it exists")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newListCmd(d),
		newAddCmd(d),
		newRemoveCmd(d),
		newClearCmd(d),
		newStatsCmd(d),
		newShowCmd(d),
		newBrowseCmd(d),
	)
	return root
}

// openWatchlist opens storage and the watchlist on top of it. The returned
// func releases the storage connection.
func (d *deps) openWatchlist(ctx context.Context) (*watchlist.Store, func(), error) {
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, cleanup, err := d.openStorage(openCtx)
	if err != nil {
		return nil, func() {}, err
	}
	wl, err := app.OpenWatchlist(openCtx, d.cfg, kv, d.logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return wl, cleanup, nil
}

func (d *deps) images() tmdb.Images {
	return app.Images(d.cfg)
}

func (d *deps) debounceDelay() time.Duration {
	if d.cfg.SearchDebounceMS <= 0 {
		return search.DefaultDelay
	}
	return time.Duration(d.cfg.SearchDebounceMS) * time.Millisecond
}
