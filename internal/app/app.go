// Package app assembles the pieces both commands share: logging, the
// configured storage backend, the watchlist store and the metadata client.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/Clark-Hu/moviewatch/internal/config"
	"github.com/Clark-Hu/moviewatch/internal/logging"
	"github.com/Clark-Hu/moviewatch/internal/repository"
	"github.com/Clark-Hu/moviewatch/internal/storage"
	"github.com/Clark-Hu/moviewatch/internal/store"
	"github.com/Clark-Hu/moviewatch/internal/tmdb"
	"github.com/Clark-Hu/moviewatch/internal/watchlist"
)

// Backend is a KV that can also report health.
type Backend interface {
	storage.KV
	storage.HealthChecker
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg config.Config, w io.Writer, component string) (*slog.Logger, io.Closer, error) {
	return logging.New(w, logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Component:  component,
	})
}

// OpenStorage connects the backend named by cfg.StorageBackend. The returned
// cleanup func releases its connections and is never nil.
func OpenStorage(ctx context.Context, cfg config.Config, fsys afero.Fs, logger *slog.Logger) (Backend, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return storage.NewMemory(), noop, nil

	case config.StorageFile:
		if fsys == nil {
			fsys = afero.NewOsFs()
		}
		kv, err := storage.NewFile(fsys, cfg.StorageFileDir, logger)
		if err != nil {
			return nil, noop, err
		}
		return kv, noop, nil

	case config.StorageRedis:
		kv, err := storage.DialRedis(ctx, cfg.RedisURL, "moviewatch:")
		if err != nil {
			return nil, noop, err
		}
		return kv, func() {
			if err := kv.Close(); err != nil {
				logger.Warn("app: close redis", "error", err)
			}
		}, nil

	case config.StoragePostgres:
		st, err := store.New(ctx, cfg.DBURL, store.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 logger,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("connect database: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, noop, err
		}
		return repository.New(st).KV, st.Close, nil

	default:
		return nil, noop, fmt.Errorf("storage backend %q is not supported", cfg.StorageBackend)
	}
}

// OpenWatchlist loads the watchlist persisted under cfg.StorageKey.
func OpenWatchlist(ctx context.Context, cfg config.Config, kv storage.KV, logger *slog.Logger) (*watchlist.Store, error) {
	return watchlist.Open(ctx, kv, watchlist.Options{Key: cfg.StorageKey, Logger: logger})
}

// NewTMDB builds the metadata client, failing when no API key is set.
func NewTMDB(cfg config.Config, logger *slog.Logger) (*tmdb.HTTPClient, error) {
	if err := cfg.RequireTMDB(); err != nil {
		return nil, err
	}
	return tmdb.NewHTTPClient(cfg.TMDBBaseURL, cfg.TMDBAPIKey, tmdb.Options{
		Language: cfg.TMDBLanguage,
		Timeout:  time.Duration(cfg.TMDBTimeoutSecs) * time.Second,
		Logger:   logger,
	})
}

// Images builds the image URL helper from cfg.
func Images(cfg config.Config) tmdb.Images {
	return tmdb.Images{BaseURL: cfg.TMDBImageBaseURL, Placeholder: cfg.ImagePlaceholderURL}
}

// LoadEnv reads .env style files when present. Missing files are ignored.
func LoadEnv(logger *slog.Logger, files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logger.Warn("app: load env file", "file", f, "error", err)
		}
	}
}
