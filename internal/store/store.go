package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/moviewatch/db"
)

// Options tunes the pool. Zero values keep the pgx defaults, except
// StatementCacheCapacity, where zero disables statement caching and a
// negative value keeps the default.
type Options struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	Logger                 *slog.Logger
}

var errNotInitialized = errors.New("store: not initialized")

// Store owns the pgx pool backing the postgres storage backend.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	opts   Options
}

// New opens the pool described by dbURL and opts and pings it once before
// returning.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	opts.apply(cfg)
	opts.Logger.Info("store: opening pool",
		"max_conns", cfg.MaxConns, "min_conns", cfg.MinConns,
		"max_idle", cfg.MaxConnIdleTime, "max_life", cfg.MaxConnLifetime,
		"exec_mode", cfg.ConnConfig.DefaultQueryExecMode.String())

	connectCtx, cancel := opts.bounded(ctx)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, logger: opts.Logger, opts: opts}, nil
}

// apply copies the non-zero limits onto cfg. A zero statement cache
// capacity switches to describe-exec so no prepared statements are kept.
func (o Options) apply(cfg *pgxpool.Config) {
	if o.MaxConns > 0 {
		cfg.MaxConns = o.MaxConns
	}
	if o.MinConns > 0 {
		cfg.MinConns = o.MinConns
	}
	if o.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = o.MaxConnIdleTime
	}
	if o.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = o.MaxConnLifetime
	}
	switch {
	case o.StatementCacheCapacity > 0:
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = o.StatementCacheCapacity
	case o.StatementCacheCapacity == 0:
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec
		cfg.ConnConfig.StatementCacheCapacity = 0
	}
}

// bounded applies ConnTimeout to ctx when one is configured.
func (o Options) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.ConnTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.ConnTimeout)
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errNotInitialized
	}
	err := db.Apply(ctx, func(ctx context.Context, sql string) error {
		_, err := s.pool.Exec(ctx, sql)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("store: migrations applied")
	return nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.logger.Debug("store: closing pool")
	s.pool.Close()
}

// HealthCheck pings the database within ConnTimeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errNotInitialized
	}
	ctx, cancel := s.opts.bounded(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying pgx pool for repositories.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
