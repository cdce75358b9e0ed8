package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/moviewatch/internal/storage"
)

// KVRepository implements storage.KV on the kv_entries table.
type KVRepository struct {
	pool *pgxpool.Pool
}

var _ storage.KV = (*KVRepository)(nil)

// Get returns the value stored under key or storage.ErrNotFound.
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	const query = `SELECT value FROM kv_entries WHERE key = $1`

	var value []byte
	err := r.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select kv %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key.
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	const query = `
        INSERT INTO kv_entries (key, value)
        VALUES ($1, $2)
        ON CONFLICT (key)
        DO UPDATE SET value = EXCLUDED.value, updated_at = now()
    `
	if value == nil {
		value = []byte{}
	}
	if _, err := r.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert kv %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	const query = `DELETE FROM kv_entries WHERE key = $1`
	if _, err := r.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("delete kv %s: %w", key, err)
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (r *KVRepository) HealthCheck(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
