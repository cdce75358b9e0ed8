// Package storagetest holds the behaviour every storage.KV backend must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/moviewatch/internal/storage"
)

// RunKVContract exercises a backend produced by newKV. Each subtest gets a
// fresh store.
func RunKVContract(t *testing.T, newKV func(t *testing.T) storage.KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		kv := newKV(t)
		_, err := kv.Get(ctx, "absent")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		kv := newKV(t)
		require.NoError(t, kv.Set(ctx, "watchlist", []byte(`[{"id":1}]`)))

		got, err := kv.Get(ctx, "watchlist")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":1}]`, string(got))
	})

	t.Run("overwrite", func(t *testing.T) {
		kv := newKV(t)
		require.NoError(t, kv.Set(ctx, "watchlist", []byte(`[]`)))
		require.NoError(t, kv.Set(ctx, "watchlist", []byte(`[{"id":2}]`)))

		got, err := kv.Get(ctx, "watchlist")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":2}]`, string(got))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		kv := newKV(t)
		require.NoError(t, kv.Set(ctx, "watchlist", []byte(`[]`)))
		require.NoError(t, kv.Delete(ctx, "watchlist"))
		require.NoError(t, kv.Delete(ctx, "watchlist"))

		_, err := kv.Get(ctx, "watchlist")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		kv := newKV(t)
		require.ErrorIs(t, kv.Set(ctx, " ", []byte(`[]`)), storage.ErrInvalidKey)
		_, err := kv.Get(ctx, "")
		require.ErrorIs(t, err, storage.ErrInvalidKey)
	})

	t.Run("returned slice is not shared", func(t *testing.T) {
		kv := newKV(t)
		require.NoError(t, kv.Set(ctx, "watchlist", []byte(`abc`)))
		got, err := kv.Get(ctx, "watchlist")
		require.NoError(t, err)
		got[0] = 'z'

		again, err := kv.Get(ctx, "watchlist")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(again))
	})
}
