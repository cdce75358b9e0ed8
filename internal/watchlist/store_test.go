package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/moviewatch/internal/domain"
	"github.com/Clark-Hu/moviewatch/internal/logging"
	"github.com/Clark-Hu/moviewatch/internal/storage"
)

var errDiskFull = errors.New("quota exceeded")

// flakyKV fails writes and deletes while failing is true.
type flakyKV struct {
	*storage.Memory
	failing atomic.Bool
	sets    atomic.Int64
}

func newFlakyKV() *flakyKV {
	return &flakyKV{Memory: storage.NewMemory()}
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	f.sets.Add(1)
	if f.failing.Load() {
		return errDiskFull
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakyKV) Delete(ctx context.Context, key string) error {
	if f.failing.Load() {
		return errDiskFull
	}
	return f.Memory.Delete(ctx, key)
}

// stepClock returns base, base+1s, base+2s, ...
func stepClock(base time.Time) func() time.Time {
	var mu sync.Mutex
	next := base
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Second)
		return now
	}
}

var epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func movie(id int64, rating float64) domain.Movie {
	return domain.Movie{
		ID:          id,
		Title:       fmt.Sprintf("Movie %d", id),
		Overview:    "overview",
		ReleaseDate: "2010-07-16",
		VoteAverage: rating,
		VoteCount:   100,
		PosterPath:  fmt.Sprintf("/poster-%d.jpg", id),
	}
}

func openStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	st, err := Open(context.Background(), kv, Options{Logger: logging.Discard(), Now: stepClock(epoch)})
	require.NoError(t, err)
	return st
}

func TestAddThenIsInWatchlist(t *testing.T) {
	st := openStore(t, storage.NewMemory())

	added, err := st.Add(context.Background(), movie(27205, 8.4))
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, st.IsInWatchlist(27205))
	assert.False(t, st.IsInWatchlist(1))
}

func TestAddThenRemove(t *testing.T) {
	st := openStore(t, storage.NewMemory())
	ctx := context.Background()

	_, err := st.Add(ctx, movie(1, 7))
	require.NoError(t, err)
	removed, err := st.Remove(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	assert.False(t, st.IsInWatchlist(1))
	assert.Empty(t, st.List())
}

func TestAddTwiceKeepsFirstAddedAt(t *testing.T) {
	st := openStore(t, storage.NewMemory())
	ctx := context.Background()

	_, err := st.Add(ctx, movie(1, 7))
	require.NoError(t, err)
	added, err := st.Add(ctx, movie(1, 9))
	require.NoError(t, err)
	assert.False(t, added)

	entries := st.List()
	require.Len(t, entries, 1)
	assert.Equal(t, epoch, entries[0].AddedAt)
	assert.Equal(t, 7.0, entries[0].VoteAverage)
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	kv := newFlakyKV()
	st := openStore(t, kv)
	ctx := context.Background()
	_, err := st.Add(ctx, movie(1, 7))
	require.NoError(t, err)
	before := st.List()
	writes := kv.sets.Load()

	removed, err := st.Remove(ctx, 42)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, before, st.List())
	assert.Equal(t, writes, kv.sets.Load(), "no write for a no-op remove")
}

func TestRemoveThenAddResetsAddedAt(t *testing.T) {
	st := openStore(t, storage.NewMemory())
	ctx := context.Background()

	_, err := st.Add(ctx, movie(1, 7))
	require.NoError(t, err)
	_, err = st.Remove(ctx, 1)
	require.NoError(t, err)
	_, err = st.Add(ctx, movie(1, 7))
	require.NoError(t, err)

	entry, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Second), entry.AddedAt)
}

func TestListKeepsInsertionOrder(t *testing.T) {
	st := openStore(t, storage.NewMemory())
	ctx := context.Background()
	for _, id := range []int64{5, 3, 9, 1} {
		_, err := st.Add(ctx, movie(id, 5))
		require.NoError(t, err)
	}
	_, err := st.Remove(ctx, 3)
	require.NoError(t, err)

	var ids []int64
	for _, entry := range st.List() {
		ids = append(ids, entry.ID)
	}
	assert.Equal(t, []int64{5, 9, 1}, ids)
	assert.Equal(t, 3, st.Len())

	recent := SortByRecent(st.List())
	assert.Equal(t, int64(1), recent[0].ID)
	assert.Equal(t, int64(5), st.List()[0].ID, "sorting a copy must not reorder the store")
}

func TestAddRejectsInvalidID(t *testing.T) {
	st := openStore(t, storage.NewMemory())
	_, err := st.Add(context.Background(), domain.Movie{Title: "No id"})
	require.ErrorIs(t, err, ErrInvalidMovie)
	assert.Zero(t, st.Len())
}

func TestClear(t *testing.T) {
	kv := storage.NewMemory()
	st := openStore(t, kv)
	ctx := context.Background()
	_, err := st.Add(ctx, movie(1, 7))
	require.NoError(t, err)
	_, err = st.Add(ctx, movie(2, 8))
	require.NoError(t, err)

	require.NoError(t, st.Clear(ctx))
	assert.Empty(t, st.List())

	_, err = kv.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "clear should delete the persisted key")

	reopened := openStore(t, kv)
	assert.Empty(t, reopened.List())
}

func TestClearPersistFailureKeepsMemoryCleared(t *testing.T) {
	kv := newFlakyKV()
	st := openStore(t, kv)
	ctx := context.Background()
	_, err := st.Add(ctx, movie(1, 7))
	require.NoError(t, err)

	kv.failing.Store(true)
	err = st.Clear(ctx)
	require.ErrorIs(t, err, ErrPersist)
	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "clear", perr.Op)
	assert.Zero(t, st.Len())

	kv.failing.Store(false)
	reopened := openStore(t, kv)
	assert.True(t, reopened.IsInWatchlist(1), "storage still holds the list from before the failed clear")
}

func TestPersistedRoundTrip(t *testing.T) {
	kv := storage.NewMemory()
	st := openStore(t, kv)
	ctx := context.Background()
	for _, id := range []int64{10, 20, 30} {
		_, err := st.Add(ctx, movie(id, float64(id)/10))
		require.NoError(t, err)
	}

	reopened := openStore(t, kv)
	assert.Equal(t, st.List(), reopened.List())
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	kv := newFlakyKV()
	st := openStore(t, kv)
	ctx := context.Background()

	kv.failing.Store(true)
	added, err := st.Add(ctx, movie(1, 7))
	assert.True(t, added)
	require.ErrorIs(t, err, ErrPersist)
	require.ErrorIs(t, err, errDiskFull)

	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "add", perr.Op)
	assert.True(t, st.IsInWatchlist(1))

	_, err = kv.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing reached storage")

	kv.failing.Store(false)
	_, err = st.Add(ctx, movie(2, 6))
	require.NoError(t, err)

	reopened := openStore(t, kv)
	assert.True(t, reopened.IsInWatchlist(1), "next successful write carries the earlier change")
	assert.True(t, reopened.IsInWatchlist(2))
}

func TestOpenCorruptPayloadStartsEmpty(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(context.Background(), DefaultKey, []byte(`{not json`)))

	st := openStore(t, kv)
	assert.Empty(t, st.List())

	raw, err := kv.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(raw), "payload left untouched until a mutation")
}

func TestOpenStorageErrorFails(t *testing.T) {
	_, err := Open(context.Background(), brokenKV{}, Options{Logger: logging.Discard()})
	require.Error(t, err)
}

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("unreachable") }
func (brokenKV) Set(context.Context, string, []byte) error   { return errors.New("unreachable") }
func (brokenKV) Delete(context.Context, string) error        { return errors.New("unreachable") }

func TestUnknownFieldsSurviveMutation(t *testing.T) {
	kv := storage.NewMemory()
	payload := `[{"id":1,"title":"Heat","addedAt":"2024-01-01T00:00:00Z","userNote":"rewatch","tags":["crime"]}]`
	require.NoError(t, kv.Set(context.Background(), DefaultKey, []byte(payload)))

	st := openStore(t, kv)
	_, err := st.Add(context.Background(), movie(2, 7))
	require.NoError(t, err)

	reopened := openStore(t, kv)
	entry, ok := reopened.Get(1)
	require.True(t, ok)
	assert.JSONEq(t, `"rewatch"`, string(entry.Extra["userNote"]))
	assert.JSONEq(t, `["crime"]`, string(entry.Extra["tags"]))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), entry.AddedAt)
}

func TestSubscribeReceivesChangesInOrder(t *testing.T) {
	st := openStore(t, storage.NewMemory())
	ctx := context.Background()

	var got []Change
	unsubscribe := st.Subscribe(func(c Change) {
		// Reading from a listener must not deadlock.
		_ = st.IsInWatchlist(c.MovieID)
		got = append(got, c)
	})

	_, err := st.Add(ctx, movie(1, 7))
	require.NoError(t, err)
	_, err = st.Add(ctx, movie(1, 7))
	require.NoError(t, err)
	_, err = st.Remove(ctx, 1)
	require.NoError(t, err)
	_, err = st.Add(ctx, movie(2, 7))
	require.NoError(t, err)
	require.NoError(t, st.Clear(ctx))

	unsubscribe()
	unsubscribe()
	_, err = st.Add(ctx, movie(3, 7))
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, ChangeAdded, got[0].Kind)
	assert.Len(t, got[0].Entries, 1)
	assert.Equal(t, ChangeRemoved, got[1].Kind)
	assert.Empty(t, got[1].Entries)
	assert.Equal(t, ChangeAdded, got[2].Kind)
	assert.Equal(t, int64(2), got[2].MovieID)
	assert.Equal(t, ChangeCleared, got[3].Kind)
}

func TestSubscribeNotifiedOnPersistFailure(t *testing.T) {
	kv := newFlakyKV()
	kv.failing.Store(true)
	st := openStore(t, kv)

	notified := 0
	st.Subscribe(func(Change) { notified++ })

	_, err := st.Add(context.Background(), movie(1, 7))
	require.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, 1, notified)
}

func TestConcurrentMutationsPublishInOrder(t *testing.T) {
	st := openStore(t, storage.NewMemory())
	ctx := context.Background()

	var mu sync.Mutex
	var lens []int
	st.Subscribe(func(c Change) {
		mu.Lock()
		lens = append(lens, len(c.Entries))
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := st.Add(ctx, movie(id, 5))
			assert.NoError(t, err)
			_ = st.List()
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 50, st.Len())
	require.Len(t, lens, 50)
	for i, n := range lens {
		assert.Equal(t, i+1, n, "change %d published out of order", i)
	}
}

func TestReturnedEntriesAreCopies(t *testing.T) {
	st := openStore(t, storage.NewMemory())
	m := movie(1, 7)
	m.GenreIDs = []int{28, 12}
	_, err := st.Add(context.Background(), m)
	require.NoError(t, err)

	m.GenreIDs[0] = 99
	list := st.List()
	list[0].Title = "mutated"
	list[0].GenreIDs[1] = 99

	entry, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Movie 1", entry.Title)
	assert.Equal(t, []int{28, 12}, entry.GenreIDs)
}
