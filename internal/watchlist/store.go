// Package watchlist owns the user's bookmarked movies. The Store is the only
// writer of the persisted watchlist: every mutation is applied in memory,
// written through to a storage.KV under one key, and then announced to
// subscribers.
package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/moviewatch/internal/domain"
	"github.com/Clark-Hu/moviewatch/internal/storage"
)

// DefaultKey is the storage key used when Options.Key is empty.
const DefaultKey = "watchlist"

var (
	// ErrInvalidMovie is returned by Add for movies without a usable id.
	ErrInvalidMovie = errors.New("watchlist: movie id must be positive")

	// ErrPersist marks a failed durable write. The in-memory change it
	// accompanies has already been applied.
	ErrPersist = errors.New("watchlist: persist failed")
)

// PersistError reports a failed durable write for one mutation.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("watchlist: persist after %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersist, e.Err}
}

// ChangeKind identifies the mutation behind a Change.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeCleared ChangeKind = "cleared"
)

// Change is delivered to listeners after each applied mutation.
type Change struct {
	Kind    ChangeKind
	MovieID int64
	Entries []domain.WatchlistEntry
}

// Listener receives changes synchronously, in mutation order. Listeners may
// read the store and subscribe or unsubscribe, but must not mutate the store
// from inside the callback. They should return quickly.
type Listener func(Change)

// Options configures a Store.
type Options struct {
	Key    string
	Logger *slog.Logger
	// Now overrides the clock used for addedAt.
	Now func() time.Time
}

// Store is safe for concurrent use.
type Store struct {
	kv     storage.KV
	key    string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries []domain.WatchlistEntry
	index   map[int64]int
	seq     uint64

	// Changes are published in seq order: a publisher waits on pubCond until
	// pubNext reaches its ticket.
	pubMu   sync.Mutex
	pubCond *sync.Cond
	pubNext uint64

	listenersMu sync.Mutex
	listeners   map[uuid.UUID]Listener
	order       []uuid.UUID
}

// Open loads the watchlist persisted under opts.Key. A missing key starts an
// empty watchlist. An unreadable payload is logged and also starts empty; it
// is left in place until the next mutation overwrites it.
func Open(ctx context.Context, kv storage.KV, opts Options) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("watchlist: nil storage")
	}
	s := &Store{
		kv:        kv,
		key:       opts.Key,
		logger:    opts.Logger,
		now:       opts.Now,
		index:     make(map[int64]int),
		listeners: make(map[uuid.UUID]Listener),
	}
	s.pubCond = sync.NewCond(&s.pubMu)
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	raw, err := kv.Get(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logger.Debug("watchlist.empty", "key", s.key)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load watchlist %s: %w", s.key, err)
	}

	entries, err := Decode(raw)
	if err != nil {
		s.logger.Warn("watchlist.corrupt_payload", "key", s.key, "bytes", len(raw), "error", err)
		return s, nil
	}
	s.entries = entries
	s.reindex()
	s.logger.Info("watchlist.loaded", "key", s.key, "count", len(entries))
	return s, nil
}

// Add bookmarks movie. It reports false, with no side effects, when the movie
// is already present; the original addedAt is kept.
func (s *Store) Add(ctx context.Context, movie domain.Movie) (bool, error) {
	if movie.ID <= 0 {
		return false, ErrInvalidMovie
	}

	s.mu.Lock()
	if _, ok := s.index[movie.ID]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.entries = append(s.entries, domain.WatchlistEntry{
		Movie:   cloneMovie(movie),
		AddedAt: s.now().UTC(),
	})
	s.index[movie.ID] = len(s.entries) - 1
	err := s.persistLocked(ctx, "add")
	s.publishAndUnlock(Change{Kind: ChangeAdded, MovieID: movie.ID})
	return true, err
}

// Remove deletes the entry for id. It reports false, with no side effects,
// when id is not present.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	pos, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	s.entries = append(s.entries[:pos], s.entries[pos+1:]...)
	s.reindex()
	err := s.persistLocked(ctx, "remove")
	s.publishAndUnlock(Change{Kind: ChangeRemoved, MovieID: id})
	return true, err
}

// Clear removes every entry and deletes the persisted key. Clearing an empty
// watchlist does nothing.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if len(s.entries) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.entries = nil
	s.index = make(map[int64]int)
	err := s.dropPersistedLocked(ctx)
	s.publishAndUnlock(Change{Kind: ChangeCleared})
	return err
}

// IsInWatchlist reports whether id is bookmarked.
func (s *Store) IsInWatchlist(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Get returns the entry for id.
func (s *Store) Get(id int64) (domain.WatchlistEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return domain.WatchlistEntry{}, false
	}
	return cloneEntry(s.entries[pos]), true
}

// List returns a copy of the entries in insertion order.
func (s *Store) List() []domain.WatchlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len reports the number of bookmarked movies.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers fn and returns a function that unregisters it.
// Listeners are called in registration order.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	id := uuid.New()
	s.listenersMu.Lock()
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			delete(s.listeners, id)
			for i, candidate := range s.order {
				if candidate == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// persistLocked writes the current entries. A failure is logged and returned
// as a *PersistError; the in-memory state is kept either way.
func (s *Store) persistLocked(ctx context.Context, op string) error {
	payload, err := Encode(s.entries)
	if err == nil {
		err = s.kv.Set(ctx, s.key, payload)
	}
	if err != nil {
		s.logger.Warn("watchlist.persist_failed", "op", op, "key", s.key, "count", len(s.entries), "error", err)
		return &PersistError{Op: op, Err: err}
	}
	return nil
}

// dropPersistedLocked deletes the persisted key. Failures are handled like
// persistLocked failures.
func (s *Store) dropPersistedLocked(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.logger.Warn("watchlist.persist_failed", "op", "clear", "key", s.key, "error", err)
		return &PersistError{Op: "clear", Err: err}
	}
	return nil
}

// publishAndUnlock takes a publish ticket and the entry snapshot under the
// state lock, releases it, then delivers the change once every earlier ticket
// has been delivered.
func (s *Store) publishAndUnlock(change Change) {
	change.Entries = s.snapshotLocked()
	ticket := s.seq
	s.seq++
	s.mu.Unlock()

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	for s.pubNext != ticket {
		s.pubCond.Wait()
	}
	defer func() {
		s.pubNext++
		s.pubCond.Broadcast()
	}()

	for _, fn := range s.currentListeners() {
		fn(change)
	}
}

func (s *Store) currentListeners() []Listener {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	out := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.listeners[id])
	}
	return out
}

func (s *Store) snapshotLocked() []domain.WatchlistEntry {
	out := make([]domain.WatchlistEntry, len(s.entries))
	for i, entry := range s.entries {
		out[i] = cloneEntry(entry)
	}
	return out
}

func (s *Store) reindex() {
	s.index = make(map[int64]int, len(s.entries))
	for i, entry := range s.entries {
		s.index[entry.ID] = i
	}
}

func cloneMovie(m domain.Movie) domain.Movie {
	if m.GenreIDs != nil {
		m.GenreIDs = append([]int(nil), m.GenreIDs...)
	}
	return m
}

func cloneEntry(e domain.WatchlistEntry) domain.WatchlistEntry {
	e.Movie = cloneMovie(e.Movie)
	if e.Extra != nil {
		extra := make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			extra[k] = v
		}
		e.Extra = extra
	}
	return e
}
