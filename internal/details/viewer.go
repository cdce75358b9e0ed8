// Package details tracks the fetch state of a single open movie detail view.
package details

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Clark-Hu/moviewatch/internal/domain"
	"github.com/Clark-Hu/moviewatch/internal/tmdb"
)

// Status is the phase of a detail view.
type Status int

const (
	Idle Status = iota
	Loading
	Loaded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of the view. Detail is set only when Loaded, Err only
// when Failed.
type State struct {
	Status  Status
	MovieID int64
	Detail  *domain.MovieDetail
	Err     error
}

// Fetcher is the subset of tmdb.Client the viewer needs.
type Fetcher interface {
	MovieDetails(ctx context.Context, id int64) (*domain.MovieDetail, error)
}

var _ Fetcher = (tmdb.Client)(nil)

// Viewer issues one fetch per Open and drops responses that belong to an
// earlier open.
type Viewer struct {
	fetcher  Fetcher
	logger   *slog.Logger
	onChange func(State)

	// emitMu is held from commit through delivery so OnChange sees
	// transitions in the order they were applied.
	emitMu sync.Mutex

	mu     sync.Mutex
	gen    uint64
	state  State
	cancel context.CancelFunc
}

// Options configures a Viewer.
type Options struct {
	Logger *slog.Logger
	// OnChange receives every transition in commit order. It runs on the
	// goroutine that made the transition and must not call back into the
	// Viewer.
	OnChange func(State)
}

// New builds an idle Viewer.
func New(fetcher Fetcher, opts Options) *Viewer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Viewer{fetcher: fetcher, logger: logger, onChange: opts.OnChange}
}

// State returns the current snapshot.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Open moves to Loading for id and fetches in the background. The returned
// channel is closed once the fetch settles, whether or not its result was
// applied.
func (v *Viewer) Open(ctx context.Context, id int64) <-chan struct{} {
	fetchCtx, cancel := context.WithCancel(ctx)

	v.emitMu.Lock()
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.gen++
	gen := v.gen
	v.cancel = cancel
	loading := State{Status: Loading, MovieID: id}
	v.state = loading
	v.mu.Unlock()
	v.emit(loading)
	v.emitMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		detail, err := v.fetcher.MovieDetails(fetchCtx, id)
		v.settle(gen, id, detail, err)
	}()
	return done
}

// Close returns to Idle and invalidates any in-flight fetch.
func (v *Viewer) Close() {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
	changed := v.state.Status != Idle
	v.state = State{Status: Idle}
	v.mu.Unlock()
	if changed {
		v.emit(State{Status: Idle})
	}
}

func (v *Viewer) settle(gen uint64, id int64, detail *domain.MovieDetail, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		v.logger.Warn("details: fetch failed", "movie_id", id, "error", err)
	}

	v.emitMu.Lock()
	defer v.emitMu.Unlock()
	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		v.logger.Debug("details: discarding stale response", "movie_id", id)
		return
	}
	next := State{MovieID: id}
	switch {
	case err != nil:
		next.Status = Failed
		next.Err = err
	case detail == nil:
		next.Status = Failed
		next.Err = tmdb.ErrNotFound
	default:
		next.Status = Loaded
		next.Detail = detail
	}
	v.state = next
	v.cancel = nil
	v.mu.Unlock()
	v.emit(next)
}

func (v *Viewer) emit(s State) {
	if v.onChange != nil {
		v.onChange(s)
	}
}
