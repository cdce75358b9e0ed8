package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/moviewatch/internal/details"
	"github.com/Clark-Hu/moviewatch/internal/domain"
	"github.com/Clark-Hu/moviewatch/internal/search"
	"github.com/Clark-Hu/moviewatch/internal/tmdb"
	"github.com/Clark-Hu/moviewatch/internal/watchlist"
)

const browseHelp = `Type to search. Commands:
  :open N    show details for result N
  :close     close the detail view
  :add N     bookmark result N
  :rm N      remove result N from the watchlist
  :clear     clear the search
  :popular   list popular movies
  :list      show the watchlist
  :q         quit`

func newBrowseCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactive search and detail view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := d.newCatalog()
			if err != nil {
				return err
			}
			wl, cleanup, err := d.openWatchlist(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			b := newBrowser(cmd.Context(), d, catalog, wl, cmd.OutOrStdout())
			defer b.close()
			return b.run(cmd.InOrStdin())
		},
	}
}

// browser is the state of one interactive session. Output from the
// debounce timer, the detail fetch and watchlist notifications is
// serialised through outMu.
type browser struct {
	ctx     context.Context
	d       *deps
	catalog tmdb.Client
	wl      *watchlist.Store

	outMu sync.Mutex
	out   io.Writer

	mu        sync.Mutex
	results   []domain.Movie
	searchGen uint64

	debouncer   *search.Debouncer
	viewer      *details.Viewer
	unsubscribe func()
}

func newBrowser(ctx context.Context, d *deps, catalog tmdb.Client, wl *watchlist.Store, out io.Writer) *browser {
	b := &browser{ctx: ctx, d: d, catalog: catalog, wl: wl, out: out}
	b.debouncer = search.NewDebouncer(b.search, search.Options{Delay: d.debounceDelay(), Clock: d.clock})
	b.viewer = details.New(catalog, details.Options{Logger: d.logger, OnChange: b.renderDetailState})
	b.unsubscribe = wl.Subscribe(func(c watchlist.Change) {
		b.printf("[watchlist %s, %d movies]\n", c.Kind, len(c.Entries))
	})
	return b
}

func (b *browser) close() {
	b.debouncer.Stop()
	b.viewer.Close()
	b.unsubscribe()
}

func (b *browser) printf(format string, args ...any) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	fmt.Fprintf(b.out, format, args...)
}

func (b *browser) withOut(fn func(w io.Writer)) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	fn(b.out)
}

func (b *browser) run(in io.Reader) error {
	b.printf("%s\n", browseHelp)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(strings.TrimSpace(line), ":") {
			b.debouncer.Input(line)
			continue
		}
		if quit := b.command(strings.Fields(strings.TrimSpace(line))); quit {
			return nil
		}
		if err := b.ctx.Err(); err != nil {
			return nil
		}
	}
	return scanner.Err()
}

func (b *browser) command(fields []string) (quit bool) {
	switch fields[0] {
	case ":q", ":quit":
		return true
	case ":clear":
		b.debouncer.Clear()
	case ":close":
		b.viewer.Close()
	case ":popular":
		b.popular()
	case ":list":
		entries := watchlist.SortByRecent(b.wl.List())
		b.withOut(func(w io.Writer) { renderWatchlist(w, entries) })
	case ":open", ":add", ":rm":
		movie, ok := b.pick(fields)
		if !ok {
			return false
		}
		switch fields[0] {
		case ":open":
			b.viewer.Open(b.ctx, movie.ID)
		case ":add":
			added, err := b.wl.Add(b.ctx, movie)
			b.reportMutation(err)
			if err == nil && !added {
				b.printf("%s is already in your watchlist\n", movieLabel(movie))
			}
		case ":rm":
			_, err := b.wl.Remove(b.ctx, movie.ID)
			b.reportMutation(err)
		}
	default:
		b.printf("unknown command %s\n%s\n", fields[0], browseHelp)
	}
	return false
}

func (b *browser) reportMutation(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, watchlist.ErrPersist) {
		b.printf("warning: change kept for this session only, saving the watchlist failed\n")
		return
	}
	b.printf("error: %v\n", err)
}

func (b *browser) pick(fields []string) (domain.Movie, bool) {
	if len(fields) != 2 {
		b.printf("usage: %s N\n", fields[0])
		return domain.Movie{}, false
	}
	n, err := strconv.Atoi(fields[1])
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil || n < 1 || n > len(b.results) {
		b.printf("no result %s\n", fields[1])
		return domain.Movie{}, false
	}
	return b.results[n-1], true
}

// search runs on the debounce timer. A response that arrives after a newer
// query was issued is dropped.
func (b *browser) search(query string) {
	b.mu.Lock()
	b.searchGen++
	gen := b.searchGen
	b.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		b.setResults(gen, nil)
		b.printf("Search cleared.\n")
		return
	}

	page, err := b.catalog.Search(b.ctx, query, 1)
	if err != nil {
		b.printf("search failed: %v\n", err)
		return
	}
	if !b.setResults(gen, page.Results) {
		return
	}
	b.withOut(func(w io.Writer) {
		fmt.Fprintf(w, "Results for %q (%d):\n", query, page.TotalResults)
		renderResults(w, page.Results, b.wl.IsInWatchlist)
	})
}

func (b *browser) popular() {
	b.mu.Lock()
	b.searchGen++
	gen := b.searchGen
	b.mu.Unlock()

	page, err := b.catalog.Popular(b.ctx, 1)
	if err != nil {
		b.printf("popular failed: %v\n", err)
		return
	}
	if !b.setResults(gen, page.Results) {
		return
	}
	b.withOut(func(w io.Writer) {
		fmt.Fprintln(w, "Popular movies:")
		renderResults(w, page.Results, b.wl.IsInWatchlist)
	})
}

func (b *browser) setResults(gen uint64, results []domain.Movie) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.searchGen {
		return false
	}
	b.results = results
	return true
}

func (b *browser) renderDetailState(st details.State) {
	switch st.Status {
	case details.Loading:
		b.printf("Loading movie %d...\n", st.MovieID)
	case details.Failed:
		b.printf("Could not load movie %d: %v\n", st.MovieID, st.Err)
	case details.Loaded:
		inWatchlist := b.wl.IsInWatchlist(st.MovieID)
		b.withOut(func(w io.Writer) { renderDetail(w, b.d.images(), st.Detail, inWatchlist) })
	case details.Idle:
		b.printf("Detail view closed.\n")
	}
}
