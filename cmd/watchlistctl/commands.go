package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/moviewatch/internal/details"
	"github.com/Clark-Hu/moviewatch/internal/domain"
	"github.com/Clark-Hu/moviewatch/internal/watchlist"
)

func parseMovieID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("movie id must be a positive integer, got %q", raw)
	}
	return id, nil
}

// warnIfUnsaved prints the non-fatal persistence warning and swallows it.
func warnIfUnsaved(cmd *cobra.Command, err error) error {
	if errors.Is(err, watchlist.ErrPersist) {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: change kept for this session only, saving the watchlist failed")
		return nil
	}
	return err
}

func newListCmd(d *deps) *cobra.Command {
	var (
		sortOrder string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookmarked movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wl, cleanup, err := d.openWatchlist(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			entries := wl.List()
			switch sortOrder {
			case "added":
			case "recent":
				entries = watchlist.SortByRecent(entries)
			default:
				return fmt.Errorf("--sort must be recent or added")
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			renderWatchlist(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&sortOrder, "sort", "recent", "order entries by recent or added")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func newAddCmd(d *deps) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "add <movie-id>",
		Short: "Bookmark a movie",
		Long: "Bookmark a movie. Metadata is fetched from the catalog unless --title\n" +
			"is given, in which case only the id and title are stored.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMovieID(args[0])
			if err != nil {
				return err
			}

			movie := domain.Movie{ID: id, Title: strings.TrimSpace(title)}
			if movie.Title == "" {
				movie, err = fetchMovie(cmd.Context(), d, id)
				if err != nil {
					return err
				}
			}

			wl, cleanup, err := d.openWatchlist(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			added, err := wl.Add(cmd.Context(), movie)
			if err := warnIfUnsaved(cmd, err); err != nil {
				return err
			}
			if added {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", movieLabel(movie))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already in your watchlist\n", movieLabel(movie))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "store this title without contacting the catalog")
	return cmd
}

func fetchMovie(ctx context.Context, d *deps, id int64) (domain.Movie, error) {
	catalog, err := d.newCatalog()
	if err != nil {
		return domain.Movie{}, err
	}
	detail, err := catalog.MovieDetails(ctx, id)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("fetch movie %d: %w", id, err)
	}
	return detail.Movie, nil
}

func newRemoveCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <movie-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a movie from the watchlist",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMovieID(args[0])
			if err != nil {
				return err
			}
			wl, cleanup, err := d.openWatchlist(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			entry, _ := wl.Get(id)
			removed, err := wl.Remove(cmd.Context(), id)
			if err := warnIfUnsaved(cmd, err); err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", movieLabel(entry.Movie))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Movie %d is not in your watchlist\n", id)
			}
			return nil
		},
	}
}

func newClearCmd(d *deps) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every movie from the watchlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			wl, cleanup, err := d.openWatchlist(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			n := wl.Len()
			if err := warnIfUnsaved(cmd, wl.Clear(cmd.Context())); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d movies\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm clearing the watchlist")
	return cmd
}

func newStatsCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the watchlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wl, cleanup, err := d.openWatchlist(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			renderStats(cmd.OutOrStdout(), watchlist.Summarize(wl.List()))
			return nil
		},
	}
}

func newShowCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <movie-id>",
		Short: "Show full details for a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMovieID(args[0])
			if err != nil {
				return err
			}
			catalog, err := d.newCatalog()
			if err != nil {
				return err
			}
			wl, cleanup, err := d.openWatchlist(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			viewer := details.New(catalog, details.Options{Logger: d.logger})
			<-viewer.Open(cmd.Context(), id)
			st := viewer.State()
			if st.Status == details.Failed {
				return fmt.Errorf("load movie %d: %w", id, st.Err)
			}
			renderDetail(cmd.OutOrStdout(), d.images(), st.Detail, wl.IsInWatchlist(id))
			return nil
		},
	}
}
