package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Clark-Hu/moviewatch/internal/domain"
	"github.com/Clark-Hu/moviewatch/internal/tmdb"
	"github.com/Clark-Hu/moviewatch/internal/watchlist"
)

func movieLabel(m domain.Movie) string {
	title := m.Title
	if title == "" {
		title = fmt.Sprintf("movie %d", m.ID)
	}
	if year := tmdb.ReleaseYear(m.ReleaseDate); year != "" {
		return fmt.Sprintf("%s (%s)", title, year)
	}
	return title
}

func renderWatchlist(w io.Writer, entries []domain.WatchlistEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Your watchlist is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tRATING\tADDED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, movieLabel(e.Movie), tmdb.FormatRating(e.VoteAverage), e.AddedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func renderStats(w io.Writer, s watchlist.Stats) {
	fmt.Fprintf(w, "Movies:         %d\n", s.Count)
	fmt.Fprintf(w, "Average rating: %s\n", tmdb.FormatRating(s.AverageRating))
	if s.LastAddedAt != nil {
		fmt.Fprintf(w, "Last added:     %s\n", s.LastAddedAt.Local().Format("January 2, 2006 15:04"))
	} else {
		fmt.Fprintln(w, "Last added:     never")
	}
}

func renderResults(w io.Writer, movies []domain.Movie, inWatchlist func(int64) bool) {
	if len(movies) == 0 {
		fmt.Fprintln(w, "No movies found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, m := range movies {
		mark := " "
		if inWatchlist(m.ID) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%2d.\t%s\t%s\t%s\n", i+1, mark, movieLabel(m), tmdb.FormatRating(m.VoteAverage))
	}
	_ = tw.Flush()
}

func renderDetail(w io.Writer, images tmdb.Images, d *domain.MovieDetail, inWatchlist bool) {
	fmt.Fprintln(w, movieLabel(d.Movie))
	if d.Tagline != "" {
		fmt.Fprintf(w, "%q\n", d.Tagline)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Released\t%s\n", tmdb.FormatReleaseDate(d.ReleaseDate))
	fmt.Fprintf(tw, "Runtime\t%s\n", tmdb.FormatRuntime(d.Runtime))
	fmt.Fprintf(tw, "Rating\t%s (%s votes)\n", tmdb.FormatRating(d.VoteAverage), tmdb.FormatCount(d.VoteCount))
	if len(d.Genres) > 0 {
		names := make([]string, 0, len(d.Genres))
		for _, g := range d.Genres {
			names = append(names, g.Name)
		}
		fmt.Fprintf(tw, "Genres\t%s\n", strings.Join(names, ", "))
	}
	if d.Budget > 0 {
		fmt.Fprintf(tw, "Budget\t%s\n", tmdb.FormatCurrency(d.Budget))
	}
	if d.Revenue > 0 {
		fmt.Fprintf(tw, "Revenue\t%s\n", tmdb.FormatCurrency(d.Revenue))
	}
	if d.Status != "" {
		fmt.Fprintf(tw, "Status\t%s\n", d.Status)
	}
	fmt.Fprintf(tw, "Poster\t%s\n", images.URL(d.PosterPath, tmdb.SizeW500))
	if inWatchlist {
		fmt.Fprintf(tw, "Watchlist\tyes\n")
	} else {
		fmt.Fprintf(tw, "Watchlist\tno\n")
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintln(w, tmdb.Overview(d.Overview))

	if len(d.Cast) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Cast:")
		cast := d.Cast
		if len(cast) > tmdb.CastPreviewLimit {
			cast = cast[:tmdb.CastPreviewLimit]
		}
		for _, c := range cast {
			if c.Character != "" {
				fmt.Fprintf(w, "  %s as %s\n", c.Name, c.Character)
			} else {
				fmt.Fprintf(w, "  %s\n", c.Name)
			}
		}
	}
}
