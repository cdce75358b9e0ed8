package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/moviewatch/internal/domain"
	"github.com/Clark-Hu/moviewatch/internal/tmdb"
)

type movieResponse struct {
	domain.Movie
	PosterURL   string `json:"posterUrl"`
	ReleaseYear string `json:"releaseYear,omitempty"`
	InWatchlist bool   `json:"inWatchlist"`
}

type moviePageResponse struct {
	Page         int             `json:"page"`
	TotalPages   int             `json:"totalPages"`
	TotalResults int             `json:"totalResults"`
	Results      []movieResponse `json:"results"`
}

type movieDetailResponse struct {
	domain.MovieDetail
	PosterURL       string `json:"posterUrl"`
	BackdropURL     string `json:"backdropUrl"`
	OverviewText    string `json:"overviewText"`
	ReleaseDateText string `json:"releaseDateText"`
	RuntimeText     string `json:"runtimeText"`
	BudgetText      string `json:"budgetText"`
	RevenueText     string `json:"revenueText"`
	VoteCountText   string `json:"voteCountText"`
	RatingText      string `json:"ratingText"`
	InWatchlist     bool   `json:"inWatchlist"`
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	if !s.catalogReady(w) {
		return
	}
	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	ctx, cancel := s.upstreamContext(r.Context())
	defer cancel()
	result, err := s.catalog.Popular(ctx, page)
	if err != nil {
		s.respondUpstreamError(w, "popular", err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.toMoviePageResponse(result))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.catalogReady(w) {
		return
	}
	query := r.URL.Query()
	page, err := parsePage(query.Get("page"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	ctx, cancel := s.upstreamContext(r.Context())
	defer cancel()
	result, err := s.catalog.Search(ctx, strings.TrimSpace(query.Get("q")), page)
	if err != nil {
		s.respondUpstreamError(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.toMoviePageResponse(result))
}

func (s *Server) handleMovieDetails(w http.ResponseWriter, r *http.Request) {
	if !s.catalogReady(w) {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	ctx, cancel := s.upstreamContext(r.Context())
	defer cancel()
	detail, err := s.catalog.MovieDetails(ctx, id)
	if err != nil {
		s.respondUpstreamError(w, "details", err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.toMovieDetailResponse(detail))
}

func (s *Server) catalogReady(w http.ResponseWriter) bool {
	if s.catalog == nil {
		s.respondError(w, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "Movie metadata is not configured")
		return false
	}
	return true
}

func (s *Server) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.cfg.TMDBTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// respondUpstreamError maps metadata fetch failures onto HTTP statuses.
// Nothing is retried here; the caller decides.
func (s *Server) respondUpstreamError(w http.ResponseWriter, op string, err error) {
	var rateLimited *tmdb.RateLimitError
	switch {
	case errors.Is(err, tmdb.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.As(err, &rateLimited):
		if rateLimited.RetryAfter > 0 {
			secs := int((rateLimited.RetryAfter + time.Second - 1) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		s.respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Movie metadata is rate limited, try again later")
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("http: upstream timeout", "op", op, "error", err)
		s.respondError(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Movie metadata did not respond in time")
	default:
		s.logger.Error("http: upstream failure", "op", op, "error", err)
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to fetch movie metadata")
	}
}

func (s *Server) toMovieResponse(m domain.Movie) movieResponse {
	return movieResponse{
		Movie:       m,
		PosterURL:   s.images.URL(m.PosterPath, tmdb.SizeW342),
		ReleaseYear: tmdb.ReleaseYear(m.ReleaseDate),
		InWatchlist: s.watchlist != nil && s.watchlist.IsInWatchlist(m.ID),
	}
}

func (s *Server) toMoviePageResponse(page *domain.MoviePage) moviePageResponse {
	resp := moviePageResponse{
		Page:         page.Page,
		TotalPages:   page.TotalPages,
		TotalResults: page.TotalResults,
		Results:      make([]movieResponse, 0, len(page.Results)),
	}
	for _, m := range page.Results {
		resp.Results = append(resp.Results, s.toMovieResponse(m))
	}
	return resp
}

func (s *Server) toMovieDetailResponse(d *domain.MovieDetail) movieDetailResponse {
	detail := *d
	if len(detail.Cast) > tmdb.CastPreviewLimit {
		detail.Cast = detail.Cast[:tmdb.CastPreviewLimit]
	}
	return movieDetailResponse{
		MovieDetail:     detail,
		PosterURL:       s.images.URL(d.PosterPath, tmdb.SizeW500),
		BackdropURL:     s.images.URL(d.BackdropPath, tmdb.SizeOriginal),
		OverviewText:    tmdb.Overview(d.Overview),
		ReleaseDateText: tmdb.FormatReleaseDate(d.ReleaseDate),
		RuntimeText:     tmdb.FormatRuntime(d.Runtime),
		BudgetText:      tmdb.FormatCurrency(d.Budget),
		RevenueText:     tmdb.FormatCurrency(d.Revenue),
		VoteCountText:   tmdb.FormatCount(d.VoteCount),
		RatingText:      tmdb.FormatRating(d.VoteAverage),
		InWatchlist:     s.watchlist != nil && s.watchlist.IsInWatchlist(d.ID),
	}
}
