package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Clark-Hu/moviewatch/internal/domain"
	"github.com/Clark-Hu/moviewatch/internal/tmdb"
	"github.com/Clark-Hu/moviewatch/internal/watchlist"
)

// persistWarningHeader carries the non-fatal warning on responses without a
// body.
const persistWarningHeader = "X-Watchlist-Warning"

const persistWarning = "Saved for this session only: the watchlist could not be written to storage"

type watchlistEntryResponse struct {
	domain.WatchlistEntry
	PosterURL string `json:"posterUrl"`
}

type watchlistResponse struct {
	Items []watchlistEntryResponse `json:"items"`
	Count int                      `json:"count"`
}

type addToWatchlistResponse struct {
	Entry   watchlistEntryResponse `json:"entry"`
	Added   bool                   `json:"added"`
	Warning string                 `json:"warning,omitempty"`
}

// movieRequest is the body of POST /watchlist.
type movieRequest struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"releaseDate"`
	VoteAverage      float64 `json:"voteAverage"`
	VoteCount        int64   `json:"voteCount"`
	PosterPath       string  `json:"posterPath"`
	BackdropPath     string  `json:"backdropPath"`
	GenreIDs         []int   `json:"genreIds"`
	Popularity       float64 `json:"popularity"`
	OriginalLanguage string  `json:"originalLanguage"`
	Adult            bool    `json:"adult"`
}

func (m movieRequest) toMovie() domain.Movie {
	return domain.Movie{
		ID:               m.ID,
		Title:            strings.TrimSpace(m.Title),
		Overview:         m.Overview,
		ReleaseDate:      strings.TrimSpace(m.ReleaseDate),
		VoteAverage:      m.VoteAverage,
		VoteCount:        m.VoteCount,
		PosterPath:       m.PosterPath,
		BackdropPath:     m.BackdropPath,
		GenreIDs:         m.GenreIDs,
		Popularity:       m.Popularity,
		OriginalLanguage: m.OriginalLanguage,
		Adult:            m.Adult,
	}
}

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	order, err := parseSort(r.URL.Query().Get("sort"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	entries := s.watchlist.List()
	if order == sortRecent {
		entries = watchlist.SortByRecent(entries)
	}
	resp := watchlistResponse{
		Items: make([]watchlistEntryResponse, 0, len(entries)),
		Count: len(entries),
	}
	for _, e := range entries {
		resp.Items = append(resp.Items, s.toEntryResponse(e))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchlistStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, watchlist.Summarize(s.watchlist.List()))
}

func (s *Server) handleGetWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	entry, ok := s.watchlist.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	s.respondJSON(w, http.StatusOK, s.toEntryResponse(entry))
}

func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req movieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.ID <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "id must be a positive integer")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required")
		return
	}

	added, err := s.watchlist.Add(r.Context(), req.toMovie())
	warning, ok := s.mutationOutcome(w, "add", err)
	if !ok {
		return
	}

	entry, found := s.watchlist.Get(req.ID)
	if !found {
		// Removed concurrently between Add and Get.
		entry = domain.WatchlistEntry{Movie: req.toMovie()}
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/watchlist/%d", req.ID))
	}
	s.respondJSON(w, status, addToWatchlistResponse{
		Entry:   s.toEntryResponse(entry),
		Added:   added,
		Warning: warning,
	})
}

func (s *Server) handleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	_, err = s.watchlist.Remove(r.Context(), id)
	if _, ok := s.mutationOutcome(w, "remove", err); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearWatchlist(w http.ResponseWriter, r *http.Request) {
	err := s.watchlist.Clear(r.Context())
	if _, ok := s.mutationOutcome(w, "clear", err); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mutationOutcome turns a store error into either a warning (the change was
// applied but not saved) or a failed response. ok is false once a response
// has been written.
func (s *Server) mutationOutcome(w http.ResponseWriter, op string, err error) (warning string, ok bool) {
	switch {
	case err == nil:
		return "", true
	case errors.Is(err, watchlist.ErrPersist):
		s.logger.Warn("http: watchlist change not persisted", "op", op, "error", err)
		w.Header().Set(persistWarningHeader, persistWarning)
		return persistWarning, true
	case errors.Is(err, watchlist.ErrInvalidMovie):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return "", false
	default:
		s.logger.Error("http: watchlist mutation failed", "op", op, "error", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update watchlist")
		return "", false
	}
}

func (s *Server) toEntryResponse(e domain.WatchlistEntry) watchlistEntryResponse {
	return watchlistEntryResponse{
		WatchlistEntry: e,
		PosterURL:      s.images.URL(e.PosterPath, tmdb.SizeW185),
	}
}

type sortOrder int

const (
	sortAdded sortOrder = iota
	sortRecent
)

func parseSort(raw string) (sortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "added":
		return sortAdded, nil
	case "recent":
		return sortRecent, nil
	default:
		return sortAdded, fmt.Errorf("sort must be recent or added")
	}
}
