package main

import (
	_ "embed"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

//go:embed mock-tmdb.json
var defaultData []byte

const pageSize = 20

type mockMovie struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	raw   json.RawMessage
}

type mockData struct {
	Movies []json.RawMessage `json:"movies"`
}

type server struct {
	movies   []mockMovie
	apiKey   string
	limitN   int64
	requests atomic.Int64
	logger   *slog.Logger
}

func main() {
	var (
		port   = flag.String("port", "9098", "port to listen on")
		data   = flag.String("data", "", "path to mock data file (defaults to the built-in set)")
		apiKey = flag.String("key", "", "reject requests whose api_key differs (empty accepts any)")
		limitN = flag.Int64("ratelimit", 0, "answer every Nth request with 429")
		debug  = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With("component", "tmdb-mock")

	payload := defaultData
	if *data != "" {
		file, err := os.ReadFile(*data)
		if err != nil {
			logger.Error("read mock data", "error", err)
			os.Exit(1)
		}
		payload = file
	}

	movies, err := loadMovies(payload)
	if err != nil {
		logger.Error("parse mock data", "error", err)
		os.Exit(1)
	}

	s := &server{movies: movies, apiKey: *apiKey, limitN: *limitN, logger: logger}

	addr := ":" + *port
	logger.Info("mock tmdb listening", "addr", addr, "movies", len(movies))
	if err := http.ListenAndServe(addr, s.routes()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func loadMovies(payload []byte) ([]mockMovie, error) {
	var parsed mockData
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, err
	}
	movies := make([]mockMovie, 0, len(parsed.Movies))
	for _, raw := range parsed.Movies {
		var m mockMovie
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		m.raw = raw
		movies = append(movies, m)
	}
	return movies, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /3/movie/popular", s.guard(s.handlePopular))
	mux.HandleFunc("GET /3/search/movie", s.guard(s.handleSearch))
	mux.HandleFunc("GET /3/movie/{id}", s.guard(s.handleDetails))
	return mux
}

// guard applies the api key check and the synthetic rate limit.
func (s *server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		if s.apiKey != "" && r.URL.Query().Get("api_key") != s.apiKey {
			writeStatus(w, http.StatusUnauthorized, 7, "Invalid API key: You must be granted a valid key.")
			return
		}
		if n := s.requests.Add(1); s.limitN > 0 && n%s.limitN == 0 {
			w.Header().Set("Retry-After", "1")
			writeStatus(w, http.StatusTooManyRequests, 25, "Your request count is over the allowed limit.")
			return
		}
		next(w, r)
	}
}

func (s *server) handlePopular(w http.ResponseWriter, r *http.Request) {
	s.writePage(w, r, s.movies)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	var matches []mockMovie
	for _, m := range s.movies {
		if query != "" && strings.Contains(strings.ToLower(m.Title), query) {
			matches = append(matches, m)
		}
	}
	s.writePage(w, r, matches)
}

func (s *server) handleDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err == nil {
		for _, m := range s.movies {
			if m.ID == id {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write(m.raw)
				return
			}
		}
	}
	writeStatus(w, http.StatusNotFound, 34, "The resource you requested could not be found.")
}

func (s *server) writePage(w http.ResponseWriter, r *http.Request, movies []mockMovie) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	totalPages := (len(movies) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	results := []json.RawMessage{}
	for i := start; i < len(movies) && i < start+pageSize; i++ {
		results = append(results, movies[i].raw)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"page":          page,
		"total_pages":   totalPages,
		"total_results": len(movies),
		"results":       results,
	})
}

func writeStatus(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":        false,
		"status_code":    code,
		"status_message": message,
	})
}
