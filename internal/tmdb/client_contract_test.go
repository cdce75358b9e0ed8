package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Clark-Hu/moviewatch/internal/logging"
)

const detailPayload = `{
  "id": 27205,
  "title": "Inception",
  "overview": "Cobb steals secrets from dreams.",
  "release_date": "2010-07-15",
  "vote_average": 8.369,
  "vote_count": 35000,
  "poster_path": "/poster.jpg",
  "backdrop_path": null,
  "tagline": "Your mind is the scene of the crime.",
  "runtime": 148,
  "budget": 160000000,
  "revenue": 825532764,
  "status": "Released",
  "imdb_id": "tt1375666",
  "genres": [{"id": 28, "name": "Action"}, {"id": 878, "name": "Science Fiction"}],
  "production_companies": [{"id": 923, "name": "Legendary Pictures", "logo_path": null, "origin_country": "US"}],
  "credits": {"cast": [
    {"id": 2, "name": "Joseph Gordon-Levitt", "character": "Arthur", "order": 1},
    {"id": 1, "name": "Leonardo DiCaprio", "character": "Cobb", "profile_path": "/leo.jpg", "order": 0}
  ]}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(srv.URL+"/3", "secret-key", Options{
		Language: "en-US",
		Timeout:  2 * time.Second,
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatalf("create http client: %v", err)
	}
	return client
}

func TestMovieDetailsContract(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/movie/27205" {
			t.Errorf("path = %s, want /3/movie/27205", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api_key") != "secret-key" {
			t.Errorf("api_key = %q", q.Get("api_key"))
		}
		if q.Get("append_to_response") != "credits" {
			t.Errorf("append_to_response = %q", q.Get("append_to_response"))
		}
		if q.Get("language") != "en-US" {
			t.Errorf("language = %q", q.Get("language"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(detailPayload))
	})

	detail, err := client.MovieDetails(context.Background(), 27205)
	if err != nil {
		t.Fatalf("MovieDetails() error: %v", err)
	}
	if detail.Title != "Inception" || detail.VoteCount != 35000 {
		t.Fatalf("unexpected movie: %+v", detail.Movie)
	}
	if detail.BackdropPath != "" {
		t.Fatalf("null backdrop should decode to empty, got %q", detail.BackdropPath)
	}
	if detail.Runtime == nil || *detail.Runtime != 148 {
		t.Fatalf("runtime = %v, want 148", detail.Runtime)
	}
	if len(detail.Genres) != 2 || detail.Genres[1].Name != "Science Fiction" {
		t.Fatalf("genres = %+v", detail.Genres)
	}
	if len(detail.GenreIDs) != 2 {
		t.Fatalf("genre ids should be derived from genres, got %v", detail.GenreIDs)
	}
	if len(detail.Cast) != 2 || detail.Cast[0].Name != "Leonardo DiCaprio" {
		t.Fatalf("cast should be ordered by billing: %+v", detail.Cast)
	}
	if detail.ProductionCompanies[0].LogoPath != "" {
		t.Fatalf("null logo should decode to empty")
	}
}

func TestSearchContract(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/search/movie" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "blade runner" {
			t.Errorf("query = %q", got)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page = %q", got)
		}
		_, _ = w.Write([]byte(`{"page":2,"total_pages":3,"total_results":41,"results":[
			{"id":78,"title":"Blade Runner","release_date":"1982-06-25","vote_average":7.9,"poster_path":"/br.jpg","genre_ids":[878]},
			{"id":0,"title":"broken"},
			{"id":335984,"title":"Blade Runner 2049","overview":null,"poster_path":null}
		]}`))
	})

	page, err := client.Search(context.Background(), "  blade runner ", 2)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if page.Page != 2 || page.TotalPages != 3 || page.TotalResults != 41 {
		t.Fatalf("unexpected paging: %+v", page)
	}
	if len(page.Results) != 2 {
		t.Fatalf("results = %d, want 2 (id 0 dropped)", len(page.Results))
	}
	if page.Results[1].PosterPath != "" || page.Results[1].Overview != "" {
		t.Fatalf("null fields should degrade to empty: %+v", page.Results[1])
	}
}

func TestSearchBlankQuerySkipsUpstream(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	page, err := client.Search(context.Background(), "   ", 1)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if called {
		t.Fatalf("blank query should not reach upstream")
	}
	if page.Results == nil || len(page.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %#v", page.Results)
	}
}

func TestPopularNormalizesPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page"); got != "1" {
			t.Errorf("page = %q, want 1", got)
		}
		_, _ = w.Write([]byte(`{"page":1,"total_pages":1,"total_results":0,"results":[]}`))
	})

	if _, err := client.Popular(context.Background(), -4); err != nil {
		t.Fatalf("Popular() error: %v", err)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("err = %v, want ErrNotFound", err)
				}
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrUnauthorized) {
					t.Fatalf("err = %v, want ErrUnauthorized", err)
				}
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "7"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrRateLimited) {
					t.Fatalf("err = %v, want ErrRateLimited", err)
				}
				var rl *RateLimitError
				if !errors.As(err, &rl) || rl.RetryAfter != 7*time.Second {
					t.Fatalf("retry after = %v, want 7s", rl)
				}
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   `{"status_message":"upstream down"}`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
					t.Fatalf("err = %v, want StatusError 502", err)
				}
				if se.Message != "upstream down" {
					t.Fatalf("message = %q", se.Message)
				}
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{"id":`,
			check: func(t *testing.T, err error) {
				if err == nil || !strings.Contains(err.Error(), "decode") {
					t.Fatalf("err = %v, want decode error", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.MovieDetails(context.Background(), 1)
			tt.check(t, err)
			if calls != 1 {
				t.Fatalf("upstream called %d times, want exactly 1", calls)
			}
		})
	}
}

func TestTransportErrorRedactsKey(t *testing.T) {
	client, err := NewHTTPClient("http://127.0.0.1:1", "secret-key", Options{Timeout: time.Second, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("create http client: %v", err)
	}
	_, err = client.Popular(context.Background(), 1)
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Fatalf("error leaks api key: %v", err)
	}
}

func TestNewHTTPClientValidation(t *testing.T) {
	if _, err := NewHTTPClient("https://api.themoviedb.org/3", "", Options{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewHTTPClient("not a url", "key", Options{}); err == nil {
		t.Fatalf("expected error for relative url")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter(""); got != 0 {
		t.Fatalf("empty = %v", got)
	}
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Fatalf("3 = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Fatalf("garbage = %v", got)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Minute {
		t.Fatalf("http date = %v", got)
	}
}

// TestHTTPClientSmoke runs against a real or mock upstream when configured.
func TestHTTPClientSmoke(t *testing.T) {
	baseURL := os.Getenv("TMDB_BASE_URL")
	apiKey := os.Getenv("TMDB_API_KEY")
	if baseURL == "" || apiKey == "" {
		t.Skip("TMDB_BASE_URL/TMDB_API_KEY not provided")
	}
	client, err := NewHTTPClient(baseURL, apiKey, Options{Timeout: 3 * time.Second, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("create http client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	page, err := client.Popular(ctx, 1)
	if err != nil {
		t.Fatalf("fetch popular: %v", err)
	}
	if len(page.Results) == 0 {
		t.Fatalf("expected at least one popular movie")
	}
}
