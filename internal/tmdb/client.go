package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/moviewatch/internal/domain"
)

var (
	// ErrNotFound is returned when upstream cannot find the requested movie.
	ErrNotFound = errors.New("tmdb: not found")
	// ErrUnauthorized is returned when the API key is rejected.
	ErrUnauthorized = errors.New("tmdb: unauthorized")
	// ErrRateLimited is matched by *RateLimitError.
	ErrRateLimited = errors.New("tmdb: rate limited")
)

// RateLimitError carries the upstream Retry-After hint. Callers decide
// whether to try again; the client never retries on its own.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("tmdb: rate limited, retry after %s", e.RetryAfter)
	}
	return "tmdb: rate limited"
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// StatusError is returned for unexpected upstream statuses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tmdb: upstream returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tmdb: upstream returned %d", e.StatusCode)
}

// Client defines the contract for querying the metadata API.
type Client interface {
	Popular(ctx context.Context, page int) (*domain.MoviePage, error)
	Search(ctx context.Context, query string, page int) (*domain.MoviePage, error)
	MovieDetails(ctx context.Context, id int64) (*domain.MovieDetail, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL  *url.URL
	apiKey   string
	language string
	client   *http.Client
	logger   *slog.Logger
}

// Options tunes an HTTPClient.
type Options struct {
	Language string
	Timeout  time.Duration
	Logger   *slog.Logger

	// HTTPClient replaces the default transport, mainly for tests.
	HTTPClient *http.Client
}

// NewHTTPClient constructs a new HTTP-backed metadata client.
func NewHTTPClient(baseURL, apiKey string, opts Options) (*HTTPClient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("tmdb: api key is required")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse tmdb url: %q is not absolute", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		}
	}

	return &HTTPClient{
		baseURL:  parsed,
		apiKey:   apiKey,
		language: opts.Language,
		client:   httpClient,
		logger:   logger,
	}, nil
}

// Popular lists currently popular movies.
func (c *HTTPClient) Popular(ctx context.Context, page int) (*domain.MoviePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(normalizePage(page)))

	var payload apiPage
	if err := c.get(ctx, "/movie/popular", q, &payload); err != nil {
		return nil, err
	}
	return convertPage(payload), nil
}

// Search finds movies by title. A blank query returns an empty page without
// contacting upstream.
func (c *HTTPClient) Search(ctx context.Context, query string, page int) (*domain.MoviePage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &domain.MoviePage{Page: 1, Results: []domain.Movie{}}, nil
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(normalizePage(page)))
	q.Set("include_adult", "false")

	var payload apiPage
	if err := c.get(ctx, "/search/movie", q, &payload); err != nil {
		return nil, err
	}
	return convertPage(payload), nil
}

// MovieDetails fetches the full record for id including credits.
func (c *HTTPClient) MovieDetails(ctx context.Context, id int64) (*domain.MovieDetail, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	q := url.Values{}
	q.Set("append_to_response", "credits")

	var payload apiDetail
	if err := c.get(ctx, "/movie/"+strconv.FormatInt(id, 10), q, &payload); err != nil {
		return nil, err
	}
	return convertDetail(payload), nil
}

func (c *HTTPClient) get(ctx context.Context, path string, q url.Values, dst any) error {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	q.Set("api_key", c.apiKey)
	if c.language != "" {
		q.Set("language", c.language)
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb: request %s: %w", path, redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("decode tmdb response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn("tmdb: rate limited", "path", path, "retry_after", retryAfter)
		return &RateLimitError{RetryAfter: retryAfter}
	default:
		msg := readStatusMessage(resp.Body)
		c.logger.Warn("tmdb: unexpected status", "status", resp.StatusCode, "path", path, "message", msg)
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	if page > 500 {
		return 500
	}
	return page
}

func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func readStatusMessage(body io.Reader) string {
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil {
		return ""
	}
	return payload.StatusMessage
}

// redactKey keeps the API key out of transport errors, which embed the URL.
func redactKey(err error, key string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, key, "REDACTED")
	}
	return err
}

type apiPage struct {
	Page         int        `json:"page"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
	Results      []apiMovie `json:"results"`
}

type apiMovie struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Overview         *string  `json:"overview"`
	ReleaseDate      *string  `json:"release_date"`
	VoteAverage      *float64 `json:"vote_average"`
	VoteCount        *int64   `json:"vote_count"`
	PosterPath       *string  `json:"poster_path"`
	BackdropPath     *string  `json:"backdrop_path"`
	GenreIDs         []int    `json:"genre_ids"`
	Popularity       *float64 `json:"popularity"`
	OriginalLanguage string   `json:"original_language"`
	Adult            bool     `json:"adult"`
}

type apiDetail struct {
	apiMovie
	Tagline             *string      `json:"tagline"`
	Runtime             *int         `json:"runtime"`
	Budget              *int64       `json:"budget"`
	Revenue             *int64       `json:"revenue"`
	Status              string       `json:"status"`
	Homepage            *string      `json:"homepage"`
	IMDbID              *string      `json:"imdb_id"`
	Genres              []apiGenre   `json:"genres"`
	ProductionCompanies []apiCompany `json:"production_companies"`
	Credits             *apiCredits  `json:"credits"`
}

type apiGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type apiCompany struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	LogoPath      *string `json:"logo_path"`
	OriginCountry string  `json:"origin_country"`
}

type apiCredits struct {
	Cast []apiCast `json:"cast"`
}

type apiCast struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Character   string  `json:"character"`
	ProfilePath *string `json:"profile_path"`
	Order       int     `json:"order"`
}

func convertPage(payload apiPage) *domain.MoviePage {
	page := &domain.MoviePage{
		Page:         payload.Page,
		TotalPages:   payload.TotalPages,
		TotalResults: payload.TotalResults,
		Results:      make([]domain.Movie, 0, len(payload.Results)),
	}
	for _, m := range payload.Results {
		if m.ID <= 0 {
			continue
		}
		page.Results = append(page.Results, convertMovie(m))
	}
	return page
}

func convertMovie(m apiMovie) domain.Movie {
	return domain.Movie{
		ID:               m.ID,
		Title:            strings.TrimSpace(m.Title),
		Overview:         strings.TrimSpace(deref(m.Overview)),
		ReleaseDate:      deref(m.ReleaseDate),
		VoteAverage:      deref(m.VoteAverage),
		VoteCount:        deref(m.VoteCount),
		PosterPath:       deref(m.PosterPath),
		BackdropPath:     deref(m.BackdropPath),
		GenreIDs:         m.GenreIDs,
		Popularity:       deref(m.Popularity),
		OriginalLanguage: m.OriginalLanguage,
		Adult:            m.Adult,
	}
}

func convertDetail(payload apiDetail) *domain.MovieDetail {
	detail := &domain.MovieDetail{
		Movie:               convertMovie(payload.apiMovie),
		Tagline:             strings.TrimSpace(deref(payload.Tagline)),
		Budget:              deref(payload.Budget),
		Revenue:             deref(payload.Revenue),
		Status:              payload.Status,
		Homepage:            deref(payload.Homepage),
		IMDbID:              deref(payload.IMDbID),
		Genres:              make([]domain.Genre, 0, len(payload.Genres)),
		Cast:                []domain.CastMember{},
		ProductionCompanies: make([]domain.ProductionCompany, 0, len(payload.ProductionCompanies)),
	}
	if payload.Runtime != nil && *payload.Runtime > 0 {
		runtime := *payload.Runtime
		detail.Runtime = &runtime
	}
	if len(detail.GenreIDs) == 0 && len(payload.Genres) > 0 {
		detail.GenreIDs = make([]int, 0, len(payload.Genres))
		for _, g := range payload.Genres {
			detail.GenreIDs = append(detail.GenreIDs, g.ID)
		}
	}
	for _, g := range payload.Genres {
		detail.Genres = append(detail.Genres, domain.Genre{ID: g.ID, Name: g.Name})
	}
	for _, pc := range payload.ProductionCompanies {
		detail.ProductionCompanies = append(detail.ProductionCompanies, domain.ProductionCompany{
			ID:            pc.ID,
			Name:          pc.Name,
			LogoPath:      deref(pc.LogoPath),
			OriginCountry: pc.OriginCountry,
		})
	}
	if payload.Credits != nil {
		for _, member := range payload.Credits.Cast {
			detail.Cast = append(detail.Cast, domain.CastMember{
				ID:          member.ID,
				Name:        member.Name,
				Character:   member.Character,
				ProfilePath: deref(member.ProfilePath),
				Order:       member.Order,
			})
		}
		sort.SliceStable(detail.Cast, func(i, j int) bool {
			return detail.Cast[i].Order < detail.Cast[j].Order
		})
	}
	return detail
}

func deref[T any](ptr *T) T {
	var zero T
	if ptr == nil {
		return zero
	}
	return *ptr
}
