package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Clark-Hu/moviewatch/internal/config"
	"github.com/Clark-Hu/moviewatch/internal/storage"
	"github.com/Clark-Hu/moviewatch/internal/tmdb"
	"github.com/Clark-Hu/moviewatch/internal/watchlist"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg       config.Config
	health    storage.HealthChecker
	watchlist *watchlist.Store
	catalog   tmdb.Client
	images    tmdb.Images
	logger    *slog.Logger
	router    chi.Router
	httpSrv   *http.Server

	// events is closed by Shutdown so open event streams return.
	events      chan struct{}
	closeEvents sync.Once
}

// New constructs the HTTP server with base middleware and routes. catalog may
// be nil, in which case the /movies routes answer 503.
func New(cfg config.Config, health storage.HealthChecker, wl *watchlist.Store, catalog tmdb.Client, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		health:    health,
		watchlist: wl,
		catalog:   catalog,
		images:    tmdb.Images{BaseURL: cfg.TMDBImageBaseURL, Placeholder: cfg.ImagePlaceholderURL},
		logger:    logger,
		router:    r,
		events:    make(chan struct{}),
	}
	s.registerRoutes()
	s.httpSrv = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSecs) * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/popular", s.handlePopular)
		r.Get("/search", s.handleSearch)
		r.Get("/{id}", s.handleMovieDetails)
	})
	s.router.Route("/watchlist", func(r chi.Router) {
		r.Get("/", s.handleListWatchlist)
		r.Get("/stats", s.handleWatchlistStats)
		r.Get("/events", s.handleWatchlistEvents)
		r.Get("/{id}", s.handleGetWatchlistEntry)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleAddToWatchlist)
			r.Delete("/", s.handleClearWatchlist)
			r.Delete("/{id}", s.handleRemoveFromWatchlist)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx is done or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("http: listening", "addr", s.httpSrv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown ends open event streams and gracefully stops the HTTP server.
// It may run concurrently with Start, before it, or more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeEvents.Do(func() { close(s.events) })
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			s.logger.Warn("http: health check failed", "error", err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
