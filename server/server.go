// Package server exposes the aggregator over a small JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"cinelist/aggregator"
	"cinelist/movie"
)

const (
	defaultLimit    = 20
	maxLimit        = 100
	shutdownTimeout = 10 * time.Second
)

// Movies is the aggregator surface the handlers need.
type Movies interface {
	GetMovies(ctx context.Context, key aggregator.SourceKey, limit int) []movie.Record
	Search(ctx context.Context, query string, limit int) []movie.Record
	TrailerURL(ctx context.Context, id int64) (string, bool)
	Categories() []aggregator.Category
	Available() bool
}

type Server struct {
	movies   Movies
	location *time.Location
	now      func() time.Time
	router   *mux.Router
}

type Option func(*Server)

// WithLocation sets the timezone generated_at is reported in.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(movies Movies, opts ...Option) *Server {
	s := &Server{
		movies:   movies,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(logRequests)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/categories", s.categories).Methods(http.MethodGet)
	api.HandleFunc("/movies", s.listMovies).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/search", s.search).Methods(http.MethodGet)
	api.HandleFunc("/trailer", s.trailer).Methods(http.MethodGet)
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Printf("[server] stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

const requestIDHeader = "X-Request-ID"

// logRequests tags each request with an id, echoing a caller-supplied one, and logs it on completion.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[server] %s %s %s %d %s", id, r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseLimit reads a positive limit, defaulting to 20 and capping at 100.
func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
