package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	"cinelist/fetcher"
	"cinelist/storage"
)

func newTestScraper(t *testing.T, pages map[string]string) (*IMDbScraper, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		fixture, ok := pages[r.URL.Path]
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		b, err := os.ReadFile(filepath.Join("testdata", fixture))
		if err != nil {
			t.Errorf("Failed to read fixture: %v", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(b)
	}))
	t.Cleanup(srv.Close)

	store := storage.NewSQLiteStorage(t.TempDir(), "imdb")
	if err := store.Initialize(); err != nil {
		t.Fatalf("Failed to initialize storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := fetcher.New(store, fetcher.WithName("imdb"))
	return NewIMDbScraper(f, WithBaseURL(srv.URL)), &calls
}

func TestFetchListUsesCache(t *testing.T) {
	s, calls := newTestScraper(t, map[string]string{"/chart/top/": "chart_links.html"})
	ctx := context.Background()

	first, err := s.FetchList(ctx, TopRated, 10)
	if err != nil {
		t.Fatalf("FetchList failed: %v", err)
	}
	second, err := s.FetchList(ctx, TopRated, 10)
	if err != nil {
		t.Fatalf("Second FetchList failed: %v", err)
	}

	if len(first) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results from cache")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected 1 page request, got %d", got)
	}
	if first[1].URL == "" || first[1].Poster == "" {
		t.Errorf("Expected relative links resolved against the test origin, got %+v", first[1])
	}
}

func TestFetchListInTheaters(t *testing.T) {
	s, _ := newTestScraper(t, map[string]string{"/movies-in-theaters/": "movie_cards.html"})

	recs, err := s.FetchList(context.Background(), InTheaters, 1)
	if err != nil {
		t.Fatalf("FetchList failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Title != "Dune: Part Two" || recs[0].Rank != 1 {
		t.Errorf("Unexpected records: %+v", recs)
	}
}

func TestFetchListHTTPError(t *testing.T) {
	s, _ := newTestScraper(t, map[string]string{})

	_, err := s.FetchList(context.Background(), MostPopular, 10)
	var fe *fetcher.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *fetcher.FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", fe.StatusCode)
	}
}

func TestFetchListUnknownCategory(t *testing.T) {
	s, calls := newTestScraper(t, map[string]string{})

	if _, err := s.FetchList(context.Background(), Category("bottom_rated"), 10); err == nil {
		t.Error("Expected error for unknown category")
	}
	if calls.Load() != 0 {
		t.Error("Unknown category should not hit the network")
	}
}
