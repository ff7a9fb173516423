package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"cinelist/fetcher"
	"cinelist/movie"
)

type fetchCall struct {
	url     string
	params  url.Values
	headers http.Header
}

// mockFetcher serves canned bodies keyed by URL path.
type mockFetcher struct {
	bodies map[string]string
	err    error
	calls  []fetchCall
}

func (m *mockFetcher) Fetch(_ context.Context, rawURL string, params url.Values, headers http.Header) ([]byte, error) {
	m.calls = append(m.calls, fetchCall{url: rawURL, params: params, headers: headers})
	if m.err != nil {
		return nil, m.err
	}
	path := strings.TrimPrefix(rawURL, defaultBaseURL)
	body, ok := m.bodies[path]
	if !ok {
		return nil, &fetcher.FetchError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	return []byte(body), nil
}

const listBody = `{"page":1,"results":[
 {"id":693134,"title":"Duna: Parte Dois","overview":"Paul Atreides se une a Chani.","release_date":"2024-02-27","vote_average":8.2,"poster_path":"/p1.jpg","backdrop_path":"/b1.jpg"},
 {"id":0,"title":"","name":"","overview":"no title"},
 {"id":550,"name":"Clube da Luta","release_date":"","vote_average":8.4,"poster_path":null,"backdrop_path":null},
 {"id":27205,"title":"A Origem","release_date":"20","overview":""}
]}`

func newTestClient(t *testing.T, m *mockFetcher) *Client {
	t.Helper()
	c, ok := New("key-123", m)
	if !ok || c == nil {
		t.Fatal("Expected client to be available")
	}
	return c
}

func TestNewRequiresAPIKey(t *testing.T) {
	if c, ok := New("  ", &mockFetcher{}); ok || c != nil {
		t.Errorf("Expected no client for blank key, got %v %v", c, ok)
	}
	if c, ok := New("key", nil); ok || c != nil {
		t.Errorf("Expected no client without fetcher, got %v %v", c, ok)
	}
}

func TestFetchListMapsResults(t *testing.T) {
	m := &mockFetcher{bodies: map[string]string{"/trending/movie/day": listBody}}
	c := newTestClient(t, m)

	recs, err := c.FetchList(context.Background(), Trending, 10)
	if err != nil {
		t.Fatalf("FetchList failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 records (untitled entry skipped), got %d", len(recs))
	}

	dune := recs[0]
	if dune.Title != "Duna: Parte Dois" || dune.Year != "2024" || dune.Rank != 1 {
		t.Errorf("Unexpected first record: %+v", dune)
	}
	if dune.Rating == nil || *dune.Rating != 8.2 {
		t.Errorf("Expected rating 8.2, got %v", dune.Rating)
	}
	if dune.URL != "https://www.themoviedb.org/movie/693134" || dune.ExternalID != 693134 {
		t.Errorf("Unexpected url/id: %s %d", dune.URL, dune.ExternalID)
	}
	if dune.Poster != "https://image.tmdb.org/t/p/w500/p1.jpg" || dune.Backdrop != "https://image.tmdb.org/t/p/w1280/b1.jpg" {
		t.Errorf("Unexpected images: %s %s", dune.Poster, dune.Backdrop)
	}
	if dune.Overview != "Paul Atreides se une a Chani." || dune.Source != movie.SourceTMDb {
		t.Errorf("Unexpected overview/source: %+v", dune)
	}

	fight := recs[1]
	if fight.Title != "Clube da Luta" || fight.Rank != 2 || fight.Year != "" || fight.Poster != "" || fight.Backdrop != "" {
		t.Errorf("Unexpected second record: %+v", fight)
	}
	if recs[2].Year != "" || recs[2].Rank != 3 {
		t.Errorf("Expected unparseable date to give no year: %+v", recs[2])
	}

	call := m.calls[0]
	if call.params.Get("api_key") != "key-123" || call.params.Get("language") != "pt-BR" {
		t.Errorf("Missing credential or language params: %v", call.params)
	}
	if call.headers.Get("Accept") != "application/json" {
		t.Errorf("Expected JSON accept header, got %v", call.headers)
	}
}

func TestFetchListTruncatesToLimit(t *testing.T) {
	m := &mockFetcher{bodies: map[string]string{"/movie/top_rated": listBody}}
	recs, err := newTestClient(t, m).FetchList(context.Background(), TopRated, 1)
	if err != nil {
		t.Fatalf("FetchList failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Rank != 1 {
		t.Errorf("Expected a single ranked record, got %+v", recs)
	}
}

func TestFetchListEndpoints(t *testing.T) {
	tests := map[Category]string{
		Trending:           "/trending/movie/day",
		TopRated:           "/movie/top_rated",
		NowPlaying:         "/movie/now_playing",
		Category("weekly"): "/trending/movie/week",
	}
	for category, path := range tests {
		m := &mockFetcher{bodies: map[string]string{path: `{"results":[]}`}}
		if _, err := newTestClient(t, m).FetchList(context.Background(), category, 5); err != nil {
			t.Errorf("FetchList(%q) failed: %v", category, err)
		}
		if len(m.calls) != 1 || m.calls[0].url != defaultBaseURL+path {
			t.Errorf("FetchList(%q) requested %v, want %s", category, m.calls, path)
		}
	}
}

func TestFetchListPropagatesFetchError(t *testing.T) {
	m := &mockFetcher{err: &fetcher.FetchError{URL: "x", StatusCode: 401}}
	_, err := newTestClient(t, m).FetchList(context.Background(), Trending, 5)
	var fe *fetcher.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *fetcher.FetchError, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	m := &mockFetcher{bodies: map[string]string{"/search/movie": listBody}}
	c := newTestClient(t, m)

	recs, err := c.Search(context.Background(), "  duna ", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	params := m.calls[0].params
	if params.Get("query") != "duna" || params.Get("include_adult") != "false" {
		t.Errorf("Unexpected search params: %v", params)
	}

	recs, err = c.Search(context.Background(), "   ", 5)
	if err != nil || len(recs) != 0 {
		t.Errorf("Expected empty result for blank query, got %v %v", recs, err)
	}
	if len(m.calls) != 1 {
		t.Errorf("Blank query should not hit the network")
	}
}

func TestOverview(t *testing.T) {
	m := &mockFetcher{bodies: map[string]string{"/search/movie": listBody}}
	c := newTestClient(t, m)

	overview, ok := c.Overview(context.Background(), "Dune: Part Two", "2024")
	if !ok || overview != "Paul Atreides se une a Chani." {
		t.Errorf("Unexpected overview %q %v", overview, ok)
	}
	params := m.calls[0].params
	if params.Get("query") != "Dune: Part Two" || params.Get("year") != "2024" {
		t.Errorf("Unexpected overview params: %v", params)
	}

	if _, ok := c.Overview(context.Background(), "Dune", ""); !ok {
		t.Error("Expected overview without year")
	}
	if m.calls[1].params.Has("year") {
		t.Errorf("Expected no year param, got %v", m.calls[1].params)
	}
}

func TestOverviewMissOrFailure(t *testing.T) {
	empty := &mockFetcher{bodies: map[string]string{"/search/movie": `{"results":[]}`}}
	if ov, ok := newTestClient(t, empty).Overview(context.Background(), "Nothing", ""); ok || ov != "" {
		t.Errorf("Expected no overview for empty results, got %q", ov)
	}

	blank := &mockFetcher{bodies: map[string]string{"/search/movie": `{"results":[{"id":1,"title":"X","overview":"  "}]}`}}
	if _, ok := newTestClient(t, blank).Overview(context.Background(), "X", ""); ok {
		t.Error("Expected blank overview to count as missing")
	}

	failing := &mockFetcher{err: errors.New("connection reset")}
	if ov, ok := newTestClient(t, failing).Overview(context.Background(), "X", "1999"); ok || ov != "" {
		t.Errorf("Expected failure to be swallowed, got %q", ov)
	}
}

func TestTrailerKey(t *testing.T) {
	m := &mockFetcher{bodies: map[string]string{"/movie/550/videos": `{"id":550,"results":[
		{"key":"bts","site":"YouTube","type":"Featurette"},
		{"key":"vim","site":"Vimeo","type":"Trailer"},
		{"key":"abc123","site":"YouTube","type":"Teaser"},
		{"key":"def456","site":"YouTube","type":"Trailer"}
	]}`}}
	c := newTestClient(t, m)

	key, ok := c.TrailerKey(context.Background(), 550)
	if !ok || key != "abc123" {
		t.Errorf("Expected first YouTube trailer or teaser, got %q %v", key, ok)
	}

	if _, ok := c.TrailerKey(context.Background(), 0); ok {
		t.Error("Expected no trailer for id 0")
	}
	if _, ok := c.TrailerKey(context.Background(), 404); ok {
		t.Error("Expected fetch failure to be swallowed")
	}
}

func TestNilClientIsEmpty(t *testing.T) {
	var c *Client
	ctx := context.Background()

	if recs, err := c.FetchList(ctx, Trending, 10); err != nil || len(recs) != 0 {
		t.Errorf("FetchList on nil client = %v, %v", recs, err)
	}
	if recs, err := c.Search(ctx, "dune", 10); err != nil || len(recs) != 0 {
		t.Errorf("Search on nil client = %v, %v", recs, err)
	}
	if _, ok := c.Overview(ctx, "Dune", "2021"); ok {
		t.Error("Overview on nil client should report not found")
	}
	if _, ok := c.TrailerKey(ctx, 1); ok {
		t.Error("TrailerKey on nil client should report not found")
	}
}

func TestReleaseYear(t *testing.T) {
	tests := map[string]string{
		"2024-05-01": "2024",
		"1999":       "1999",
		"":           "",
		"199":        "",
		"TBA-01-01":  "",
	}
	for input, expect := range tests {
		if got := releaseYear(input); got != expect {
			t.Errorf("releaseYear(%q) = %q, want %q", input, got, expect)
		}
	}
}

func TestWithLanguage(t *testing.T) {
	m := &mockFetcher{bodies: map[string]string{"/movie/now_playing": `{"results":[]}`}}
	c, _ := New("k", m, WithLanguage("en-US"))
	if _, err := c.FetchList(context.Background(), NowPlaying, 1); err != nil {
		t.Fatal(err)
	}
	if got := m.calls[0].params.Get("language"); got != "en-US" {
		t.Errorf("Expected en-US, got %q", got)
	}
}
