// Package tmdb reads movie lists, search results, overviews and trailer keys from the
// TMDb v3 API.
//
// A Client exists only when an API key is configured. New reports availability, and every
// method on a nil *Client returns an empty result, so callers can hold a nil client when
// the source is disabled.
package tmdb

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"cinelist/movie"
)

// Category selects a TMDb movie list.
type Category string

const (
	Trending   Category = "trending"
	TopRated   Category = "top_rated"
	NowPlaying Category = "now_playing"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultLanguage = "pt-BR"

	posterBaseURL   = "https://image.tmdb.org/t/p/w500"
	backdropBaseURL = "https://image.tmdb.org/t/p/w1280"
	movieURLFormat  = "https://www.themoviedb.org/movie/%d"

	weeklyTrendingPath = "/trending/movie/week"
	searchPath         = "/search/movie"
	trailerSite        = "YouTube"
)

var listPaths = map[Category]string{
	Trending:   "/trending/movie/day",
	TopRated:   "/movie/top_rated",
	NowPlaying: "/movie/now_playing",
}

// Fetcher is the cached HTTP client the adapter reads through.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values, headers http.Header) ([]byte, error)
}

type Client struct {
	fetcher  Fetcher
	apiKey   string
	language string
	baseURL  string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithLanguage sets the language query parameter, e.g. "en-US". Blank keeps pt-BR.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		if lang = strings.TrimSpace(lang); lang != "" {
			c.language = lang
		}
	}
}

// New returns a client and true when apiKey is set, or nil and false otherwise.
func New(apiKey string, f Fetcher, opts ...Option) (*Client, bool) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" || f == nil {
		return nil, false
	}
	c := &Client{
		fetcher:  f,
		apiKey:   apiKey,
		language: defaultLanguage,
		baseURL:  defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, true
}

type listResponse struct {
	Results []result `json:"results"`
}

type result struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	Overview     string   `json:"overview"`
	ReleaseDate  string   `json:"release_date"`
	VoteAverage  *float64 `json:"vote_average"`
	PosterPath   string   `json:"poster_path"`
	BackdropPath string   `json:"backdrop_path"`
}

type videosResponse struct {
	Results []video `json:"results"`
}

type video struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
}

// FetchList returns up to limit records from a TMDb list. Unknown categories read the
// weekly trending list.
func (c *Client) FetchList(ctx context.Context, category Category, limit int) ([]movie.Record, error) {
	if c == nil || limit <= 0 {
		return nil, nil
	}
	path, ok := listPaths[category]
	if !ok {
		path = weeklyTrendingPath
	}

	var resp listResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return toRecords(resp.Results, limit), nil
}

// Search runs a free-text title search, excluding adult titles.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]movie.Record, error) {
	query = strings.TrimSpace(query)
	if c == nil || query == "" || limit <= 0 {
		return nil, nil
	}

	params := url.Values{
		"query":         {query},
		"include_adult": {"false"},
	}
	var resp listResponse
	if err := c.get(ctx, searchPath, params, &resp); err != nil {
		return nil, err
	}
	return toRecords(resp.Results, limit), nil
}

// Overview looks up the synopsis of the best match for title (and year, when known).
// Failures are logged and reported as not found.
func (c *Client) Overview(ctx context.Context, title, year string) (string, bool) {
	title = strings.TrimSpace(title)
	if c == nil || title == "" {
		return "", false
	}

	params := url.Values{"query": {title}}
	if year = strings.TrimSpace(year); year != "" {
		params.Set("year", year)
	}
	var resp listResponse
	if err := c.get(ctx, searchPath, params, &resp); err != nil {
		log.Printf("[tmdb] overview lookup for %q failed: %v", title, err)
		return "", false
	}
	if len(resp.Results) == 0 {
		return "", false
	}
	overview := strings.TrimSpace(resp.Results[0].Overview)
	return overview, overview != ""
}

// TrailerKey returns the YouTube key of the first trailer or teaser listed for a movie.
func (c *Client) TrailerKey(ctx context.Context, id int64) (string, bool) {
	if c == nil || id <= 0 {
		return "", false
	}

	var resp videosResponse
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/videos", id), nil, &resp); err != nil {
		log.Printf("[tmdb] videos lookup for %d failed: %v", id, err)
		return "", false
	}
	for _, v := range resp.Results {
		if !strings.EqualFold(v.Site, trailerSite) || v.Key == "" {
			continue
		}
		if v.Type == "Trailer" || v.Type == "Teaser" {
			return v.Key, true
		}
	}
	return "", false
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v interface{}) error {
	p := url.Values{
		"api_key":  {c.apiKey},
		"language": {c.language},
	}
	for k, vs := range params {
		p[k] = vs
	}

	body, err := c.fetcher.Fetch(ctx, c.baseURL+path, p, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func toRecords(results []result, limit int) []movie.Record {
	out := make([]movie.Record, 0, min(limit, len(results)))
	for _, r := range results {
		if len(out) >= limit {
			break
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = strings.TrimSpace(r.Name)
		}
		if title == "" {
			continue
		}

		rec := movie.Record{
			Title:      title,
			Year:       releaseYear(r.ReleaseDate),
			Rank:       len(out) + 1,
			Rating:     r.VoteAverage,
			Poster:     imageURL(posterBaseURL, r.PosterPath),
			Backdrop:   imageURL(backdropBaseURL, r.BackdropPath),
			Overview:   strings.TrimSpace(r.Overview),
			Source:     movie.SourceTMDb,
			ExternalID: r.ID,
		}
		if r.ID > 0 {
			rec.URL = fmt.Sprintf(movieURLFormat, r.ID)
		}
		out = append(out, rec)
	}
	return out
}

// releaseYear returns the year of a YYYY-MM-DD date, or "" when it does not start with four digits.
func releaseYear(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	for _, ch := range date[:4] {
		if ch < '0' || ch > '9' {
			return ""
		}
	}
	return date[:4]
}

func imageURL(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return base + path
}
