// Package aggregator answers listing requests by dispatching to the IMDb scraper and the
// TMDb client, falling back between them and filling in missing overviews.
//
// Failures never reach the caller: a listing that cannot be fetched is logged and returned
// as an empty slice.
package aggregator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"cinelist/movie"
	"cinelist/scraper"
	"cinelist/tmdb"
)

// SourceKey names a listing a caller can request.
type SourceKey string

const (
	MostPopular    SourceKey = "most_popular"
	TopRated       SourceKey = "top_rated"
	InTheaters     SourceKey = "in_theaters"
	TMDBTrending   SourceKey = "tmdb_trending"
	TMDBTopRated   SourceKey = "tmdb_top_rated"
	TMDBNowPlaying SourceKey = "tmdb_now_playing"
)

// SourceKeys lists every key in display order.
var SourceKeys = []SourceKey{MostPopular, TopRated, InTheaters, TMDBTrending, TMDBTopRated, TMDBNowPlaying}

const (
	defaultEnrichWorkers = 4
	trailerURLFormat     = "https://www.youtube.com/watch?v=%s"
)

// MovieDatabase is the TMDb side of the aggregation. *tmdb.Client satisfies it.
type MovieDatabase interface {
	FetchList(ctx context.Context, category tmdb.Category, limit int) ([]movie.Record, error)
	Search(ctx context.Context, query string, limit int) ([]movie.Record, error)
	Overview(ctx context.Context, title, year string) (string, bool)
	TrailerKey(ctx context.Context, id int64) (string, bool)
}

type route func(ctx context.Context, a *Aggregator, limit int) ([]movie.Record, error)

// routes is the dispatch table for GetMovies. Keys missing here return no movies.
var routes = map[SourceKey]route{
	MostPopular: func(ctx context.Context, a *Aggregator, limit int) ([]movie.Record, error) {
		return a.imdbEnriched(ctx, scraper.MostPopular, limit)
	},
	TopRated: func(ctx context.Context, a *Aggregator, limit int) ([]movie.Record, error) {
		return a.imdbEnriched(ctx, scraper.TopRated, limit)
	},
	InTheaters: func(ctx context.Context, a *Aggregator, limit int) ([]movie.Record, error) {
		return a.inTheaters(ctx, limit)
	},
	TMDBTrending: func(ctx context.Context, a *Aggregator, limit int) ([]movie.Record, error) {
		return a.tmdbList(ctx, tmdb.Trending, limit)
	},
	TMDBTopRated: func(ctx context.Context, a *Aggregator, limit int) ([]movie.Record, error) {
		return a.tmdbList(ctx, tmdb.TopRated, limit)
	},
	TMDBNowPlaying: func(ctx context.Context, a *Aggregator, limit int) ([]movie.Record, error) {
		return a.tmdbList(ctx, tmdb.NowPlaying, limit)
	},
}

type Aggregator struct {
	imdb          scraper.ListScraper
	db            MovieDatabase
	enrichWorkers int
}

type Option func(*Aggregator)

// WithMovieDatabase enables the TMDb source. Without it TMDb listings are empty and
// no enrichment happens.
func WithMovieDatabase(db MovieDatabase) Option {
	return func(a *Aggregator) { a.db = db }
}

// WithEnrichWorkers bounds concurrent overview lookups. 1 makes enrichment sequential.
func WithEnrichWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.enrichWorkers = n
		}
	}
}

func New(imdb scraper.ListScraper, opts ...Option) *Aggregator {
	a := &Aggregator{
		imdb:          imdb,
		enrichWorkers: defaultEnrichWorkers,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Available reports whether the TMDb source is configured.
func (a *Aggregator) Available() bool {
	return a.db != nil
}

// GetMovies returns at most limit records for key. Errors are logged and yield an empty slice.
func (a *Aggregator) GetMovies(ctx context.Context, key SourceKey, limit int) []movie.Record {
	r, ok := routes[key]
	if !ok || limit <= 0 {
		return []movie.Record{}
	}

	movies, err := r(ctx, a, limit)
	if err != nil {
		log.Printf("[aggregator] failed to fetch %s: %v", key, err)
		return []movie.Record{}
	}
	if movies == nil {
		return []movie.Record{}
	}
	return movies
}

// Search runs a TMDb text search. It is empty when TMDb is unavailable or fails.
func (a *Aggregator) Search(ctx context.Context, query string, limit int) []movie.Record {
	if !a.Available() || strings.TrimSpace(query) == "" {
		return []movie.Record{}
	}
	movies, err := a.db.Search(ctx, query, limit)
	if err != nil {
		log.Printf("[aggregator] search for %q failed: %v", query, err)
		return []movie.Record{}
	}
	if movies == nil {
		return []movie.Record{}
	}
	return movies
}

// TrailerURL returns a YouTube watch URL for the TMDb movie id, if one is listed.
func (a *Aggregator) TrailerURL(ctx context.Context, id int64) (string, bool) {
	if !a.Available() || id <= 0 {
		return "", false
	}
	key, ok := a.db.TrailerKey(ctx, id)
	if !ok {
		return "", false
	}
	return fmt.Sprintf(trailerURLFormat, key), true
}

func (a *Aggregator) imdbEnriched(ctx context.Context, category scraper.Category, limit int) ([]movie.Record, error) {
	movies, err := a.imdb.FetchList(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	a.enrich(ctx, movies)
	return movies, nil
}

// inTheaters falls back to TMDb's now-playing list, as is, when IMDb has nothing.
func (a *Aggregator) inTheaters(ctx context.Context, limit int) ([]movie.Record, error) {
	movies, err := a.imdb.FetchList(ctx, scraper.InTheaters, limit)
	if err != nil {
		return nil, err
	}
	if len(movies) == 0 && a.Available() {
		log.Printf("[aggregator] imdb in-theaters list is empty, using tmdb now playing")
		return a.db.FetchList(ctx, tmdb.NowPlaying, limit)
	}
	a.enrich(ctx, movies)
	return movies, nil
}

func (a *Aggregator) tmdbList(ctx context.Context, category tmdb.Category, limit int) ([]movie.Record, error) {
	if !a.Available() {
		return nil, nil
	}
	return a.db.FetchList(ctx, category, limit)
}

// enrich fills in missing IMDb overviews in place. Each lookup writes only its own
// element, so the slice order is unchanged.
func (a *Aggregator) enrich(ctx context.Context, movies []movie.Record) {
	if !a.Available() {
		return
	}

	p := pool.New().WithMaxGoroutines(a.enrichWorkers)
	for i := range movies {
		if !movies[i].NeedsOverview() {
			continue
		}
		rec := &movies[i]
		p.Go(func() {
			if overview, ok := a.db.Overview(ctx, rec.Title, rec.Year); ok {
				rec.Overview = overview
			}
		})
	}
	p.Wait()
}
