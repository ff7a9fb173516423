package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cinelist/aggregator"
	"cinelist/movie"
	"cinelist/notifier"
)

// Lister is the aggregator surface the warm-up job reads through.
type Lister interface {
	GetMovies(ctx context.Context, key aggregator.SourceKey, limit int) []movie.Record
	Categories() []aggregator.Category
}

// Purger drops cache rows older than cutoff.
type Purger interface {
	Name() string
	PurgeExpired(cutoff time.Time) (int64, error)
}

type Digester interface {
	NotifyDigest(sections []notifier.DigestSection, at time.Time) error
}

// WarmCacheJob fetches every available listing so user requests hit a warm cache, then
// drops expired cache rows and optionally mails a digest of what it fetched.
type WarmCacheJob struct {
	movies   Lister
	stores   []Purger
	digester Digester
	limit    int
	ttl      time.Duration
	now      func() time.Time
}

type WarmCacheOption func(*WarmCacheJob)

func WithDigester(d Digester) WarmCacheOption {
	return func(j *WarmCacheJob) { j.digester = d }
}

func WithPurge(ttl time.Duration, stores ...Purger) WarmCacheOption {
	return func(j *WarmCacheJob) {
		j.ttl = ttl
		j.stores = append(j.stores, stores...)
	}
}

func WithJobClock(now func() time.Time) WarmCacheOption {
	return func(j *WarmCacheJob) { j.now = now }
}

func NewWarmCacheJob(movies Lister, limit int, opts ...WarmCacheOption) *WarmCacheJob {
	j := &WarmCacheJob{
		movies: movies,
		limit:  limit,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *WarmCacheJob) Name() string {
	return "warm_cache"
}

func (j *WarmCacheJob) Run(ctx context.Context) error {
	categories := j.movies.Categories()
	log.Printf("[scheduler] warming %d listings", len(categories))

	sections := make([]notifier.DigestSection, 0, len(categories))
	total := 0
	for _, c := range categories {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("warm-up interrupted: %w", err)
		}
		movies := j.movies.GetMovies(ctx, c.Value, j.limit)
		log.Printf("[scheduler] %s: %d movies", c.Value, len(movies))
		sections = append(sections, notifier.DigestSection{Label: c.Label, Movies: movies})
		total += len(movies)
	}

	var errs []error
	if j.ttl > 0 {
		cutoff := j.now().Add(-j.ttl)
		for _, store := range j.stores {
			n, err := store.PurgeExpired(cutoff)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if n > 0 {
				log.Printf("[scheduler] purged %d expired %s cache entries", n, store.Name())
			}
		}
	}

	if j.digester != nil && total > 0 {
		if err := j.digester.NotifyDigest(sections, j.now()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
