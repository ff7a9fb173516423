package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"

	"cinelist/fetcher"
	"cinelist/movie"
)

// Category names one of the IMDb listings.
type Category string

const (
	MostPopular Category = "most_popular"
	TopRated    Category = "top_rated"
	InTheaters  Category = "in_theaters"
)

const (
	defaultBaseURL = "https://www.imdb.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	acceptLanguage = "en-US,en;q=0.9"
)

type categorySpec struct {
	path    string
	layouts []Layout
}

// Layouts are tried in order; the first one that finds entries on the page wins.
var categories = map[Category]categorySpec{
	MostPopular: {path: "/chart/moviemeter/", layouts: []Layout{chartLinkLayout{}, legacyTableLayout{}}},
	TopRated:    {path: "/chart/top/", layouts: []Layout{chartLinkLayout{}, legacyTableLayout{}}},
	InTheaters:  {path: "/movies-in-theaters/", layouts: []Layout{movieCardLayout{}}},
}

type ListScraper interface {
	FetchList(ctx context.Context, category Category, limit int) ([]movie.Record, error)
}

// IMDbScraper reads ranked lists from IMDb chart pages.
type IMDbScraper struct {
	fetcher *fetcher.Client
	baseURL string
}

type Option func(*IMDbScraper)

// WithBaseURL points the scraper at another origin.
func WithBaseURL(baseURL string) Option {
	return func(s *IMDbScraper) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

func NewIMDbScraper(f *fetcher.Client, opts ...Option) *IMDbScraper {
	s := &IMDbScraper{fetcher: f, baseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchList returns at most limit records for category, ranked in page order.
// Entries that cannot be parsed are skipped and do not consume a rank.
func (s *IMDbScraper) FetchList(ctx context.Context, category Category, limit int) ([]movie.Record, error) {
	spec, ok := categories[category]
	if !ok {
		return nil, fmt.Errorf("unknown imdb category %q", category)
	}
	if limit <= 0 {
		return nil, nil
	}

	pageURL := s.baseURL + spec.path
	doc, err := s.visit(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	layout, entries := SelectLayout(doc, spec.layouts)
	if layout == nil {
		log.Printf("[scraper] no known layout matched %s", pageURL)
		return nil, nil
	}
	log.Printf("[scraper] %s: %d entries in %s layout", category, len(entries), layout.Name())

	return Extract(layout, entries, s.baseURL, limit), nil
}

func (s *IMDbScraper) visit(ctx context.Context, pageURL string) (*goquery.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fetcher.FetchError{URL: pageURL, Err: err}
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.WithTransport(s.fetcher.Transport())
	c.SetRequestTimeout(fetcher.RequestTimeout)

	var (
		doc    *goquery.Selection
		status int
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", acceptLanguage)
		log.Println("[scraper] visiting:", r.URL)
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		doc = e.DOM
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, &fetcher.FetchError{URL: pageURL, StatusCode: status, Err: err}
	}
	if doc == nil {
		return nil, &fetcher.FetchError{URL: pageURL, StatusCode: status, Err: errors.New("response is not an HTML document")}
	}
	return doc, nil
}
