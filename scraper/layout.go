package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cinelist/movie"
)

// ErrMissingTitle marks an entry whose title could not be read.
var ErrMissingTitle = errors.New("entry has no title")

// Layout is one known page structure. Entries finds the listing elements and Parse turns a
// single element into a record; a Parse error only discards that element.
type Layout interface {
	Name() string
	Entries(doc *goquery.Selection) []*goquery.Selection
	Parse(entry *goquery.Selection, origin string) (movie.Record, error)
}

// LayoutsFor returns the layouts tried for category, in priority order.
func LayoutsFor(category Category) []Layout {
	return categories[category].layouts
}

// SelectLayout returns the first layout that finds at least one entry in doc,
// together with those entries. It returns a nil Layout when none match.
func SelectLayout(doc *goquery.Selection, layouts []Layout) (Layout, []*goquery.Selection) {
	for _, l := range layouts {
		if entries := l.Entries(doc); len(entries) > 0 {
			return l, entries
		}
	}
	return nil, nil
}

// Extract parses entries in order, keeping at most limit records with contiguous ranks.
func Extract(layout Layout, entries []*goquery.Selection, origin string, limit int) []movie.Record {
	out := make([]movie.Record, 0, min(limit, len(entries)))
	for _, el := range entries {
		if len(out) >= limit {
			break
		}
		rec, err := layout.Parse(el, origin)
		if err != nil {
			continue
		}
		rec.Rank = len(out) + 1
		rec.Source = movie.SourceIMDb
		out = append(out, rec)
	}
	return out
}

func collect(sel *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

// chartLinkLayout is the current chart markup: one title link per entry.
type chartLinkLayout struct{}

var chartRankPrefix = regexp.MustCompile(`^\d+\.\s+`)

func (chartLinkLayout) Name() string { return "chart-links" }

func (chartLinkLayout) Entries(doc *goquery.Selection) []*goquery.Selection {
	return collect(doc.Find(`[data-testid="chart-layout-main-column"] a.ipc-title-link-wrapper`))
}

func (chartLinkLayout) Parse(link *goquery.Selection, origin string) (movie.Record, error) {
	titleEl := link.Find(`[data-testid="title"]`).First()
	if titleEl.Length() == 0 {
		titleEl = link
	}
	// Chart headings read "12. Title".
	title := chartRankPrefix.ReplaceAllString(CleanText(titleEl.Text()), "")
	if title == "" {
		return movie.Record{}, ErrMissingTitle
	}

	rec := movie.Record{Title: title}
	if href := attr(link, "href"); href != "" {
		rec.URL = absURL(origin, href)
	}
	if src := nearestImage(link); src != "" {
		rec.Poster = UpgradePoster(absURL(origin, src))
	}
	return rec, nil
}

// nearestImage looks for the poster next to a chart link: inside the link, then in the
// enclosing list item, then two levels up.
func nearestImage(link *goquery.Selection) string {
	scopes := []*goquery.Selection{link, link.Closest("li"), link.Parent().Parent()}
	for _, scope := range scopes {
		if src := attr(scope.Find("img").First(), "src"); src != "" {
			return src
		}
	}
	return ""
}

// legacyTableLayout is the older chart markup rendered as a table.
type legacyTableLayout struct{}

func (legacyTableLayout) Name() string { return "legacy-table" }

func (legacyTableLayout) Entries(doc *goquery.Selection) []*goquery.Selection {
	return collect(doc.Find("table tbody tr"))
}

func (legacyTableLayout) Parse(row *goquery.Selection, origin string) (movie.Record, error) {
	titleEl := row.Find("td.titleColumn a").First()
	title := CleanText(titleEl.Text())
	if title == "" {
		return movie.Record{}, ErrMissingTitle
	}

	rec := movie.Record{Title: title}
	if href := attr(titleEl, "href"); href != "" {
		rec.URL = absURL(origin, href)
	}

	if yearEl := row.Find("span.secondaryInfo").First(); yearEl.Length() > 0 {
		rec.Year = CleanText(strings.Trim(strings.TrimSpace(yearEl.Text()), "()"))
	}

	if ratingText := CleanText(row.Find("td.imdbRating strong").First().Text()); ratingText != "" {
		rating, err := strconv.ParseFloat(ratingText, 64)
		if err != nil {
			return movie.Record{}, fmt.Errorf("bad rating %q: %w", ratingText, err)
		}
		rec.Rating = &rating
	}

	if src := attr(row.Find("td.posterColumn img").First(), "src"); src != "" {
		rec.Poster = UpgradePoster(absURL(origin, src))
	}
	return rec, nil
}

// movieCardLayout is the in-theaters page: one card per movie.
type movieCardLayout struct{}

func (movieCardLayout) Name() string { return "movie-cards" }

func (movieCardLayout) Entries(doc *goquery.Selection) []*goquery.Selection {
	return collect(doc.Find(`[data-testid="list-page-movie-card"]`))
}

func (movieCardLayout) Parse(card *goquery.Selection, origin string) (movie.Record, error) {
	title := CleanText(card.Find(`[data-testid="title"]`).First().Text())
	if title == "" {
		return movie.Record{}, ErrMissingTitle
	}

	rec := movie.Record{Title: title}
	if href := attr(card.Find(`a.ipc-lockup-overlay, a[href*="/title/"]`).First(), "href"); href != "" {
		rec.URL = absURL(origin, href)
	}
	if src := attr(card.Find("img").First(), "src"); src != "" {
		rec.Poster = UpgradePoster(absURL(origin, src))
	}
	return rec, nil
}

func attr(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return strings.TrimSpace(v)
}

const (
	posterMarker  = "._V1_"
	posterHighRes = "._V1_FMjpg_UX600_.jpg"
)

// UpgradePoster rewrites an IMDb image URL to its 600px-wide rendition. URLs without the
// resizing marker are returned unchanged.
func UpgradePoster(src string) string {
	i := strings.Index(src, posterMarker)
	if i < 0 {
		return src
	}
	return src[:i] + posterHighRes
}

// CleanText collapses whitespace runs to single spaces and trims the ends.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func absURL(origin, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(origin)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
