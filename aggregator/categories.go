package aggregator

// Category is a selectable listing with its display label.
type Category struct {
	Value SourceKey `json:"value"`
	Label string    `json:"label"`
}

var imdbCategories = []Category{
	{Value: MostPopular, Label: "Most Popular"},
	{Value: TopRated, Label: "Top 250"},
	{Value: InTheaters, Label: "In Theaters"},
}

var tmdbCategories = []Category{
	{Value: TMDBTrending, Label: "Trending Today"},
	{Value: TMDBTopRated, Label: "Top Rated (TMDb)"},
	{Value: TMDBNowPlaying, Label: "Now Playing (TMDb)"},
}

// Categories lists the listings this aggregator can serve; TMDb listings appear only
// when TMDb is configured.
func (a *Aggregator) Categories() []Category {
	out := make([]Category, 0, len(imdbCategories)+len(tmdbCategories))
	out = append(out, imdbCategories...)
	if a.Available() {
		out = append(out, tmdbCategories...)
	}
	return out
}

// ParseSourceKey converts a request value to a known key.
func ParseSourceKey(s string) (SourceKey, bool) {
	key := SourceKey(s)
	_, ok := routes[key]
	return key, ok
}
