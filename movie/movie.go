package movie

// Source tags where a Record came from.
type Source string

const (
	SourceIMDb Source = "imdb"
	SourceTMDb Source = "tmdb"
)

// Record is one normalized movie listing entry, independent of the source it was read from.
type Record struct {
	Title      string   `json:"title"`
	Year       string   `json:"year,omitempty"`
	Rank       int      `json:"rank"`
	Rating     *float64 `json:"rating,omitempty"`
	URL        string   `json:"url,omitempty"`
	Poster     string   `json:"poster,omitempty"`
	Backdrop   string   `json:"backdrop,omitempty"`
	Overview   string   `json:"overview,omitempty"`
	Source     Source   `json:"source"`
	ExternalID int64    `json:"tmdb_id,omitempty"`
}

// NeedsOverview reports whether the record is an IMDb entry still missing its synopsis.
func (r Record) NeedsOverview() bool {
	return r.Source == SourceIMDb && r.Overview == ""
}
