package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mozillazg/go-unidecode"

	"cinelist/aggregator"
	"cinelist/movie"
)

const (
	modeList   = "list"
	modeSearch = "search"
)

type listingResponse struct {
	Mode        string         `json:"mode"`
	Source      string         `json:"source"`
	Limit       int            `json:"limit"`
	Query       string         `json:"query"`
	TMDBEnabled bool           `json:"tmdb_enabled"`
	GeneratedAt string         `json:"generated_at"`
	Movies      []movie.Record `json:"movies"`
}

type trailerResponse struct {
	OK  bool    `json:"ok"`
	URL *string `json:"url"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.movies.Categories())
}

// listMovies serves a listing, optionally narrowed to titles containing query.
func (s *Server) listMovies(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimSpace(r.FormValue("source"))
	if source == "" {
		source = string(aggregator.MostPopular)
	}
	key, ok := aggregator.ParseSourceKey(source)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown source: "+source)
		return
	}
	limit := parseLimit(r.FormValue("limit"))
	query := strings.TrimSpace(r.FormValue("query"))

	movies := filterByTitle(s.movies.GetMovies(r.Context(), key, limit), query)
	writeJSON(w, http.StatusOK, s.listing(modeList, string(key), limit, query, movies))
}

// search runs a TMDb text search. A blank query serves the most popular listing instead.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := parseLimit(r.URL.Query().Get("limit"))

	if query == "" {
		movies := s.movies.GetMovies(r.Context(), aggregator.MostPopular, limit)
		writeJSON(w, http.StatusOK, s.listing(modeList, string(aggregator.MostPopular), limit, "", movies))
		return
	}

	movies := s.movies.Search(r.Context(), query, limit)
	writeJSON(w, http.StatusOK, s.listing(modeSearch, string(movie.SourceTMDb), limit, query, movies))
}

func (s *Server) trailer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("tmdb_id")), 10, 64)
	if err != nil || id <= 0 {
		// A missing or unusable id is answered like an unknown one.
		writeJSON(w, http.StatusOK, trailerResponse{})
		return
	}

	url, ok := s.movies.TrailerURL(r.Context(), id)
	if !ok {
		writeJSON(w, http.StatusOK, trailerResponse{})
		return
	}
	writeJSON(w, http.StatusOK, trailerResponse{OK: true, URL: &url})
}

func (s *Server) listing(mode, source string, limit int, query string, movies []movie.Record) listingResponse {
	if movies == nil {
		movies = []movie.Record{}
	}
	return listingResponse{
		Mode:        mode,
		Source:      source,
		Limit:       limit,
		Query:       query,
		TMDBEnabled: s.movies.Available(),
		GeneratedAt: s.now().In(s.location).Format(time.RFC3339),
		Movies:      movies,
	}
}

// filterByTitle keeps records whose title contains query, ignoring case and accents.
func filterByTitle(movies []movie.Record, query string) []movie.Record {
	if query == "" {
		return movies
	}
	needle := foldTitle(query)
	out := make([]movie.Record, 0, len(movies))
	for _, m := range movies {
		if strings.Contains(foldTitle(m.Title), needle) {
			out = append(out, m)
		}
	}
	return out
}

func foldTitle(s string) string {
	return strings.ToLower(unidecode.Unidecode(s))
}
