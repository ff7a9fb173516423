package storage

import "time"

// CacheEntry is one stored HTTP response body, keyed by request signature.
type CacheEntry struct {
	Key         string
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// Fresh reports whether the entry is younger than ttl at the given instant.
func (e CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}
