package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"cinelist/storage"
)

// keyedHeaders change the representation a server returns, so they are part of the cache key.
var keyedHeaders = []string{"Accept", "Accept-Language"}

// secretParams are masked wherever a URL is logged or stored.
var secretParams = []string{"api_key"}

type transport struct {
	client *Client
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client
	if req.Method != http.MethodGet {
		return c.base.RoundTrip(req)
	}

	key := requestKey(req)
	if entry, ok := c.lookup(key); ok {
		return entryResponse(entry, req), nil
	}

	// Concurrent misses on one key share a single upstream request. It runs detached from
	// the caller that started it; each caller stops waiting when its own context ends.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if entry, ok := c.lookup(key); ok {
			return entry, nil
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), RequestTimeout)
		defer cancel()
		return c.roundTripAndStore(req.Clone(ctx), key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return entryResponse(res.Val.(storage.CacheEntry), req), nil
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
}

func requestKey(req *http.Request) string {
	u := *req.URL
	u.RawQuery = u.Query().Encode()
	u.Fragment = ""

	h := sha256.New()
	io.WriteString(h, req.Method+" "+u.String())
	for _, name := range keyedHeaders {
		fmt.Fprintf(h, "\n%s: %s", name, req.Header.Get(name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func entryResponse(entry storage.CacheEntry, req *http.Request) *http.Response {
	header := make(http.Header)
	if entry.ContentType != "" {
		header.Set("Content-Type", entry.ContentType)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}

// redactError masks secrets in the URL carried by a *url.Error.
func redactError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	redacted := ue.URL
	if pu, perr := url.Parse(ue.URL); perr == nil {
		redacted = redactURL(pu)
	}
	return &url.Error{Op: ue.Op, URL: redacted, Err: ue.Err}
}

func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	masked := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			masked = true
		}
	}
	if !masked {
		return u.String()
	}
	cp := *u
	cp.RawQuery = q.Encode()
	return cp.String()
}
