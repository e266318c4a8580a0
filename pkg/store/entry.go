package store

import (
	"net/http"
	"strings"
	"time"
)

// Entry represents a cached HTTP response.
type Entry struct {
	// URL the response was fetched from
	URL string `json:"url"`

	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// Vary holds the request header values selected by the response's Vary header
	Vary map[string]string `json:"vary,omitempty"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the entry was cached.
func (e *Entry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}

// Matches reports whether a request carrying header satisfies the entry's
// Vary constraints.
func (e *Entry) Matches(header http.Header) bool {
	for _, field := range varyFields(e.Headers) {
		if field == "*" {
			return false
		}
		if header.Get(field) != e.Vary[http.CanonicalHeaderKey(field)] {
			return false
		}
	}
	return true
}

// varyFields lists the header names in a response's Vary header.
func varyFields(h http.Header) []string {
	var fields []string
	for _, line := range h.Values("Vary") {
		for _, f := range strings.Split(line, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}
	return fields
}
