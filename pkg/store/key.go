package store

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RequestKey identifies a cached response.
type RequestKey struct {
	// Method is the HTTP method (defaults to GET)
	Method string

	// URL is the absolute request URL
	URL string

	// Header carries the request headers used for Vary matching.
	// It is not part of String().
	Header http.Header
}

// KeyFromRequest builds a RequestKey from an outgoing request.
func KeyFromRequest(req *http.Request) RequestKey {
	if req == nil || req.URL == nil {
		return RequestKey{}
	}
	return RequestKey{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header,
	}
}

// KeyForURL builds a GET key for rawURL without request headers.
func KeyForURL(rawURL string) RequestKey {
	return RequestKey{Method: http.MethodGet, URL: rawURL}
}

// String generates a deterministic key string.
// Format: METHOD:scheme://host/path?sorted-query
//
// Example:
//
//	GET:https://app.example.com/api/students?class=5&section=A
func (k RequestKey) String() string {
	method := strings.ToUpper(strings.TrimSpace(k.Method))
	if method == "" {
		method = http.MethodGet
	}
	return fmt.Sprintf("%s:%s", method, normalizeURL(k.URL))
}

// normalizeURL drops the fragment and sorts query parameters so that
// equivalent URLs map to the same key.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	return u.String()
}
