// Package route classifies intercepted requests into caching strategies.
package route

import (
	"net/http"
	"net/url"
	"strings"
)

// Strategy selects how a request is resolved.
type Strategy int

const (
	// Bypass passes the request straight to the network without interception.
	Bypass Strategy = iota
	// NetworkFirst prefers fresh network data and falls back to the dynamic store.
	NetworkFirst
	// CacheFirst serves any stored copy and only fetches on a miss.
	CacheFirst
	// StaleWhileRevalidate serves the stored copy and refreshes it in the background.
	StaleWhileRevalidate
)

// String returns the strategy label used in logs and metrics.
func (s Strategy) String() string {
	switch s {
	case NetworkFirst:
		return "network-first"
	case CacheFirst:
		return "cache-first"
	case StaleWhileRevalidate:
		return "stale-while-revalidate"
	default:
		return "bypass"
	}
}

// Tables holds the route configuration.
type Tables struct {
	// NetworkFirst lists path fragments (API and dynamic content).
	NetworkFirst []string

	// CacheFirst lists path fragments or suffixes (asset directories, extensions).
	CacheFirst []string
}

// DefaultTables returns the route tables of the attendance client.
func DefaultTables() Tables {
	return Tables{
		NetworkFirst: []string{"/api/", "/dashboard/", "/attendance"},
		CacheFirst: []string{
			"/assets/", "/static/",
			".js", ".css", ".png", ".jpg", ".jpeg", ".svg", ".ico",
		},
	}
}

// Policy is an immutable classifier built from Tables.
type Policy struct {
	networkFirst []string
	cacheFirst   []string
}

// NewPolicy copies tables into a Policy. Empty patterns are ignored.
func NewPolicy(tables Tables) *Policy {
	return &Policy{
		networkFirst: compact(tables.NetworkFirst),
		cacheFirst:   compact(tables.CacheFirst),
	}
}

// Tables returns a copy of the configured tables.
func (p *Policy) Tables() Tables {
	return Tables{
		NetworkFirst: append([]string(nil), p.networkFirst...),
		CacheFirst:   append([]string(nil), p.cacheFirst...),
	}
}

// Classify selects exactly one strategy for (u, method).
// Network-first patterns are checked before cache-first ones, so an
// asset-looking path under an API prefix stays network-first.
func (p *Policy) Classify(u *url.URL, method string) Strategy {
	if u == nil {
		return Bypass
	}
	if method != "" && !strings.EqualFold(method, http.MethodGet) {
		return Bypass
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return Bypass
	}

	path := u.EscapedPath()
	for _, prefix := range p.networkFirst {
		if strings.Contains(path, prefix) {
			return NetworkFirst
		}
	}
	for _, marker := range p.cacheFirst {
		if strings.Contains(path, marker) || strings.HasSuffix(path, marker) {
			return CacheFirst
		}
	}
	return StaleWhileRevalidate
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
