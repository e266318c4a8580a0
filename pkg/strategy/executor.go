// Package strategy implements the request resolution strategies of the
// offline cache: network-first, cache-first and stale-while-revalidate.
//
// Executors borrow store handles for a single resolution. Storage failures
// never fail a resolution; they are logged and treated as cache misses.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/logging"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/route"
	"github.com/smartattend/swcache/pkg/store"
	"github.com/smartattend/swcache/pkg/task"
)

// ErrNoResponse is returned by stale-while-revalidate when neither a cached
// copy nor a network response is available.
var ErrNoResponse = errors.New("no cached or network response")

// DefaultOfflinePath is the cached offline document served to navigations
// when the network and the dynamic store both fail.
const DefaultOfflinePath = "/offline.html"

// OfflineHTML is the placeholder served when no offline document is cached.
const OfflineHTML = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Offline</title></head>` +
	`<body><h1>You are offline</h1><p>Please check your connection and try again.</p></body></html>`

// Source tells where a resolution's response came from.
type Source string

const (
	// SourceNetwork marks a response fetched from the origin for this request.
	SourceNetwork Source = "network"

	// SourceCache marks a response read from a store.
	SourceCache Source = "cache"

	// SourceOffline marks the offline document, cached or inline.
	SourceOffline Source = "offline"
)

// Result is a resolved response.
type Result struct {
	Response *http.Response
	Source   Source
}

// Stores names the stores executors read and write.
type Stores struct {
	Static  string
	Dynamic string
}

// Config holds executor configuration.
type Config struct {
	Stores Stores

	// OfflinePath is looked up in every store for offline navigations.
	OfflinePath string
}

// Executor runs the resolution strategies.
type Executor struct {
	stores  *store.Manager
	fetcher network.Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a new Executor.
func New(stores *store.Manager, fetcher network.Fetcher, cfg Config) *Executor {
	if stores == nil {
		panic("store manager cannot be nil")
	}
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if cfg.OfflinePath == "" {
		cfg.OfflinePath = DefaultOfflinePath
	}
	return &Executor{
		stores:  stores,
		fetcher: fetcher,
		config:  cfg,
		logger:  logging.NewLogger("strategy"),
	}
}

// Resolve dispatches req to the executor for s.
// Bypass is not handled here; callers send bypassed requests to the network.
func (e *Executor) Resolve(ctx context.Context, ext task.Extender, s route.Strategy, req *http.Request) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch s {
	case route.NetworkFirst:
		res, err = e.NetworkFirst(ctx, req)
	case route.CacheFirst:
		res, err = e.CacheFirst(ctx, req)
	case route.StaleWhileRevalidate:
		res, err = e.StaleWhileRevalidate(ctx, ext, req)
	default:
		return nil, fmt.Errorf("strategy %s is not executable", s)
	}

	if err != nil {
		resolutionsTotal.WithLabelValues(s.String(), "error").Inc()
		return nil, err
	}
	resolutionsTotal.WithLabelValues(s.String(), string(res.Source)).Inc()
	return res, nil
}

// lookup reads key from the named store, degrading storage failures to a miss.
func (e *Executor) lookup(ctx context.Context, name string, key store.RequestKey) *store.Entry {
	s, err := e.stores.Open(ctx, name)
	if err != nil {
		e.warnStorage(err, "open", name)
		return nil
	}
	entry, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrCacheMiss) {
			e.warnStorage(err, "get", name)
		}
		return nil
	}
	return entry
}

// match searches every store, degrading storage failures to a miss.
func (e *Executor) match(ctx context.Context, key store.RequestKey) *store.Entry {
	entry, err := e.stores.Match(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrCacheMiss) {
			e.warnStorage(err, "match", "")
		}
		return nil
	}
	return entry
}

// save writes resp into the named store and restores its body for the caller.
// Failures are logged and otherwise ignored.
func (e *Executor) save(ctx context.Context, name string, key store.RequestKey, resp *http.Response) {
	entry, err := store.ResponseToEntry(resp, key)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", key.URL).Msg("Failed to read response for caching")
		return
	}
	s, err := e.stores.Open(ctx, name)
	if err != nil {
		e.warnStorage(err, "open", name)
		return
	}
	if err := s.Put(ctx, key, entry); err != nil {
		e.warnStorage(err, "put", name)
	}
}

func (e *Executor) warnStorage(err error, op, name string) {
	e.logger.Warn().Err(err).Str("operation", op).Str("store", name).Msg("Storage failure treated as cache miss")
}

// offline builds the offline document for a failed navigation.
func (e *Executor) offline(ctx context.Context, req *http.Request) *Result {
	ref := &url.URL{Path: e.config.OfflinePath}
	key := store.KeyForURL(req.URL.ResolveReference(ref).String())
	if entry := e.match(ctx, key); entry != nil {
		return &Result{Response: store.EntryToResponse(entry, req), Source: SourceOffline}
	}

	resp := store.EntryToResponse(&store.Entry{
		URL:        key.URL,
		Data:       []byte(OfflineHTML),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
	}, req)
	return &Result{Response: resp, Source: SourceOffline}
}

// IsDocumentRequest reports whether req is a navigation to an HTML document.
func IsDocumentRequest(req *http.Request) bool {
	if req == nil {
		return false
	}
	if dest := req.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return strings.EqualFold(dest, "document")
	}
	if strings.EqualFold(req.Header.Get("Sec-Fetch-Mode"), "navigate") {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
