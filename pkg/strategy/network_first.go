package strategy

import (
	"context"
	"net/http"

	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/store"
)

// NetworkFirst fetches req from the network and caches successful responses
// in the dynamic store. Non-OK responses are returned uncached. When the
// network fails it serves the dynamic copy, then the offline document for
// navigations, and otherwise returns the network error.
func (e *Executor) NetworkFirst(ctx context.Context, req *http.Request) (*Result, error) {
	key := store.KeyFromRequest(req)

	resp, err := e.fetcher.Fetch(req)
	if err == nil {
		if network.IsOK(resp) {
			e.save(ctx, e.config.Stores.Dynamic, key, resp)
		}
		return &Result{Response: resp, Source: SourceNetwork}, nil
	}

	e.logger.Warn().Err(err).Str("url", key.URL).Msg("Network failed, falling back to cache")

	if entry := e.lookup(ctx, e.config.Stores.Dynamic, key); entry != nil {
		return &Result{Response: store.EntryToResponse(entry, req), Source: SourceCache}, nil
	}
	if IsDocumentRequest(req) {
		return e.offline(ctx, req), nil
	}
	return nil, err
}
