package strategy

import (
	"context"
	"net/http"

	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/store"
)

// CacheFirst serves the first stored copy from any store. On a miss it
// fetches req and caches OK responses in the static store.
func (e *Executor) CacheFirst(ctx context.Context, req *http.Request) (*Result, error) {
	key := store.KeyFromRequest(req)

	if entry := e.match(ctx, key); entry != nil {
		e.logger.Debug().Str("url", key.URL).Msg("Cache hit")
		return &Result{Response: store.EntryToResponse(entry, req), Source: SourceCache}, nil
	}

	resp, err := e.fetcher.Fetch(req)
	if err != nil {
		return nil, err
	}
	if network.IsOK(resp) {
		e.save(ctx, e.config.Stores.Static, key, resp)
	}
	return &Result{Response: resp, Source: SourceNetwork}, nil
}
