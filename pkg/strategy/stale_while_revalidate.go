package strategy

import (
	"context"
	"fmt"
	"net/http"

	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/store"
	"github.com/smartattend/swcache/pkg/task"
)

type fetchOutcome struct {
	resp *http.Response
	err  error
}

// StaleWhileRevalidate serves the dynamic copy immediately when present and
// refreshes it from the network under ext's lifetime. Without a cached copy
// it waits for the network. When both are unavailable it returns
// ErrNoResponse wrapping the network error.
func (e *Executor) StaleWhileRevalidate(ctx context.Context, ext task.Extender, req *http.Request) (*Result, error) {
	key := store.KeyFromRequest(req)
	cached := e.lookup(ctx, e.config.Stores.Dynamic, key)

	outcome := make(chan fetchOutcome, 1)
	ext.WaitUntil(func(bg context.Context) {
		resp, err := e.fetcher.Fetch(req.Clone(bg))
		if err != nil {
			refreshTotal.WithLabelValues("network_error").Inc()
			outcome <- fetchOutcome{err: err}
			return
		}
		if network.IsOK(resp) {
			e.save(bg, e.config.Stores.Dynamic, key, resp)
			refreshTotal.WithLabelValues("updated").Inc()
		} else {
			refreshTotal.WithLabelValues("not_ok").Inc()
		}
		if cached != nil {
			// nobody waits for this response
			resp.Body.Close()
			return
		}
		outcome <- fetchOutcome{resp: resp}
	})

	if cached != nil {
		e.logger.Debug().Str("url", key.URL).Msg("Serving stale copy while revalidating")
		return &Result{Response: store.EntryToResponse(cached, req), Source: SourceCache}, nil
	}

	select {
	case out := <-outcome:
		if out.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoResponse, out.err)
		}
		return &Result{Response: out.resp, Source: SourceNetwork}, nil
	case <-ctx.Done():
		ext.WaitUntil(func(context.Context) {
			if out := <-outcome; out.resp != nil {
				out.resp.Body.Close()
			}
		})
		return nil, ctx.Err()
	}
}
