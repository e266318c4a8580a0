package lifecycle

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/store"
)

// precached is one fetched manifest entry.
type precached struct {
	index int
	URL   string
	Key   store.RequestKey
	Entry *store.Entry
	Err   error
}

// precache fetches every url with a bounded worker pool. The first failure
// cancels the remaining fetches and is returned; otherwise every entry is
// returned in manifest order.
func (c *Controller) precache(ctx context.Context, urls []string) ([]precached, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan int, len(urls))
	for i := range urls {
		queue <- i
	}
	close(queue)

	results := make(chan precached, len(urls))

	workers := c.config.Concurrency
	if workers > len(urls) {
		workers = len(urls)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processed := 0
			for i := range queue {
				select {
				case <-ctx.Done():
					c.logger.Debug().
						Int("worker_id", workerID).
						Int("processed", processed).
						Msg("Precache worker stopping (context cancelled)")
					return
				default:
				}
				res := c.fetchOne(ctx, urls[i])
				res.index = i
				processed++
				results <- res
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]precached, len(urls))
	var firstErr error
	for r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
				cancel()
			}
			continue
		}
		out[r.index] = r
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	precacheDuration.Observe(time.Since(start).Seconds())
	c.logger.Info().
		Int("entries", len(urls)).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("Manifest fetched")
	return out, nil
}

func (c *Controller) fetchOne(ctx context.Context, rawURL string) precached {
	res := precached{URL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		res.Err = precacheErr(rawURL, err)
		return res
	}
	resp, err := c.fetcher.Fetch(req)
	if err != nil {
		res.Err = precacheErr(rawURL, err)
		return res
	}
	defer resp.Body.Close()

	if !network.IsOK(resp) {
		res.Err = precacheErr(rawURL, network.StatusError(rawURL, resp.StatusCode))
		return res
	}

	res.Key = store.KeyFromRequest(req)
	res.Entry, err = store.ResponseToEntry(resp, res.Key)
	if err != nil {
		res.Err = precacheErr(rawURL, err)
	}
	return res
}
