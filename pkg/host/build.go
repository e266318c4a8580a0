package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/redis/go-redis/v9"

	"github.com/smartattend/swcache/pkg/clients"
	"github.com/smartattend/swcache/pkg/config"
	"github.com/smartattend/swcache/pkg/connectivity"
	"github.com/smartattend/swcache/pkg/lifecycle"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/route"
	"github.com/smartattend/swcache/pkg/store"
	"github.com/smartattend/swcache/pkg/strategy"
	"github.com/smartattend/swcache/pkg/syncq"
	"github.com/smartattend/swcache/pkg/worker"
)

// Options override parts of Build for tests and embedding.
type Options struct {
	// Transport replaces the network client's transport.
	Transport http.RoundTripper

	// StoreBackend replaces the configured store backend.
	StoreBackend store.Backend

	// QueueStorage replaces the configured queue storage.
	QueueStorage syncq.Storage
}

// Built is a fully wired runtime plus the resources it owns.
type Built struct {
	Runtime *Runtime
	Proxy   *Proxy
	closers []func() error
}

// Close releases stores and queue storage.
func (b *Built) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires every component from cfg.
func Build(cfg config.Config, opts Options) (*Built, error) {
	origin, err := cfg.Origin()
	if err != nil {
		return nil, err
	}
	syncEndpoint, err := cfg.SyncEndpoint()
	if err != nil {
		return nil, err
	}

	built := &Built{}

	backend := opts.StoreBackend
	if backend == nil {
		backend, err = OpenStoreBackend(cfg)
		if err != nil {
			return nil, err
		}
	}
	stores := store.NewManager(backend)
	built.closers = append(built.closers, stores.Close)

	queueStorage := opts.QueueStorage
	if queueStorage == nil {
		queueStorage, err = OpenQueueStorage(cfg)
		if err != nil {
			_ = built.Close()
			return nil, err
		}
	}
	built.closers = append(built.closers, queueStorage.Close)

	tracker := connectivity.NewTracker(cfg.Connectivity.FailureThreshold)
	client := network.New(network.Config{
		Timeout:   cfg.Network.Timeout,
		UserAgent: cfg.Network.UserAgent,
		Transport: opts.Transport,
	})
	fetcher := tracker.Observe(client)

	registry := clients.NewRegistry()
	ctrl := lifecycle.New(stores, fetcher, registry, lifecycle.Config{
		Version:     cfg.Version,
		Prefix:      cfg.StorePrefix,
		Origin:      origin,
		Manifest:    cfg.Manifest,
		Concurrency: cfg.Precache.Concurrency,
	})
	names := ctrl.Names()

	exec := strategy.New(stores, fetcher, strategy.Config{
		Stores:      strategy.Stores{Static: names.Static, Dynamic: names.Dynamic},
		OfflinePath: cfg.OfflinePath,
	})
	queue := syncq.New(queueStorage, fetcher, syncEndpoint, registry)

	router := worker.New(worker.Config{
		Policy:    route.NewPolicy(cfg.RouteTables()),
		Executor:  exec,
		Lifecycle: ctrl,
		Queue:     queue,
		Fetcher:   fetcher,
		SyncTag:   cfg.Sync.Tag,
	})

	probeURL := origin.ResolveReference(&url.URL{Path: cfg.Connectivity.ProbePath}).String()
	built.Runtime = NewRuntime(Components{
		Router:    router,
		Lifecycle: ctrl,
		Queue:     queue,
		Stores:    stores,
		Registry:  registry,
		Tracker:   tracker,
	}, RuntimeConfig{
		InstallRetry:  cfg.Precache.Retry.Network(),
		SyncRetry:     cfg.Sync.Retry.Network(),
		ProbeInterval: cfg.Connectivity.ProbeInterval,
		Probe:         probe(client, probeURL),
	})

	base, err := url.Parse(cfg.Sync.Base)
	if err != nil {
		_ = built.Close()
		return nil, fmt.Errorf("parse sync base: %w", err)
	}
	built.Proxy = NewProxy(built.Runtime, ProxyConfig{
		Upstream:   origin,
		QueuePaths: []string{singleJoin(base.Path, "/attendance")},
	})
	return built, nil
}

// probe checks reachability with a HEAD request. Any HTTP answer counts.
func probe(client *network.Client, target string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return err
		}
		resp, err := client.Fetch(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

// OpenStoreBackend opens the configured store backend.
func OpenStoreBackend(cfg config.Config) (store.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryBackend(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Address,
			Username: cfg.Store.Redis.Username,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		return store.NewRedisBackend(client, cfg.Store.Redis.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// OpenQueueStorage opens the configured pending-write storage.
func OpenQueueStorage(cfg config.Config) (syncq.Storage, error) {
	switch cfg.Queue.Backend {
	case config.BackendMemory:
		return syncq.NewMemoryStorage(), nil
	case config.BackendSQLite:
		storage, err := syncq.OpenSQLite(cfg.Queue.Path)
		if err != nil {
			return nil, err
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}
