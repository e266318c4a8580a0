// Package host runs the offline cache behind an HTTP proxy. It plays the
// part of the event source: it installs and activates the current version,
// turns proxied requests into fetch events and raises sync events when the
// origin becomes reachable.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/clients"
	"github.com/smartattend/swcache/pkg/connectivity"
	"github.com/smartattend/swcache/pkg/lifecycle"
	"github.com/smartattend/swcache/pkg/logging"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/store"
	"github.com/smartattend/swcache/pkg/syncq"
	"github.com/smartattend/swcache/pkg/worker"
)

// RuntimeConfig holds runtime tuning.
type RuntimeConfig struct {
	InstallRetry network.RetryConfig
	SyncRetry    network.RetryConfig

	// ProbeInterval is how often an offline origin is probed.
	ProbeInterval time.Duration

	// Probe checks origin reachability. Nil disables probing.
	Probe func(ctx context.Context) error
}

// Runtime owns the router and the background loops around it.
type Runtime struct {
	router    *worker.Router
	lifecycle *lifecycle.Controller
	queue     *syncq.Queue
	stores    *store.Manager
	registry  *clients.Registry
	tracker   *connectivity.Tracker
	config    RuntimeConfig
	logger    zerolog.Logger

	mu         sync.Mutex
	// registered maps each pending sync tag to its registration generation.
	registered map[string]uint64
	kick       chan struct{}
	wg         sync.WaitGroup
}

// Components are the parts a Runtime drives.
type Components struct {
	Router    *worker.Router
	Lifecycle *lifecycle.Controller
	Queue     *syncq.Queue
	Stores    *store.Manager
	Registry  *clients.Registry
	Tracker   *connectivity.Tracker
}

// NewRuntime creates a Runtime.
func NewRuntime(c Components, cfg RuntimeConfig) *Runtime {
	if c.Router == nil || c.Lifecycle == nil || c.Queue == nil || c.Stores == nil || c.Registry == nil || c.Tracker == nil {
		panic("runtime components cannot be nil")
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	r := &Runtime{
		router:     c.Router,
		lifecycle:  c.Lifecycle,
		queue:      c.Queue,
		stores:     c.Stores,
		registry:   c.Registry,
		tracker:    c.Tracker,
		config:     cfg,
		logger:     logging.NewLogger("runtime"),
		registered: make(map[string]uint64),
		kick:       make(chan struct{}, 1),
	}
	c.Tracker.OnChange(func(s connectivity.State) {
		if s.Online {
			r.signal()
		}
	})
	return r
}

// Router returns the event router.
func (r *Runtime) Router() *worker.Router { return r.router }

// Lifecycle returns the lifecycle controller.
func (r *Runtime) Lifecycle() *lifecycle.Controller { return r.lifecycle }

// Queue returns the pending-write queue.
func (r *Runtime) Queue() *syncq.Queue { return r.queue }

// Stores returns the store manager.
func (r *Runtime) Stores() *store.Manager { return r.stores }

// Registry returns the connected clients.
func (r *Runtime) Registry() *clients.Registry { return r.registry }

// Tracker returns the connectivity tracker.
func (r *Runtime) Tracker() *connectivity.Tracker { return r.tracker }

// Start installs and activates the current version, then starts the sync
// and connectivity loops. It returns once the version is active; the loops
// run until ctx is done.
func (r *Runtime) Start(ctx context.Context) error {
	err := network.Retry(ctx, "install", r.config.InstallRetry, func(attempt int) error {
		_, err := r.router.Install(ctx).Await(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("install: %w", err)
	}

	select {
	case <-r.lifecycle.Promoted():
	case <-ctx.Done():
		return ctx.Err()
	}

	deleted, err := r.router.Activate(ctx).Await(ctx)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	r.logger.Info().
		Str("version", r.lifecycle.Version()).
		Strs("deleted", deleted).
		Msg("Version active")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.syncLoop(ctx)
	}()

	if r.config.Probe != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.tracker.Monitor(ctx, r.config.ProbeInterval, r.config.Probe)
		}()
	}

	// writes queued before a restart still need a sync
	if pending, err := r.queue.Pending(ctx); err == nil && len(pending) > 0 {
		r.RegisterSync(r.router.SyncTag())
	}
	return nil
}

// Wait blocks until the background loops exit.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

// RegisterSync records a sync registration for tag. The sync event fires
// as soon as the origin is reachable. Registering a tag whose sync is in
// flight makes it fire again once that sync completes.
func (r *Runtime) RegisterSync(tag string) {
	r.mu.Lock()
	r.registered[tag]++
	r.mu.Unlock()
	r.logger.Debug().Str("tag", tag).Msg("Sync registered")
	r.signal()
}

// Registered returns the pending sync tags.
func (r *Runtime) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]string, 0, len(r.registered))
	for tag := range r.registered {
		tags = append(tags, tag)
	}
	return tags
}

// Deliver routes a client message.
func (r *Runtime) Deliver(ctx context.Context, msg clients.Message) error {
	_, err := r.router.Message(ctx, msg).Await(ctx)
	return err
}

func (r *Runtime) signal() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Runtime) syncLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.kick:
		}
		if !r.tracker.Online() {
			continue
		}
		for _, tag := range r.Registered() {
			r.dispatchSync(ctx, tag)
		}
	}
}

// dispatchSync raises the sync event for tag and redelivers it with
// backoff while it fails. The registration is dropped once a sync succeeds,
// unless tag was registered again while the sync ran.
func (r *Runtime) dispatchSync(ctx context.Context, tag string) {
	r.mu.Lock()
	generation, ok := r.registered[tag]
	r.mu.Unlock()
	if !ok {
		return
	}

	err := network.Retry(ctx, "sync", r.config.SyncRetry, func(attempt int) error {
		if !r.tracker.Online() {
			return network.Stop(errOffline)
		}
		tk := r.router.Sync(ctx, tag)
		return tk.Wait(ctx)
	})
	if err != nil {
		if errors.Is(err, errOffline) {
			r.logger.Debug().Str("tag", tag).Msg("Origin offline, sync deferred")
		} else {
			r.logger.Warn().Err(err).Str("tag", tag).Msg("Sync failed, keeping registration")
		}
		return
	}

	r.mu.Lock()
	current := r.registered[tag]
	if current == generation {
		delete(r.registered, tag)
	}
	r.mu.Unlock()
	if current != generation {
		r.logger.Debug().Str("tag", tag).Msg("Sync registered during flush, redelivering")
		r.signal()
	}
}

// errOffline defers sync redelivery until connectivity returns.
var errOffline = errors.New("origin offline")
