// Package worker routes host events to the offline cache's handlers.
//
// The router exposes one slot per event kind: install, activate, fetch, sync
// and message. Every slot returns a task the host awaits before it
// considers the event processed.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/clients"
	"github.com/smartattend/swcache/pkg/lifecycle"
	"github.com/smartattend/swcache/pkg/logging"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/route"
	"github.com/smartattend/swcache/pkg/strategy"
	"github.com/smartattend/swcache/pkg/syncq"
	"github.com/smartattend/swcache/pkg/task"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swcache_events_total",
		Help: "Total events handled by slot and result",
	}, []string{"slot", "result"})

	eventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swcache_event_duration_seconds",
		Help:    "Time until an event's handler produced its result",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"slot"})
)

// Slot names.
const (
	SlotInstall  = "install"
	SlotActivate = "activate"
	SlotFetch    = "fetch"
	SlotSync     = "sync"
	SlotMessage  = "message"
)

// Config wires the router to its handlers.
type Config struct {
	Policy    *route.Policy
	Executor  *strategy.Executor
	Lifecycle *lifecycle.Controller
	Queue     *syncq.Queue

	// Fetcher serves bypassed requests.
	Fetcher network.Fetcher

	// SyncTag is the only sync registration the router flushes.
	SyncTag string
}

// Router dispatches events to handlers.
type Router struct {
	policy    atomic.Pointer[route.Policy]
	executor  *strategy.Executor
	lifecycle *lifecycle.Controller
	queue     *syncq.Queue
	fetcher   network.Fetcher
	syncTag   string
	logger    zerolog.Logger
}

// New creates a Router.
func New(cfg Config) *Router {
	if cfg.Executor == nil || cfg.Lifecycle == nil || cfg.Queue == nil || cfg.Fetcher == nil {
		panic("router dependencies cannot be nil")
	}
	if cfg.Policy == nil {
		cfg.Policy = route.NewPolicy(route.DefaultTables())
	}
	if cfg.SyncTag == "" {
		cfg.SyncTag = syncq.DefaultTag
	}
	r := &Router{
		executor:  cfg.Executor,
		lifecycle: cfg.Lifecycle,
		queue:     cfg.Queue,
		fetcher:   cfg.Fetcher,
		syncTag:   cfg.SyncTag,
		logger:    logging.NewLogger("router"),
	}
	r.policy.Store(cfg.Policy)
	return r
}

// Policy returns the routing policy in effect.
func (r *Router) Policy() *route.Policy {
	return r.policy.Load()
}

// SetPolicy swaps the routing policy. In-flight fetches keep the policy
// they were classified with.
func (r *Router) SetPolicy(p *route.Policy) {
	if p == nil {
		return
	}
	r.policy.Store(p)
	r.logger.Info().Msg("Routing policy replaced")
}

// SyncTag returns the sync registration tag handled by the router.
func (r *Router) SyncTag() string {
	return r.syncTag
}

// Install handles the install event.
func (r *Router) Install(ctx context.Context) *task.Task[struct{}] {
	return run(ctx, SlotInstall, func(ctx context.Context, _ task.Extender) (struct{}, error) {
		return struct{}{}, r.lifecycle.Install(ctx)
	})
}

// Activate handles the activate event and returns the deleted store names.
func (r *Router) Activate(ctx context.Context) *task.Task[[]string] {
	return run(ctx, SlotActivate, func(ctx context.Context, _ task.Extender) ([]string, error) {
		return r.lifecycle.Activate(ctx)
	})
}

// Fetch handles an intercepted request.
func (r *Router) Fetch(ctx context.Context, req *http.Request) *task.Task[*strategy.Result] {
	s := r.Policy().Classify(req.URL, req.Method)
	return run(ctx, SlotFetch, func(ctx context.Context, ext task.Extender) (*strategy.Result, error) {
		if s == route.Bypass {
			resp, err := r.fetcher.Fetch(req)
			if err != nil {
				return nil, err
			}
			return &strategy.Result{Response: resp, Source: strategy.SourceNetwork}, nil
		}
		r.logger.Debug().Str("url", req.URL.String()).Str("strategy", s.String()).Msg("Resolving request")
		return r.executor.Resolve(ctx, ext, s, req)
	})
}

// Classify exposes the routing decision for req.
func (r *Router) Classify(req *http.Request) route.Strategy {
	return r.Policy().Classify(req.URL, req.Method)
}

// Sync handles a sync event. Tags other than the router's own are ignored.
// The task's value is the number of records synced.
func (r *Router) Sync(ctx context.Context, tag string) *task.Task[int] {
	if tag != r.syncTag {
		r.logger.Debug().Str("tag", tag).Msg("Ignoring unknown sync tag")
		return task.Resolved(0, nil)
	}
	return run(ctx, SlotSync, func(ctx context.Context, _ task.Extender) (int, error) {
		return r.queue.Flush(ctx)
	})
}

// Message handles a message posted by a client. Unknown types are ignored.
func (r *Router) Message(ctx context.Context, msg clients.Message) *task.Task[struct{}] {
	return run(ctx, SlotMessage, func(context.Context, task.Extender) (struct{}, error) {
		switch msg.Type {
		case clients.TypeSkipWait:
			r.lifecycle.SkipWaiting()
		default:
			r.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown message")
		}
		return struct{}{}, nil
	})
}

// run wraps fn with metrics.
func run[T any](ctx context.Context, slot string, fn func(context.Context, task.Extender) (T, error)) *task.Task[T] {
	return task.Run(ctx, func(ctx context.Context, ext task.Extender) (T, error) {
		start := time.Now()
		v, err := fn(ctx, ext)
		eventDuration.WithLabelValues(slot).Observe(time.Since(start).Seconds())
		if err != nil {
			eventsTotal.WithLabelValues(slot, "error").Inc()
			return v, fmt.Errorf("%s: %w", slot, err)
		}
		eventsTotal.WithLabelValues(slot, "ok").Inc()
		return v, nil
	})
}
