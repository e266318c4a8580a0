package connectivity

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/logging"
	"github.com/smartattend/swcache/pkg/network"
)

var (
	onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swcache_origin_online",
		Help: "1 when the origin is reachable, 0 otherwise",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swcache_connectivity_transitions_total",
		Help: "Total connectivity transitions by new state",
	}, []string{"to"})
)

// Tracker records fetch outcomes and notifies listeners when the origin
// goes offline or comes back online.
type Tracker struct {
	mu        sync.Mutex
	state     State
	threshold int
	listeners []func(State)
	logger    zerolog.Logger
}

// NewTracker creates a tracker that starts online.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	onlineGauge.Set(1)
	return &Tracker{
		state:     State{Online: true, LastUpdate: time.Now()},
		threshold: threshold,
		logger:    logging.NewLogger("connectivity"),
	}
}

// State returns a snapshot of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Online reports whether the origin is considered reachable.
func (t *Tracker) Online() bool {
	return t.State().Online
}

// OnChange registers fn to be called after every transition.
func (t *Tracker) OnChange(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// RecordSuccess records that the origin answered.
func (t *Tracker) RecordSuccess() {
	t.update(func(s *State) {
		s.ConsecutiveFailures = 0
		s.Online = true
	})
}

// RecordFailure records a network failure.
func (t *Tracker) RecordFailure() {
	t.update(func(s *State) {
		s.ConsecutiveFailures++
		if s.ConsecutiveFailures >= t.threshold {
			s.Online = false
		}
	})
}

func (t *Tracker) update(fn func(*State)) {
	t.mu.Lock()
	was := t.state.Online
	fn(&t.state)
	now := time.Now()
	t.state.LastUpdate = now
	changed := was != t.state.Online
	if changed {
		t.state.LastChange = now
	}
	snapshot := t.state
	listeners := append([]func(State){}, t.listeners...)
	t.mu.Unlock()

	if !changed {
		return
	}

	if snapshot.Online {
		onlineGauge.Set(1)
		transitionsTotal.WithLabelValues("online").Inc()
		t.logger.Info().Msg("Origin reachable again")
	} else {
		onlineGauge.Set(0)
		transitionsTotal.WithLabelValues("offline").Inc()
		t.logger.Warn().Int("consecutive_failures", snapshot.ConsecutiveFailures).Msg("Origin unreachable")
	}
	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Observe wraps next so that every fetch outcome is recorded. Any HTTP
// response counts as reachable; only network errors count as failures.
func (t *Tracker) Observe(next network.Fetcher) network.Fetcher {
	return observed{tracker: t, next: next}
}

type observed struct {
	tracker *Tracker
	next    network.Fetcher
}

func (o observed) Fetch(req *http.Request) (*http.Response, error) {
	resp, err := o.next.Fetch(req)
	switch {
	case err == nil:
		o.tracker.RecordSuccess()
	case errors.Is(err, network.ErrNetwork) && req.Context().Err() == nil:
		o.tracker.RecordFailure()
	}
	return resp, err
}

// Monitor calls probe every interval while the origin is offline, until ctx
// is done. A successful probe flips the tracker back online.
func (t *Tracker) Monitor(ctx context.Context, interval time.Duration, probe func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if t.Online() {
			continue
		}
		if err := probe(ctx); err != nil {
			t.logger.Debug().Err(err).Msg("Connectivity probe failed")
			continue
		}
		t.RecordSuccess()
	}
}
