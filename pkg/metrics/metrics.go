// Package metrics exposes the Prometheus registry used by swcache.
// All metrics are defined in their respective packages (store, network,
// strategy, lifecycle, syncq, ...) to maintain modularity and avoid circular
// dependencies.
//
// This package documents the available metrics and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by swcache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Store Metrics (pkg/store):
//   - swcache_store_hits_total{store} (Counter): Lookups answered by a store
//   - swcache_store_misses_total{store} (Counter): Lookups a store could not answer
//   - swcache_store_writes_total{store} (Counter): Entries written
//   - swcache_store_errors_total{operation} (Counter): Storage failures
//   - swcache_stores_deleted_total (Counter): Stores deleted
//
// Network Metrics (pkg/network):
//   - swcache_fetch_total{method, status} (Counter): Fetches by method and HTTP status
//   - swcache_fetch_duration_seconds{method} (Histogram): Fetch duration
//   - swcache_fetch_errors_total{class} (Counter): Failures by class (client, server, network)
//   - swcache_retries_total{operation} (Counter): Retry attempts
//   - swcache_retry_backoff_seconds{operation} (Histogram): Backoff before each retry
//   - swcache_retry_exhausted_total{operation} (Counter): Operations that ran out of attempts
//
// Strategy Metrics (pkg/strategy):
//   - swcache_resolutions_total{strategy, source} (Counter): Resolutions by response source
//   - swcache_background_refresh_total{result} (Counter): Stale-while-revalidate refreshes
//
// Lifecycle Metrics (pkg/lifecycle):
//   - swcache_install_total{result} (Counter): Install attempts
//   - swcache_precache_duration_seconds (Histogram): Manifest fetch duration
//   - swcache_lifecycle_phase (Gauge): Current phase
//
// Sync Metrics (pkg/syncq):
//   - swcache_sync_records_enqueued_total (Counter): Pending writes queued
//   - swcache_sync_records_synced_total (Counter): Pending writes acknowledged
//   - swcache_sync_flush_total{result} (Counter): Flush attempts
//
// Runtime Metrics (pkg/worker, pkg/clients, pkg/connectivity):
//   - swcache_events_total{slot, result} (Counter): Events by router slot
//   - swcache_event_duration_seconds{slot} (Histogram): Handler latency
//   - swcache_clients_connected (Gauge): Connected clients
//   - swcache_client_messages_dropped_total (Counter): Messages lost to full client buffers
//   - swcache_origin_online (Gauge): Origin reachability
//   - swcache_connectivity_transitions_total{to} (Counter): Online/offline flips
//
// Example Prometheus Queries:
//
//   # Share of requests answered from cache
//   sum(rate(swcache_resolutions_total{source="cache"}[5m])) /
//   sum(rate(swcache_resolutions_total[5m]))
//
//   # Pending writes not yet acknowledged
//   swcache_sync_records_enqueued_total - swcache_sync_records_synced_total
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(swcache_fetch_duration_seconds_bucket[5m]))
