package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeHits tracks lookups served from a store
	storeHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swcache_store_hits_total",
			Help: "Total number of store lookups that returned an entry",
		},
		[]string{"store"},
	)

	// storeMisses tracks lookups with no usable entry
	storeMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swcache_store_misses_total",
			Help: "Total number of store lookups without a matching entry",
		},
		[]string{"store"},
	)

	storeWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swcache_store_writes_total",
			Help: "Total number of entries written to a store",
		},
		[]string{"store"},
	)

	// storeErrors tracks backend failures by operation
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swcache_store_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"operation"}, // "open", "get", "put", "delete", "list", "drop"
	)

	storesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swcache_stores_deleted_total",
			Help: "Total number of stores removed",
		},
	)
)
