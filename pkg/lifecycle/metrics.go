package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	installTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swcache_install_total",
		Help: "Total install attempts by result",
	}, []string{"result"})

	precacheDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swcache_precache_duration_seconds",
		Help:    "Time to fetch the whole static manifest",
		Buckets: prometheus.DefBuckets,
	})

	currentPhase = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swcache_lifecycle_phase",
		Help: "Current lifecycle phase (0 idle, 1 installing, 2 waiting, 3 activating, 4 active, 5 redundant)",
	})
)
