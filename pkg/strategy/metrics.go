package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swcache_resolutions_total",
		Help: "Total request resolutions by strategy and response source",
	}, []string{"strategy", "source"})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swcache_background_refresh_total",
		Help: "Total background revalidations by result",
	}, []string{"result"})
)
