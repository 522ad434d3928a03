package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type promMetrics struct {
	lookups     *prometheus.CounterVec
	apiCalls    *prometheus.CounterVec
	apiDuration prometheus.Histogram
}

func registerProm(reg prometheus.Registerer) *promMetrics {
	factory := promauto.With(reg)
	return &promMetrics{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reqcache_lookups_total",
			Help: "Total number of cache lookups.",
		}, []string{"status" /* hit | miss */}),
		apiCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reqcache_api_calls_total",
			Help: "Total number of underlying api calls.",
		}, []string{"status" /* ok | error */}),
		apiDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reqcache_api_call_duration_seconds",
			Help:    "Latency of underlying api calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
