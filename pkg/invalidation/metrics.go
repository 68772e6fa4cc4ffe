package invalidation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Subsystem: "cache",
		Name:      "invalidate_total",
		Help:      "Total number of cache invalidation runs broken down by collection, mode and result.",
	}, []string{"collection", "mode", "result"})

	evictedKeys = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Subsystem: "cache",
		Name:      "evicted_keys_total",
		Help:      "Total number of cache keys removed by invalidation.",
	}, []string{"collection"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "docstore",
		Subsystem: "cache",
		Name:      "invalidation_queue_depth",
		Help:      "Current number of queued invalidation jobs.",
	})
)

func recordInvalidation(collection string, mode Mode, result string) {
	invalidations.WithLabelValues(collection, string(mode), result).Inc()
}
