package docstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of read-through cache lookups broken down by collection, key kind and hit/miss.",
	}, []string{"collection", "kind", "result"})

	writeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of rejected writes broken down by collection and operation.",
	}, []string{"collection", "op"})

	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Subsystem: "write",
		Name:      "mutations_total",
		Help:      "Total number of committed mutations broken down by collection and kind.",
	}, []string{"collection", "kind"})
)

func recordCacheRequest(collection, kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequests.WithLabelValues(collection, kind, result).Inc()
}

func recordWriteConflict(collection, op string) {
	writeConflicts.WithLabelValues(collection, op).Inc()
}

func recordMutation(collection string, kind MutationKind) {
	mutations.WithLabelValues(collection, string(kind)).Inc()
}
