package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wardsignal",
		Subsystem: "engine",
		Name:      "cache_hits_total",
		Help:      "Cached results served, by operation.",
	}, []string{"operation"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wardsignal",
		Subsystem: "engine",
		Name:      "cache_misses_total",
		Help:      "Cache misses (including cache errors read as misses), by operation.",
	}, []string{"operation"})
)
