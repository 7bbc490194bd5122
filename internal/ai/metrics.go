package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "wardsignal",
	Subsystem: "ai",
	Name:      "fallbacks_total",
	Help:      "Primary generator failures that fell back to the secondary.",
})
