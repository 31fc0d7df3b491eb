package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the Step Engine, grounded on document/metrics.go's
// promauto usage (itself grounded on the pack's client_golang convention).
var (
	microstepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statifier",
		Subsystem: "engine",
		Name:      "microsteps_total",
		Help:      "Total number of microsteps executed across all macrosteps.",
	})
	macrostepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statifier",
		Subsystem: "engine",
		Name:      "macrosteps_total",
		Help:      "Total number of macrosteps completed.",
	})
	macrostepIterationCap = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statifier",
		Subsystem: "engine",
		Name:      "macrostep_iteration_cap_total",
		Help:      "Number of macrosteps that hit the eventless-transition iteration cap.",
	})
)
