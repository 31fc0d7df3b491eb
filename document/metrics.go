package document

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus surfaces the Hierarchy Cache's build-time stats as gauges and
// a histogram, grounded in the pack's own use of client_golang for internal
// build/processing timings (AKJUS-bsc-erigon, bittoy-rule, GoCodeAlone-workflow).
var (
	hierarchyBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "statifier",
		Subsystem: "hierarchy",
		Name:      "build_duration_seconds",
		Help:      "Time to build a Document's Hierarchy Cache (ancestors, descendants, LCCA matrix).",
		Buckets:   prometheus.DefBuckets,
	})
	hierarchyStateCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statifier",
		Subsystem: "hierarchy",
		Name:      "state_count",
		Help:      "Number of states in the most recently built Hierarchy Cache.",
	})
	hierarchyLCCAEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statifier",
		Subsystem: "hierarchy",
		Name:      "lcca_entries",
		Help:      "Number of entries in the most recently built LCCA matrix.",
	})
)

func recordHierarchyBuild(s Stats) {
	hierarchyBuildSeconds.Observe(s.BuildDuration.Seconds())
	hierarchyStateCount.Set(float64(s.StateCount))
	hierarchyLCCAEntries.Set(float64(s.LCCAEntries))
}
