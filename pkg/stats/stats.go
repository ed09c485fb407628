// Package stats exposes Prometheus metrics for the clustering engine.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// cluster-aggregation engine.
type Metrics struct {
	IndexRebuilds     prometheus.Counter
	RebuildDuration   prometheus.Histogram
	IndexedReports    prometheus.Gauge
	QueryDuration     prometheus.Histogram
	QueryCache        *prometheus.CounterVec // labels: result={hit,miss}
	SeverityFallbacks prometheus.Counter
}

// NewMetrics creates the engine metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IndexRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodmap",
			Name:      "index_rebuilds_total",
			Help:      "Total spatial index rebuilds (one per report-set change).",
		}),
		RebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floodmap",
			Name:      "index_rebuild_duration_seconds",
			Help:      "Duration of a full index rebuild.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		IndexedReports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodmap",
			Name:      "indexed_reports",
			Help:      "Reports with coordinates in the current index build.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floodmap",
			Name:      "viewport_query_duration_seconds",
			Help:      "Duration of a viewport cluster query, cache misses only.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodmap",
			Name:      "viewport_query_cache_total",
			Help:      "Viewport query cache lookups by result.",
		}, []string{"result"}),
		SeverityFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodmap",
			Name:      "severity_fallbacks_total",
			Help:      "Cluster severity computations that degraded to the count-only heuristic.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.IndexRebuilds,
			m.RebuildDuration,
			m.IndexedReports,
			m.QueryDuration,
			m.QueryCache,
			m.SeverityFallbacks,
		)
	}
	return m
}
