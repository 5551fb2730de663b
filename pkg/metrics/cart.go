package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart engine activity.
type CartMetrics struct {
	mutations      *prometheus.CounterVec
	mutationTime   *prometheus.HistogramVec
	mergeRuns      prometheus.Counter
	mergedLines    prometheus.Counter
	mergeConflicts prometheus.Counter
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutation operations by op and outcome.",
	}, []string{"op", "outcome"})
	mutationTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_mutation_duration_seconds",
		Help:    "Duration of cart mutations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	mergeRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_merge_runs_total",
		Help: "Guest cart merge executions.",
	})
	mergedLines := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_merge_lines_total",
		Help: "Guest cart lines merged into remote carts.",
	})
	mergeConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_merge_conflicts_total",
		Help: "Guest cart lines skipped during merge.",
	})
	reg.MustRegister(mutations, mutationTime, mergeRuns, mergedLines, mergeConflicts)
	return &CartMetrics{
		mutations:      mutations,
		mutationTime:   mutationTime,
		mergeRuns:      mergeRuns,
		mergedLines:    mergedLines,
		mergeConflicts: mergeConflicts,
	}
}

// ObserveMutation records one mutation attempt with its outcome and duration.
func (c *CartMetrics) ObserveMutation(op, outcome string, duration time.Duration) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
	c.mutationTime.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncMergeRun counts one merge execution.
func (c *CartMetrics) IncMergeRun() {
	if c == nil || c.mergeRuns == nil {
		return
	}
	c.mergeRuns.Inc()
}

// AddMergedLines counts lines transferred by a merge.
func (c *CartMetrics) AddMergedLines(n int) {
	if c == nil || c.mergedLines == nil || n <= 0 {
		return
	}
	c.mergedLines.Add(float64(n))
}

// IncMergeConflict counts a guest line skipped during merge.
func (c *CartMetrics) IncMergeConflict() {
	if c == nil || c.mergeConflicts == nil {
		return
	}
	c.mergeConflicts.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
