// Package metrics exposes Prometheus collectors for plan construction and
// primitive execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PrimitiveExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lower_primitive_executions_total",
		Help: "Total number of primitive executions by kind",
	}, []string{"kind"})

	PrimitiveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lower_primitive_duration_seconds",
		Help:    "Histogram of primitive execution times",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	PrimitiveFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lower_primitive_failures_total",
		Help: "Total number of failed primitive executions by kind",
	}, []string{"kind"})

	Repacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lower_repacks_total",
		Help: "Total number of repacking steps inserted by operand and stage",
	}, []string{"operand", "stage"})

	PlanExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lower_plan_executions_total",
		Help: "Total number of plan executions by mode",
	}, []string{"mode"})

	PlanEntries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lower_plan_entries",
		Help:    "Distribution of plan lengths at execution",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512},
	})

	LoweringErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lower_lowering_errors_total",
		Help: "Total number of failed op lowerings by op and error class",
	}, []string{"op", "class"})
)

// RecordPrimitive records one primitive execution.
func RecordPrimitive(kind string, d time.Duration, err error) {
	PrimitiveExecutions.WithLabelValues(kind).Inc()
	PrimitiveDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err != nil {
		PrimitiveFailures.WithLabelValues(kind).Inc()
	}
}

// RecordRepack records a repacking step. Stage is "build" for repacks run
// while lowering and "plan" for repacks queued into the plan.
func RecordRepack(operand, stage string) {
	Repacks.WithLabelValues(operand, stage).Inc()
}

// RecordExecution records one plan replay.
func RecordExecution(mode string, entries int) {
	PlanExecutions.WithLabelValues(mode).Inc()
	PlanEntries.Observe(float64(entries))
}

// RecordLoweringError records a failed op lowering.
func RecordLoweringError(op, class string) {
	LoweringErrors.WithLabelValues(op, class).Inc()
}
