// Package metrics exposes Prometheus counters for the migration engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Strategy outcomes.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomePanic = "panic"
)

var (
	strategyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "migration_predictor_outcomes_total",
		Help: "Per-customer predictor attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "migration_predictions_total",
		Help: "Completed migration predictions by kind (publish, revoke).",
	}, []string{"kind"})

	consistencyViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "migration_consistency_violations_total",
		Help: "Predicted subscriptions exceeding the customer population.",
	})

	regressionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "migration_regression_fallbacks_total",
		Help: "Regression predictions that fell back to interpolation, by engine.",
	}, []string{"engine"})

	predictionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "migration_prediction_seconds",
		Help:    "Wall-clock time of one migration prediction.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"kind"})
)

func ObserveStrategy(strategy, outcome string) {
	strategyOutcomes.WithLabelValues(strategy, outcome).Inc()
}

func ObservePrediction(kind string, seconds float64) {
	predictions.WithLabelValues(kind).Inc()
	predictionSeconds.WithLabelValues(kind).Observe(seconds)
}

func ConsistencyViolation() {
	consistencyViolations.Inc()
}

func RegressionFallback(engine string) {
	regressionFallbacks.WithLabelValues(engine).Inc()
}
