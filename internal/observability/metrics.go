// Package observability holds the Prometheus collectors for triplan.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	generationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triplan",
		Subsystem: "generation",
		Name:      "plans_total",
		Help:      "Plan generations grouped by outcome.",
	}, []string{"outcome"})

	weekFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triplan",
		Subsystem: "generation",
		Name:      "week_failures_total",
		Help:      "Weeks that aborted a generation, grouped by reason.",
	}, []string{"reason"})

	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "triplan",
		Subsystem: "generation",
		Name:      "duration_seconds",
		Help:      "Wall time of a full plan generation.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
	})

	workoutsSavedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "triplan",
		Subsystem: "persistence",
		Name:      "workouts_saved_total",
		Help:      "Workout rows written to the store.",
	})

	workoutSaveErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "triplan",
		Subsystem: "persistence",
		Name:      "workout_save_errors_total",
		Help:      "Workout rows skipped because the insert failed.",
	})

	toggleCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triplan",
		Subsystem: "plan",
		Name:      "toggles_total",
		Help:      "Completion toggles, split by whether a row owned by the caller was found.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		generationCounter,
		weekFailureCounter,
		generationDuration,
		workoutsSavedCounter,
		workoutSaveErrorCounter,
		toggleCounter,
	)
}

// RecordGeneration counts a finished generation and observes its duration.
func RecordGeneration(outcome string, elapsed time.Duration) {
	generationCounter.WithLabelValues(outcome).Inc()
	generationDuration.Observe(elapsed.Seconds())
}

// RecordWeekFailure counts the week that aborted a generation.
func RecordWeekFailure(reason string) {
	weekFailureCounter.WithLabelValues(reason).Inc()
}

func RecordWorkoutsSaved(n int) {
	if n <= 0 {
		return
	}
	workoutsSavedCounter.Add(float64(n))
}

func RecordWorkoutSaveError() {
	workoutSaveErrorCounter.Inc()
}

// RecordToggle counts a toggle request; found is false for missing or foreign rows.
func RecordToggle(found bool) {
	result := "applied"
	if !found {
		result = "ignored"
	}
	toggleCounter.WithLabelValues(result).Inc()
}
