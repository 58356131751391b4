// Package metrics provides Prometheus instrumentation for the ceremony
// engine: counters for ceremonies, shares, and recovery attempts.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all ceremony metrics.
	Namespace = "shamir_ceremony"

	LabelResult    = "result"
	LabelOperation = "operation"

	ResultSuccess = "success"
	ResultFailure = "failure"

	OpCreate      = "create"
	OpReconstruct = "reconstruct"
)

var (
	// CeremoniesStartedTotal counts every create_shares/reconstruct_secret
	// invocation, by operation type.
	CeremoniesStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_started_total",
			Help:      "Total number of ceremonies started, by operation",
		},
		[]string{LabelOperation},
	)

	// CeremoniesCompletedTotal counts ceremony operation completions by
	// outcome.
	CeremoniesCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_completed_total",
			Help:      "Total number of ceremonies completed, by operation and result",
		},
		[]string{LabelOperation, LabelResult},
	)

	// SharesCreatedTotal counts individual shares emitted across all
	// create-shares ceremonies.
	SharesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "shares_created_total",
			Help:      "Total number of shares created across all ceremonies",
		},
	)

	// RecoveryAttemptsTotal counts individual share-decrypt attempts made
	// during reconstruction, by result.
	RecoveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "recovery_attempts_total",
			Help:      "Total number of share decrypt attempts during reconstruction, by result",
		},
		[]string{LabelResult},
	)

	// CeremonyDuration tracks wall-clock duration of a ceremony operation
	// in seconds.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of a ceremony operation in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{LabelOperation},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordCeremonyStart increments CeremoniesStartedTotal for operation.
func RecordCeremonyStart(operation string) {
	if !enabled.Load() {
		return
	}
	CeremoniesStartedTotal.WithLabelValues(operation).Inc()
}

// RecordCeremonyCompletion increments CeremoniesCompletedTotal and
// observes duration for operation.
func RecordCeremonyCompletion(operation, result string, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	CeremoniesCompletedTotal.WithLabelValues(operation, result).Inc()
	CeremonyDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordSharesCreated adds n to SharesCreatedTotal.
func RecordSharesCreated(n int) {
	if !enabled.Load() {
		return
	}
	SharesCreatedTotal.Add(float64(n))
}

// RecordRecoveryAttempt increments RecoveryAttemptsTotal for result.
func RecordRecoveryAttempt(result string) {
	if !enabled.Load() {
		return
	}
	RecoveryAttemptsTotal.WithLabelValues(result).Inc()
}

// Enable turns metrics collection on.
func Enable() { enabled.Store(true) }

// Disable turns metrics collection off. Useful for tests.
func Disable() { enabled.Store(false) }

// IsEnabled reports whether metrics collection is currently on.
func IsEnabled() bool { return enabled.Load() }
