package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	assignmentsTotal    *prometheus.CounterVec
	escalationsTotal    prometheus.Counter
	sweepExpiredTotal   prometheus.Counter
	sweepErrorsTotal    prometheus.Counter
	settlementsTotal    *prometheus.CounterVec
	settlementSeconds   prometheus.Histogram
	veracityScores      prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors for the core engines.
func RegisterMetrics() {
	registerOnce.Do(func() {
		assignmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_assignments_total",
			Help: "Total queue assignments handed to experts, by outcome.",
		}, []string{"outcome"})

		escalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_escalations_total",
			Help: "Total escalations to the next ranked candidate.",
		})

		sweepExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_expired_assignments_total",
			Help: "Total assignments expired by the sweeper.",
		})

		sweepErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_item_errors_total",
			Help: "Total per-question sweep failures that were skipped.",
		})

		settlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Total settlement attempts, by resulting status.",
		}, []string{"status"})

		settlementSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "Duration of settlement processing.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		veracityScores = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "veracity_overall_score",
			Help:    "Distribution of overall veracity scores.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		})

		prometheus.MustRegister(assignmentsTotal, escalationsTotal, sweepExpiredTotal,
			sweepErrorsTotal, settlementsTotal, settlementSeconds, veracityScores)
	})
}

// Assignments exposes the counter for queue assignments.
func Assignments() *prometheus.CounterVec {
	RegisterMetrics()
	return assignmentsTotal
}

// Escalations exposes the counter for queue escalations.
func Escalations() prometheus.Counter {
	RegisterMetrics()
	return escalationsTotal
}

// SweepExpired exposes the counter for sweeper expirations.
func SweepExpired() prometheus.Counter {
	RegisterMetrics()
	return sweepExpiredTotal
}

// SweepErrors exposes the counter for skipped sweep items.
func SweepErrors() prometheus.Counter {
	RegisterMetrics()
	return sweepErrorsTotal
}

// Settlements exposes the counter for settlement outcomes.
func Settlements() *prometheus.CounterVec {
	RegisterMetrics()
	return settlementsTotal
}

// SettlementDuration exposes the settlement latency histogram.
func SettlementDuration() prometheus.Histogram {
	RegisterMetrics()
	return settlementSeconds
}

// VeracityScores exposes the veracity score distribution histogram.
func VeracityScores() prometheus.Histogram {
	RegisterMetrics()
	return veracityScores
}
