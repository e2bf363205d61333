package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "cuadres_"

	resultSuccess = "success"
	resultError   = "error"
	resultLocked  = "locked"
)

var (
	registerOnce sync.Once

	reconcileTotal   *prometheus.CounterVec
	reconcileLatency *prometheus.HistogramVec

	reportTotal   *prometheus.CounterVec
	reportLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	machineOutcomes *prometheus.CounterVec
	balanceLocks    *prometheus.CounterVec
	counterWrites   *prometheus.CounterVec
)

// Init registers metrics and, when db is set, DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_total",
				Help: "Total reconciliations by scope and result",
			},
			[]string{"scope", "result"},
		)
		reconcileLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconcile_latency_seconds",
				Help:    "Reconciliation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scope", "result"},
		)

		reportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_total",
				Help: "Total composed reports by kind and result",
			},
			[]string{"kind", "result"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_latency_seconds",
				Help:    "Report composition latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		machineOutcomes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "machine_outcomes_total",
				Help: "Per-machine fan-out outcomes by status",
			},
			[]string{"status"},
		)
		balanceLocks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "balance_locks_total",
				Help: "Balance lock requests by scope and result",
			},
			[]string{"scope", "result"},
		)
		counterWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "counter_writes_total",
				Help: "Counter snapshot writes by operation and result",
			},
			[]string{"op", "result"},
		)

		prometheus.MustRegister(
			reconcileTotal,
			reconcileLatency,
			reportTotal,
			reportLatency,
			exportTotal,
			exportLatency,
			machineOutcomes,
			balanceLocks,
			counterWrites,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveReconcile records reconciliation latency and result.
func ObserveReconcile(scope, result string, duration time.Duration) {
	if scope == "" {
		scope = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(scope, result).Inc()
	}
	if reconcileLatency != nil {
		reconcileLatency.WithLabelValues(scope, result).Observe(duration.Seconds())
	}
}

// ObserveReport records report latency and result.
func ObserveReport(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportTotal != nil {
		reportTotal.WithLabelValues(kind, result).Inc()
	}
	if reportLatency != nil {
		reportLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncMachineOutcome counts one per-machine fan-out outcome.
func IncMachineOutcome(status string) {
	if status == "" {
		status = "unknown"
	}
	if machineOutcomes != nil {
		machineOutcomes.WithLabelValues(status).Inc()
	}
}

// IncBalanceLock counts a lock request.
func IncBalanceLock(scope, result string) {
	if scope == "" {
		scope = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if balanceLocks != nil {
		balanceLocks.WithLabelValues(scope, result).Inc()
	}
}

// IncCounterWrite counts a counter insert or correction.
func IncCounterWrite(op, result string) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if counterWrites != nil {
		counterWrites.WithLabelValues(op, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultLocked  = resultLocked
)
