package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fleet_"

	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	settlementTotal   *prometheus.CounterVec
	settlementLatency *prometheus.HistogramVec
	negativePayouts   prometheus.Counter

	expenseSummaryTotal   *prometheus.CounterVec
	expenseSummaryLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	outboxDispatchTotal   *prometheus.CounterVec
	outboxDispatchLatency *prometheus.HistogramVec
	outboxEvents          *prometheus.CounterVec

	schedulerContracts *prometheus.CounterVec
)

// Init registers service metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "earning_ingest_total",
				Help: "Total earning ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "earning_ingest_errors_total",
				Help: "Total earning ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "earning_ingest_latency_seconds",
				Help:    "Earning ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		settlementTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_operations_total",
				Help: "Total settlement operations by operation and result",
			},
			[]string{"operation", "result"},
		)
		settlementLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_operation_latency_seconds",
				Help:    "Settlement operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		)
		negativePayouts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_negative_payout_total",
				Help: "Settlements created with a negative net payout",
			},
		)

		expenseSummaryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "expense_summary_total",
				Help: "Total expense summaries by result",
			},
			[]string{"result"},
		)
		expenseSummaryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "expense_summary_latency_seconds",
				Help:    "Expense summary latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
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

		outboxDispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_total",
				Help: "Total outbox dispatch runs by result",
			},
			[]string{"result"},
		)
		outboxDispatchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "outbox_dispatch_latency_seconds",
				Help:    "Outbox dispatch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		outboxEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_events_total",
				Help: "Outbox events by delivery outcome",
			},
			[]string{"outcome"},
		)

		schedulerContracts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scheduler_contracts_total",
				Help: "Contracts visited by the weekly settlement run by outcome",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			settlementTotal,
			settlementLatency,
			negativePayouts,
			expenseSummaryTotal,
			expenseSummaryLatency,
			exportTotal,
			exportLatency,
			outboxDispatchTotal,
			outboxDispatchLatency,
			outboxEvents,
			schedulerContracts,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveSettlement records a settlement operation (create, confirm, dispute,
// recompute, attach_late) with its latency and result.
func ObserveSettlement(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if settlementTotal != nil {
		settlementTotal.WithLabelValues(operation, result).Inc()
	}
	if settlementLatency != nil {
		settlementLatency.WithLabelValues(operation, result).Observe(duration.Seconds())
	}
}

// IncNegativePayout counts settlements created with a negative payout.
func IncNegativePayout() {
	if negativePayouts != nil {
		negativePayouts.Inc()
	}
}

// ObserveExpenseSummary records summary latency and result.
func ObserveExpenseSummary(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if expenseSummaryTotal != nil {
		expenseSummaryTotal.WithLabelValues(result).Inc()
	}
	if expenseSummaryLatency != nil {
		expenseSummaryLatency.WithLabelValues(result).Observe(duration.Seconds())
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

// ObserveOutboxDispatch records a dispatch run and its per-event outcomes.
func ObserveOutboxDispatch(result string, duration time.Duration, sent, failed, dlq int) {
	if result == "" {
		result = resultSuccess
	}
	if outboxDispatchTotal != nil {
		outboxDispatchTotal.WithLabelValues(result).Inc()
	}
	if outboxDispatchLatency != nil {
		outboxDispatchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if outboxEvents == nil {
		return
	}
	if sent > 0 {
		outboxEvents.WithLabelValues("sent").Add(float64(sent))
	}
	if failed > 0 {
		outboxEvents.WithLabelValues("failed").Add(float64(failed))
	}
	if dlq > 0 {
		outboxEvents.WithLabelValues("dlq").Add(float64(dlq))
	}
}

// IncSchedulerContract counts one contract visited by the scheduler.
func IncSchedulerContract(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if schedulerContracts != nil {
		schedulerContracts.WithLabelValues(outcome).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultSkipped = resultSkipped
)
