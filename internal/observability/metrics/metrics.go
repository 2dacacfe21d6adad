package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "telegateway_"

	resultSuccess = "success"
	resultError   = "error"
	resultIgnored = "ignored"
)

var (
	registerOnce sync.Once

	ledgerOps *prometheus.CounterVec

	webhookEvents  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec

	jobRuns    *prometheus.CounterVec
	jobLatency *prometheus.HistogramVec

	feesRecorded    prometheus.Counter
	invoicesCreated prometheus.Counter
	invoicesSkipped prometheus.Counter

	merchantsBlocked prometheus.Counter
	merchantsWarned  prometheus.Counter

	notifySends *prometheus.CounterVec

	statementExportTotal   *prometheus.CounterVec
	statementExportLatency *prometheus.HistogramVec
)

// Init registers billing metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ledgerOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_ops_total",
				Help: "Total ledger mutations by operation and result",
			},
			[]string{"op", "result"},
		)

		webhookEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "gateway_webhook_events_total",
				Help: "Total payment gateway webhook events by type and result",
			},
			[]string{"event", "result"},
		)
		webhookLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "gateway_webhook_latency_seconds",
				Help:    "Gateway webhook handling latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		jobRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "job_runs_total",
				Help: "Total scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		)
		jobLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "job_latency_seconds",
				Help:    "Scheduled job latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		)

		feesRecorded = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "platform_fees_recorded_total",
				Help: "Total platform fee records created",
			},
		)
		invoicesCreated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "daily_invoices_created_total",
				Help: "Total daily fee invoices created",
			},
		)
		invoicesSkipped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "daily_invoices_skipped_total",
				Help: "Total duplicate daily fee invoices skipped",
			},
		)

		merchantsBlocked = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "merchants_blocked_total",
				Help: "Total merchants blocked by the delinquency sweeper",
			},
		)
		merchantsWarned = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "merchants_warned_total",
				Help: "Total final warnings sent by the delinquency sweeper",
			},
		)

		notifySends = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notify_sends_total",
				Help: "Total outbound notifications by result",
			},
			[]string{"result"},
		)

		statementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total billing statement exports by format and result",
			},
			[]string{"format", "result"},
		)
		statementExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_latency_seconds",
				Help:    "Billing statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ledgerOps,
			webhookEvents,
			webhookLatency,
			jobRuns,
			jobLatency,
			feesRecorded,
			invoicesCreated,
			invoicesSkipped,
			merchantsBlocked,
			merchantsWarned,
			notifySends,
			statementExportTotal,
			statementExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveLedgerOp counts one ledger mutation.
func ObserveLedgerOp(op, result string) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if ledgerOps != nil {
		ledgerOps.WithLabelValues(op, result).Inc()
	}
}

// ObserveWebhookEvent records one gateway webhook delivery.
func ObserveWebhookEvent(event, result string, duration time.Duration) {
	if event == "" {
		event = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if webhookEvents != nil {
		webhookEvents.WithLabelValues(event, result).Inc()
	}
	if webhookLatency != nil {
		webhookLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveJobRun records one scheduled job invocation.
func ObserveJobRun(job, result string, duration time.Duration) {
	if job == "" {
		job = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if jobRuns != nil {
		jobRuns.WithLabelValues(job, result).Inc()
	}
	if jobLatency != nil {
		jobLatency.WithLabelValues(job).Observe(duration.Seconds())
	}
}

// IncFeeRecorded counts one platform fee record.
func IncFeeRecorded() {
	if feesRecorded != nil {
		feesRecorded.Inc()
	}
}

// AddInvoicesCreated counts invoices created in a consolidation run.
func AddInvoicesCreated(count int) {
	if count > 0 && invoicesCreated != nil {
		invoicesCreated.Add(float64(count))
	}
}

// AddInvoicesSkipped counts duplicate invoices skipped in a run.
func AddInvoicesSkipped(count int) {
	if count > 0 && invoicesSkipped != nil {
		invoicesSkipped.Add(float64(count))
	}
}

// IncMerchantBlocked counts one sweeper block transition.
func IncMerchantBlocked() {
	if merchantsBlocked != nil {
		merchantsBlocked.Inc()
	}
}

// IncMerchantWarned counts one final warning.
func IncMerchantWarned() {
	if merchantsWarned != nil {
		merchantsWarned.Inc()
	}
}

// IncNotifySend counts one outbound notification attempt.
func IncNotifySend(result string) {
	if result == "" {
		result = resultSuccess
	}
	if notifySends != nil {
		notifySends.WithLabelValues(result).Inc()
	}
}

// ObserveStatementExport records export latency and result.
func ObserveStatementExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
	}
	if statementExportLatency != nil {
		statementExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultIgnored = resultIgnored
)
