package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RenewalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizflow_billing_renewals_total",
			Help: "Renewal attempts by outcome",
		},
		[]string{"outcome"}, // successful, failed, skipped, pending
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizflow_billing_retries_total",
			Help: "Payment retry attempts by outcome",
		},
		[]string{"outcome"},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizflow_billing_webhooks_total",
			Help: "Gateway webhooks received by gateway status and handling result",
		},
		[]string{"status", "result"},
	)

	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizflow_billing_status_transitions_total",
			Help: "Subscription status changes persisted by the status sweep or access checks",
		},
		[]string{"from", "to"},
	)

	LedgerEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bizflow_billing_ledger_entries_total",
			Help: "Financial movements appended to the ledger",
		},
	)

	GatewayChargeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bizflow_billing_gateway_charge_seconds",
			Help:    "Latency of gateway charge calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	JobRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bizflow_billing_job_run_seconds",
			Help:    "Duration of scheduled billing sweeps",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"job"},
	)
)

// RecordRenewal counts one renewal outcome
func RecordRenewal(outcome string) {
	RenewalsTotal.WithLabelValues(outcome).Inc()
}

// RecordRetry counts one retry outcome
func RecordRetry(outcome string) {
	RetriesTotal.WithLabelValues(outcome).Inc()
}

// RecordWebhook counts a processed webhook
func RecordWebhook(status, result string) {
	WebhooksTotal.WithLabelValues(status, result).Inc()
}

// RecordStatusTransition counts a persisted status change
func RecordStatusTransition(from, to string) {
	StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordLedgerEntry counts an appended financial movement
func RecordLedgerEntry() {
	LedgerEntriesTotal.Inc()
}

// ObserveGatewayCharge records how long a charge call took
func ObserveGatewayCharge(status string, started time.Time) {
	GatewayChargeDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}

// ObserveJobRun records the duration of a scheduled job
func ObserveJobRun(job string, started time.Time) {
	JobRunDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
}
