package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edgewallet"

var (
	// Registry holds the application collectors exposed on /metrics.
	Registry = prometheus.NewRegistry()

	provisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "requests_total",
			Help:      "Wallet trio provisioning attempts by outcome.",
		},
		[]string{"outcome"},
	)

	orphanedAssets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "orphaned_assets_total",
			Help:      "Ledger assets committed by a provisioning run whose local rows were rolled back.",
		},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "requests_total",
			Help:      "Token transfer attempts by outcome.",
		},
		[]string{"outcome"},
	)

	ledgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests to the external ledger.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"operation", "status"},
	)

	drift = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "drift_total",
			Help:      "Wallet balances found out of line with the ledger.",
		},
		[]string{"role"},
	)
)

func init() {
	Registry.MustRegister(
		provisions,
		orphanedAssets,
		transfers,
		ledgerDuration,
		drift,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordProvision counts a provisioning attempt.
func RecordProvision(outcome string) {
	provisions.WithLabelValues(outcome).Inc()
}

// RecordOrphanedAssets counts ledger assets left without local rows.
func RecordOrphanedAssets(n int) {
	orphanedAssets.Add(float64(n))
}

// RecordTransfer counts a transfer attempt.
func RecordTransfer(outcome string) {
	transfers.WithLabelValues(outcome).Inc()
}

// ObserveLedgerRequest records the latency of one ledger round trip.
func ObserveLedgerRequest(operation string, status int, d time.Duration) {
	ledgerDuration.WithLabelValues(operation, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordDrift counts a wallet whose local volume differs from the ledger.
func RecordDrift(role string) {
	drift.WithLabelValues(role).Inc()
}
